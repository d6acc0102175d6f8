package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var errNotBinary = errors.New("not binary message")

// WSDialer carries MQTT over a WebSocket connection using the "mqtt" subprotocol.
type WSDialer struct {
	Timeout time.Duration
	Path    string
}

func (d *WSDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	path := d.Path
	if path == "" {
		path = "/mqtt"
	}
	u := url.URL{Scheme: "ws", Host: address, Path: path}

	dialer := websocket.Dialer{
		HandshakeTimeout: d.Timeout,
		Subprotocols:     []string{"mqtt"}, // [MQTT-6.0.0-3]
	}
	conn, _, err := dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}

	return newWSConn(conn), nil
}

// wsConn adapts a websocket connection to a byte stream.
// A gorilla connection cannot be read from again after a read deadline fires, so messages
// are pumped by readLoop and read deadlines are enforced here instead.
type wsConn struct {
	*websocket.Conn
	msgs    chan []byte
	done    chan struct{} // readLoop ended, rErr is set
	closing chan struct{}
	rErr    error
	once    sync.Once

	buf []byte

	dlLock    sync.Mutex
	deadline  time.Time
	dlChanged chan struct{} // closed and replaced on every SetReadDeadline

	txLock sync.Mutex
}

func newWSConn(conn *websocket.Conn) *wsConn {
	c := &wsConn{
		Conn:      conn,
		msgs:      make(chan []byte),
		done:      make(chan struct{}),
		closing:   make(chan struct{}),
		dlChanged: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

func (c *wsConn) readLoop() {
	defer close(c.done)
	for {
		mt, p, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				err = io.EOF
			}
			c.rErr = err
			return
		}
		if mt != websocket.BinaryMessage { // [MQTT-6.0.0-1]
			c.rErr = errNotBinary
			return
		}
		if len(p) == 0 {
			continue
		}

		select {
		case c.msgs <- p:
		case <-c.closing:
			c.rErr = net.ErrClosed
			return
		}
	}
}

func (c *wsConn) Read(p []byte) (int, error) {
	for len(c.buf) == 0 {
		if err := c.waitMessage(); err != nil {
			return 0, err
		}
	}

	n := copy(p, c.buf)
	c.buf = c.buf[n:]
	return n, nil
}

// waitMessage blocks until a message arrives, the connection ends or the read deadline passes.
// A deadline set while waiting takes effect immediately.
func (c *wsConn) waitMessage() error {
	for {
		c.dlLock.Lock()
		dl, changed := c.deadline, c.dlChanged
		c.dlLock.Unlock()

		var timeout <-chan time.Time
		var t *time.Timer
		if !dl.IsZero() {
			d := time.Until(dl)
			if d <= 0 {
				return os.ErrDeadlineExceeded
			}
			t = time.NewTimer(d)
			timeout = t.C
		}

		select {
		case b := <-c.msgs:
			stopTimer(t)
			c.buf = b
			return nil
		case <-c.done:
			stopTimer(t)
			return c.rErr
		case <-timeout:
			return os.ErrDeadlineExceeded
		case <-changed:
			stopTimer(t)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

func (c *wsConn) Write(p []byte) (int, error) {
	c.txLock.Lock()
	defer c.txLock.Unlock()

	if err := c.WriteMessage(websocket.BinaryMessage, p); err != nil {
		return 0, err
	}
	return len(p), nil
}

func (c *wsConn) Close() error {
	c.once.Do(func() { close(c.closing) })
	return c.Conn.Close()
}

// SetReadDeadline also applies to a Read that is already waiting.
func (c *wsConn) SetReadDeadline(t time.Time) error {
	c.dlLock.Lock()
	c.deadline = t
	close(c.dlChanged)
	c.dlChanged = make(chan struct{})
	c.dlLock.Unlock()
	return nil
}

func (c *wsConn) SetDeadline(t time.Time) error {
	if err := c.SetWriteDeadline(t); err != nil {
		return err
	}
	return c.SetReadDeadline(t)
}
