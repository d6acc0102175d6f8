package client

import (
	"bufio"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

// fakeBroker is the server end of a net.Pipe.
type fakeBroker struct {
	conn net.Conn
	rx   *bufio.Reader
}

func newPipe(t *testing.T) (net.Conn, *fakeBroker) {
	t.Helper()

	c, s := net.Pipe()
	t.Cleanup(func() {
		c.Close()
		s.Close()
	})
	return c, &fakeBroker{conn: s, rx: bufio.NewReader(s)}
}

func (b *fakeBroker) readPacket() (byte, []byte, error) {
	b.conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	h, err := b.rx.ReadByte()
	if err != nil {
		return 0, nil, err
	}
	n, err := model.ReadVariableLength(b.rx)
	if err != nil {
		return 0, nil, err
	}
	body := make([]byte, n)
	for read := 0; read < n; {
		m, err := b.rx.Read(body[read:])
		if err != nil {
			return 0, nil, err
		}
		read += m
	}
	return h, body, nil
}

func (b *fakeBroker) write(p ...byte) error {
	b.conn.SetWriteDeadline(time.Now().Add(2 * time.Second))
	_, err := b.conn.Write(p)
	return err
}

// accept reads the CONNECT and answers with the given return code.
func (b *fakeBroker) accept(code byte) error {
	h, _, err := b.readPacket()
	if err != nil {
		return err
	}
	if h != model.CONNECT {
		return model.ErrMalformedPacket
	}
	return b.write(model.CONNACK, 2, 0, code)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newLogger() (*logrus.Logger, *test.Hook) {
	l, hook := test.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	return l, hook
}

func hasEntry(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}

func waitErr(t *testing.T, errs <-chan error) error {
	t.Helper()

	select {
	case err := <-errs:
		return err
	case <-time.After(5 * time.Second):
		require.FailNow(t, "client did not return")
		return nil
	}
}
