// Package client implements the publishing sensor and the subscribing display
// on top of a raw net.Conn.
package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/sirupsen/logrus"
)

const (
	DefaultReadTimeout = time.Second

	disconnectTimeout = time.Second
)

type session struct {
	conn        net.Conn
	rx          *bufio.Reader
	readTimeout time.Duration

	clientID  string
	keepAlive uint16

	// once interrupted every read fails with a timeout
	dlLock      sync.Mutex
	interrupted bool

	log logrus.FieldLogger
}

func newSession(conn net.Conn, clientID string, keepAlive uint16, readTimeout time.Duration, logger logrus.FieldLogger) *session {
	if readTimeout <= 0 {
		readTimeout = DefaultReadTimeout
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &session{
		conn:        conn,
		rx:          bufio.NewReader(conn),
		readTimeout: readTimeout,
		clientID:    clientID,
		keepAlive:   keepAlive,
		log: logger.WithFields(logrus.Fields{
			"client": clientID,
			"broker": conn.RemoteAddr().String(),
		}),
	}
}

func (s *session) writePacket(p []byte) error {
	_, err := s.conn.Write(p)
	return err
}

// handshake sends CONNECT and waits for the CONNACK.
func (s *session) handshake(ctx context.Context) error {
	p, err := model.ConnectPacket(s.clientID, s.keepAlive)
	if err != nil {
		return fmt.Errorf("building CONNECT: %w", err)
	}
	if err := s.writePacket(p); err != nil {
		return fmt.Errorf("sending CONNECT: %w", err)
	}
	s.log.Debug("Sent CONNECT")

	b := make([]byte, model.ConnackLen)
	if err := s.readFull(ctx, b); err != nil {
		return fmt.Errorf("reading CONNACK: %w", err)
	}

	sp, code, err := model.ParseConnack(b)
	if err != nil {
		return fmt.Errorf("reading CONNACK: %w", err)
	}
	if code != model.Accepted {
		return &model.ConnectionRefusedError{Code: code}
	}

	s.log.WithField("sessionPresent", sp).Info("Connected to broker")
	return nil
}

// readFull reads exactly len(b) bytes with no deadline. Cancelling ctx unblocks the read.
func (s *session) readFull(ctx context.Context, b []byte) error {
	if err := s.setReadDeadline(time.Time{}); err != nil {
		return err
	}
	defer s.interruptOn(ctx)()

	if _, err := io.ReadFull(s.rx, b); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// interruptOn makes the pending read and all later reads fail once ctx is done.
// The returned func detaches it.
func (s *session) interruptOn(ctx context.Context) func() bool {
	return context.AfterFunc(ctx, func() {
		s.dlLock.Lock()
		s.interrupted = true
		s.conn.SetReadDeadline(time.Unix(1, 0))
		s.dlLock.Unlock()
	})
}

func (s *session) setReadDeadline(t time.Time) error {
	s.dlLock.Lock()
	defer s.dlLock.Unlock()

	if s.interrupted {
		t = time.Unix(1, 0)
	}
	return s.conn.SetReadDeadline(t)
}

// readHeader polls for the first byte of the next packet for at most readTimeout.
func (s *session) readHeader() (byte, error) {
	if err := s.setReadDeadline(time.Now().Add(s.readTimeout)); err != nil {
		return 0, err
	}
	return s.rx.ReadByte()
}

// readBody reads the remaining length and the rest of the packet, blocking.
func (s *session) readBody() ([]byte, error) {
	n, err := s.readLength()
	if err != nil {
		return nil, err
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(s.rx, body); err != nil {
		return nil, err
	}
	return body, nil
}

// skipBody reads the remaining length and discards the rest of the packet.
func (s *session) skipBody() (int, error) {
	n, err := s.readLength()
	if err != nil {
		return 0, err
	}

	d, err := s.rx.Discard(n)
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return d, err
}

func (s *session) readLength() (int, error) {
	if err := s.setReadDeadline(time.Time{}); err != nil {
		return 0, err
	}
	return model.ReadVariableLength(s.rx)
}

// disconnect tells the server we are leaving. Errors are only logged.
func (s *session) disconnect() {
	s.conn.SetWriteDeadline(time.Now().Add(disconnectTimeout))
	if err := s.writePacket(model.DisconnectPacket()); err != nil {
		s.log.WithError(err).Debug("Failed to send DISCONNECT")
		return
	}
	s.conn.SetWriteDeadline(time.Time{})
	s.log.Info("Disconnected")
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
