package client

import (
	"context"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshake(t *testing.T) {
	tests := []struct {
		name    string
		connack []byte
		check   func(t *testing.T, err error)
	}{
		{
			name:    "accepted",
			connack: []byte{0x20, 0x02, 0x00, 0x00},
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:    "session present",
			connack: []byte{0x20, 0x02, 0x01, 0x00},
			check: func(t *testing.T, err error) {
				assert.NoError(t, err)
			},
		},
		{
			name:    "not authorized",
			connack: []byte{0x20, 0x02, 0x00, 0x05},
			check: func(t *testing.T, err error) {
				var refused *model.ConnectionRefusedError
				require.True(t, errors.As(err, &refused))
				assert.EqualValues(t, model.NotAuthorized, refused.Code)
			},
		},
		{
			name:    "wrong length",
			connack: []byte{0x20, 0x03, 0x00, 0x00},
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, model.ErrMalformedPacket)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, b := newPipe(t)
			l, _ := newLogger()
			ses := newSession(c, "abc", 0, 50*time.Millisecond, l)

			go func() {
				h, body, err := b.readPacket()
				if assert.NoError(t, err) {
					assert.EqualValues(t, model.CONNECT, h)
					assert.Equal(t, []byte{0, 4, 'M', 'Q', 'T', 'T', 4, 2, 0, 60, 0, 3, 'a', 'b', 'c'}, body)
				}
				b.write(tt.connack...)
			}()

			tt.check(t, ses.handshake(context.Background()))
		})
	}
}

func TestHandshakeCancelled(t *testing.T) {
	c, b := newPipe(t)
	l, _ := newLogger()
	ses := newSession(c, "abc", 0, 0, l)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		b.readPacket()
		cancel() // never answer
	}()

	assert.ErrorIs(t, ses.handshake(ctx), context.Canceled)
}

func TestHandshakeBrokerGone(t *testing.T) {
	c, b := newPipe(t)
	l, _ := newLogger()
	ses := newSession(c, "abc", 0, 0, l)

	go func() {
		b.readPacket()
		b.write(0x20, 0x02)
		b.conn.Close()
	}()

	assert.ErrorIs(t, ses.handshake(context.Background()), io.ErrUnexpectedEOF)
}

func TestReadHeaderTimeout(t *testing.T) {
	c, b := newPipe(t)
	l, _ := newLogger()
	ses := newSession(c, "abc", 0, 20*time.Millisecond, l)

	_, err := ses.readHeader()
	require.Error(t, err)
	assert.True(t, isTimeout(err))

	// a timed out poll leaves the stream usable
	go b.write(model.PINGRESP, 0)
	h, err := ses.readHeader()
	require.NoError(t, err)
	assert.EqualValues(t, model.PINGRESP, h)
	n, err := ses.skipBody()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, isTimeout(&net.OpError{Op: "read", Err: timeoutErr{}}))
	assert.True(t, isTimeout(context.DeadlineExceeded))
	assert.False(t, isTimeout(io.EOF))
	assert.False(t, isTimeout(model.ErrMalformedLength))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestKeepAlive(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	k := keepAlive{interval: 30 * time.Second}
	k.reset(start)

	assert.False(t, k.due(start))
	assert.False(t, k.due(start.Add(29*time.Second)))
	assert.True(t, k.due(start.Add(30*time.Second)))

	k.reset(start.Add(31 * time.Second))
	assert.False(t, k.due(start.Add(60*time.Second)))
	assert.True(t, k.due(start.Add(61*time.Second)))

	off := keepAlive{}
	assert.False(t, off.due(start.Add(time.Hour)))
}
