// Package transport dials the byte stream the MQTT clients run over.
package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"golang.org/x/net/proxy"
)

const (
	TCP       = "tcp"
	WebSocket = "ws"
)

var ErrUnknownNetwork = errors.New("unknown transport")

// Dialer opens a connection to an MQTT server.
type Dialer interface {
	Dial(ctx context.Context, address string) (net.Conn, error)
}

type Options struct {
	Network string // TCP or WebSocket
	Timeout time.Duration
	Proxy   string // socks5://[user:pass@]host:port, TCP only
	WSPath  string
}

func New(o Options) (Dialer, error) {
	switch o.Network {
	case "", TCP:
		return &TCPDialer{Timeout: o.Timeout, Proxy: o.Proxy}, nil
	case WebSocket:
		return &WSDialer{Timeout: o.Timeout, Path: o.WSPath}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownNetwork, o.Network)
	}
}

type TCPDialer struct {
	Timeout time.Duration
	Proxy   string
}

func (d *TCPDialer) Dial(ctx context.Context, address string) (net.Conn, error) {
	forward := &net.Dialer{Timeout: d.Timeout}
	if d.Proxy == "" {
		return forward.DialContext(ctx, "tcp", address)
	}

	u, err := url.Parse(d.Proxy)
	if err != nil {
		return nil, fmt.Errorf("invalid proxy URL: %w", err)
	}
	pd, err := proxy.FromURL(u, forward)
	if err != nil {
		return nil, fmt.Errorf("proxy %s: %w", u.Redacted(), err)
	}

	if cd, ok := pd.(proxy.ContextDialer); ok {
		return cd.DialContext(ctx, "tcp", address)
	}
	return pd.Dial("tcp", address)
}
