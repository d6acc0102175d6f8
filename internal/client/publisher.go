package client

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

const DefaultPublishInterval = 5 * time.Second

type PublisherOptions struct {
	ClientID    string
	Topic       string
	KeepAlive   uint16 // seconds, 0 for model.DefaultKeepAlive
	ReadTimeout time.Duration
	Interval    time.Duration

	// Source produces the payload of every PUBLISH.
	Source func() []byte
	Logger logrus.FieldLogger
}

// Publisher connects once and then publishes a payload every Interval.
type Publisher struct {
	ses     *session
	topic   string
	source  func() []byte
	limiter *rate.Limiter
	log     logrus.FieldLogger
}

func NewPublisher(conn net.Conn, opts PublisherOptions) *Publisher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPublishInterval
	}
	if opts.Source == nil {
		opts.Source = func() []byte { return nil }
	}

	ses := newSession(conn, opts.ClientID, opts.KeepAlive, opts.ReadTimeout, opts.Logger)
	return &Publisher{
		ses:     ses,
		topic:   opts.Topic,
		source:  opts.Source,
		limiter: rate.NewLimiter(rate.Every(opts.Interval), 1),
		log:     ses.log.WithField("topic", opts.Topic),
	}
}

// Connect performs the CONNECT/CONNACK handshake.
func (p *Publisher) Connect(ctx context.Context) error {
	return p.ses.handshake(ctx)
}

// Run connects and publishes until ctx is done or the connection fails.
// On cancellation a DISCONNECT is sent and ctx.Err() returned.
func (p *Publisher) Run(ctx context.Context) error {
	if err := p.Connect(ctx); err != nil {
		return err
	}
	defer p.ses.interruptOn(ctx)()

	for {
		if err := p.limiter.Wait(ctx); err != nil {
			p.ses.disconnect()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		if err := p.PublishOnce(p.source()); err != nil {
			return err
		}
		if err := p.drain(); err != nil {
			if ctx.Err() != nil { // interrupted mid packet
				p.ses.disconnect()
				return ctx.Err()
			}
			return err
		}
	}
}

func (p *Publisher) PublishOnce(payload []byte) error {
	pkt, err := model.PublishPacket(p.topic, payload, 0)
	if err != nil {
		return fmt.Errorf("building PUBLISH: %w", err)
	}
	if err := p.ses.writePacket(pkt); err != nil {
		return fmt.Errorf("sending PUBLISH: %w", err)
	}

	p.log.WithField("payload", string(payload)).Info("Published")
	return nil
}

func (p *Publisher) Disconnect() {
	p.ses.disconnect()
}

// drain consumes whatever the server sent since the last publish.
// It returns nil once nothing arrives within the read timeout.
func (p *Publisher) drain() error {
	for {
		h, err := p.ses.readHeader()
		if err != nil {
			if isTimeout(err) {
				return nil
			}
			return err
		}

		if _, err := p.ses.skipBody(); err != nil {
			return fmt.Errorf("reading %s: %w", model.PacketName(h), err)
		}

		if h&0xF0 == model.PINGRESP {
			p.log.Info("Received PINGRESP")
		} else {
			p.log.WithField("packet", model.PacketName(h)).Debug("Received packet")
		}
	}
}
