package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/sirupsen/logrus"
)

const DefaultPingInterval = 30 * time.Second

type SubscriberOptions struct {
	ClientID     string
	Topic        string
	KeepAlive    uint16 // seconds, 0 for model.DefaultKeepAlive
	PacketID     uint16 // of the SUBSCRIBE, 0 for 1
	ReadTimeout  time.Duration
	PingInterval time.Duration

	// Handler is called for every PUBLISH received. matched reports
	// whether the topic is the one subscribed to.
	Handler func(m model.PubMessage, matched bool)
	Logger  logrus.FieldLogger
	Clock   Clock
}

// Subscriber subscribes to one topic and listens until the server hangs up.
type Subscriber struct {
	ses      *session
	topic    string
	packetID uint16
	handler  func(model.PubMessage, bool)
	clock    Clock
	ping     keepAlive
	log      logrus.FieldLogger
}

func NewSubscriber(conn net.Conn, opts SubscriberOptions) *Subscriber {
	if opts.PacketID == 0 {
		opts.PacketID = 1
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}

	ses := newSession(conn, opts.ClientID, opts.KeepAlive, opts.ReadTimeout, opts.Logger)
	return &Subscriber{
		ses:      ses,
		topic:    opts.Topic,
		packetID: opts.PacketID,
		handler:  opts.Handler,
		clock:    opts.Clock,
		ping:     keepAlive{interval: opts.PingInterval},
		log:      ses.log.WithField("topic", opts.Topic),
	}
}

func (s *Subscriber) Connect(ctx context.Context) error {
	return s.ses.handshake(ctx)
}

// Subscribe sends SUBSCRIBE and waits for the SUBACK.
func (s *Subscriber) Subscribe(ctx context.Context) error {
	p, err := model.SubscribePacket(s.packetID, s.topic, 0)
	if err != nil {
		return fmt.Errorf("building SUBSCRIBE: %w", err)
	}
	if err := s.ses.writePacket(p); err != nil {
		return fmt.Errorf("sending SUBSCRIBE: %w", err)
	}
	s.log.Debug("Sent SUBSCRIBE")

	b := make([]byte, model.SubackLen)
	if err := s.ses.readFull(ctx, b); err != nil {
		return fmt.Errorf("reading SUBACK: %w", err)
	}

	pID, granted, err := model.ParseSuback(b)
	if err != nil {
		return fmt.Errorf("reading SUBACK: %w", err)
	}

	l := s.log.WithFields(logrus.Fields{"packetID": pID, "qos": granted})
	switch {
	case granted == 0x80:
		l.Warn("Subscription rejected by broker")
	case pID != s.packetID:
		l.Warn("Received SUBACK for unknown packet")
	default:
		l.Info("Received SUBACK")
	}
	return nil
}

// Run connects, subscribes and listens. It returns nil when the server closes the connection.
func (s *Subscriber) Run(ctx context.Context) error {
	if err := s.Connect(ctx); err != nil {
		return err
	}
	if err := s.Subscribe(ctx); err != nil {
		return err
	}
	return s.Listen(ctx)
}

// Listen polls for packets, sending PINGREQ whenever the ping interval has elapsed.
func (s *Subscriber) Listen(ctx context.Context) error {
	s.ping.reset(s.clock.Now())
	defer s.ses.interruptOn(ctx)()

	for {
		if ctx.Err() != nil {
			s.ses.disconnect()
			return ctx.Err()
		}

		if now := s.clock.Now(); s.ping.due(now) {
			if err := s.ses.writePacket(model.PingreqPacket()); err != nil {
				return fmt.Errorf("sending PINGREQ: %w", err)
			}
			s.log.Debug("Sent PINGREQ")
			s.ping.reset(now)
		}

		h, err := s.ses.readHeader()
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				s.log.Info("Connection closed by broker")
				return nil
			case isTimeout(err):
				continue
			default:
				s.log.WithError(err).Error("Read failed")
				return err
			}
		}

		if err := s.dispatch(h); err != nil {
			if ctx.Err() != nil { // interrupted mid packet
				s.ses.disconnect()
				return ctx.Err()
			}
			s.log.WithError(err).Error("Read failed")
			return err
		}
	}
}

func (s *Subscriber) dispatch(h byte) error {
	switch h & 0xF0 {
	case model.PUBLISH:
		body, err := s.ses.readBody()
		if err != nil {
			return fmt.Errorf("reading PUBLISH: %w", err)
		}
		m, err := model.DecodePublish(h&0x0F, body)
		if err != nil {
			return fmt.Errorf("reading PUBLISH: %w", err)
		}

		matched := m.Topic == s.topic
		l := s.log.WithFields(logrus.Fields{"topic": m.Topic, "payload": m.Payload})
		if matched {
			l.Info("Received data on '" + m.Topic + "'")
		} else {
			l.Warn("Received data on unexpected topic")
		}

		if s.handler != nil {
			s.handler(m, matched)
		}
	case model.PINGRESP:
		if _, err := s.ses.skipBody(); err != nil {
			return fmt.Errorf("reading PINGRESP: %w", err)
		}
		s.log.Info("Received PINGRESP")
	default:
		s.log.WithField("packet", model.PacketName(h)).Warn("Received unknown packet type")
		if _, err := s.ses.skipBody(); err != nil {
			return fmt.Errorf("reading %s: %w", model.PacketName(h), err)
		}
	}
	return nil
}
