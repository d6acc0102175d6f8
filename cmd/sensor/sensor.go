package main

import (
	"context"
	"flag"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/client"
	"github.com/Harsho-afk/RustyProtocols/internal/config"
	"github.com/Harsho-afk/RustyProtocols/internal/daemon"
	"github.com/Harsho-afk/RustyProtocols/internal/sensor"
	"github.com/Harsho-afk/RustyProtocols/internal/transport"
	log "github.com/sirupsen/logrus"
)

func main() {
	svcFlag := flag.String("service", "", "Control the system service.")
	cnfFlag := flag.String("c", "", "Path of config file.")
	brokerFlag := flag.String("broker", "", "MQTT server address, overrides the config file.")
	idFlag := flag.String("id", "", "Client identifier, overrides the config file.")
	onceFlag := flag.Bool("once", false, "Connect, publish a single reading and exit.")
	flag.Parse()

	if err := daemon.DefaultLogging("sensor"); err != nil {
		log.Fatal(err)
	}

	conf, err := daemon.LoadConfig(*cnfFlag)
	if err != nil {
		log.Fatal(err)
	}
	if *brokerFlag != "" {
		conf.SetBroker(*brokerFlag)
	}
	if *idFlag != "" {
		conf.Sensor.ClientID = *idFlag
	}
	if err := daemon.SetupLogging(log.StandardLogger(), conf.Log.File, conf.Log.Level); err != nil {
		log.Fatal(err)
	}

	dialer, err := daemon.Dialer(conf)
	if err != nil {
		log.Fatal(err)
	}

	if *onceFlag {
		if err := publishOnce(context.Background(), dialer, conf); err != nil {
			log.Fatal(err)
		}
		return
	}

	source := sensor.Source(uint64(time.Now().UnixNano()))
	prg := &daemon.Program{
		Name:        "rusty-sensor",
		DisplayName: "Room temperature/humidity sensor",
		Description: "Publishes simulated room readings over MQTT.",
		Run: func(ctx context.Context) error {
			return daemon.Retry(ctx, daemon.BackoffFrom(conf), log.StandardLogger(), func(ctx context.Context) error {
				return publish(ctx, dialer, conf, source)
			})
		},
	}

	if err := daemon.Main(prg, *svcFlag); err != nil {
		log.Fatal(err)
	}
}

func publisher(ctx context.Context, dialer transport.Dialer, conf *config.Config, source func() []byte) (*client.Publisher, func(), error) {
	log.WithField("broker", conf.Broker.Address).Info("Connecting to MQTT broker")
	conn, err := dialer.Dial(ctx, conf.Broker.Address)
	if err != nil {
		return nil, nil, err
	}

	p := client.NewPublisher(conn, client.PublisherOptions{
		ClientID:    conf.Sensor.ClientID,
		Topic:       sensor.Topic(conf.SensorID),
		KeepAlive:   conf.KeepAlive,
		ReadTimeout: conf.ReadTimeoutDuration(),
		Interval:    conf.PublishIntervalDuration(),
		Source:      source,
		Logger:      log.StandardLogger(),
	})
	return p, func() { conn.Close() }, nil
}

func publish(ctx context.Context, dialer transport.Dialer, conf *config.Config, source func() []byte) error {
	p, closeConn, err := publisher(ctx, dialer, conf, source)
	if err != nil {
		return err
	}
	defer closeConn()

	return p.Run(ctx)
}

func publishOnce(ctx context.Context, dialer transport.Dialer, conf *config.Config) error {
	p, closeConn, err := publisher(ctx, dialer, conf, nil)
	if err != nil {
		return err
	}
	defer closeConn()

	if err := p.Connect(ctx); err != nil {
		return err
	}
	if err := p.PublishOnce(sensor.Source(uint64(time.Now().UnixNano()))()); err != nil {
		return err
	}
	p.Disconnect()
	return nil
}
