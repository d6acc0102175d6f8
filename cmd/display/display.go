package main

import (
	"context"
	"flag"
	"fmt"
	"sync"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/client"
	"github.com/Harsho-afk/RustyProtocols/internal/config"
	"github.com/Harsho-afk/RustyProtocols/internal/daemon"
	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/Harsho-afk/RustyProtocols/internal/queue"
	"github.com/Harsho-afk/RustyProtocols/internal/sensor"
	"github.com/Harsho-afk/RustyProtocols/internal/store"
	"github.com/Harsho-afk/RustyProtocols/internal/transport"
	"github.com/Harsho-afk/RustyProtocols/internal/tsdb"
	log "github.com/sirupsen/logrus"
)

const queueSize = 1024

func main() {
	svcFlag := flag.String("service", "", "Control the system service.")
	cnfFlag := flag.String("c", "", "Path of config file.")
	brokerFlag := flag.String("broker", "", "MQTT server address, overrides the config file.")
	idFlag := flag.String("id", "", "Client identifier, overrides the config file.")
	historyFlag := flag.Duration("history", 0, "Print the readings stored within this duration and exit.")
	flag.Parse()

	if err := daemon.DefaultLogging("display"); err != nil {
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
		conf.Display.ClientID = *idFlag
	}
	if err := daemon.SetupLogging(log.StandardLogger(), conf.Log.File, conf.Log.Level); err != nil {
		log.Fatal(err)
	}

	var st *store.Store
	if conf.Store.Dir != "" {
		if st, err = store.Open(conf.Store.Dir); err != nil {
			log.Fatal(err)
		}
		defer st.Close()
	}

	if *historyFlag > 0 {
		if st == nil {
			log.Fatal("-history needs store.dir in the config file")
		}
		if err := printHistory(st, sensor.Topic(conf.SensorID), time.Now().Add(-*historyFlag)); err != nil {
			log.Fatal(err)
		}
		return
	}

	var sink *tsdb.Sink
	if conf.InfluxDB.Enabled {
		sink, err = tsdb.New(context.Background(), tsdb.Config{
			URL:    conf.InfluxDB.URL,
			Token:  conf.InfluxDB.Token,
			Org:    conf.InfluxDB.Org,
			Bucket: conf.InfluxDB.Bucket,
		})
		if err != nil {
			log.Fatal(err)
		}
		defer sink.Close()
	}

	dialer, err := daemon.Dialer(conf)
	if err != nil {
		log.Fatal(err)
	}

	rec := &recorder{store: st, sink: sink, q: queue.New(queueSize)}
	var wg sync.WaitGroup
	wg.Add(1)
	go rec.q.StartDispatcher(rec.record, &wg)
	prg := &daemon.Program{
		Name:        "rusty-display",
		DisplayName: "Room temperature/humidity display",
		Description: "Subscribes to room readings over MQTT and shows them.",
		Run: func(ctx context.Context) error {
			return daemon.Retry(ctx, daemon.BackoffFrom(conf), log.StandardLogger(), func(ctx context.Context) error {
				return subscribe(ctx, conf, dialer, rec.handle)
			})
		},
	}

	err = daemon.Main(prg, *svcFlag)
	rec.q.Close()
	wg.Wait()
	if err != nil {
		log.Fatal(err)
	}
}

func subscribe(ctx context.Context, conf *config.Config, dialer transport.Dialer, handler func(model.PubMessage, bool)) error {
	log.WithField("broker", conf.Broker.Address).Info("Connecting to MQTT broker")
	conn, err := dialer.Dial(ctx, conf.Broker.Address)
	if err != nil {
		return err
	}
	defer conn.Close()

	return client.NewSubscriber(conn, client.SubscriberOptions{
		ClientID:     conf.Display.ClientID,
		Topic:        sensor.Topic(conf.SensorID),
		KeepAlive:    conf.KeepAlive,
		ReadTimeout:  conf.ReadTimeoutDuration(),
		PingInterval: conf.PingIntervalDuration(),
		Handler:      handler,
		Logger:       log.StandardLogger(),
	}).Run(ctx)
}

// recorder keeps the readings that arrive on the subscribed topic.
// Writes happen off the read loop so a slow sink cannot delay keepalive.
type recorder struct {
	store *store.Store
	sink  *tsdb.Sink
	q     *queue.Queue
}

func (r *recorder) handle(m model.PubMessage, matched bool) {
	if !matched || (r.store == nil && r.sink == nil) {
		return
	}

	if ev := r.q.Add(queue.GetItem(m, time.Now())); ev != nil {
		log.WithField("payload", ev.P.Payload).Warn("Recorder falling behind, dropped reading")
	}
}

func (r *recorder) record(i *queue.Item) error {
	if r.store != nil {
		if err := r.store.Save(i.P.Topic, i.Received, []byte(i.P.Payload)); err != nil {
			log.WithError(err).Error("Failed to store reading")
		}
	}

	if r.sink != nil {
		reading, err := sensor.ParseReading([]byte(i.P.Payload))
		if err != nil {
			log.WithError(err).WithField("payload", i.P.Payload).Warn("Not forwarding reading")
			return nil
		}
		id, _ := sensor.IDFromTopic(i.P.Topic)
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.sink.Write(ctx, id, reading, i.Received); err != nil {
			log.WithError(err).Error("Failed to write reading to InfluxDB")
		}
	}
	return nil
}

func printHistory(st *store.Store, topic string, since time.Time) error {
	return st.Readings(topic, since, func(at time.Time, payload []byte) error {
		fmt.Printf("[%s] Received data on '%s': %s\n", at.Format(daemon.TimestampFormat), topic, payload)
		return nil
	})
}
