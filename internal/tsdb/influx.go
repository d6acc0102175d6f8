// Package tsdb forwards received readings to InfluxDB.
package tsdb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/sensor"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

const (
	Measurement = "temperature_humidity"

	pingTimeout = 5 * time.Second
)

var ErrConnectionFailed = errors.New("influxdb connection failed")

type Config struct {
	URL    string
	Token  string
	Org    string
	Bucket string
}

// Sink writes one point per reading, tagged with the sensor id.
type Sink struct {
	client influxdb2.Client
	write  api.WriteAPIBlocking
}

func New(ctx context.Context, cfg Config) (*Sink, error) {
	client := influxdb2.NewClient(cfg.URL, cfg.Token)

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	return &Sink{
		client: client,
		write:  client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}, nil
}

func (s *Sink) Write(ctx context.Context, sensorID string, r sensor.Reading, at time.Time) error {
	p := write.NewPoint(
		Measurement,
		map[string]string{"sensor": sensorID},
		map[string]interface{}{
			"temperature": r.Temperature,
			"humidity":    r.Humidity,
		},
		at,
	)
	return s.write.WritePoint(ctx, p)
}

func (s *Sink) Close() {
	s.client.Close()
}
