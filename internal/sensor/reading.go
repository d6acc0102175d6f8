// Package sensor holds the temperature/humidity reading carried as PUBLISH payload.
package sensor

import (
	"encoding/json"
	"errors"
	"math/rand/v2"
	"strconv"
	"strings"
)

const (
	minTemperature, maxTemperature = 18.0, 28.0
	minHumidity, maxHumidity       = 30.0, 70.0
)

var ErrInvalidReading = errors.New("invalid reading")

type Reading struct {
	Temperature float64 `json:"temperature"`
	Humidity    float64 `json:"humidity"`
}

// Random returns a plausible indoor reading.
func Random(r *rand.Rand) Reading {
	return Reading{
		Temperature: minTemperature + r.Float64()*(maxTemperature-minTemperature),
		Humidity:    minHumidity + r.Float64()*(maxHumidity-minHumidity),
	}
}

// Payload renders the reading as `{"temperature": 21.50, "humidity": 55.00}`.
func (r Reading) Payload() []byte {
	b := make([]byte, 0, 48)
	b = append(b, `{"temperature": `...)
	b = strconv.AppendFloat(b, r.Temperature, 'f', 2, 64)
	b = append(b, `, "humidity": `...)
	b = strconv.AppendFloat(b, r.Humidity, 'f', 2, 64)
	return append(b, '}')
}

func ParseReading(payload []byte) (Reading, error) {
	var r Reading
	if err := json.Unmarshal(payload, &r); err != nil {
		return r, errors.Join(ErrInvalidReading, err)
	}
	return r, nil
}

// Topic returns the topic a sensor publishes its readings on.
func Topic(sensorID string) string {
	return "home/" + sensorID + "/temperature_humidity"
}

// IDFromTopic is the inverse of Topic.
func IDFromTopic(topic string) (string, bool) {
	id, ok := strings.CutPrefix(topic, "home/")
	if !ok {
		return "", false
	}
	id, ok = strings.CutSuffix(id, "/temperature_humidity")
	if !ok || id == "" || strings.Contains(id, "/") {
		return "", false
	}
	return id, true
}

// Source returns a payload producer backed by its own random stream.
func Source(seed uint64) func() []byte {
	r := rand.New(rand.NewPCG(seed, seed^0x9E3779B97F4A7C15))
	return func() []byte {
		return Random(r).Payload()
	}
}
