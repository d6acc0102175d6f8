package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()

	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0644))
	return p
}

func TestDefaults(t *testing.T) {
	c, err := New("")
	require.NoError(t, err)

	assert.Equal(t, "broker.hivemq.com:1883", c.Broker.Address)
	assert.Equal(t, "tcp", c.Broker.Transport)
	assert.Equal(t, "/mqtt", c.Broker.WSPath)
	assert.Equal(t, "room_sensor_livingroom", c.SensorID)
	assert.EqualValues(t, 60, c.KeepAlive)
	assert.Equal(t, 30, c.PingInterval)
	assert.Equal(t, 1, c.ReadTimeout)
	assert.Equal(t, 5, c.PublishInterval)
	assert.Equal(t, 1, c.Reconnect.InitialDelay)
	assert.Equal(t, 60, c.Reconnect.MaxDelay)
	assert.Zero(t, c.Reconnect.MaxAttempts)
	assert.Equal(t, "room_sensor_livingroom", c.Sensor.ClientID)
	assert.Equal(t, "display_livingroom", c.Display.ClientID)
}

func TestClientIDs(t *testing.T) {
	long := "sensor_in_the_far_corner_of_the_garden"

	tests := []struct {
		name    string
		content string
		sensor  string
		display string
	}{
		{"defaults", `{}`, "room_sensor_livingroom", "display_livingroom"},
		{"follows sensor id", `{"sensor_id": "kitchen"}`, "kitchen", "display_livingroom"},
		{"explicit", `{"sensor": {"client_id": "rust_publisher"}, "display": {"client_id": "rust_subscriber"}}`, "rust_publisher", "rust_subscriber"},
		{"display only", `{"display": {"client_id": "hall"}}`, "room_sensor_livingroom", "hall"},
		{"long sensor id", `{"sensor_id": "` + long + `"}`, "", "display_livingroom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(writeFile(t, "config.json", tt.content))
			require.NoError(t, err)

			if tt.sensor == "" {
				assert.Len(t, c.Sensor.ClientID, 23)
				assert.NotEqual(t, c.Sensor.ClientID, NewClientID())
			} else {
				assert.Equal(t, tt.sensor, c.Sensor.ClientID)
			}
			assert.Equal(t, tt.display, c.Display.ClientID)
			assert.NotEqual(t, c.Sensor.ClientID, c.Display.ClientID)
		})
	}
}

func TestLoadJSON(t *testing.T) {
	p := writeFile(t, "config.json", `{
		"broker": {"address": "localhost"},
		"sensor": {"client_id": "rust_publisher"},
		"sensor_id": "kitchen",
		"publish_interval": 2,
		"log": {"level": "debug"},
		"reconnect": {"initial_delay": 5, "max_delay": 2}
	}`)

	c, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, "localhost:1883", c.Broker.Address)
	assert.Equal(t, "rust_publisher", c.Sensor.ClientID)
	assert.Equal(t, "kitchen", c.SensorID)
	assert.Equal(t, 2, c.PublishInterval)
	assert.Equal(t, "debug", c.Log.Level)
	assert.Equal(t, 5, c.Reconnect.MaxDelay)
}

func TestLoadYAML(t *testing.T) {
	p := writeFile(t, "config.yaml", `
broker:
  address: test.mosquitto.org:8080
  transport: ws
  ws_path: /ws
display:
  client_id: rust_subscriber
influxdb:
  enabled: true
  url: http://localhost:8086
  org: home
  bucket: sensors
store:
  dir: /var/lib/readings
`)

	c, err := New(p)
	require.NoError(t, err)
	assert.Equal(t, "test.mosquitto.org:8080", c.Broker.Address)
	assert.Equal(t, "ws", c.Broker.Transport)
	assert.Equal(t, "/ws", c.Broker.WSPath)
	assert.Equal(t, "rust_subscriber", c.Display.ClientID)
	assert.True(t, c.InfluxDB.Enabled)
	assert.Equal(t, "sensors", c.InfluxDB.Bucket)
	assert.Equal(t, "/var/lib/readings", c.Store.Dir)
}

func TestInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"transport", `{"broker": {"transport": "quic"}}`},
		{"proxy over ws", `{"broker": {"transport": "ws", "proxy": "socks5://127.0.0.1:1080"}}`},
		{"log level", `{"log": {"level": "verbose"}}`},
		{"sensor id", `{"sensor_id": "a/b"}`},
		{"shared client id", `{"sensor": {"client_id": "x"}, "display": {"client_id": "x"}}`},
		{"display takes sensor id", `{"display": {"client_id": "room_sensor_livingroom"}}`},
		{"influxdb", `{"influxdb": {"enabled": true}}`},
		{"attempts", `{"reconnect": {"max_attempts": -1}}`},
		{"syntax", `{"broker": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(writeFile(t, "config.json", tt.content))
			assert.Error(t, err)
		})
	}

	_, err := New(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSetBroker(t *testing.T) {
	c := Default()
	c.SetBroker("10.0.0.2")
	assert.Equal(t, "10.0.0.2:1883", c.Broker.Address)
	c.SetBroker("10.0.0.2:1884")
	assert.Equal(t, "10.0.0.2:1884", c.Broker.Address)
}
