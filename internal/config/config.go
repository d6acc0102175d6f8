package config

import (
	"encoding/json"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBroker    = "broker.hivemq.com:1883"
	DefaultSensorID  = "room_sensor_livingroom"
	DefaultDisplayID = "display_livingroom"
	DefaultWSPath    = "/mqtt"

	// maxPortableClientID is the longest client identifier every server must accept.
	maxPortableClientID = 23
)

type Config struct {
	Broker struct {
		// Address of the MQTT server in the form "host:port". ":1883" is appended when no port is given.
		Address string `json:"address" yaml:"address"`
		// Transport is "tcp" (default) or "ws".
		Transport string `json:"transport" yaml:"transport"`
		WSPath    string `json:"ws_path" yaml:"ws_path"`
		// Proxy optionally specifies a SOCKS5 proxy URL for TCP connections.
		Proxy string `json:"proxy" yaml:"proxy"`
	} `json:"broker" yaml:"broker"`

	SensorID string `json:"sensor_id" yaml:"sensor_id"`

	// Each binary connects with its own client identifier. The sensor defaults
	// to its sensor_id and the display to DefaultDisplayID.
	Sensor struct {
		ClientID string `json:"client_id" yaml:"client_id"`
	} `json:"sensor" yaml:"sensor"`
	Display struct {
		ClientID string `json:"client_id" yaml:"client_id"`
	} `json:"display" yaml:"display"`

	// In seconds.
	KeepAlive       uint16 `json:"keep_alive" yaml:"keep_alive"`
	PingInterval    int    `json:"ping_interval" yaml:"ping_interval"`
	ReadTimeout     int    `json:"read_timeout" yaml:"read_timeout"`
	PublishInterval int    `json:"publish_interval" yaml:"publish_interval"`

	// Log configures optional log output file as well as the log level setting.
	Log struct {
		File  string `json:"file" yaml:"file"`
		Level string `json:"level" yaml:"level"`
	} `json:"log" yaml:"log"`

	// Store optionally specifies a directory to keep received readings in.
	Store struct {
		Dir string `json:"dir" yaml:"dir"`
	} `json:"store" yaml:"store"`

	InfluxDB struct {
		Enabled bool   `json:"enabled" yaml:"enabled"`
		URL     string `json:"url" yaml:"url"`
		Token   string `json:"token" yaml:"token"`
		Org     string `json:"org" yaml:"org"`
		Bucket  string `json:"bucket" yaml:"bucket"`
	} `json:"influxdb" yaml:"influxdb"`

	// Reconnect delays in seconds. MaxAttempts 0 retries forever.
	Reconnect struct {
		InitialDelay int `json:"initial_delay" yaml:"initial_delay"`
		MaxDelay     int `json:"max_delay" yaml:"max_delay"`
		MaxAttempts  int `json:"max_attempts" yaml:"max_attempts"`
	} `json:"reconnect" yaml:"reconnect"`
}

// New loads the config file at fPath, or the defaults when fPath is empty.
func New(fPath string) (*Config, error) {
	c := Config{}
	if fPath != "" {
		if err := c.LoadFromFile(fPath); err != nil {
			return nil, err
		}
		return &c, nil
	}

	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func Default() *Config {
	c := Config{}
	c.validate()
	return &c
}

// LoadFromFile reads JSON, or YAML when the extension is .yaml or .yml.
func (c *Config) LoadFromFile(fPath string) error {
	f, err := os.Open(fPath)
	if err != nil {
		return errors.New("error opening config file: " + err.Error())
	}

	defer f.Close()

	switch strings.ToLower(filepath.Ext(fPath)) {
	case ".yaml", ".yml":
		err = yaml.NewDecoder(f).Decode(c)
	default:
		err = json.NewDecoder(f).Decode(c)
	}
	if err != nil {
		return errors.New("error reading config file: " + err.Error())
	}

	return c.validate()
}

// SetBroker overrides the broker address, as from a command line flag.
func (c *Config) SetBroker(address string) {
	c.Broker.Address = withPort(address)
}

func (c *Config) validate() error {
	if c.Broker.Address == "" {
		c.Broker.Address = DefaultBroker
	}
	c.Broker.Address = withPort(c.Broker.Address)

	switch c.Broker.Transport {
	case "":
		c.Broker.Transport = "tcp"
	case "tcp", "ws":
	default:
		return errors.New("unknown broker transport: " + c.Broker.Transport)
	}
	if c.Broker.WSPath == "" {
		c.Broker.WSPath = DefaultWSPath
	}
	if c.Broker.Proxy != "" && c.Broker.Transport != "tcp" {
		return errors.New("proxy is only supported for tcp transport")
	}

	if c.SensorID == "" {
		c.SensorID = DefaultSensorID
	}
	if strings.ContainsAny(c.SensorID, "/+#") {
		return errors.New("sensor_id may not contain '/', '+' or '#'")
	}

	if c.Sensor.ClientID == "" {
		c.Sensor.ClientID = c.SensorID
		if len(c.Sensor.ClientID) > maxPortableClientID {
			c.Sensor.ClientID = NewClientID()
		}
	}
	if c.Display.ClientID == "" {
		c.Display.ClientID = DefaultDisplayID
	}
	if len(c.Sensor.ClientID) > 65535 || len(c.Display.ClientID) > 65535 {
		return errors.New("client_id too long")
	}
	if c.Sensor.ClientID == c.Display.ClientID {
		return errors.New("sensor and display may not share a client_id")
	}

	if c.KeepAlive == 0 {
		c.KeepAlive = 60
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 30
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 1
	}
	if c.PublishInterval <= 0 {
		c.PublishInterval = 5
	}

	if c.Log.Level != "" {
		switch strings.ToLower(c.Log.Level) {
		case "error", "warn", "info", "debug":
		default:
			return errors.New("unknown log level: " + c.Log.Level)
		}
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" || c.InfluxDB.Org == "" || c.InfluxDB.Bucket == "" {
			return errors.New("influxdb requires url, org and bucket")
		}
	}

	if c.Reconnect.InitialDelay <= 0 {
		c.Reconnect.InitialDelay = 1
	}
	if c.Reconnect.MaxDelay <= 0 {
		c.Reconnect.MaxDelay = 60
	}
	if c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		c.Reconnect.MaxDelay = c.Reconnect.InitialDelay
	}
	if c.Reconnect.MaxAttempts < 0 {
		return errors.New("reconnect max_attempts may not be negative")
	}

	return nil
}

func (c *Config) PingIntervalDuration() time.Duration {
	return time.Duration(c.PingInterval) * time.Second
}

func (c *Config) ReadTimeoutDuration() time.Duration {
	return time.Duration(c.ReadTimeout) * time.Second
}

func (c *Config) PublishIntervalDuration() time.Duration {
	return time.Duration(c.PublishInterval) * time.Second
}

// NewClientID returns a random client identifier that fits the 23 byte limit
// every MQTT 3.1.1 server must accept.
func NewClientID() string {
	id := uuid.New()
	return "rp" + strings.ReplaceAll(id.String(), "-", "")[:21]
}

func withPort(address string) string {
	if _, _, err := net.SplitHostPort(address); err != nil {
		return address + ":1883" // if just ip/host specified
	}
	return address
}
