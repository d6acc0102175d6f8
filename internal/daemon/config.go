package daemon

import (
	"os"
	"path/filepath"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/config"
	"github.com/Harsho-afk/RustyProtocols/internal/transport"
	log "github.com/sirupsen/logrus"
)

// LoadConfig reads the file given on the command line, else config.json next to the
// executable, else falls back to the defaults.
func LoadConfig(flagPath string) (*config.Config, error) {
	if flagPath != "" {
		c, err := config.New(flagPath)
		if err != nil {
			return nil, err
		}
		log.Infoln("Using config file:", flagPath)
		return c, nil
	}

	if ePath, err := os.Executable(); err == nil {
		toTry := filepath.Join(filepath.Dir(ePath), "config.json")
		if fileExists(toTry) {
			c, err := config.New(toTry)
			if err != nil {
				return nil, err
			}
			log.Infoln("Using config file:", toTry)
			return c, nil
		}
	}

	log.Infoln("No config file specified or found. Using defaults.")
	return config.Default(), nil
}

func Dialer(c *config.Config) (transport.Dialer, error) {
	return transport.New(transport.Options{
		Network: c.Broker.Transport,
		Timeout: 10 * c.ReadTimeoutDuration(),
		Proxy:   c.Broker.Proxy,
		WSPath:  c.Broker.WSPath,
	})
}

func BackoffFrom(c *config.Config) Backoff {
	return Backoff{
		Initial:     secs(c.Reconnect.InitialDelay),
		Max:         secs(c.Reconnect.MaxDelay),
		MaxAttempts: c.Reconnect.MaxAttempts,
	}
}

func fileExists(filename string) bool {
	info, err := os.Stat(filename)
	if os.IsNotExist(err) {
		return false
	}
	return err == nil && !info.IsDir()
}

func secs(n int) time.Duration {
	return time.Duration(n) * time.Second
}
