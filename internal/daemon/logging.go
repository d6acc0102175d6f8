// Package daemon holds what the sensor and display binaries share around the
// MQTT clients: logging, running as a system service and reconnecting.
package daemon

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

const TimestampFormat = "2006-01-02 15:04:05"

// DefaultLogging sets the standard logger up before the config is read.
// Interactive runs log at debug level to stderr, services append to <exec dir>/<name>.log.
func DefaultLogging(name string) error {
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: TimestampFormat,
	})

	if service.Interactive() {
		log.SetLevel(log.DebugLevel)
		return nil
	}

	ePath, err := os.Executable()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(filepath.Dir(ePath), name+".log"), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	log.SetOutput(f)
	return nil
}

// SetupLogging applies the log settings from the config file to l.
func SetupLogging(l *log.Logger, file, level string) error {
	if file != "" {
		f, err := os.OpenFile(file, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return err
		}
		l.SetOutput(f)
	}
	if level != "" {
		switch strings.ToLower(level) {
		case "error":
			l.SetLevel(log.ErrorLevel)
		case "warn":
			l.SetLevel(log.WarnLevel)
		case "info":
			l.SetLevel(log.InfoLevel)
		case "debug":
			l.SetLevel(log.DebugLevel)
		default:
			return errors.New("unknown log level: " + level)
		}
	}
	return nil
}
