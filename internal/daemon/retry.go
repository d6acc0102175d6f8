package daemon

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Harsho-afk/RustyProtocols/internal/model"
	"github.com/sirupsen/logrus"
)

type Backoff struct {
	Initial     time.Duration
	Max         time.Duration
	MaxAttempts int // 0 retries forever
}

// Retry calls run until ctx is done, backing off exponentially with jitter between failed attempts.
// A run that returns nil counts as a session that ended normally and resets the backoff.
// A refused connection is returned without retrying.
func Retry(ctx context.Context, b Backoff, logger logrus.FieldLogger, run func(ctx context.Context) error) error {
	if b.Initial <= 0 {
		b.Initial = time.Second
	}
	if b.Max < b.Initial {
		b.Max = b.Initial
	}

	delay, failures := b.Initial, 0
	for {
		err := run(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var refused *model.ConnectionRefusedError
		if errors.As(err, &refused) {
			return err
		}

		if err == nil {
			delay, failures = b.Initial, 0
			logger.WithField("retry_in", delay).Info("Session ended, reconnecting")
		} else {
			failures++
			if b.MaxAttempts > 0 && failures >= b.MaxAttempts {
				return fmt.Errorf("giving up after %d attempts: %w", failures, err)
			}
			logger.WithError(err).WithField("retry_in", delay).Warn("Connection failed, reconnecting")
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		delay = time.Duration(float64(delay) * (1.5 + rand.Float64()*0.5))
		if delay > b.Max {
			delay = b.Max
		}
	}
}
