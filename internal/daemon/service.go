package daemon

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/kardianos/service"
	log "github.com/sirupsen/logrus"
)

const stopTimeout = 5 * time.Second

// Program runs a blocking client loop under a service manager, or in the foreground.
type Program struct {
	Name        string
	DisplayName string
	Description string

	// Run blocks until ctx is done or the client gives up.
	Run func(ctx context.Context) error
	// Exit is called when Run returns on its own. Defaults to os.Exit.
	Exit func(code int)

	cancel context.CancelFunc
	done   chan struct{}
}

func (p *Program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)

		err := p.Run(ctx)
		if ctx.Err() != nil { // stopped
			return
		}

		exit := p.Exit
		if exit == nil {
			exit = os.Exit
		}
		if err != nil {
			log.WithError(err).Error("Stopped")
			exit(1)
			return
		}
		exit(0)
	}()
	return nil
}

func (p *Program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
		return nil
	case <-time.After(stopTimeout):
		return errors.New(p.Name + " did not stop in time")
	}
}

// Main installs, controls or runs p. A non-empty control is one of service.ControlAction.
func Main(p *Program, control string) error {
	s, err := service.New(p, &service.Config{
		Name:        p.Name,
		DisplayName: p.DisplayName,
		Description: p.Description,
	})
	if err != nil {
		return err
	}

	if control != "" {
		if err := service.Control(s, control); err != nil {
			log.Printf("Valid actions: %q\n", service.ControlAction)
			return err
		}
		return nil
	}

	return s.Run()
}
