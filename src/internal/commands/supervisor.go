package commands

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// SupervisorConfig tunes a Supervisor. Zero durations take the defaults.
type SupervisorConfig struct {
	Name string
	// MaxRestarts makes the supervisor give up after that many failures. 0 never gives up.
	MaxRestarts int
	Backoff     time.Duration // first restart delay, 1s
	MaxBackoff  time.Duration // 30s
	StopTimeout time.Duration // 30s
	Logger      *log.Logger
}

// SupervisorStatus is a snapshot of a Supervisor.
type SupervisorStatus struct {
	Running   bool
	Restarts  int
	LastError error
}

// Supervisor keeps a serve function running beside the reconciliation loop.
// A failure or panic restarts it after an exponentially growing delay, so a
// broken REST API never takes the rule service down with it.
type Supervisor struct {
	cfg   SupervisorConfig
	serve func(ctx context.Context) error

	mu     sync.RWMutex
	cancel context.CancelFunc
	done   chan struct{}
	status SupervisorStatus
}

func NewSupervisor(cfg SupervisorConfig, serve func(ctx context.Context) error) *Supervisor {
	if cfg.Backoff == 0 {
		cfg.Backoff = time.Second
	}
	if cfg.MaxBackoff == 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	if cfg.StopTimeout == 0 {
		cfg.StopTimeout = 30 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Supervisor{cfg: cfg, serve: serve}
}

func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.status.Running {
		return fmt.Errorf("%s is already running", s.cfg.Name)
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.status = SupervisorStatus{Running: true}

	go s.loop(ctx, s.done)
	return nil
}

// Stop cancels the serve context and waits for the loop to exit.
func (s *Supervisor) Stop() error {
	s.mu.Lock()
	if !s.status.Running {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-time.After(s.cfg.StopTimeout):
		return fmt.Errorf("%s did not stop within %v", s.cfg.Name, s.cfg.StopTimeout)
	}

	s.mu.Lock()
	s.status.Running = false
	s.mu.Unlock()
	return nil
}

// Done is closed once the loop has exited.
func (s *Supervisor) Done() <-chan struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.done
}

func (s *Supervisor) Status() SupervisorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

func (s *Supervisor) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	logger := s.cfg.Logger

	delay := s.cfg.Backoff
	for {
		err := s.serveOnce(ctx)
		if ctx.Err() != nil {
			logger.Debugf("%s stopped", s.cfg.Name)
			return
		}

		restarts := s.record(err)
		if err == nil {
			logger.Debugf("%s exited", s.cfg.Name)
			return
		}
		if s.cfg.MaxRestarts > 0 && restarts >= s.cfg.MaxRestarts {
			logger.Errorf("%s failed %d times, giving up: %v", s.cfg.Name, restarts, err)
			return
		}

		logger.Errorf("%s failed: %v. Restarting in %v (restart #%d)", s.cfg.Name, err, delay, restarts)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay = min(delay*2, s.cfg.MaxBackoff)
	}
}

func (s *Supervisor) serveOnce(ctx context.Context) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("panic: %v", recovered)
		}
	}()
	return s.serve(ctx)
}

func (s *Supervisor) record(err error) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status.LastError = err
	if err != nil {
		s.status.Restarts++
	}
	return s.status.Restarts
}
