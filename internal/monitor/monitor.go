// Package monitor polls the rover API and reports when it becomes
// reachable or unreachable.
package monitor

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/roverfleet/console/internal/worker"
)

// Checker checks that the rover API is reachable. *gateway.Gateway satisfies it.
type Checker interface {
	Healthcheck(ctx context.Context) error
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Checker  Checker
	Interval time.Duration
	Timeout  time.Duration // per check, defaults to Interval
	Logger   *slog.Logger

	// OnChange is called on the first check and on every transition.
	OnChange func(Status)
	// Stats, if set, is written to StatusFile with the health state.
	Stats      func() worker.Stats
	StatusFile string
}

// Status is the latest health check result.
type Status struct {
	Connected bool
	Since     time.Time // when Connected last changed
	LastCheck time.Time
	LastError string
}

func (s Status) String() string {
	if s.Connected {
		return "connected"
	}
	return "disconnected"
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	checked   bool
	status    Status
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Interval <= 0 {
		deps.Interval = 15 * time.Second
	}
	if deps.Timeout <= 0 {
		deps.Timeout = deps.Interval
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the latest result. It is the zero Status before the
// first check.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// Check checks the API once and records the result.
func (s *Service) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, s.deps.Timeout)
	err := s.deps.Checker.Healthcheck(ctx)
	cancel()

	now := time.Now()
	s.mu.Lock()
	prev := s.status
	first := !s.checked
	s.checked = true

	s.status.LastCheck = now
	s.status.Connected = err == nil
	s.status.LastError = ""
	if err != nil {
		s.status.LastError = err.Error()
	}
	changed := first || prev.Connected != s.status.Connected
	if changed {
		s.status.Since = now
	}
	cur := s.status
	s.mu.Unlock()

	if changed {
		if cur.Connected {
			s.deps.Logger.Info("Rover API reachable")
		} else {
			s.deps.Logger.Warn("Rover API unreachable", "error", cur.LastError)
		}
		if s.deps.OnChange != nil {
			s.deps.OnChange(cur)
		}
	}
	s.writeStatusFile(cur)
	return cur
}

// Start checks immediately and then every Interval until Stop or ctx ends.
func (s *Service) Start(ctx context.Context) error {
	if s.deps.Checker == nil {
		return fmt.Errorf("monitor: no checker configured")
	}

	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer func() {
			s.mu.Lock()
			s.isRunning = false
			s.mu.Unlock()
		}()

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		s.Check(ctx)
		for {
			select {
			case <-stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.Check(ctx)
			}
		}
	}()

	return nil
}

// Stop stops the status monitor and waits for it to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}

func (s *Service) writeStatusFile(st Status) {
	if s.deps.StatusFile == "" {
		return
	}

	var b strings.Builder
	fmt.Fprintf(&b, "api: %s\n", st)
	fmt.Fprintf(&b, "since: %s\n", st.Since.Format(time.RFC3339))
	fmt.Fprintf(&b, "last check: %s\n", st.LastCheck.Format(time.RFC3339))
	if st.LastError != "" {
		fmt.Fprintf(&b, "last error: %s\n", st.LastError)
	}
	if s.deps.Stats != nil {
		stats := s.deps.Stats()
		fmt.Fprintf(&b, "journaled events: %d\n", stats.Events)
		fmt.Fprintf(&b, "journaled snapshots: %d\n", stats.Snapshots)
		fmt.Fprintf(&b, "journal failures: %d\n", stats.Failures)
	}

	if err := os.WriteFile(s.deps.StatusFile, []byte(b.String()), 0644); err != nil {
		s.deps.Logger.Error("Error writing status file", "error", err)
	}
}
