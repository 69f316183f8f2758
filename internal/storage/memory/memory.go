// Package memory keeps the session journal in memory and exports it as JSON
// when the session ends.
package memory

import (
	"errors"
	"sync"
	"time"

	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/pkg/core"
)

// ErrNoSession is returned when recording before StartSession.
var ErrNoSession = errors.New("no session started")

// Backend stores session data in memory and exports to JSON
type Backend struct {
	cfg     config.MemoryConfig
	session *core.Session

	events   []core.FleetEvent
	snapshot *core.FleetSnapshot
	// snapshots counts every RecordSnapshot call, only the last is kept
	snapshots int

	lastExportPath string
	now            func() time.Time
	mu             sync.RWMutex
}

// New creates a new memory backend
func New(cfg config.MemoryConfig) *Backend {
	return &Backend{
		cfg: cfg,
		now: time.Now,
	}
}

// Init initializes the backend
func (b *Backend) Init() error {
	return nil
}

// Close cleans up resources
func (b *Backend) Close() error {
	return nil
}

// StartSession begins recording a new session and drops any previous one.
func (b *Backend) StartSession(s *core.Session) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	cp := *s
	b.session = &cp
	b.events = nil
	b.snapshot = nil
	b.snapshots = 0
	return nil
}

// EndSession exports the session and clears it.
func (b *Backend) EndSession() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return nil
	}
	if err := b.exportJSON(); err != nil {
		return err
	}
	b.session = nil
	return nil
}

// RecordEvent appends a fleet event.
func (b *Backend) RecordEvent(e *core.FleetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	ev := *e
	ev.Commands = append([]core.Command(nil), e.Commands...)
	b.events = append(b.events, ev)
	return nil
}

// RecordSnapshot replaces the stored snapshot.
func (b *Backend) RecordSnapshot(s *core.FleetSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.session == nil {
		return ErrNoSession
	}
	cp := core.FleetSnapshot{
		Rovers:          append([]core.Rover(nil), s.Rovers...),
		Obstacles:       append([]core.Obstacle(nil), s.Obstacles...),
		SelectedRoverID: s.SelectedRoverID,
		Time:            s.Time,
	}
	b.snapshot = &cp
	b.snapshots++
	return nil
}

// Events returns a copy of the recorded events.
func (b *Backend) Events() []core.FleetEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]core.FleetEvent(nil), b.events...)
}

// LastSnapshot returns the most recent snapshot, if any.
func (b *Backend) LastSnapshot() (core.FleetSnapshot, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.snapshot == nil {
		return core.FleetSnapshot{}, false
	}
	return *b.snapshot, true
}

// GetExportedFilePath returns the path of the last export.
func (b *Backend) GetExportedFilePath() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastExportPath
}
