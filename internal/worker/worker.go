// Package worker moves fleet events and snapshots from the store to the
// journal and command telemetry through buffered dispatcher handlers.
package worker

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/roverfleet/console/internal/dispatcher"
	"github.com/roverfleet/console/internal/storage"
	"github.com/roverfleet/console/pkg/core"
)

// Telemetry receives every fleet event; implementations pick what they
// record. *influx.Manager satisfies it.
type Telemetry interface {
	RecordEvent(ev core.FleetEvent) error
}

// Dependencies holds all dependencies for the worker manager
type Dependencies struct {
	Backend   storage.Backend
	Telemetry Telemetry // optional
	Logger    *slog.Logger
}

// Stats counts what the handlers have processed.
type Stats struct {
	Events    uint64
	Snapshots uint64
	Failures  uint64
}

// Manager is the store's event sink. Publishing never blocks on storage.
type Manager struct {
	deps Dependencies

	mu         sync.RWMutex
	dispatcher *dispatcher.Dispatcher

	events    atomic.Uint64
	snapshots atomic.Uint64
	failures  atomic.Uint64
}

// NewManager creates a new worker manager
func NewManager(deps Dependencies) *Manager {
	if deps.Backend == nil {
		deps.Backend = storage.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Manager{deps: deps}
}

// Stats returns a copy of the handler counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Events:    m.events.Load(),
		Snapshots: m.snapshots.Load(),
		Failures:  m.failures.Load(),
	}
}
