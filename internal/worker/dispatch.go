package worker

import (
	"errors"
	"fmt"
	"time"

	"github.com/roverfleet/console/internal/dispatcher"
	"github.com/roverfleet/console/pkg/core"
)

// Dispatcher commands handled by the manager.
const (
	CommandFleetEvent    = ":FLEET:EVENT:"
	CommandFleetSnapshot = ":FLEET:SNAPSHOT:"
)

// RegisterHandlers registers the journal handlers with the dispatcher and
// routes Publish and PublishSnapshot through it.
func (m *Manager) RegisterHandlers(d *dispatcher.Dispatcher) {
	// Events must all reach the journal - block rather than drop
	d.Register(CommandFleetEvent, m.handleFleetEvent, dispatcher.Buffered(1000), dispatcher.Blocking(), dispatcher.Logged())
	// Only the latest snapshot matters, dropping under pressure is fine
	d.Register(CommandFleetSnapshot, m.handleFleetSnapshot, dispatcher.Buffered(100), dispatcher.Logged())

	m.mu.Lock()
	m.dispatcher = d
	m.mu.Unlock()
}

// Publish hands a fleet event to the journal. Before RegisterHandlers it
// is handled inline.
func (m *Manager) Publish(ev core.FleetEvent) {
	m.route(CommandFleetEvent, ev, m.handleFleetEvent)
}

// PublishSnapshot hands a fleet snapshot to the journal.
func (m *Manager) PublishSnapshot(s core.FleetSnapshot) {
	m.route(CommandFleetSnapshot, s, m.handleFleetSnapshot)
}

func (m *Manager) route(command string, payload any, inline dispatcher.HandlerFunc) {
	e := dispatcher.Event{Command: command, Payload: payload, Timestamp: time.Now()}

	m.mu.RLock()
	d := m.dispatcher
	m.mu.RUnlock()

	var err error
	if d == nil {
		_, err = inline(e)
	} else {
		_, err = d.Dispatch(e)
	}
	if err != nil {
		m.deps.Logger.Warn("Journal dispatch failed", "command", command, "error", err)
	}
}

func (m *Manager) handleFleetEvent(e dispatcher.Event) (any, error) {
	ev, ok := e.Payload.(core.FleetEvent)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload %T", e.Command, e.Payload)
	}
	m.events.Add(1)

	var errs []error
	if err := m.deps.Backend.RecordEvent(&ev); err != nil {
		errs = append(errs, fmt.Errorf("failed to record fleet event: %w", err))
	}
	if m.deps.Telemetry != nil {
		if err := m.deps.Telemetry.RecordEvent(ev); err != nil {
			errs = append(errs, fmt.Errorf("failed to write command telemetry: %w", err))
		}
	}
	if len(errs) > 0 {
		m.failures.Add(1)
		return nil, errors.Join(errs...)
	}
	return nil, nil
}

func (m *Manager) handleFleetSnapshot(e dispatcher.Event) (any, error) {
	s, ok := e.Payload.(core.FleetSnapshot)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected payload %T", e.Command, e.Payload)
	}
	m.snapshots.Add(1)

	if err := m.deps.Backend.RecordSnapshot(&s); err != nil {
		m.failures.Add(1)
		return nil, fmt.Errorf("failed to record fleet snapshot: %w", err)
	}
	return nil, nil
}
