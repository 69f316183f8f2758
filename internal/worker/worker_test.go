package worker

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverfleet/console/internal/dispatcher"
	"github.com/roverfleet/console/internal/fleet"
	"github.com/roverfleet/console/internal/storage"
	"github.com/roverfleet/console/pkg/core"
)

var _ fleet.EventSink = (*Manager)(nil)

// recordingBackend implements storage.Backend for testing
type recordingBackend struct {
	storage.Discard

	mu        sync.Mutex
	events    []core.FleetEvent
	snapshots []core.FleetSnapshot
	eventErr  error
}

func (b *recordingBackend) RecordEvent(e *core.FleetEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.eventErr != nil {
		return b.eventErr
	}
	b.events = append(b.events, *e)
	return nil
}

func (b *recordingBackend) RecordSnapshot(s *core.FleetSnapshot) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.snapshots = append(b.snapshots, *s)
	return nil
}

type recordingTelemetry struct {
	mu     sync.Mutex
	events []core.FleetEvent
	err    error
}

func (r *recordingTelemetry) RecordEvent(ev core.FleetEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func newDispatcher(t *testing.T) *dispatcher.Dispatcher {
	t.Helper()
	d, err := dispatcher.New(nil)
	require.NoError(t, err)
	return d
}

func TestRegisterHandlers(t *testing.T) {
	d := newDispatcher(t)
	defer d.Close()

	NewManager(Dependencies{}).RegisterHandlers(d)

	assert.True(t, d.HasHandler(CommandFleetEvent))
	assert.True(t, d.HasHandler(CommandFleetSnapshot))
}

func TestPublish_ThroughDispatcher(t *testing.T) {
	backend := &recordingBackend{}
	telemetry := &recordingTelemetry{}
	m := NewManager(Dependencies{Backend: backend, Telemetry: telemetry})

	d := newDispatcher(t)
	m.RegisterHandlers(d)

	for i := 1; i <= 5; i++ {
		m.Publish(core.FleetEvent{Kind: core.EventRoverAdded, RoverID: i})
	}
	m.PublishSnapshot(core.FleetSnapshot{SelectedRoverID: 5})
	d.Close()

	require.Len(t, backend.events, 5)
	for i, ev := range backend.events {
		assert.Equal(t, i+1, ev.RoverID, "events keep publish order")
	}
	require.Len(t, backend.snapshots, 1)
	assert.Equal(t, 5, backend.snapshots[0].SelectedRoverID)
	assert.Len(t, telemetry.events, 5)
	assert.Equal(t, Stats{Events: 5, Snapshots: 1}, m.Stats())
}

func TestPublish_InlineBeforeRegistration(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(Dependencies{Backend: backend})

	m.Publish(core.FleetEvent{Kind: core.EventFleetLoaded})
	m.PublishSnapshot(core.FleetSnapshot{})

	assert.Len(t, backend.events, 1)
	assert.Len(t, backend.snapshots, 1)
}

func TestPublish_AfterCloseIsDropped(t *testing.T) {
	backend := &recordingBackend{}
	m := NewManager(Dependencies{Backend: backend})
	d := newDispatcher(t)
	m.RegisterHandlers(d)
	d.Close()

	m.Publish(core.FleetEvent{Kind: core.EventRoverAdded})
	assert.Empty(t, backend.events)
}

func TestHandleFleetEvent_Failures(t *testing.T) {
	backend := &recordingBackend{eventErr: errors.New("disk full")}
	telemetry := &recordingTelemetry{err: errors.New("influx down")}
	m := NewManager(Dependencies{Backend: backend, Telemetry: telemetry})

	_, err := m.handleFleetEvent(dispatcher.Event{Command: CommandFleetEvent, Payload: core.FleetEvent{Kind: core.EventRoverMoved}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Contains(t, err.Error(), "influx down")
	assert.Len(t, telemetry.events, 1, "telemetry still runs when the journal fails")
	assert.Equal(t, uint64(1), m.Stats().Failures)
}

func TestHandlers_RejectWrongPayload(t *testing.T) {
	m := NewManager(Dependencies{})

	_, err := m.handleFleetEvent(dispatcher.Event{Command: CommandFleetEvent, Payload: "nope"})
	assert.EqualError(t, err, ":FLEET:EVENT:: unexpected payload string")

	_, err = m.handleFleetSnapshot(dispatcher.Event{Command: CommandFleetSnapshot, Payload: &core.FleetSnapshot{}})
	assert.EqualError(t, err, ":FLEET:SNAPSHOT:: unexpected payload *core.FleetSnapshot")
}
