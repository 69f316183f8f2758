package convert

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/roverfleet/console/internal/model"
	"github.com/roverfleet/console/pkg/core"
)

// SessionToCore converts a GORM model.Session to a core.Session.
func SessionToCore(s model.Session) core.Session {
	return core.Session{
		ID:         s.ID,
		SessionID:  s.UUID,
		APIBaseURL: s.APIBaseURL,
		Version:    s.Version,
		StartedAt:  s.StartedAt,
	}
}

// FleetEventToCore converts a GORM model.FleetEvent to a core.FleetEvent.
func FleetEventToCore(e model.FleetEvent) (core.FleetEvent, error) {
	ev := core.FleetEvent{
		Kind:       core.EventKind(e.Kind),
		Time:       e.Time,
		RoverID:    e.RoverID,
		ObstacleID: e.ObstacleID,
		Operation:  e.Operation,
		Message:    e.Message,
		Duration:   time.Duration(e.DurationMs * float64(time.Millisecond)),
	}
	for _, c := range e.Commands {
		ev.Commands = append(ev.Commands, core.Command(string(c)))
	}
	if len(e.Rover) > 0 {
		var r core.Rover
		if err := json.Unmarshal(e.Rover, &r); err != nil {
			return core.FleetEvent{}, fmt.Errorf("decoding rover of event %d: %w", e.ID, err)
		}
		ev.Rover = &r
	}
	if len(e.Obstacle) > 0 {
		var o core.Obstacle
		if err := json.Unmarshal(e.Obstacle, &o); err != nil {
			return core.FleetEvent{}, fmt.Errorf("decoding obstacle of event %d: %w", e.ID, err)
		}
		ev.Obstacle = &o
	}
	return ev, nil
}

// FleetSnapshotToCore converts a GORM model.FleetSnapshot to a core.FleetSnapshot.
func FleetSnapshotToCore(s model.FleetSnapshot) (core.FleetSnapshot, error) {
	snap := core.FleetSnapshot{
		SelectedRoverID: s.SelectedRoverID,
		Time:            s.Time,
	}
	if len(s.Rovers) > 0 {
		if err := json.Unmarshal(s.Rovers, &snap.Rovers); err != nil {
			return core.FleetSnapshot{}, fmt.Errorf("decoding rovers of snapshot %d: %w", s.ID, err)
		}
	}
	if len(s.Obstacles) > 0 {
		if err := json.Unmarshal(s.Obstacles, &snap.Obstacles); err != nil {
			return core.FleetSnapshot{}, fmt.Errorf("decoding obstacles of snapshot %d: %w", s.ID, err)
		}
	}
	return snap, nil
}
