// Package convert maps core journal values to GORM models and back.
package convert

import (
	"encoding/json"
	"strings"

	"gorm.io/datatypes"

	"github.com/roverfleet/console/internal/model"
	"github.com/roverfleet/console/pkg/core"
)

// toJSON marshals v for a datatypes.JSON column. Nil values become SQL NULL.
func toJSON(v any) datatypes.JSON {
	if v == nil {
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return datatypes.JSON(data)
}

// CoreToSession converts a core.Session to a GORM model.Session.
func CoreToSession(s core.Session) model.Session {
	return model.Session{
		UUID:       s.SessionID,
		APIBaseURL: s.APIBaseURL,
		Version:    s.Version,
		StartedAt:  s.StartedAt,
	}
}

// CoreToFleetEvent converts a core.FleetEvent recorded in sessionID.
// Commands are stored as a compact token string such as "ffrl".
func CoreToFleetEvent(e core.FleetEvent, sessionID uint) model.FleetEvent {
	ev := model.FleetEvent{
		SessionID:  sessionID,
		Time:       e.Time,
		Kind:       string(e.Kind),
		RoverID:    e.RoverID,
		ObstacleID: e.ObstacleID,
		Commands:   strings.Join(core.CommandStrings(e.Commands), ""),
		Operation:  e.Operation,
		Message:    e.Message,
		DurationMs: float64(e.Duration.Microseconds()) / 1000,
	}
	if e.Rover != nil {
		ev.Rover = toJSON(e.Rover)
	}
	if e.Obstacle != nil {
		ev.Obstacle = toJSON(e.Obstacle)
	}
	return ev
}

// CoreToFleetSnapshot converts a core.FleetSnapshot recorded in sessionID.
func CoreToFleetSnapshot(s core.FleetSnapshot, sessionID uint) model.FleetSnapshot {
	rovers := s.Rovers
	if rovers == nil {
		rovers = []core.Rover{}
	}
	obstacles := s.Obstacles
	if obstacles == nil {
		obstacles = []core.Obstacle{}
	}
	return model.FleetSnapshot{
		SessionID:       sessionID,
		Time:            s.Time,
		SelectedRoverID: s.SelectedRoverID,
		RoverCount:      len(rovers),
		Rovers:          toJSON(rovers),
		Obstacles:       toJSON(obstacles),
	}
}
