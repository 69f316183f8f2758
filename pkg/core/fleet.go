// pkg/core/fleet.go
package core

import "time"

// NoSelection is the SelectedRoverID value when no rover is selected.
// Rover ids are always positive.
const NoSelection = 0

// FleetSnapshot is the full client-side view of the fleet.
// Rovers and Obstacles keep insertion order.
type FleetSnapshot struct {
	Rovers          []Rover    `json:"rovers"`
	Obstacles       []Obstacle `json:"obstacles"`
	SelectedRoverID int        `json:"selectedRoverId,omitempty"`
	Time            time.Time  `json:"time"`
}

// Rover looks up a rover by id.
func (s FleetSnapshot) Rover(id int) (Rover, bool) {
	for _, r := range s.Rovers {
		if r.ID == id {
			return r, true
		}
	}
	return Rover{}, false
}

// HasSelection reports whether a rover is selected.
func (s FleetSnapshot) HasSelection() bool {
	return s.SelectedRoverID != NoSelection
}

// EventKind names a fleet transition recorded in the journal.
type EventKind string

const (
	EventFleetLoaded     EventKind = "fleet_loaded"
	EventRoverAdded      EventKind = "rover_added"
	EventRoverDeleted    EventKind = "rover_deleted"
	EventRoverSelected   EventKind = "rover_selected"
	EventRoverMoved      EventKind = "rover_moved"
	EventObstacleStopped EventKind = "obstacle_stopped"
	EventObstacleAdded   EventKind = "obstacle_added"
	EventObstacleDeleted EventKind = "obstacle_deleted"
	EventOperationFailed EventKind = "operation_failed"
)

// FleetEvent records one completed (or failed) store operation.
type FleetEvent struct {
	Kind       EventKind     `json:"kind"`
	Time       time.Time     `json:"time"`
	RoverID    int           `json:"roverId,omitempty"`
	ObstacleID int           `json:"obstacleId,omitempty"`
	Rover      *Rover        `json:"rover,omitempty"`
	Obstacle   *Obstacle     `json:"obstacle,omitempty"`
	Commands   []Command     `json:"commands,omitempty"`
	Operation  string        `json:"operation,omitempty"`
	Message    string        `json:"message,omitempty"`
	Duration   time.Duration `json:"duration,omitempty"`
}

// Session identifies one console run against one API.
type Session struct {
	ID         uint      `json:"-"`
	SessionID  string    `json:"sessionId"`
	APIBaseURL string    `json:"apiBaseUrl"`
	Version    string    `json:"version"`
	StartedAt  time.Time `json:"startedAt"`
}
