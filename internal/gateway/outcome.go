package gateway

import "github.com/roverfleet/console/pkg/core"

// DefaultObstacleMessage is used when the server stops a rover without saying why.
const DefaultObstacleMessage = "Obstacle detected! The rover stopped before hitting it."

// OutcomeKind tells a full execution apart from an obstacle stop.
type OutcomeKind int

const (
	Executed OutcomeKind = iota + 1
	ObstacleStopped
)

func (k OutcomeKind) String() string {
	switch k {
	case Executed:
		return "executed"
	case ObstacleStopped:
		return "obstacle_stopped"
	}
	return "unknown"
}

// Outcome is the successful result of a command batch. ObstacleStopped is a
// partial execution, not an error: Rover holds the last position before the
// obstacle.
type Outcome struct {
	Kind    OutcomeKind
	Rover   core.Rover
	Message string
}
