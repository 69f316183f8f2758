package fleet

import (
	"time"

	"github.com/roverfleet/console/pkg/core"
)

// Level is the severity of a user-facing notification.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	}
	return "unknown"
}

// Notification is a toast or banner for the operator. It travels beside the
// snapshot and never carries state.
type Notification struct {
	Level   Level
	Op      string
	Message string
	Err     error
	Time    time.Time
}

// EventSink receives every completed transition, e.g. for journaling.
// Implementations must not block.
type EventSink interface {
	Publish(ev core.FleetEvent)
}

// Notifier receives notifications.
type Notifier func(Notification)
