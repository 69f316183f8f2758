package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DatabaseModels lists every journal table, in migration order.
var DatabaseModels = []interface{}{
	&Session{},
	&FleetEvent{},
	&FleetSnapshot{},
}

// Session is one console run against one rover API.
type Session struct {
	gorm.Model
	UUID       string     `json:"uuid" gorm:"column:uuid;size:64;uniqueIndex"`
	APIBaseURL string     `json:"apiBaseUrl" gorm:"size:255"`
	Version    string     `json:"version" gorm:"size:32"`
	StartedAt  time.Time  `json:"startedAt"`
	EndedAt    *time.Time `json:"endedAt"`
}

func (*Session) TableName() string {
	return "sessions"
}

// FleetEvent is one journaled store transition. Rover and Obstacle hold the
// entity as JSON when the event carries one.
type FleetEvent struct {
	ID         uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID  uint           `json:"sessionId" gorm:"index:idx_fleetevent_session_id"`
	Session    Session        `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time       time.Time      `json:"time" gorm:"index:idx_fleetevent_time"`
	Kind       string         `json:"kind" gorm:"size:32;index:idx_fleetevent_kind"`
	RoverID    int            `json:"roverId" gorm:"index:idx_fleetevent_rover_id"`
	ObstacleID int            `json:"obstacleId"`
	Rover      datatypes.JSON `json:"rover"`
	Obstacle   datatypes.JSON `json:"obstacle"`
	Commands   string         `json:"commands" gorm:"size:255"`
	Operation  string         `json:"operation" gorm:"size:64"`
	Message    string         `json:"message" gorm:"size:512"`
	DurationMs float64        `json:"durationMs"`
}

func (*FleetEvent) TableName() string {
	return "fleet_events"
}

// FleetSnapshot is a full copy of the fleet at one point in time.
type FleetSnapshot struct {
	ID              uint           `json:"id" gorm:"primarykey;autoIncrement"`
	SessionID       uint           `json:"sessionId" gorm:"index:idx_fleetsnapshot_session_id"`
	Session         Session        `gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;"`
	Time            time.Time      `json:"time" gorm:"index:idx_fleetsnapshot_time"`
	SelectedRoverID int            `json:"selectedRoverId"`
	RoverCount      int            `json:"roverCount"`
	Rovers          datatypes.JSON `json:"rovers"`
	Obstacles       datatypes.JSON `json:"obstacles"`
}

func (*FleetSnapshot) TableName() string {
	return "fleet_snapshots"
}
