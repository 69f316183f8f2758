// Package storage defines the journal that records fleet activity for later
// review.
package storage

import "github.com/roverfleet/console/pkg/core"

// Backend is the interface all journal implementations must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// Session management
	StartSession(s *core.Session) error
	EndSession() error

	// Recording
	RecordEvent(e *core.FleetEvent) error
	RecordSnapshot(s *core.FleetSnapshot) error
}

// Exportable is an optional interface for backends that write the session
// to a file when it ends.
type Exportable interface {
	GetExportedFilePath() string
}

// Discard is a Backend that drops everything. It is used when the journal
// is turned off.
type Discard struct{}

func (Discard) Init() error                              { return nil }
func (Discard) Close() error                             { return nil }
func (Discard) StartSession(*core.Session) error         { return nil }
func (Discard) EndSession() error                        { return nil }
func (Discard) RecordEvent(*core.FleetEvent) error       { return nil }
func (Discard) RecordSnapshot(*core.FleetSnapshot) error { return nil }
