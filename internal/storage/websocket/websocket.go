package websocket

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/pkg/core"
	"github.com/roverfleet/console/pkg/streaming"
)

// Backend streams the session journal over WebSocket to a fleet viewer.
// It implements storage.Backend but not storage.Exportable.
type Backend struct {
	conn    *connection
	cfg     config.WebSocketConfig
	started atomic.Bool
}

// New creates a new WebSocket storage backend.
func New(cfg config.WebSocketConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		conn: newConnection(logger),
		cfg:  cfg,
	}
}

// Init connects to the WebSocket server.
func (b *Backend) Init() error {
	return b.conn.dial(b.cfg.URL, b.cfg.Secret)
}

// Close disconnects from the WebSocket server.
func (b *Backend) Close() error {
	return b.conn.close()
}

// StartSession announces the session and waits for the server ack.
func (b *Backend) StartSession(s *core.Session) error {
	data, err := streaming.Marshal(streaming.TypeStartSession, streaming.StartSessionPayload{Session: s})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeStartSession, err)
	}
	b.conn.rememberHello(data)
	b.started.Store(true)

	return b.conn.sendAndWait(data, streaming.TypeStartSession, ackTimeout)
}

// EndSession sends end_session and waits for server ack.
func (b *Backend) EndSession() error {
	if !b.started.Swap(false) {
		return nil
	}
	data, err := streaming.Marshal(streaming.TypeEndSession, nil)
	if err != nil {
		return err
	}
	err = b.conn.sendAndWait(data, streaming.TypeEndSession, ackTimeout)

	// Clear cached state regardless of error.
	b.conn.rememberHello(nil)
	return err
}

// RecordEvent streams a fleet event without waiting.
func (b *Backend) RecordEvent(e *core.FleetEvent) error {
	data, err := streaming.Marshal(streaming.TypeFleetEvent, e)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeFleetEvent, err)
	}
	b.conn.send(data)
	return nil
}

// RecordSnapshot streams a snapshot and keeps it for reconnect replay.
func (b *Backend) RecordSnapshot(s *core.FleetSnapshot) error {
	data, err := streaming.Marshal(streaming.TypeSnapshot, s)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", streaming.TypeSnapshot, err)
	}
	b.conn.rememberSnapshot(data)
	b.conn.send(data)
	return nil
}
