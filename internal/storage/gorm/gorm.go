// Package gormstorage implements the storage.Backend interface using GORM
// with internal queues and a background DB writer goroutine.
package gormstorage

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"github.com/roverfleet/console/internal/database"
	"github.com/roverfleet/console/internal/model"
	"github.com/roverfleet/console/internal/model/convert"
	"github.com/roverfleet/console/internal/queue"
	"github.com/roverfleet/console/pkg/core"
)

const (
	defaultFlushInterval = time.Second
	batchSize            = 500
)

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB     *gorm.DB
	Logger *slog.Logger

	// FlushInterval defaults to one second.
	FlushInterval time.Duration
}

// Backend implements storage.Backend with queue-based batch writes.
type Backend struct {
	deps      Dependencies
	events    *queue.Queue[model.FleetEvent]
	snapshots *queue.Queue[model.FleetSnapshot]
	sessionID atomic.Uint64

	writeMu  sync.Mutex
	stopChan chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.FlushInterval <= 0 {
		deps.FlushInterval = defaultFlushInterval
	}
	return &Backend{
		deps:      deps,
		events:    queue.New[model.FleetEvent](),
		snapshots: queue.New[model.FleetSnapshot](),
	}
}

// DB returns the underlying connection.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// Init migrates the schema and starts the DB writer goroutine.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return errors.New("gorm backend: no database connection")
	}
	if err := database.Migrate(b.deps.DB); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}

	b.stopChan = make(chan struct{})
	b.done = make(chan struct{})
	go b.writer()
	return nil
}

// Close stops the writer after a final flush. Rows recorded after EndSession
// have no session to belong to; they are logged as dropped.
func (b *Backend) Close() error {
	if b.stopChan == nil {
		return nil
	}
	b.stopOnce.Do(func() { close(b.stopChan) })
	<-b.done
	return nil
}

// StartSession inserts the session row. Queued rows are written once a
// session exists.
func (b *Backend) StartSession(s *core.Session) error {
	row := convert.CoreToSession(*s)
	if err := b.deps.DB.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	s.ID = row.ID
	b.sessionID.Store(uint64(row.ID))
	b.deps.Logger.Info("Journal session started", "session", s.SessionID, "id", row.ID)
	return nil
}

// EndSession flushes pending rows and stamps the session end time.
func (b *Backend) EndSession() error {
	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	if err := b.Flush(); err != nil {
		return err
	}
	now := time.Now()
	if err := b.deps.DB.Model(&model.Session{}).Where("id = ?", id).Update("ended_at", now).Error; err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	b.sessionID.Store(0)
	return nil
}

// RecordEvent converts and queues a fleet event.
func (b *Backend) RecordEvent(e *core.FleetEvent) error {
	b.events.Push(convert.CoreToFleetEvent(*e, 0))
	return nil
}

// RecordSnapshot converts and queues a fleet snapshot.
func (b *Backend) RecordSnapshot(s *core.FleetSnapshot) error {
	b.snapshots.Push(convert.CoreToFleetSnapshot(*s, 0))
	return nil
}

// Pending returns the number of queued rows.
func (b *Backend) Pending() int {
	return b.events.Len() + b.snapshots.Len()
}

// Flush writes every queued row now. Rows stay queued while no session is
// active.
func (b *Backend) Flush() error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()

	id := uint(b.sessionID.Load())
	if id == 0 {
		return nil
	}
	err := writeQueue(b.deps.DB, b.events, func(items []model.FleetEvent) {
		for i := range items {
			items[i].SessionID = id
		}
	})
	if err != nil {
		return fmt.Errorf("writing fleet events: %w", err)
	}
	err = writeQueue(b.deps.DB, b.snapshots, func(items []model.FleetSnapshot) {
		for i := range items {
			items[i].SessionID = id
		}
	})
	if err != nil {
		return fmt.Errorf("writing fleet snapshots: %w", err)
	}
	return nil
}

// writeQueue drains q in batches, each in its own transaction. A failed
// batch goes back to the front of the queue.
func writeQueue[T any](db *gorm.DB, q *queue.Queue[T], stamp func([]T)) error {
	for q.Len() > 0 {
		items := q.DrainN(batchSize)
		stamp(items)

		err := db.Transaction(func(tx *gorm.DB) error {
			return tx.Omit("Session").Create(&items).Error
		})
		if err != nil {
			q.Requeue(items)
			return err
		}
	}
	return nil
}

func (b *Backend) writer() {
	defer close(b.done)

	ticker := time.NewTicker(b.deps.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopChan:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Final journal flush failed", "error", err, "pending", b.Pending())
			} else if n := b.Pending(); n > 0 {
				b.deps.Logger.Warn("Journal rows dropped without a session", "pending", n)
			}
			return
		case <-ticker.C:
			if err := b.Flush(); err != nil {
				b.deps.Logger.Error("Journal write failed", "error", err, "pending", b.Pending())
			}
		}
	}
}
