// Package postgres journals fleet activity to PostgreSQL through the GORM
// backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/internal/database"
	gormstorage "github.com/roverfleet/console/internal/storage/gorm"
)

// Backend connects to Postgres on Init and delegates everything else to
// the embedded GORM backend.
type Backend struct {
	*gormstorage.Backend
	cfg    config.DBConfig
	logger *slog.Logger
}

// New creates a Postgres backend. No connection is made until Init.
func New(cfg config.DBConfig, logger *slog.Logger) *Backend {
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, logger: logger}
}

// Init opens the connection, migrates the schema and starts the writer.
func (b *Backend) Init() error {
	db, err := database.GetPostgresDB(b.cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to postgres: %w", err)
	}
	b.Backend = gormstorage.New(gormstorage.Dependencies{DB: db, Logger: b.logger})
	if err := b.Backend.Init(); err != nil {
		return err
	}
	b.logger.Info("Postgres journal ready", "host", b.cfg.Host, "database", b.cfg.Database)
	return nil
}

// Close stops the writer. It is safe to call when Init failed.
func (b *Backend) Close() error {
	if b.Backend == nil {
		return nil
	}
	return b.Backend.Close()
}
