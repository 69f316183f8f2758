package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/internal/storage"
	"github.com/roverfleet/console/internal/storage/memory"
	pgstorage "github.com/roverfleet/console/internal/storage/postgres"
	sqlitestorage "github.com/roverfleet/console/internal/storage/sqlite"
	wsstorage "github.com/roverfleet/console/internal/storage/websocket"
)

// createStorageBackend builds the journal selected by storage.type. It does
// not call Init.
func createStorageBackend(cfg config.StorageConfig, logger *slog.Logger, sessionStart time.Time) (storage.Backend, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "memory":
		return memory.New(cfg.Memory), nil

	case "none":
		return storage.Discard{}, nil

	case "sqlite":
		sqliteCfg := cfg.SQLite
		if sqliteCfg.DumpPath == "" {
			sqliteCfg.DumpPath = filepath.Join(cfg.Memory.OutputDir,
				fmt.Sprintf("%s_%s.db", AppName, sessionStart.Format("20060102_150405")))
		}
		if err := os.MkdirAll(filepath.Dir(sqliteCfg.DumpPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create dump directory: %w", err)
		}
		backend, err := sqlitestorage.New(sqliteCfg, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite backend: %w", err)
		}
		return backend, nil

	case "postgres":
		return pgstorage.New(cfg.DB, logger), nil

	case "websocket":
		return wsstorage.New(cfg.WebSocket, logger), nil

	default:
		return nil, fmt.Errorf("unknown storage type: %s", cfg.Type)
	}
}
