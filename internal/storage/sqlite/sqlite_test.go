package sqlitestorage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/internal/database"
	"github.com/roverfleet/console/internal/model"
	"github.com/roverfleet/console/internal/storage"
	"github.com/roverfleet/console/pkg/core"
)

var (
	_ storage.Backend    = (*Backend)(nil)
	_ storage.Exportable = (*Backend)(nil)
)

func TestEndSession_DumpsToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	b, err := New(config.SQLiteConfig{DumpPath: path}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	require.NoError(t, b.StartSession(&core.Session{SessionID: "dump"}))
	require.NoError(t, b.RecordEvent(&core.FleetEvent{Kind: core.EventRoverAdded, Time: time.Now(), RoverID: 1}))
	require.NoError(t, b.EndSession())

	assert.Equal(t, path, b.GetExportedFilePath())
	_, err = os.Stat(path)
	require.NoError(t, err)

	disk, err := database.GetSqliteDB(path)
	require.NoError(t, err)
	var count int64
	require.NoError(t, disk.Model(&model.FleetEvent{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestDumpLoop_WritesPeriodically(t *testing.T) {
	path := filepath.Join(t.TempDir(), "periodic.db")
	b, err := New(config.SQLiteConfig{DumpPath: path, DumpInterval: 20 * time.Millisecond}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	t.Cleanup(func() { _ = b.Close() })

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return err == nil
	}, 2*time.Second, 10*time.Millisecond)
}

func TestDump_NoPath(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, nil)
	require.NoError(t, err)
	require.NoError(t, b.Init())
	defer b.Close()

	assert.NoError(t, b.Dump())
	assert.Equal(t, "", b.GetExportedFilePath())
}

func TestClose_WithoutInit(t *testing.T) {
	b, err := New(config.SQLiteConfig{}, nil)
	require.NoError(t, err)

	assert.NoError(t, b.Close())
	assert.NoError(t, b.Close())
}
