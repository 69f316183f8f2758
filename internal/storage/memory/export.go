package memory

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/roverfleet/console/pkg/core"
)

// SessionExport is the root JSON structure written on EndSession.
type SessionExport struct {
	SessionID  string              `json:"sessionId"`
	APIBaseURL string              `json:"apiBaseUrl"`
	Version    string              `json:"version"`
	StartedAt  time.Time           `json:"startedAt"`
	EndedAt    time.Time           `json:"endedAt"`
	Summary    Summary             `json:"summary"`
	Events     []core.FleetEvent   `json:"events"`
	Snapshot   *core.FleetSnapshot `json:"snapshot"`
}

// Summary counts what happened during the session.
type Summary struct {
	Events    int            `json:"events"`
	Snapshots int            `json:"snapshots"`
	Failures  int            `json:"failures"`
	ByKind    map[string]int `json:"byKind"`
}

// exportJSON writes the session data to outputDir, gzipped when configured.
// Caller holds b.mu.
func (b *Backend) exportJSON() error {
	export := b.buildExport()

	name := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_").Replace(b.session.SessionID)
	if name == "" {
		name = "session_" + b.session.StartedAt.Format("20060102_150405")
	}
	filename := name + ".json"
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	if b.cfg.CompressOutput {
		if err := writeGzipJSON(outputPath, export); err != nil {
			return err
		}
	} else {
		if err := writeJSON(outputPath, export); err != nil {
			return err
		}
	}

	b.lastExportPath = outputPath
	return nil
}

func (b *Backend) buildExport() SessionExport {
	events := b.events
	if events == nil {
		events = []core.FleetEvent{}
	}

	summary := Summary{
		Events:    len(events),
		Snapshots: b.snapshots,
		ByKind:    make(map[string]int),
	}
	for _, e := range events {
		summary.ByKind[string(e.Kind)]++
		if e.Kind == core.EventOperationFailed {
			summary.Failures++
		}
	}

	return SessionExport{
		SessionID:  b.session.SessionID,
		APIBaseURL: b.session.APIBaseURL,
		Version:    b.session.Version,
		StartedAt:  b.session.StartedAt,
		EndedAt:    b.now(),
		Summary:    summary,
		Events:     events,
		Snapshot:   b.snapshot,
	}
}

func writeJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	return encoder.Encode(data)
}

func writeGzipJSON(path string, data SessionExport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gzWriter := gzip.NewWriter(f)
	if err := json.NewEncoder(gzWriter).Encode(data); err != nil {
		gzWriter.Close()
		return fmt.Errorf("failed to encode export: %w", err)
	}
	return gzWriter.Close()
}
