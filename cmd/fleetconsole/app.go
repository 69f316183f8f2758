package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Graylog2/go-gelf/gelf"
	"github.com/google/uuid"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/roverfleet/console/internal/api"
	"github.com/roverfleet/console/internal/config"
	"github.com/roverfleet/console/internal/dispatcher"
	"github.com/roverfleet/console/internal/fleet"
	"github.com/roverfleet/console/internal/gateway"
	"github.com/roverfleet/console/internal/influx"
	"github.com/roverfleet/console/internal/logging"
	"github.com/roverfleet/console/internal/monitor"
	intOtel "github.com/roverfleet/console/internal/otel"
	"github.com/roverfleet/console/internal/storage"
	"github.com/roverfleet/console/internal/worker"
	"github.com/roverfleet/console/pkg/core"
)

// console serialises writes from the REPL and from async notifications.
type console struct {
	mu sync.Mutex
	w  io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.w, format, args...)
}

// app holds every service of one console session.
type app struct {
	out      *console
	logger   *slog.Logger
	logFile  *os.File
	session  core.Session
	selected atomic.Int64 // mirrors the store's selection for log context

	slogManager *logging.SlogManager
	otel        *intOtel.Provider
	gelf        *gelf.Writer

	dispatcher *dispatcher.Dispatcher
	gateway    *gateway.Gateway
	store      *fleet.Store
	backend    storage.Backend
	workers    *worker.Manager
	influx     *influx.Manager
	monitor    *monitor.Service

	closeOnce sync.Once
}

func newApp(ctx context.Context, out io.Writer) (*app, error) {
	start := time.Now()
	a := &app{
		out:     &console{w: out},
		session: core.Session{
			SessionID: uuid.NewString(),
			Version:   CurrentVersion,
			StartedAt: start,
		},
	}

	level := config.GetString("logLevel")
	logsDir := config.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		return nil, fmt.Errorf("creating logs dir: %w", err)
	}
	logPath := logging.LogFilePath(logsDir, AppName, start)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	a.logFile = logFile

	a.otel, err = intOtel.New(intOtel.FromSettings(config.GetOTelConfig(), CurrentVersion, logFile))
	if err != nil {
		fmt.Fprintf(logFile, "Failed to initialize OTel provider: %v\n", err)
	}

	a.slogManager = logging.NewSlogManager()
	if gc := config.GetGraylogConfig(); gc.Enabled {
		h, w, err := logging.NewGraylogHandler(gc.Address, level)
		if err != nil {
			fmt.Fprintf(logFile, "Failed to connect to Graylog: %v\n", err)
		} else {
			a.slogManager.AddHandler(h)
			a.gelf = w
		}
	}
	a.slogManager.SetContext(func() []slog.Attr {
		attrs := []slog.Attr{slog.String("session", a.session.SessionID)}
		if id := a.selected.Load(); id != core.NoSelection {
			attrs = append(attrs, slog.Int64("rover", id))
		}
		return attrs
	})
	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}
	a.slogManager.Setup(logFile, level, otelLogProvider)
	a.logger = a.slogManager.Logger()
	a.logger.Info("Starting up...", "version", CurrentVersion, "build", BuildDate, "log", logPath)

	zl := logging.NewZerolog(logFile, level)
	a.dispatcher, err = dispatcher.New(logging.NewDispatcherLogger(zl))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	apiCfg := config.GetAPIConfig()
	client := api.New(api.Config{
		BaseURL:       apiCfg.ServerURL,
		APIKey:        apiCfg.APIKey,
		ObstaclesPath: apiCfg.ObstaclesPath,
		Timeout:       apiCfg.Timeout,
	})
	a.session.APIBaseURL = client.BaseURL()
	a.gateway, err = gateway.New(client, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}

	a.backend = a.initStorage(start)

	deps := worker.Dependencies{Backend: a.backend, Logger: a.logger}
	if ic := config.GetInfluxConfig(); ic.Enabled {
		m := influx.NewManager(ic, zl, filepath.Join(logsDir, fmt.Sprintf("telemetry_%s.lp.gz", start.Format("20060102_150405"))))
		if err := m.Connect(ctx); err != nil {
			a.logger.Error("Failed to initialize command telemetry", "error", err)
		} else {
			a.influx = m
			deps.Telemetry = m
		}
	}
	a.workers = worker.NewManager(deps)
	a.workers.RegisterHandlers(a.dispatcher)

	a.store = fleet.New(a.gateway,
		fleet.WithLogger(a.logger),
		fleet.WithEventSink(a.workers),
		fleet.WithNotifier(a.notify),
		fleet.WithOnChange(a.onChange),
	)

	if err := a.backend.StartSession(&a.session); err != nil {
		a.logger.Error("Failed to start journal session", "error", err)
	}

	a.monitor = monitor.NewService(monitor.Dependencies{
		Checker:    a.gateway,
		Interval:   config.GetMonitorInterval(),
		Timeout:    apiCfg.Timeout,
		Logger:     a.logger,
		OnChange:   func(s monitor.Status) { a.out.printf("[api] %s\n", s) },
		Stats:      a.workers.Stats,
		StatusFile: filepath.Join(logsDir, "status.txt"),
	})
	if err := a.monitor.Start(ctx); err != nil {
		a.logger.Warn("Failed to start API monitor", "error", err)
	}

	registerConsoleHandlers(a.dispatcher, a)
	a.logger.Info("Console ready", "api", a.session.APIBaseURL, "session", a.session.SessionID)
	return a, nil
}

// initStorage creates and initializes the configured journal. Any failure
// leaves the console running without one.
func (a *app) initStorage(start time.Time) storage.Backend {
	storageCfg := config.GetStorageConfig()

	backend, err := createStorageBackend(storageCfg, a.logger, start)
	if err != nil {
		a.logger.Error("Failed to create storage backend", "error", err)
		a.out.printf("[journal] disabled: %v\n", err)
		return storage.Discard{}
	}
	if err := backend.Init(); err != nil {
		a.logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		a.out.printf("[journal] disabled: %v\n", err)
		_ = backend.Close()
		return storage.Discard{}
	}
	a.logger.Info("Storage backend initialized", "type", storageCfg.Type)
	return backend
}

func (a *app) onChange(s core.FleetSnapshot) {
	a.selected.Store(int64(s.SelectedRoverID))
	a.workers.PublishSnapshot(s)
}

func (a *app) notify(n fleet.Notification) {
	a.out.printf("[%s] %s\n", n.Level, n.Message)
}

// close drains queued journal work, ends the session and releases every
// service. Safe to call more than once.
func (a *app) close() {
	a.closeOnce.Do(func() {
		a.monitor.Stop()
		a.dispatcher.Close()

		a.logger.Info("Ending journal session", "stats", fmt.Sprintf("%+v", a.workers.Stats()))
		if a.otel != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.otel.Flush(ctx); err != nil {
				a.logger.Warn("Failed to flush OTel logs", "error", err)
			}
			cancel()
		}
		if err := a.backend.EndSession(); err != nil {
			a.logger.Error("Failed to end journal session", "error", err)
		}
		if exp, ok := a.backend.(storage.Exportable); ok && exp.GetExportedFilePath() != "" {
			a.out.printf("[journal] saved to %s\n", exp.GetExportedFilePath())
		}
		if err := a.backend.Close(); err != nil {
			a.logger.Error("Failed to close storage backend", "error", err)
		}
		if a.influx != nil {
			if err := a.influx.Close(); err != nil {
				a.logger.Error("Failed to close command telemetry", "error", err)
			}
		}

		a.logger.Info("Shutting down")
		if a.otel != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := a.otel.Shutdown(ctx); err != nil {
				a.logger.Warn("Failed to flush OTel data", "error", err)
			}
			cancel()
		}
		if a.gelf != nil {
			_ = a.gelf.Close()
		}
		_ = a.logFile.Close()
	})
}
