package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/roverfleet/console/internal/config"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "fleetconsole"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout))
}

// run parses flags, wires the console and serves the REPL until quit, EOF
// or ctx ends. It returns the process exit code.
func run(ctx context.Context, args []string, in io.Reader, out io.Writer) int {
	fs := pflag.NewFlagSet(AppName, pflag.ContinueOnError)
	fs.SetOutput(out)
	configDir := fs.String("config-dir", ".", "directory holding "+config.FileName)
	fs.String("log-level", "info", "debug, info, warn or error")
	fs.String("api-url", "", "rover API base URL, overrides api.serverUrl")
	fs.String("storage", "", "journal backend: memory, sqlite, postgres, websocket or none")
	showVersion := fs.BoolP("version", "v", false, "print the version and exit")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		return 2
	}
	if *showVersion {
		fmt.Fprintf(out, "%s %s (%s)\n", AppName, CurrentVersion, BuildDate)
		return 0
	}

	configErr := config.Load(*configDir)
	if configErr != nil {
		config.LoadDefaults()
	}
	if err := config.BindFlags(fs); err != nil {
		fmt.Fprintln(out, err)
		return 2
	}

	a, err := newApp(ctx, out)
	if err != nil {
		fmt.Fprintf(out, "startup failed: %v\n", err)
		return 1
	}
	if configErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", configErr)
	} else {
		a.logger.Info("Loaded config", "dir", *configDir)
	}
	defer a.close()

	a.serve(ctx, in)
	return 0
}
