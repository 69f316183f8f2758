package fleet

import (
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/roverfleet/console/pkg/core"
)

// Option configures a Store.
type Option func(*Store)

// WithNotifier sets the callback for user-facing notifications.
func WithNotifier(n Notifier) Option {
	return func(s *Store) {
		s.notify = n
	}
}

// WithEventSink sets where transitions are published.
func WithEventSink(sink EventSink) Option {
	return func(s *Store) {
		s.sink = sink
	}
}

// WithOnChange registers a callback run with the new snapshot after every
// state change.
func WithOnChange(fn func(core.FleetSnapshot)) Option {
	return func(s *Store) {
		s.onChange = fn
	}
}

// WithRand sets the source for spawn positions and headings.
func WithRand(r *rand.Rand) Option {
	return func(s *Store) {
		s.intN = r.IntN
	}
}

// WithLogger sets the store logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}
