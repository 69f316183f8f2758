// Package fleet owns the client-side fleet snapshot and reconciles it with
// the rover API.
//
// Every operation makes its network call without holding the store lock,
// then applies the result in a single critical section. Observers are run
// after the lock is released.
package fleet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roverfleet/console/internal/gateway"
	"github.com/roverfleet/console/pkg/core"
)

// ErrUnknownRover is returned for an id not in the fleet, including a rover
// deleted while its command batch was in flight.
var ErrUnknownRover = errors.New("unknown rover")

// Gateway is the subset of *gateway.Gateway the store needs.
type Gateway interface {
	FetchRovers(ctx context.Context) ([]core.Rover, error)
	FetchObstacles(ctx context.Context) ([]core.Obstacle, error)
	CreateRover(ctx context.Context, x, y int, dir core.Direction) (core.Rover, error)
	DeleteRover(ctx context.Context, id int) error
	SendCommands(ctx context.Context, roverID int, commands []core.Command) (gateway.Outcome, error)
	CreateObstacle(ctx context.Context, x, y int) (core.Obstacle, error)
	DeleteObstacle(ctx context.Context, id int) error
}

// Store is the single owner of the fleet snapshot.
type Store struct {
	gw Gateway

	mu        sync.Mutex
	rovers    *ordered[core.Rover]
	obstacles *ordered[core.Obstacle]
	selected  int
	loading   bool

	notify   Notifier
	sink     EventSink
	onChange func(core.FleetSnapshot)
	intN     func(n int) int
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an empty store over gw. Call Load to populate it.
func New(gw Gateway, opts ...Option) *Store {
	s := &Store{
		gw:        gw,
		rovers:    newOrdered[core.Rover](),
		obstacles: newOrdered[core.Obstacle](),
		selected:  core.NoSelection,
		intN:      rand.IntN,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// effects collects what to tell observers once the lock is released.
type effects struct {
	notes   []Notification
	events  []core.FleetEvent
	changed bool
}

func (s *Store) flush(fx effects) {
	if s.sink != nil {
		for _, ev := range fx.events {
			s.sink.Publish(ev)
		}
	}
	if s.notify != nil {
		for _, n := range fx.notes {
			s.notify(n)
		}
	}
	if fx.changed && s.onChange != nil {
		s.onChange(s.Snapshot())
	}
}

func (s *Store) note(fx *effects, level Level, op, msg string, err error) {
	fx.notes = append(fx.notes, Notification{
		Level:   level,
		Op:      op,
		Message: msg,
		Err:     err,
		Time:    s.now(),
	})
}

// fail records a failed operation. Transport causes stay out of the message.
func (s *Store) fail(fx *effects, op, prefix string, err error) {
	msg := prefix
	if !errors.Is(err, gateway.ErrTransport) {
		msg = prefix + ": " + gateway.Describe(err)
	}
	s.logger.Error("operation failed", "op", op, "error", err)
	s.note(fx, LevelError, op, msg, err)
	fx.events = append(fx.events, core.FleetEvent{
		Kind:      core.EventOperationFailed,
		Time:      s.now(),
		Operation: op,
		Message:   msg,
	})
}

// Snapshot returns a copy of the current state.
func (s *Store) Snapshot() core.FleetSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() core.FleetSnapshot {
	return core.FleetSnapshot{
		Rovers:          s.rovers.values(),
		Obstacles:       s.obstacles.values(),
		SelectedRoverID: s.selected,
		Time:            s.now(),
	}
}

// Loading reports whether a full Load is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// Selected returns the selected rover, if any.
func (s *Store) Selected() (core.Rover, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected == core.NoSelection {
		return core.Rover{}, false
	}
	return s.rovers.get(s.selected)
}

// Load replaces rovers and obstacles with the server's view. Both fetches run
// concurrently and fail independently: a rover failure empties the fleet and
// is returned, an obstacle failure only empties the obstacles.
func (s *Store) Load(ctx context.Context) error {
	const op = "load"
	start := s.now()

	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	var (
		rovers      []core.Rover
		obstacles   []core.Obstacle
		roverErr    error
		obstacleErr error
	)

	var g errgroup.Group
	g.Go(func() error {
		rovers, roverErr = s.gw.FetchRovers(ctx)
		return roverErr
	})
	g.Go(func() error {
		obstacles, obstacleErr = s.gw.FetchObstacles(ctx)
		return obstacleErr
	})
	// Each fetch keeps its own error; Wait only joins them.
	_ = g.Wait()

	var fx effects

	s.mu.Lock()
	if roverErr != nil {
		s.rovers.replace(nil, roverKey)
		s.fail(&fx, op, "Failed to load rovers", roverErr)
	} else {
		s.rovers.replace(rovers, roverKey)
	}

	if obstacleErr != nil {
		s.logger.Warn("failed to load obstacles", "error", obstacleErr)
		s.obstacles.replace(nil, obstacleKey)
	} else {
		s.obstacles.replace(obstacles, obstacleKey)
	}

	if _, ok := s.rovers.get(s.selected); !ok {
		s.selected = core.NoSelection
	}
	if s.selected == core.NoSelection {
		if id, ok := s.rovers.first(); ok {
			s.selected = id
		}
	}
	s.loading = false

	if roverErr == nil {
		fx.events = append(fx.events, core.FleetEvent{
			Kind:     core.EventFleetLoaded,
			Time:     s.now(),
			RoverID:  s.selected,
			Duration: s.now().Sub(start),
			Message:  fmt.Sprintf("%d rovers, %d obstacles", s.rovers.len(), s.obstacles.len()),
		})
	}
	fx.changed = true
	s.mu.Unlock()

	s.flush(fx)
	s.logger.Debug("fleet loaded", "rovers", len(rovers), "obstacles", len(obstacles), "took", s.now().Sub(start))

	if roverErr != nil {
		return fmt.Errorf("loading rovers: %w", roverErr)
	}
	return nil
}

// AddRover spawns a rover at a random cell with a random heading and selects it.
func (s *Store) AddRover(ctx context.Context) (core.Rover, error) {
	const op = "add rover"

	x, y := s.randomCell()
	dir := core.Directions[s.intN(len(core.Directions))]

	rover, err := s.gw.CreateRover(ctx, x, y, dir)

	var fx effects
	if err != nil {
		if errors.Is(err, gateway.ErrValidation) {
			s.logger.Error("spawn produced invalid input", "x", x, "y", y, "direction", dir)
		}
		s.fail(&fx, op, "Failed to create rover", err)
		s.flush(fx)
		return core.Rover{}, err
	}

	s.mu.Lock()
	s.rovers.set(rover.ID, rover)
	s.selected = rover.ID
	fx.events = append(fx.events, core.FleetEvent{
		Kind:    core.EventRoverAdded,
		Time:    s.now(),
		RoverID: rover.ID,
		Rover:   &rover,
	})
	fx.changed = true
	s.mu.Unlock()

	s.flush(fx)
	return rover, nil
}

// DeleteRover removes a rover on the server, then locally. A deleted
// selection moves to the first remaining rover.
func (s *Store) DeleteRover(ctx context.Context, id int) error {
	const op = "delete rover"

	var fx effects
	if err := s.gw.DeleteRover(ctx, id); err != nil {
		s.fail(&fx, op, "Failed to delete rover", err)
		s.flush(fx)
		return err
	}

	s.mu.Lock()
	s.rovers.remove(id)
	if s.selected == id {
		s.selected = core.NoSelection
		if first, ok := s.rovers.first(); ok {
			s.selected = first
		}
	}
	fx.events = append(fx.events, core.FleetEvent{
		Kind:    core.EventRoverDeleted,
		Time:    s.now(),
		RoverID: id,
	})
	fx.changed = true
	s.mu.Unlock()

	s.flush(fx)
	return nil
}

// SelectRover changes the selection. It never touches the network.
// Passing core.NoSelection clears it.
func (s *Store) SelectRover(id int) error {
	var fx effects

	s.mu.Lock()
	if id != core.NoSelection {
		if _, ok := s.rovers.get(id); !ok {
			s.mu.Unlock()
			return fmt.Errorf("select %d: %w", id, ErrUnknownRover)
		}
	}
	if s.selected != id {
		s.selected = id
		fx.events = append(fx.events, core.FleetEvent{
			Kind:    core.EventRoverSelected,
			Time:    s.now(),
			RoverID: id,
		})
		fx.changed = true
	}
	s.mu.Unlock()

	s.flush(fx)
	return nil
}

// SendCommands runs commands on the selected rover and merges the result.
// It is a no-op returning a zero Outcome when nothing is selected. On
// failure the snapshot is left untouched. If the rover was deleted while the
// batch was in flight the result is dropped without notification or event
// and ErrUnknownRover is returned.
func (s *Store) SendCommands(ctx context.Context, commands []core.Command) (gateway.Outcome, error) {
	const op = "send commands"

	s.mu.Lock()
	id := s.selected
	s.mu.Unlock()
	if id == core.NoSelection {
		return gateway.Outcome{}, nil
	}

	start := s.now()
	out, err := s.gw.SendCommands(ctx, id, commands)

	var fx effects
	if err != nil {
		s.fail(&fx, op, "Failed to send commands", err)
		s.flush(fx)
		return gateway.Outcome{}, err
	}

	s.mu.Lock()
	merged, ok := s.mergeLocked(out.Rover)
	if !ok {
		s.mu.Unlock()
		s.logger.Warn("command result for rover no longer in fleet", "rover", id, "outcome", out.Kind)
		return gateway.Outcome{}, fmt.Errorf("send commands to %d: %w", id, ErrUnknownRover)
	}
	fx.changed = true

	kind := core.EventRoverMoved
	if out.Kind == gateway.ObstacleStopped {
		kind = core.EventObstacleStopped
		s.note(&fx, LevelWarn, op, out.Message, nil)
	}
	fx.events = append(fx.events, core.FleetEvent{
		Kind:     kind,
		Time:     s.now(),
		RoverID:  id,
		Rover:    &merged,
		Commands: commands,
		Message:  out.Message,
		Duration: s.now().Sub(start),
	})
	s.mu.Unlock()

	s.flush(fx)
	out.Rover = merged
	return out, nil
}

// mergeLocked folds server fields into the existing entry. Rovers deleted
// meanwhile are not resurrected.
func (s *Store) mergeLocked(r core.Rover) (core.Rover, bool) {
	cur, ok := s.rovers.get(r.ID)
	if !ok {
		return r, false
	}
	cur.X = r.X
	cur.Y = r.Y
	if r.Direction != "" {
		cur.Direction = r.Direction
	}
	cur.Color = core.RoverColor(cur.ID)
	s.rovers.set(cur.ID, cur)
	return cur, true
}

// AddObstacle places an obstacle at (x, y).
func (s *Store) AddObstacle(ctx context.Context, x, y int) (core.Obstacle, error) {
	return s.addObstacle(ctx, "add obstacle", "Failed to add obstacle", x, y)
}

// AddRandomObstacle places an obstacle at a random cell.
func (s *Store) AddRandomObstacle(ctx context.Context) (core.Obstacle, error) {
	x, y := s.randomCell()
	return s.addObstacle(ctx, "add random obstacle", "Failed to add random obstacle", x, y)
}

func (s *Store) addObstacle(ctx context.Context, op, failure string, x, y int) (core.Obstacle, error) {
	obstacle, err := s.gw.CreateObstacle(ctx, x, y)

	var fx effects
	if err != nil {
		s.fail(&fx, op, failure, err)
		s.flush(fx)
		return core.Obstacle{}, err
	}

	s.mu.Lock()
	s.obstacles.set(obstacle.ID, obstacle)
	s.note(&fx, LevelInfo, op, fmt.Sprintf("Added obstacle at (%d, %d)", obstacle.X, obstacle.Y), nil)
	fx.events = append(fx.events, core.FleetEvent{
		Kind:       core.EventObstacleAdded,
		Time:       s.now(),
		ObstacleID: obstacle.ID,
		Obstacle:   &obstacle,
	})
	fx.changed = true
	s.mu.Unlock()

	s.flush(fx)
	return obstacle, nil
}

// DeleteObstacle removes an obstacle on the server, then locally.
func (s *Store) DeleteObstacle(ctx context.Context, id int) error {
	const op = "delete obstacle"

	var fx effects
	if err := s.gw.DeleteObstacle(ctx, id); err != nil {
		s.fail(&fx, op, "Failed to delete obstacle", err)
		s.flush(fx)
		return err
	}

	s.mu.Lock()
	s.obstacles.remove(id)
	fx.events = append(fx.events, core.FleetEvent{
		Kind:       core.EventObstacleDeleted,
		Time:       s.now(),
		ObstacleID: id,
	})
	fx.changed = true
	s.mu.Unlock()

	s.flush(fx)
	return nil
}

func (s *Store) randomCell() (int, int) {
	span := core.GridMax - core.GridMin + 1
	return core.GridMin + s.intN(span), core.GridMin + s.intN(span)
}

func roverKey(r core.Rover) int       { return r.ID }
func obstacleKey(o core.Obstacle) int { return o.ID }
