// Package gateway sits between the fleet store and the rover API. It
// validates client input before anything is sent, turns raw responses into
// core entities and classifies every failure into the error taxonomy in
// errors.go.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/roverfleet/console/internal/normalize"
	"github.com/roverfleet/console/pkg/core"
)

// Transport is the raw rover API. *api.Client satisfies it.
type Transport interface {
	Healthcheck(ctx context.Context) error
	ListRovers(ctx context.Context) ([]byte, error)
	CreateRover(ctx context.Context, x, y int, dir core.Direction) ([]byte, error)
	DeleteRover(ctx context.Context, id int) error
	SendCommands(ctx context.Context, id int, commands []string) ([]byte, error)
	ListObstacles(ctx context.Context) ([]byte, error)
	CreateObstacle(ctx context.Context, x, y int) ([]byte, error)
	DeleteObstacle(ctx context.Context, id int) error
}

// Gateway is stateless between calls.
type Gateway struct {
	transport Transport
	logger    *slog.Logger

	requests metric.Int64Counter
	outcomes metric.Int64Counter
}

// New creates a Gateway over the given transport.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(t Transport, logger *slog.Logger) (*Gateway, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gateway{transport: t, logger: logger}

	m := meter()
	var err error

	g.requests, err = m.Int64Counter(
		"gateway.requests",
		metric.WithDescription("Requests issued to the rover API by operation and result"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating requests counter: %w", err)
	}

	g.outcomes, err = m.Int64Counter(
		"gateway.command.outcomes",
		metric.WithDescription("Command batches by outcome"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating outcomes counter: %w", err)
	}

	return g, nil
}

// Healthcheck reports whether the API answers at all.
func (g *Gateway) Healthcheck(ctx context.Context) error {
	if err := g.transport.Healthcheck(ctx); err != nil {
		return &TransportError{Action: "reach rover API", Err: err}
	}
	return nil
}

// FetchRovers returns every valid rover the server knows about. Invalid
// entries are dropped silently.
func (g *Gateway) FetchRovers(ctx context.Context) ([]core.Rover, error) {
	const action = "fetch rovers"

	data, err := g.transport.ListRovers(ctx)
	if err != nil {
		return nil, g.transportFailed(ctx, action, err)
	}
	rovers, err := normalize.Fleet(data)
	if err != nil {
		return nil, g.invalidData(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return rovers, nil
}

// FetchObstacles returns every valid obstacle.
func (g *Gateway) FetchObstacles(ctx context.Context) ([]core.Obstacle, error) {
	const action = "fetch obstacles"

	data, err := g.transport.ListObstacles(ctx)
	if err != nil {
		return nil, g.transportFailed(ctx, action, err)
	}
	obstacles, err := normalize.Obstacles(data)
	if err != nil {
		return nil, g.invalidData(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return obstacles, nil
}

// CreateRover validates the spawn and asks the server to create the rover.
func (g *Gateway) CreateRover(ctx context.Context, x, y int, dir core.Direction) (core.Rover, error) {
	const action = "create rover"

	if !core.ValidateCoordinates(x, y) {
		return core.Rover{}, g.invalidInput(ctx, action, &ValidationError{Field: "coordinates", Value: [2]int{x, y}})
	}
	if !core.ValidateDirection(string(dir)) {
		return core.Rover{}, g.invalidInput(ctx, action, &ValidationError{Field: "direction", Value: dir})
	}

	data, err := g.transport.CreateRover(ctx, x, y, dir)
	if err != nil {
		return core.Rover{}, g.transportFailed(ctx, action, err)
	}
	rover, err := normalize.SingleRover(data)
	if err != nil {
		return core.Rover{}, g.invalidData(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return rover, nil
}

// DeleteRover removes a rover on the server.
func (g *Gateway) DeleteRover(ctx context.Context, id int) error {
	const action = "delete rover"

	if err := g.transport.DeleteRover(ctx, id); err != nil {
		return g.transportFailed(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return nil
}

// SendCommands validates and sends one command batch for roverID. The rover
// id is not checked here; callers only send to rovers they hold.
func (g *Gateway) SendCommands(ctx context.Context, roverID int, commands []core.Command) (Outcome, error) {
	const action = "send commands"

	tokens := core.CommandStrings(commands)
	if !core.ValidateCommands(tokens) {
		return Outcome{}, g.invalidInput(ctx, action, &ValidationError{Field: "commands", Value: tokens})
	}

	data, err := g.transport.SendCommands(ctx, roverID, tokens)
	if err != nil {
		return Outcome{}, g.transportFailed(ctx, action, err)
	}

	res, err := normalize.CommandResult(data, roverID)
	if err != nil {
		return Outcome{}, g.invalidData(ctx, action, err)
	}

	out := Outcome{Kind: Executed, Rover: res.Rover}
	if res.ObstacleDetected {
		out.Kind = ObstacleStopped
		out.Message = res.Message
		if out.Message == "" {
			out.Message = DefaultObstacleMessage
		}
	}

	g.record(ctx, action, "ok")
	g.outcomes.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", out.Kind.String())))
	g.logger.Debug("commands executed", "rover", roverID, "commands", len(tokens), "outcome", out.Kind.String())
	return out, nil
}

// CreateObstacle asks the server to place an obstacle at (x, y).
func (g *Gateway) CreateObstacle(ctx context.Context, x, y int) (core.Obstacle, error) {
	const action = "create obstacle"

	if !core.ValidateCoordinates(x, y) {
		return core.Obstacle{}, g.invalidInput(ctx, action, &ValidationError{Field: "coordinates", Value: [2]int{x, y}})
	}

	data, err := g.transport.CreateObstacle(ctx, x, y)
	if err != nil {
		return core.Obstacle{}, g.transportFailed(ctx, action, err)
	}
	obstacle, err := normalize.SingleObstacle(data)
	if err != nil {
		return core.Obstacle{}, g.invalidData(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return obstacle, nil
}

// DeleteObstacle removes an obstacle on the server.
func (g *Gateway) DeleteObstacle(ctx context.Context, id int) error {
	const action = "delete obstacle"

	if err := g.transport.DeleteObstacle(ctx, id); err != nil {
		return g.transportFailed(ctx, action, err)
	}
	g.record(ctx, action, "ok")
	return nil
}

func (g *Gateway) invalidInput(ctx context.Context, action string, err *ValidationError) error {
	g.logger.Warn("rejected request before sending", "action", action, "field", err.Field, "value", err.Value)
	g.record(ctx, action, "invalid_input")
	return err
}

func (g *Gateway) transportFailed(ctx context.Context, action string, cause error) error {
	g.logger.Error("request failed", "action", action, "error", cause)
	g.record(ctx, action, "transport_error")
	return &TransportError{Action: action, Err: cause}
}

func (g *Gateway) invalidData(ctx context.Context, action string, cause error) error {
	g.logger.Error("invalid server data", "action", action, "error", cause)
	g.record(ctx, action, "invalid_data")
	return &InvalidServerDataError{Action: action, Err: cause}
}

func (g *Gateway) record(ctx context.Context, action, result string) {
	g.requests.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", action),
		attribute.String("result", result),
	))
}
