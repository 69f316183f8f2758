// Package normalize converts the rover API's payloads into core entities.
//
// The server has shipped several incompatible response shapes (HAL envelopes,
// bare arrays, flat objects, differing obstacle-stop markers), so every
// function here accepts all of them and rejects individual entries instead of
// failing the whole payload.
package normalize

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/roverfleet/console/pkg/core"
)

// ErrRejected is matched by every *RejectedError.
var ErrRejected = errors.New("entry rejected")

// RejectedError reports why a raw entry could not become a core entity.
type RejectedError struct {
	Reason string
}

func (e *RejectedError) Error() string {
	return "entry rejected: " + e.Reason
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

func reject(format string, args ...any) error {
	return &RejectedError{Reason: fmt.Sprintf(format, args...)}
}

// Record is a loosely typed JSON object as decoded from the wire.
type Record map[string]any

var (
	roverCollectionKeys    = []string{"roverList", "rovers", "roverDtoList", "roverResponseList"}
	obstacleCollectionKeys = []string{"obstacleList", "obstacles", "obstacleDtoList"}
)

// Rover turns one raw record into a Rover. The record must carry a positive
// id, on-grid integer coordinates and a valid direction.
func Rover(rec Record) (core.Rover, error) {
	id, ok := intField(rec, "id")
	if !ok || id <= 0 {
		return core.Rover{}, reject("missing or invalid id")
	}
	return roverWithID(rec, id)
}

func roverWithID(rec Record, id int) (core.Rover, error) {
	x, okX := intField(rec, "x")
	y, okY := intField(rec, "y")
	if !okX || !okY || !core.ValidateCoordinates(x, y) {
		return core.Rover{}, reject("rover %d: invalid coordinates", id)
	}

	dir, _ := rec["direction"].(string)
	if !core.ValidateDirection(dir) {
		return core.Rover{}, reject("rover %d: invalid direction %q", id, dir)
	}

	return core.Rover{
		ID:        id,
		X:         x,
		Y:         y,
		Direction: core.Direction(dir),
		Color:     core.RoverColor(id),
	}, nil
}

// Obstacle turns one raw record into an Obstacle.
func Obstacle(rec Record) (core.Obstacle, error) {
	id, ok := intField(rec, "id")
	if !ok || id <= 0 {
		return core.Obstacle{}, reject("missing or invalid id")
	}
	x, okX := intField(rec, "x")
	y, okY := intField(rec, "y")
	if !okX || !okY || !core.ValidateCoordinates(x, y) {
		return core.Obstacle{}, reject("obstacle %d: invalid coordinates", id)
	}
	return core.Obstacle{ID: id, X: x, Y: y}, nil
}

// Fleet unwraps a rover collection response. Missing envelopes yield an
// empty slice and invalid entries are dropped. Only a body that is not JSON
// at all is an error.
func Fleet(payload []byte) ([]core.Rover, error) {
	v, err := decode(payload)
	if err != nil {
		return nil, err
	}

	items := collection(v, roverCollectionKeys)
	rovers := make([]core.Rover, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		r, err := Rover(rec)
		if err != nil || seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		rovers = append(rovers, r)
	}
	return rovers, nil
}

// Obstacles unwraps an obstacle collection response the same way Fleet does.
func Obstacles(payload []byte) ([]core.Obstacle, error) {
	v, err := decode(payload)
	if err != nil {
		return nil, err
	}

	items := collection(v, obstacleCollectionKeys)
	obstacles := make([]core.Obstacle, 0, len(items))
	seen := make(map[int]bool, len(items))
	for _, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			continue
		}
		o, err := Obstacle(rec)
		if err != nil || seen[o.ID] {
			continue
		}
		seen[o.ID] = true
		obstacles = append(obstacles, o)
	}
	return obstacles, nil
}

// SingleRover reads a creation response: either {"_embedded":{"rover":{..}}},
// {"rover":{..}} or the flat rover object.
func SingleRover(payload []byte) (core.Rover, error) {
	v, err := decode(payload)
	if err != nil {
		return core.Rover{}, reject("%v", err)
	}
	rec := single(v, "rover")
	if rec == nil {
		return core.Rover{}, reject("no rover in payload")
	}
	return Rover(rec)
}

// SingleObstacle reads an obstacle creation response.
func SingleObstacle(payload []byte) (core.Obstacle, error) {
	v, err := decode(payload)
	if err != nil {
		return core.Obstacle{}, reject("%v", err)
	}
	rec := single(v, "obstacle")
	if rec == nil {
		return core.Obstacle{}, reject("no obstacle in payload")
	}
	return Obstacle(rec)
}

// Result is a normalized command response.
type Result struct {
	Rover            core.Rover
	ObstacleDetected bool
	Message          string
}

// CommandResult reads the response to a command batch sent to roverID.
// The obstacle-stop variant is recognised by "obstacleDetected": true or,
// without that flag, by a status naming an obstacle stop such as
// "OBSTACLE_DETECTED". The returned rover may omit its id, in
// which case roverID is used; an id naming another rover is rejected.
func CommandResult(payload []byte, roverID int) (Result, error) {
	v, err := decode(payload)
	if err != nil {
		return Result{}, reject("%v", err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return Result{}, reject("command response is not an object")
	}

	var res Result
	stopped, decided := obstacleDetected(obj)
	if msg, ok := obj["message"].(string); ok {
		res.Message = msg
	}

	rec := single(obj, "rover")
	if rec == nil {
		return Result{}, reject("no rover in command response")
	}
	// The flat variant carries the discriminator on the rover itself.
	if !decided {
		stopped, _ = obstacleDetected(rec)
	}
	res.ObstacleDetected = stopped
	if res.Message == "" {
		if msg, ok := rec["message"].(string); ok {
			res.Message = msg
		}
	}

	id := roverID
	if _, present := rec["id"]; present {
		got, ok := intField(rec, "id")
		if !ok || got != roverID {
			return Result{}, reject("response names rover %v, expected %d", rec["id"], roverID)
		}
	}

	res.Rover, err = roverWithID(rec, id)
	if err != nil {
		return Result{}, err
	}
	return res, nil
}

// stopStatuses are the status values meaning the batch halted at an
// obstacle, after upper-casing and mapping spaces and hyphens to underscores.
var stopStatuses = map[string]bool{
	"OBSTACLE":            true,
	"OBSTACLE_DETECTED":   true,
	"OBSTACLE_STOP":       true,
	"OBSTACLE_STOPPED":    true,
	"STOPPED_BY_OBSTACLE": true,
	"BLOCKED_BY_OBSTACLE": true,
}

var statusReplacer = strings.NewReplacer(" ", "_", "-", "_")

// obstacleDetected reads the stop discriminator of obj. decided is false
// when obj carries neither a boolean obstacleDetected nor a status string.
// A boolean obstacleDetected wins over status.
func obstacleDetected(obj map[string]any) (stopped, decided bool) {
	if b, ok := obj["obstacleDetected"].(bool); ok {
		return b, true
	}
	if status, ok := obj["status"].(string); ok {
		key := statusReplacer.Replace(strings.ToUpper(strings.TrimSpace(status)))
		return stopStatuses[key], true
	}
	return false, false
}

func decode(payload []byte) (any, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 {
		return nil, nil
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	return v, nil
}

// collection finds the entity list inside a collection response.
func collection(v any, keys []string) []any {
	switch t := v.(type) {
	case []any:
		return t
	case map[string]any:
		if embedded, ok := t["_embedded"].(map[string]any); ok {
			for _, k := range keys {
				if list, ok := embedded[k].([]any); ok {
					return list
				}
			}
			return onlyArray(embedded)
		}
		for _, k := range keys {
			if list, ok := t[k].([]any); ok {
				return list
			}
		}
	}
	return nil
}

// onlyArray returns the sole array value of m, if m holds exactly one.
func onlyArray(m map[string]any) []any {
	var found []any
	n := 0
	for _, v := range m {
		if list, ok := v.([]any); ok {
			found = list
			n++
		}
	}
	if n != 1 {
		return nil
	}
	return found
}

func single(v any, key string) Record {
	obj, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	if embedded, ok := obj["_embedded"].(map[string]any); ok {
		if inner, ok := embedded[key].(map[string]any); ok {
			return inner
		}
	}
	if inner, ok := obj[key].(map[string]any); ok {
		return inner
	}
	if _, hasX := obj["x"]; !hasX {
		return nil
	}
	return obj
}

func intField(rec Record, key string) (int, bool) {
	switch n := rec[key].(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return int(i), true
		}
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return floatToInt(f)
	case float64:
		return floatToInt(n)
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) {
		return 0, false
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, false
	}
	return int(f), true
}
