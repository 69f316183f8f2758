package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roverfleet/console/pkg/core"
)

func TestRover_Valid(t *testing.T) {
	r, err := Rover(Record{"id": 1.0, "x": 0.0, "y": 5.0, "direction": "N"})
	require.NoError(t, err)
	assert.Equal(t, core.Rover{ID: 1, X: 0, Y: 5, Direction: core.North, Color: core.RoverColor(1)}, r)
}

func TestRover_Rejections(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"missing id", Record{"x": 1.0, "y": 1.0, "direction": "N"}},
		{"zero id", Record{"id": 0.0, "x": 1.0, "y": 1.0, "direction": "N"}},
		{"bad direction", Record{"id": 1.0, "x": 1.0, "y": 1.0, "direction": "INVALID"}},
		{"lowercase direction", Record{"id": 1.0, "x": 1.0, "y": 1.0, "direction": "n"}},
		{"x out of range", Record{"id": 1.0, "x": 100.0, "y": 1.0, "direction": "N"}},
		{"negative y", Record{"id": 1.0, "x": 1.0, "y": -1.0, "direction": "N"}},
		{"fractional x", Record{"id": 1.0, "x": 1.5, "y": 1.0, "direction": "N"}},
		{"string x", Record{"id": 1.0, "x": "1", "y": 1.0, "direction": "N"}},
		{"missing direction", Record{"id": 1.0, "x": 1.0, "y": 1.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Rover(tt.rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrRejected)
		})
	}
}

func TestFleet_HalEnvelope(t *testing.T) {
	payload := `{"_embedded":{"roverList":[
		{"id":1,"x":0,"y":0,"direction":"N","_links":{"self":{"href":"/rovers/1"}}},
		{"id":2,"x":5,"y":5,"direction":"E"}
	]},"_links":{"self":{"href":"/rovers"}}}`

	rovers, err := Fleet([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rovers, 2)
	assert.Equal(t, core.Rover{ID: 1, X: 0, Y: 0, Direction: core.North, Color: core.Palette[1]}, rovers[0])
	assert.Equal(t, 2, rovers[1].ID)
}

func TestFleet_DropsInvalidEntries(t *testing.T) {
	payload := `{"_embedded":{"roverList":[
		{"id":1,"x":0,"y":0,"direction":"N"},
		{"id":2,"x":0,"y":0,"direction":"INVALID"}
	]}}`

	rovers, err := Fleet([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rovers, 1)
	assert.Equal(t, 1, rovers[0].ID)
}

func TestFleet_EmptyShapes(t *testing.T) {
	for _, payload := range []string{``, `{}`, `[]`, `{"_embedded":{}}`, `{"_links":{}}`, `null`, `{"_embedded":{"roverList":[]}}`} {
		rovers, err := Fleet([]byte(payload))
		require.NoError(t, err, payload)
		assert.NotNil(t, rovers, payload)
		assert.Empty(t, rovers, payload)
	}
}

func TestFleet_AlternativeShapes(t *testing.T) {
	shapes := []string{
		`[{"id":3,"x":1,"y":2,"direction":"S"}]`,
		`{"rovers":[{"id":3,"x":1,"y":2,"direction":"S"}]}`,
		`{"_embedded":{"rovers":[{"id":3,"x":1,"y":2,"direction":"S"}]}}`,
		`{"_embedded":{"someOtherList":[{"id":3,"x":1,"y":2,"direction":"S"}]}}`,
	}
	for _, payload := range shapes {
		rovers, err := Fleet([]byte(payload))
		require.NoError(t, err, payload)
		require.Len(t, rovers, 1, payload)
		assert.Equal(t, core.South, rovers[0].Direction)
	}
}

func TestFleet_SkipsNonObjectsAndDuplicates(t *testing.T) {
	payload := `[1, "x", null, {"id":4,"x":1,"y":1,"direction":"W"}, {"id":4,"x":9,"y":9,"direction":"E"}]`
	rovers, err := Fleet([]byte(payload))
	require.NoError(t, err)
	require.Len(t, rovers, 1)
	assert.Equal(t, 1, rovers[0].X)
}

func TestFleet_MalformedJSON(t *testing.T) {
	_, err := Fleet([]byte(`{"_embedded":`))
	assert.Error(t, err)
}

func TestObstacles(t *testing.T) {
	payload := `{"_embedded":{"obstacleList":[
		{"id":1,"x":3,"y":4},
		{"id":2,"x":300,"y":4},
		{"x":1,"y":1}
	]}}`

	obstacles, err := Obstacles([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []core.Obstacle{{ID: 1, X: 3, Y: 4}}, obstacles)

	obstacles, err = Obstacles([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, obstacles)
}

func TestSingleRover(t *testing.T) {
	for _, payload := range []string{
		`{"id":1,"x":0,"y":0,"direction":"N"}`,
		`{"_embedded":{"rover":{"id":1,"x":0,"y":0,"direction":"N"}}}`,
		`{"rover":{"id":1,"x":0,"y":0,"direction":"N"}}`,
	} {
		r, err := SingleRover([]byte(payload))
		require.NoError(t, err, payload)
		assert.Equal(t, 1, r.ID)
	}

	_, err := SingleRover([]byte(`{}`))
	assert.ErrorIs(t, err, ErrRejected)

	_, err = SingleRover([]byte(`{"id":1,"x":0,"y":0,"direction":"INVALID"}`))
	assert.ErrorIs(t, err, ErrRejected)

	_, err = SingleRover([]byte(`not json`))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestSingleObstacle(t *testing.T) {
	o, err := SingleObstacle([]byte(`{"id":7,"x":10,"y":11}`))
	require.NoError(t, err)
	assert.Equal(t, core.Obstacle{ID: 7, X: 10, Y: 11}, o)

	_, err = SingleObstacle([]byte(`{"id":7,"x":-1,"y":11}`))
	assert.ErrorIs(t, err, ErrRejected)
}

func TestCommandResult_Plain(t *testing.T) {
	res, err := CommandResult([]byte(`{"id":1,"x":1,"y":0,"direction":"N"}`), 1)
	require.NoError(t, err)
	assert.False(t, res.ObstacleDetected)
	assert.Equal(t, core.Rover{ID: 1, X: 1, Y: 0, Direction: core.North, Color: core.RoverColor(1)}, res.Rover)
}

func TestCommandResult_ObstacleVariants(t *testing.T) {
	variants := []string{
		`{"rover":{"x":0,"y":1,"direction":"N"},"obstacleDetected":true,"message":"Obstacle detected"}`,
		`{"rover":{"id":1,"x":0,"y":1,"direction":"N"},"status":"OBSTACLE_DETECTED","message":"Obstacle detected"}`,
		`{"id":1,"x":0,"y":1,"direction":"N","obstacleDetected":true,"message":"Obstacle detected"}`,
		`{"_embedded":{"rover":{"id":1,"x":0,"y":1,"direction":"N"}},"status":"stopped by obstacle","message":"Obstacle detected"}`,
	}
	for _, payload := range variants {
		res, err := CommandResult([]byte(payload), 1)
		require.NoError(t, err, payload)
		assert.True(t, res.ObstacleDetected, payload)
		assert.Equal(t, "Obstacle detected", res.Message, payload)
		assert.Equal(t, 1, res.Rover.ID, payload)
		assert.Equal(t, 0, res.Rover.X, payload)
		assert.Equal(t, 1, res.Rover.Y, payload)
	}
}

func TestCommandResult_FalseDiscriminator(t *testing.T) {
	for _, payload := range []string{
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E"},"obstacleDetected":false,"status":"OK"}`,
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E"},"obstacleDetected":false,"status":"COMPLETED_WITHOUT_OBSTACLE"}`,
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E"},"obstacleDetected":false,"status":"OBSTACLE_DETECTED"}`,
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E"},"status":"NO_OBSTACLE"}`,
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E"},"status":"COMPLETED_WITHOUT_OBSTACLE"}`,
		`{"rover":{"id":1,"x":2,"y":2,"direction":"E","obstacleDetected":true},"obstacleDetected":false}`,
		`{"id":1,"x":2,"y":2,"direction":"E","status":"no obstacle"}`,
	} {
		res, err := CommandResult([]byte(payload), 1)
		require.NoError(t, err, payload)
		assert.False(t, res.ObstacleDetected, payload)
	}
}

func TestCommandResult_StopStatuses(t *testing.T) {
	for _, status := range []string{"OBSTACLE", "obstacle_detected", "Obstacle-Stopped", " stopped by obstacle ", "BLOCKED_BY_OBSTACLE"} {
		res, err := CommandResult([]byte(`{"rover":{"id":1,"x":0,"y":1,"direction":"N"},"status":"`+status+`"}`), 1)
		require.NoError(t, err, status)
		assert.True(t, res.ObstacleDetected, status)
	}
}

func TestCommandResult_Rejections(t *testing.T) {
	for _, payload := range []string{
		`{"id":1,"x":0,"y":0,"direction":"INVALID"}`,
		`{"id":2,"x":0,"y":0,"direction":"N"}`,
		`{}`,
		`[]`,
		``,
	} {
		_, err := CommandResult([]byte(payload), 1)
		assert.ErrorIs(t, err, ErrRejected, payload)
	}
}
