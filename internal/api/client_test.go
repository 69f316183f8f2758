// internal/api/client_test.go
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8080/api", APIKey: "secret123"})

	if c == nil {
		t.Fatal("New returned nil")
	}
	if c.baseURL != "http://localhost:8080/api" {
		t.Errorf("expected baseURL=http://localhost:8080/api, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.obstaclesPath != "/obstacles" {
		t.Errorf("expected default obstacles path, got %s", c.obstaclesPath)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNew_TrimsTrailingSlash(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:8080/api/", ObstaclesPath: "rovers/obstacles/"})
	assert.Equal(t, "http://localhost:8080/api", c.baseURL)
	assert.Equal(t, "/rovers/obstacles", c.obstaclesPath)
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rovers" {
			t.Errorf("expected path /rovers, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	require.NoError(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := New(Config{BaseURL: "http://localhost:59999", Timeout: time.Second}) // unlikely to be listening
	assert.Error(t, c.Healthcheck(context.Background()))
}

func TestHealthcheck_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	err := c.Healthcheck(context.Background())
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
}

func TestListRovers(t *testing.T) {
	body := `{"_embedded":{"roverList":[]}}`
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/rovers", r.URL.Path)
		_, _ = w.Write([]byte(body))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL + "/api"})
	data, err := c.ListRovers(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, body, string(data))
}

func TestCreateRover_SendsBody(t *testing.T) {
	var received map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rovers", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.Equal(t, "key", r.Header.Get("X-API-Key"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"x":4,"y":5,"direction":"W"}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, APIKey: "key"})
	data, err := c.CreateRover(context.Background(), 4, 5, "W")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"id":9`)
	assert.Equal(t, map[string]any{"x": 4.0, "y": 5.0, "direction": "W"}, received)
}

func TestSendCommands_PreservesOrder(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rovers/3/commands", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"id":3,"x":0,"y":2,"direction":"E"}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	_, err := c.SendCommands(context.Background(), 3, []string{"f", "f", "r", "b", "l"})
	require.NoError(t, err)
	assert.Equal(t, []string{"f", "f", "r", "b", "l"}, received)
}

func TestDeleteRover(t *testing.T) {
	var method, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method, path = r.Method, r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	require.NoError(t, c.DeleteRover(context.Background(), 12))
	assert.Equal(t, http.MethodDelete, method)
	assert.Equal(t, "/rovers/12", path)
}

func TestDeleteRover_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL})
	err := c.DeleteRover(context.Background(), 1)

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusNotFound, statusErr.StatusCode)
}

func TestObstacleEndpoints(t *testing.T) {
	var calls []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		if r.Method == http.MethodPost {
			body, _ := io.ReadAll(r.Body)
			assert.JSONEq(t, `{"x":1,"y":2}`, string(body))
			_, _ = w.Write([]byte(`{"id":1,"x":1,"y":2}`))
			return
		}
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := New(Config{BaseURL: server.URL, ObstaclesPath: "/rovers/obstacles"})
	ctx := context.Background()

	_, err := c.ListObstacles(ctx)
	require.NoError(t, err)
	_, err = c.CreateObstacle(ctx, 1, 2)
	require.NoError(t, err)
	require.NoError(t, c.DeleteObstacle(ctx, 1))

	assert.Equal(t, []string{
		"GET /rovers/obstacles",
		"POST /rovers/obstacles",
		"DELETE /rovers/obstacles/1",
	}, calls)
}

func TestRequest_HonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	c := New(Config{BaseURL: server.URL})
	_, err := c.ListRovers(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
