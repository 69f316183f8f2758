// internal/api/client.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/roverfleet/console/pkg/core"
)

// maxBodySize caps how much of a response body is read.
const maxBodySize = 4 << 20

// Config holds the settings for the rover API client.
type Config struct {
	BaseURL       string
	APIKey        string
	ObstaclesPath string
	Timeout       time.Duration
}

// StatusError is returned when the server answers with a non-2xx status.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
}

// Client handles communication with the remote rover API.
// Methods return raw response bodies; interpreting them is left to callers.
type Client struct {
	baseURL       string
	apiKey        string
	obstaclesPath string
	httpClient    *http.Client
}

// New creates a new API client.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	obstacles := cfg.ObstaclesPath
	if obstacles == "" {
		obstacles = "/obstacles"
	}
	if !strings.HasPrefix(obstacles, "/") {
		obstacles = "/" + obstacles
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		obstaclesPath: strings.TrimRight(obstacles, "/"),
		httpClient:    &http.Client{Timeout: timeout},
	}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Healthcheck checks if the rover API is reachable.
func (c *Client) Healthcheck(ctx context.Context) error {
	_, err := c.do(ctx, http.MethodGet, "/rovers", nil)
	if err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// ListRovers fetches the rover collection.
func (c *Client) ListRovers(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, "/rovers", nil)
}

type createRoverRequest struct {
	X         int            `json:"x"`
	Y         int            `json:"y"`
	Direction core.Direction `json:"direction"`
}

// CreateRover asks the server to place a rover at (x, y) facing dir.
func (c *Client) CreateRover(ctx context.Context, x, y int, dir core.Direction) ([]byte, error) {
	return c.do(ctx, http.MethodPost, "/rovers", createRoverRequest{X: x, Y: y, Direction: dir})
}

// DeleteRover removes a rover. Any response body is discarded.
func (c *Client) DeleteRover(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, "/rovers/"+strconv.Itoa(id), nil)
	return err
}

// SendCommands posts a command batch as a JSON array of tokens, in order.
func (c *Client) SendCommands(ctx context.Context, id int, commands []string) ([]byte, error) {
	if commands == nil {
		commands = []string{}
	}
	return c.do(ctx, http.MethodPost, "/rovers/"+strconv.Itoa(id)+"/commands", commands)
}

// ListObstacles fetches the obstacle collection.
func (c *Client) ListObstacles(ctx context.Context) ([]byte, error) {
	return c.do(ctx, http.MethodGet, c.obstaclesPath, nil)
}

type createObstacleRequest struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// CreateObstacle asks the server to place an obstacle at (x, y).
func (c *Client) CreateObstacle(ctx context.Context, x, y int) ([]byte, error) {
	return c.do(ctx, http.MethodPost, c.obstaclesPath, createObstacleRequest{X: x, Y: y})
}

// DeleteObstacle removes an obstacle.
func (c *Client) DeleteObstacle(ctx context.Context, id int) error {
	_, err := c.do(ctx, http.MethodDelete, c.obstaclesPath+"/"+strconv.Itoa(id), nil)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json, application/hal+json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s request failed: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Method: method, Path: path, StatusCode: resp.StatusCode}
	}
	return data, nil
}
