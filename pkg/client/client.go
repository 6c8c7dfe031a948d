package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/psantana5/lumirender/pkg/models"
	"github.com/psantana5/lumirender/pkg/retry"
	"github.com/psantana5/lumirender/pkg/scheduler"
)

// Mode actions accepted by SetMode
const (
	ActionInteractive  = "interactive"
	ActionRecording    = "recording"
	ActionEndRecording = "end-recording"
	ActionStop         = "stop"
)

// StatusError is returned for non-2xx responses
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("API error (status %d): %s", e.Code, e.Body)
}

// IsConflict reports whether err is a 409 from a rejected mode change
func IsConflict(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusConflict
}

// Client talks to a lumirender API server
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	retry      retry.Config
}

// NewClient creates a client for baseURL. apiKey may be empty.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retry: retry.DefaultConfig(),
	}
}

// SetRetry replaces the retry policy used for GET requests. State-changing
// requests are sent once.
func (c *Client) SetRetry(cfg retry.Config) {
	c.retry = cfg
}

// FrameInfo describes one stored frame
type FrameInfo struct {
	Index  int   `json:"index"`
	TimeMS int64 `json:"time_ms"`
}

// Status fetches the scheduler status
func (c *Client) Status() (*scheduler.Status, error) {
	var st scheduler.Status
	if err := c.do("GET", "/status", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// SetMode posts one of the mode actions and returns the resulting status
func (c *Client) SetMode(action string) (*scheduler.Status, error) {
	switch action {
	case ActionInteractive, ActionRecording, ActionEndRecording, ActionStop:
	default:
		return nil, fmt.Errorf("unknown mode action %q", action)
	}
	var st scheduler.Status
	if err := c.do("POST", "/mode/"+action, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Reset resets the scheduler
func (c *Client) Reset() (*scheduler.Status, error) {
	var st scheduler.Status
	if err := c.do("POST", "/reset", nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// Devices lists the rig
func (c *Client) Devices() ([]*models.Device, error) {
	var resp struct {
		Devices []*models.Device `json:"devices"`
	}
	if err := c.do("GET", "/devices", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Devices, nil
}

// SetParams updates device parameters
func (c *Client) SetParams(id string, params map[string]float64) (*models.Device, error) {
	var d models.Device
	if err := c.do("PUT", "/devices/"+id, params, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Frames lists frames of the memory store, or the archive when archive is set
func (c *Client) Frames(archive bool) ([]FrameInfo, error) {
	path := "/frames"
	if archive {
		path += "?store=archive"
	}
	var resp struct {
		Frames []FrameInfo `json:"frames"`
	}
	if err := c.do("GET", path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Frames, nil
}

func (c *Client) do(method, path string, body, out interface{}) error {
	if method != http.MethodGet {
		return c.send(method, path, body, out)
	}
	return retry.Do(context.Background(), c.retry, func() error {
		err := c.send(method, path, body, out)
		var se *StatusError
		if errors.As(err, &se) && se.Code < 500 {
			return retry.Permanent(err)
		}
		return err
	})
}

func (c *Client) send(method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach API: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(resp.Body)
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
