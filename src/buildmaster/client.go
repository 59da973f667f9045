// Package buildmaster provides a client for the remote BuildMaster API, the
// server that actually executes builds. The console only observes and controls
// builds through these endpoints; it never runs anything itself.
package buildmaster

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"buildmaster-console/src/build"
)

const (
	// DefaultTimeout bounds one-shot requests (start, logs, history).
	DefaultTimeout = 30 * time.Second

	// DefaultPollTimeout bounds status and active-build probes. It is kept
	// shorter than the 2s poll interval so a hung request can never stack
	// up behind the next scheduled poll.
	DefaultPollTimeout = 1500 * time.Millisecond
)

// Client is a BuildMaster API client.
type Client struct {
	baseURL      string
	sessionToken string
	httpClient   *http.Client
	pollClient   *http.Client
}

// NewClient creates a new BuildMaster API client.
// baseURL is the server root, e.g. "http://localhost:8000".
func NewClient(baseURL, sessionToken string) *Client {
	return &Client{
		baseURL:      baseURL,
		sessionToken: sessionToken,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		pollClient: &http.Client{
			Timeout: DefaultPollTimeout,
		},
	}
}

// APIError is a structured error returned by the remote API. Message carries
// the remote-provided text verbatim; the console never rewrites it.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// errorDetail matches the error body shape of the remote API.
type errorDetail struct {
	Detail string `json:"detail"`
}

// CancelResult is the remote acknowledgment of a cancel request.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ActiveBuild describes a build the remote reports as currently in flight.
type ActiveBuild struct {
	BuildID   string       `json:"build_id"`
	Status    build.Status `json:"status"`
	StartedAt time.Time    `json:"started_at"`
}

// ActiveInfo is the response of the active-build probe.
type ActiveInfo struct {
	HasActiveBuild bool         `json:"has_active_build"`
	ActiveBuild    *ActiveBuild `json:"active_build,omitempty"`
}

// LogsResponse wraps a tail of a build's log file.
type LogsResponse struct {
	BuildID string `json:"build_id"`
	Logs    string `json:"logs"`
}

// HistoryResponse lists recent builds, newest first.
type HistoryResponse struct {
	Builds []build.Snapshot `json:"builds"`
	Total  int              `json:"total"`
}

// StartBuild asks the remote to begin a build with the given configuration.
// The remote rejects the request if another build is already active.
func (c *Client) StartBuild(ctx context.Context, cfg build.Config) (*build.Snapshot, error) {
	body := struct {
		Config build.Config `json:"config"`
	}{Config: cfg}

	var snap build.Snapshot
	if err := c.do(ctx, c.httpClient, http.MethodPost, "/api/build/start", body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// BuildStatus fetches the current status snapshot for a build.
func (c *Client) BuildStatus(ctx context.Context, buildID string) (*build.Snapshot, error) {
	var snap build.Snapshot
	endpoint := fmt.Sprintf("/api/build/status/%s", buildID)
	if err := c.do(ctx, c.pollClient, http.MethodGet, endpoint, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// CancelBuild asks the remote to kill a running build.
func (c *Client) CancelBuild(ctx context.Context, buildID string) (*CancelResult, error) {
	var result CancelResult
	endpoint := fmt.Sprintf("/api/build/kill/%s", buildID)
	if err := c.do(ctx, c.httpClient, http.MethodPost, endpoint, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ActiveBuild checks whether any build is currently active on the remote.
// Used by the recovery loop, independent of any specific build handle.
func (c *Client) ActiveBuild(ctx context.Context) (*ActiveInfo, error) {
	var info ActiveInfo
	if err := c.do(ctx, c.pollClient, http.MethodGet, "/api/build/active", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// BuildLogs fetches the last n lines of a build's log output.
func (c *Client) BuildLogs(ctx context.Context, buildID string, lines int) (string, error) {
	var resp LogsResponse
	endpoint := fmt.Sprintf("/api/build/logs/%s?lines=%d", buildID, lines)
	if err := c.do(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp); err != nil {
		return "", err
	}
	return resp.Logs, nil
}

// BuildHistory fetches recent build outcomes from the remote, newest first.
func (c *Client) BuildHistory(ctx context.Context, limit int) ([]build.Snapshot, error) {
	var resp HistoryResponse
	endpoint := fmt.Sprintf("/api/build/history?limit=%d", limit)
	if err := c.do(ctx, c.httpClient, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Builds, nil
}

// do sends one request and decodes the JSON response into out (if non-nil).
func (c *Client) do(ctx context.Context, hc *http.Client, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", c.sessionToken))
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := hc.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var detail errorDetail
		if err := json.Unmarshal(respBody, &detail); err == nil && detail.Detail != "" {
			return &APIError{StatusCode: resp.StatusCode, Message: detail.Detail}
		}
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    fmt.Sprintf("request failed with status %d", resp.StatusCode),
		}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
