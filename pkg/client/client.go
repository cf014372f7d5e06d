// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package client provides a Go client library for the Relief API.
//
// Relief runs local development projects behind local domains. This client
// library provides typed access to all Relief API endpoints: projects and
// their logs, git working copies, managed services, scripts, events and
// the configuration file.
//
// # Getting Started
//
// Create a client pointing to your Relief server:
//
//	c := client.New("http://127.0.0.1:7420")
//
// The client provides access to different API resources through sub-clients:
//
//	// List all projects
//	projects, err := c.Projects.List(ctx)
//
//	// Start a project and wait until it is listening
//	p, err := c.Projects.Start(ctx, projects[0].ID)
//
//	// Fast-forward its working copy
//	result, err := c.Git.Sync(ctx, p.ID)
//
// # API Versioning
//
// Relief uses Stripe-style date-based API versioning. By default, the client
// uses the latest API version. You can pin to a specific version for stability:
//
//	c := client.New("http://127.0.0.1:7420", client.WithVersion(client.Version20260117))
//
// The version is sent via the Relief-Version HTTP header on each request.
//
// # Error Handling
//
// API errors are returned as *APIError values, which include an error code
// and message. A start that fails because the port is taken carries the
// holder of the port:
//
//	_, err := c.Projects.Start(ctx, id)
//	var apiErr *client.APIError
//	if errors.As(err, &apiErr) {
//	    if conflict, ok := apiErr.PortConflict(); ok {
//	        fmt.Printf("port %d held by pid %d\n", conflict.Port, conflict.PID)
//	    }
//	}
package client

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
)

// Client is a Relief API client.
//
// The Client is safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL    string
	version    string
	httpClient *http.Client

	// Projects provides project registration and lifecycle operations.
	Projects *ProjectClient

	// Logs provides access to captured project output.
	Logs *LogClient

	// Git provides working copy inspection and sync.
	Git *GitClient

	// Services provides managed service operations.
	Services *ServiceClient

	// Scripts runs configured global scripts.
	Scripts *ScriptClient

	// Events provides access to the event log.
	Events *EventClient

	// System provides status, port, process and proxy operations.
	System *SystemClient

	// Config reads and writes the configuration file.
	Config *ConfigClient
}

// Option configures a [Client].
type Option func(*Client)

// New creates a new Relief API client with the given base URL and options.
//
// By default, the client uses the latest API version ([LatestVersion]) and
// a 2-minute HTTP timeout, long enough for a project to become ready.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		version: LatestVersion,
		httpClient: &http.Client{
			Timeout: 2 * time.Minute,
		},
	}

	for _, opt := range opts {
		opt(c)
	}

	c.Projects = &ProjectClient{c: c}
	c.Logs = &LogClient{c: c}
	c.Git = &GitClient{c: c}
	c.Services = &ServiceClient{c: c}
	c.Scripts = &ScriptClient{c: c}
	c.Events = &EventClient{c: c}
	c.System = &SystemClient{c: c}
	c.Config = &ConfigClient{c: c}

	return c
}

// WithVersion sets the API version to use for all requests.
func WithVersion(v string) Option {
	return func(c *Client) {
		c.version = v
	}
}

// WithHTTPClient sets a custom HTTP client for making requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP client timeout for all requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = d
	}
}

// Version returns the API version being used.
func (c *Client) Version() string {
	return c.version
}

// BaseURL returns the base URL of the API.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// apiResponse is the standard API response envelope.
type apiResponse struct {
	Data  json.RawMessage `json:"data"`
	Error *APIError       `json:"error"`
	Meta  *Meta           `json:"meta"`
}

// Meta is the response metadata.
type Meta struct {
	Timestamp      time.Time `json:"timestamp"`
	PollIntervalMS int64     `json:"poll_interval_ms,omitempty"`
}

// PollInterval returns the server's suggested polling interval, or 0.
func (m *Meta) PollInterval() time.Duration {
	if m == nil {
		return 0
	}
	return time.Duration(m.PollIntervalMS) * time.Millisecond
}

// APIError represents an error response from the Relief API.
//
// Error codes include NOT_FOUND, BAD_REQUEST, CONFLICT, PORT_IN_USE,
// GIT_DIVERGED, GIT_NO_REMOTE, UNKNOWN_SCRIPT, CONFIG_ERROR, PROXY_ERROR,
// PROCESS_ERROR, TIMEOUT and INTERNAL_ERROR.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`

	// StatusCode is the HTTP status of the response.
	StatusCode int `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	return e.Message
}

// PortConflict extracts the port holder from a PORT_IN_USE error. It works
// for every API version: the legacy string is always present in details.
func (e *APIError) PortConflict() (PortConflict, bool) {
	if e.Code != "PORT_IN_USE" {
		return PortConflict{}, false
	}
	legacy, _ := e.Details["legacy"].(string)
	if legacy == "" {
		legacy = e.Message
	}
	return ParsePortConflict(legacy)
}

// PortConflict is a port held by a process.
type PortConflict struct {
	Port    int
	PID     int
	Command string
}

// ParsePortConflict decodes PORT_IN_USE:<port>:<pid>:<command>. The
// command may itself contain colons.
func ParsePortConflict(s string) (PortConflict, bool) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) < 3 || parts[0] != "PORT_IN_USE" {
		return PortConflict{}, false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil {
		return PortConflict{}, false
	}
	pid, err := strconv.Atoi(parts[2])
	if err != nil {
		return PortConflict{}, false
	}
	c := PortConflict{Port: port, PID: pid}
	if len(parts) == 4 {
		c.Command = parts[3]
	}
	return c, true
}

// get performs a GET request to the given path.
func (c *Client) get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// post performs a POST request to the given path with no body.
func (c *Client) post(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, path, nil)
}

// postJSON performs a POST request with a JSON body.
func (c *Client) postJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(data))
}

// putJSON performs a PUT request with a JSON body.
func (c *Client) putJSON(ctx context.Context, path string, body interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	return c.do(ctx, http.MethodPut, path, bytes.NewReader(data))
}

// delete performs a DELETE request to the given path.
func (c *Client) delete(ctx context.Context, path string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodDelete, path, nil)
}

// do performs an HTTP request and returns the data of the envelope.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	resp, err := c.doEnvelope(ctx, method, path, body)
	if err != nil {
		return nil, err
	}
	return resp.Data, nil
}

// doEnvelope performs an HTTP request and returns the whole envelope.
func (c *Client) doEnvelope(ctx context.Context, method, path string, body io.Reader) (*apiResponse, error) {
	url := c.baseURL + path

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set(VersionHeader, c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	return c.parseResponse(resp)
}

// parseResponse reads and parses an API response.
func (c *Client) parseResponse(resp *http.Response) (*apiResponse, error) {
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var apiResp apiResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
		}
		return &apiResponse{Data: respBody}, nil
	}

	if apiResp.Error != nil {
		apiResp.Error.StatusCode = resp.StatusCode
		return nil, apiResp.Error
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{Message: fmt.Sprintf("request failed with status %d", resp.StatusCode), StatusCode: resp.StatusCode}
	}

	return &apiResp, nil
}

// decode unmarshals data into a value of type T.
func decode[T any](data json.RawMessage, what string) (T, error) {
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to parse %s: %w", what, err)
	}
	return v, nil
}
