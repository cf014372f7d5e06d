// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// mockServer creates a test server that returns the given response.
func mockServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

// apiHandler creates a handler that returns a standard API response.
func apiHandler(data interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"data": data,
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// apiErrorHandler creates a handler that returns an API error.
func apiErrorHandler(code, message string, details map[string]interface{}, statusCode int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)

		resp := map[string]interface{}{
			"error": map[string]interface{}{
				"code":    code,
				"message": message,
				"details": details,
			},
		}
		json.NewEncoder(w).Encode(resp)
	}
}

// expect wraps a handler with method and path assertions.
func expect(t *testing.T, method, path string, next http.HandlerFunc) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			t.Errorf("method = %s, want %s", r.Method, method)
		}
		if got := r.URL.RequestURI(); got != path {
			t.Errorf("path = %s, want %s", got, path)
		}
		next(w, r)
	}
}

func TestNew(t *testing.T) {
	c := New("http://127.0.0.1:7420")

	if c.BaseURL() != "http://127.0.0.1:7420" {
		t.Errorf("BaseURL() = %q, want %q", c.BaseURL(), "http://127.0.0.1:7420")
	}

	if c.Version() != LatestVersion {
		t.Errorf("Version() = %q, want %q", c.Version(), LatestVersion)
	}

	if c.Projects == nil || c.Logs == nil || c.Git == nil || c.Services == nil ||
		c.Scripts == nil || c.Events == nil || c.System == nil || c.Config == nil {
		t.Error("sub-client is nil")
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("WithVersion", func(t *testing.T) {
		c := New("http://127.0.0.1:7420", WithVersion(Version20260117))
		if c.Version() != Version20260117 {
			t.Errorf("Version() = %q, want %q", c.Version(), Version20260117)
		}
	})

	t.Run("WithTimeout", func(t *testing.T) {
		c := New("http://127.0.0.1:7420", WithTimeout(5*time.Second))
		if c.httpClient.Timeout != 5*time.Second {
			t.Errorf("Timeout = %v, want 5s", c.httpClient.Timeout)
		}
	})

	t.Run("WithHTTPClient", func(t *testing.T) {
		customClient := &http.Client{Timeout: 10 * time.Second}
		c := New("http://127.0.0.1:7420", WithHTTPClient(customClient))
		if c.httpClient != customClient {
			t.Error("custom HTTP client not used")
		}
	})

	t.Run("trailing slash removed", func(t *testing.T) {
		c := New("http://127.0.0.1:7420/")
		if c.BaseURL() != "http://127.0.0.1:7420" {
			t.Errorf("BaseURL() = %q, want trailing slash removed", c.BaseURL())
		}
	})
}

func TestAPIError(t *testing.T) {
	err := &APIError{Code: "NOT_FOUND", Message: "project not found"}
	if err.Error() != "NOT_FOUND: project not found" {
		t.Errorf("Error() = %q", err.Error())
	}

	err = &APIError{Message: "Something went wrong"}
	if err.Error() != "Something went wrong" {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestVersionHeader(t *testing.T) {
	var got string
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get(VersionHeader)
		apiHandler([]Project{}, http.StatusOK)(w, r)
	})

	c := New(server.URL, WithVersion(Version20260117))
	if _, err := c.Projects.List(context.Background()); err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if got != Version20260117 {
		t.Errorf("%s = %q, want %q", VersionHeader, got, Version20260117)
	}
}

func TestProjectClient_List(t *testing.T) {
	projects := []Project{
		{ID: "p1", Name: "api", Domain: "api.local", Status: StatusRunning, Port: 4000},
		{ID: "p2", Name: "web", Domain: "web.local", Status: StatusStopped, Port: 3000},
	}
	server := mockServer(t, expect(t, "GET", "/api/v1/projects", apiHandler(projects, http.StatusOK)))

	c := New(server.URL)
	result, err := c.Projects.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("List() returned %d projects, want 2", len(result))
	}
	if !result[0].IsActive() || result[1].IsActive() {
		t.Error("IsActive() mismatch")
	}
}

func TestProjectClient_Add(t *testing.T) {
	server := mockServer(t, expect(t, "POST", "/api/v1/projects", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		json.NewDecoder(r.Body).Decode(&body)
		if body["path"] != "/src/shop" {
			t.Errorf("path = %q", body["path"])
		}
		apiHandler(Project{ID: "p3", Name: "shop", Path: body["path"]}, http.StatusCreated)(w, r)
	}))

	c := New(server.URL)
	p, err := c.Projects.Add(context.Background(), "/src/shop")
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if p.ID != "p3" {
		t.Errorf("ID = %q, want p3", p.ID)
	}
}

func TestProjectClient_Lifecycle(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		call   func(c *Client) (*Project, error)
	}{
		{"get", "GET", "/api/v1/projects/p1", func(c *Client) (*Project, error) { return c.Projects.Get(context.Background(), "p1") }},
		{"start", "POST", "/api/v1/projects/p1/start", func(c *Client) (*Project, error) { return c.Projects.Start(context.Background(), "p1") }},
		{"stop", "POST", "/api/v1/projects/p1/stop", func(c *Client) (*Project, error) { return c.Projects.Stop(context.Background(), "p1") }},
		{"restart", "POST", "/api/v1/projects/p1/restart", func(c *Client) (*Project, error) { return c.Projects.Restart(context.Background(), "p1") }},
		{"remove", "DELETE", "/api/v1/projects/p1", func(c *Client) (*Project, error) { return c.Projects.Remove(context.Background(), "p1") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := mockServer(t, expect(t, tt.method, tt.path, apiHandler(Project{ID: "p1"}, http.StatusOK)))
			p, err := tt.call(New(server.URL))
			if err != nil {
				t.Fatalf("error = %v", err)
			}
			if p.ID != "p1" {
				t.Errorf("ID = %q, want p1", p.ID)
			}
		})
	}
}

func TestProjectClient_Start_PortConflict(t *testing.T) {
	t.Run("latest", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler("PORT_IN_USE", "port 4000 is already in use by PID 77 (node)", map[string]interface{}{
			"port": 4000, "pid": 77, "command": "node", "legacy": "PORT_IN_USE:4000:77:node",
		}, http.StatusConflict))

		_, err := New(server.URL).Projects.Start(context.Background(), "p1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		if apiErr.StatusCode != http.StatusConflict {
			t.Errorf("StatusCode = %d, want 409", apiErr.StatusCode)
		}
		conflict, ok := apiErr.PortConflict()
		if !ok {
			t.Fatal("PortConflict() not ok")
		}
		if conflict != (PortConflict{Port: 4000, PID: 77, Command: "node"}) {
			t.Errorf("PortConflict() = %+v", conflict)
		}
	})

	t.Run("legacy message", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler("PORT_IN_USE", "PORT_IN_USE:4000:77:ruby -e 'sleep'", nil, http.StatusConflict))

		_, err := New(server.URL, WithVersion(Version20260117)).Projects.Start(context.Background(), "p1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			t.Fatalf("error = %v, want *APIError", err)
		}
		conflict, ok := apiErr.PortConflict()
		if !ok || conflict.PID != 77 || conflict.Command != "ruby -e 'sleep'" {
			t.Errorf("PortConflict() = %+v, %v", conflict, ok)
		}
	})

	t.Run("other code", func(t *testing.T) {
		err := &APIError{Code: "CONFLICT", Message: "PORT_IN_USE:1:2:x"}
		if _, ok := err.PortConflict(); ok {
			t.Error("PortConflict() ok for CONFLICT")
		}
	})
}

func TestParsePortConflict(t *testing.T) {
	tests := []struct {
		in   string
		want PortConflict
		ok   bool
	}{
		{"PORT_IN_USE:3000:123:node", PortConflict{3000, 123, "node"}, true},
		{"PORT_IN_USE:3000:123:python -m http.server 3000:x", PortConflict{3000, 123, "python -m http.server 3000:x"}, true},
		{"PORT_IN_USE:3000:123", PortConflict{3000, 123, ""}, true},
		{"PORT_IN_USE:abc:123:node", PortConflict{}, false},
		{"port in use", PortConflict{}, false},
	}
	for _, tt := range tests {
		got, ok := ParsePortConflict(tt.in)
		if ok != tt.ok || got != tt.want {
			t.Errorf("ParsePortConflict(%q) = %+v, %v; want %+v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestLogClient_Tail(t *testing.T) {
	entries := []LogEntry{{ID: 1, ProjectID: "p1", Level: "info", Message: "ready"}}
	server := mockServer(t, expect(t, "GET", "/api/v1/projects/p1/logs?lines=50", apiHandler(map[string]interface{}{
		"project": "p1",
		"entries": entries,
	}, http.StatusOK)))

	result, err := New(server.URL).Logs.Tail(context.Background(), "p1", 50)
	if err != nil {
		t.Fatalf("Tail() error = %v", err)
	}
	if len(result) != 1 || result[0].Message != "ready" {
		t.Errorf("Tail() = %+v", result)
	}
}

func TestLogClient_Follow(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/projects/p1/logs/ws" || r.URL.Query().Get("lines") != "10" {
			t.Errorf("request = %s", r.URL.RequestURI())
		}
		if r.Header.Get(VersionHeader) == "" {
			t.Error("version header missing")
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := int64(1); i <= 3; i++ {
			conn.WriteJSON(LogEntry{ID: i, ProjectID: "p1", Message: "line"})
		}
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "project removed"))
		conn.ReadMessage()
	})

	var got []int64
	err := New(server.URL).Logs.Follow(context.Background(), "p1", 10, func(e LogEntry) error {
		got = append(got, e.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("Follow() error = %v", err)
	}
	if len(got) != 3 || got[2] != 3 {
		t.Errorf("Follow() got ids %v", got)
	}
}

func TestLogClient_Follow_NotFound(t *testing.T) {
	server := mockServer(t, apiErrorHandler("NOT_FOUND", "project not found", nil, http.StatusNotFound))

	err := New(server.URL).Logs.Follow(context.Background(), "nope", 0, func(LogEntry) error { return nil })
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Code != "NOT_FOUND" {
		t.Errorf("Follow() error = %v, want NOT_FOUND", err)
	}
}

func TestLogClient_Follow_StopsOnCallbackError(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for i := int64(1); ; i++ {
			if err := conn.WriteJSON(LogEntry{ID: i}); err != nil {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	})

	stop := errors.New("enough")
	err := New(server.URL).Logs.Follow(context.Background(), "p1", 0, func(e LogEntry) error {
		if e.ID == 2 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) {
		t.Errorf("Follow() error = %v, want %v", err, stop)
	}
}

func TestGitClient(t *testing.T) {
	t.Run("info", func(t *testing.T) {
		server := mockServer(t, expect(t, "GET", "/api/v1/projects/p1/git", apiHandler(GitInfo{IsRepository: true, CurrentBranch: "main", Behind: 2}, http.StatusOK)))
		info, err := New(server.URL).Git.Info(context.Background(), "p1")
		if err != nil {
			t.Fatalf("Info() error = %v", err)
		}
		if info.CurrentBranch != "main" || info.Behind != 2 {
			t.Errorf("Info() = %+v", info)
		}
	})

	t.Run("sync diverged", func(t *testing.T) {
		server := mockServer(t, expect(t, "POST", "/api/v1/projects/p1/git/sync",
			apiErrorHandler("GIT_DIVERGED", "branch main has diverged", map[string]interface{}{"ahead": 1, "behind": 2}, http.StatusConflict)))
		_, err := New(server.URL).Git.Sync(context.Background(), "p1")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "GIT_DIVERGED" {
			t.Errorf("Sync() error = %v, want GIT_DIVERGED", err)
		}
	})

	t.Run("checkout", func(t *testing.T) {
		server := mockServer(t, expect(t, "POST", "/api/v1/projects/p1/git/checkout", func(w http.ResponseWriter, r *http.Request) {
			body, _ := io.ReadAll(r.Body)
			if !strings.Contains(string(body), `"branch":"feature"`) {
				t.Errorf("body = %s", body)
			}
			apiHandler(GitInfo{IsRepository: true, CurrentBranch: "feature"}, http.StatusOK)(w, r)
		}))
		info, err := New(server.URL).Git.Checkout(context.Background(), "p1", "feature")
		if err != nil {
			t.Fatalf("Checkout() error = %v", err)
		}
		if info.CurrentBranch != "feature" {
			t.Errorf("CurrentBranch = %q", info.CurrentBranch)
		}
	})
}

func TestServiceClient(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		server := mockServer(t, expect(t, "GET", "/api/v1/services", apiHandler([]Service{{Name: "postgres", Port: 5432}}, http.StatusOK)))
		list, err := New(server.URL).Services.List(context.Background())
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(list) != 1 || list[0].Name != "postgres" {
			t.Errorf("List() = %+v", list)
		}
	})

	for _, action := range []string{"start", "stop", "install"} {
		t.Run(action, func(t *testing.T) {
			server := mockServer(t, expect(t, "POST", "/api/v1/services/postgres/"+action,
				apiHandler(Service{Name: "postgres", Status: ServiceStatus{State: "running"}}, http.StatusOK)))
			c := New(server.URL)
			var (
				svc *Service
				err error
			)
			switch action {
			case "start":
				svc, err = c.Services.Start(context.Background(), "postgres")
			case "stop":
				svc, err = c.Services.Stop(context.Background(), "postgres")
			case "install":
				svc, err = c.Services.Install(context.Background(), "postgres")
			}
			if err != nil {
				t.Fatalf("%s error = %v", action, err)
			}
			if svc.Name != "postgres" {
				t.Errorf("Name = %q", svc.Name)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler("NOT_FOUND", `service "postgress" not found`, map[string]interface{}{"suggestion": "postgres"}, http.StatusNotFound))
		_, err := New(server.URL).Services.Start(context.Background(), "postgress")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Details["suggestion"] != "postgres" {
			t.Errorf("Start() error = %v", err)
		}
	})
}

func TestScriptClient_Run(t *testing.T) {
	server := mockServer(t, expect(t, "POST", "/api/v1/scripts/seed/run",
		apiHandler(ScriptResult{Name: "seed", Success: false, ExitCode: 2, Output: "boom"}, http.StatusOK)))

	result, err := New(server.URL).Scripts.Run(context.Background(), "seed")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if result.Success || result.ExitCode != 2 || result.Output != "boom" {
		t.Errorf("Run() = %+v", result)
	}
}

func TestEventClient_List(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("limit") != "5" || q.Get("project") != "p1" || len(q["type"]) != 2 || q.Get("since") != "2026-01-02T03:04:05Z" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		apiHandler([]Event{{ID: "e1", Type: "project.started"}}, http.StatusOK)(w, r)
	})

	events, err := New(server.URL).Events.List(context.Background(), &ListOptions{
		Limit:   5,
		Types:   []string{"project.*", "proxy.applied"},
		Project: "p1",
		Since:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != "project.started" {
		t.Errorf("List() = %+v", events)
	}
}

func TestEventClient_Stream_ContextCancel(t *testing.T) {
	upgrader := websocket.Upgrader{}
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("pattern") != "project.*" {
			t.Errorf("pattern = %q", r.URL.Query().Get("pattern"))
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		conn.WriteJSON(Event{ID: "e1", Type: "project.started"})
		conn.ReadMessage()
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var got []string
	err := New(server.URL).Events.Stream(ctx, "project.*", func(e Event) error {
		got = append(got, e.ID)
		cancel()
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Stream() error = %v, want context.Canceled", err)
	}
	if len(got) != 1 {
		t.Errorf("got %v", got)
	}
}

func TestSystemClient_Status(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"total_projects":2,"running":1},"meta":{"timestamp":"2026-01-01T00:00:00Z","poll_interval_ms":3000}}`))
	})

	st, interval, err := New(server.URL).System.Status(context.Background())
	if err != nil {
		t.Fatalf("Status() error = %v", err)
	}
	if st.TotalProjects != 2 || st.Running != 1 {
		t.Errorf("Status() = %+v", st)
	}
	if interval != 3*time.Second {
		t.Errorf("interval = %v, want 3s", interval)
	}
}

func TestSystemClient_Port(t *testing.T) {
	server := mockServer(t, expect(t, "GET", "/api/v1/ports/3000",
		apiHandler(PortInfo{Port: 3000, InUse: true, PID: 9, Command: "node"}, http.StatusOK)))

	info, err := New(server.URL).System.Port(context.Background(), 3000)
	if err != nil {
		t.Fatalf("Port() error = %v", err)
	}
	if !info.InUse || info.PID != 9 {
		t.Errorf("Port() = %+v", info)
	}
}

func TestSystemClient_Kill(t *testing.T) {
	server := mockServer(t, expect(t, "POST", "/api/v1/processes/42/kill",
		apiHandler(map[string]interface{}{"pid": 42, "killed": true}, http.StatusOK)))

	if err := New(server.URL).System.Kill(context.Background(), 42); err != nil {
		t.Fatalf("Kill() error = %v", err)
	}
}

func TestSystemClient_RestartProxy(t *testing.T) {
	server := mockServer(t, expect(t, "POST", "/api/v1/proxy/restart",
		apiHandler(map[string]interface{}{"routes": []Route{{Domain: "api.local", Upstream: "localhost:4000"}}}, http.StatusOK)))

	routes, err := New(server.URL).System.RestartProxy(context.Background())
	if err != nil {
		t.Fatalf("RestartProxy() error = %v", err)
	}
	if len(routes) != 1 || routes[0].Domain != "api.local" {
		t.Errorf("RestartProxy() = %+v", routes)
	}
}

func TestConfigClient(t *testing.T) {
	t.Run("get", func(t *testing.T) {
		server := mockServer(t, expect(t, "GET", "/api/v1/config",
			apiHandler(ConfigText{Path: "/etc/relief.hjson", Text: "{}"}, http.StatusOK)))
		text, err := New(server.URL).Config.Get(context.Background())
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if text.Text != "{}" {
			t.Errorf("Text = %q", text.Text)
		}
	})

	t.Run("save", func(t *testing.T) {
		server := mockServer(t, expect(t, "PUT", "/api/v1/config", func(w http.ResponseWriter, r *http.Request) {
			var body ConfigText
			json.NewDecoder(r.Body).Decode(&body)
			if body.Text != "{ domain_suffix: test }" {
				t.Errorf("text = %q", body.Text)
			}
			apiHandler(map[string]interface{}{"path": "/etc/relief.hjson", "config": map[string]string{"domain_suffix": "test"}}, http.StatusOK)(w, r)
		}))
		applied, err := New(server.URL).Config.Save(context.Background(), "{ domain_suffix: test }")
		if err != nil {
			t.Fatalf("Save() error = %v", err)
		}
		if !strings.Contains(string(applied.Config), "test") {
			t.Errorf("Config = %s", applied.Config)
		}
	})

	t.Run("save invalid", func(t *testing.T) {
		server := mockServer(t, apiErrorHandler("CONFIG_ERROR", "found ':' but expected a value", nil, http.StatusBadRequest))
		_, err := New(server.URL).Config.Save(context.Background(), "{ :")
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.Code != "CONFIG_ERROR" {
			t.Errorf("Save() error = %v", err)
		}
	})

	t.Run("reload", func(t *testing.T) {
		server := mockServer(t, expect(t, "POST", "/api/v1/config/reload",
			apiHandler(map[string]interface{}{"path": "/etc/relief.hjson", "config": map[string]string{}}, http.StatusOK)))
		if _, err := New(server.URL).Config.Reload(context.Background()); err != nil {
			t.Fatalf("Reload() error = %v", err)
		}
	})
}

func TestContextCancellation(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		apiHandler([]Project{}, http.StatusOK)(w, r)
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := New(server.URL).Projects.List(ctx)
	if err == nil {
		t.Error("expected error from cancelled context")
	}
}

func TestNonEnvelopeError(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	_, err := New(server.URL).Projects.List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("error = %v, want status 502", err)
	}
}

func TestInvalidJSON(t *testing.T) {
	server := mockServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": "not a list"}`))
	})

	_, err := New(server.URL).Projects.List(context.Background())
	if err == nil || !strings.Contains(err.Error(), "failed to parse projects") {
		t.Errorf("error = %v", err)
	}
}
