// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wingedpig/relief/internal/api/version"
	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/dependency"
	"github.com/wingedpig/relief/internal/events"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/orchestrator"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/registry"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
	"github.com/wingedpig/relief/internal/status"
	"github.com/wingedpig/relief/internal/supervisor"
)

// Mock implementations

type mockOrchestrator struct {
	projects  map[string]registry.Project
	logs      []logstore.Entry
	startErr  error
	conflict  *ports.Conflict
	killed    []int
	killErr   error
	syncErr   error
	services  map[string]services.Info
	script    *scripts.Result
	scriptErr error
	config    string
	saveErr   error
	saved     string
	lastCtx   context.Context
}

func newMockOrchestrator() *mockOrchestrator {
	return &mockOrchestrator{
		projects: map[string]registry.Project{
			"p1": {ID: "p1", Name: "shop", Path: "/src/shop", Domain: "shop.local", Type: registry.TypeNode, Status: registry.StatusStopped, Port: 4001},
			"p2": {ID: "p2", Name: "api", Path: "/src/api", Domain: "api.local", Type: registry.TypeGo, Status: registry.StatusRunning, Port: 4002, PID: 5000},
		},
		logs: []logstore.Entry{
			{ID: 1, ProjectID: "p2", Level: logstore.LevelInfo, Message: "listening on 4002"},
			{ID: 2, ProjectID: "p2", Level: logstore.LevelError, Message: "boom"},
		},
		services: map[string]services.Info{
			"postgres": {Name: "postgres", Port: 5432, Status: services.Status{State: services.StateStopped}},
		},
		config: "{\n  domain_suffix: local\n}\n",
	}
}

func (m *mockOrchestrator) project(id string) (registry.Project, error) {
	p, ok := m.projects[id]
	if !ok {
		return registry.Project{}, fmt.Errorf("get %s: %w", id, registry.ErrProjectNotFound)
	}
	return p, nil
}

func (m *mockOrchestrator) ListProjects(ctx context.Context) []registry.Project {
	list := make([]registry.Project, 0, len(m.projects))
	for _, id := range []string{"p1", "p2"} {
		if p, ok := m.projects[id]; ok {
			list = append(list, p)
		}
	}
	return list
}

func (m *mockOrchestrator) GetProject(ctx context.Context, id string) (registry.Project, error) {
	return m.project(id)
}

func (m *mockOrchestrator) AddLocalProject(ctx context.Context, path string) (registry.Project, error) {
	for _, p := range m.projects {
		if p.Path == path {
			return registry.Project{}, &registry.DuplicatePathError{Path: path}
		}
	}
	if strings.HasSuffix(path, "empty") {
		return registry.Project{}, fmt.Errorf("%w: no marker file in %s", config.ErrUnknownProjectType, path)
	}
	p := registry.Project{ID: "p3", Name: "new", Path: path, Type: registry.TypeGo, Status: registry.StatusStopped}
	m.projects[p.ID] = p
	return p, nil
}

func (m *mockOrchestrator) RemoveProject(ctx context.Context, id string) (registry.Project, error) {
	p, err := m.project(id)
	if err != nil {
		return p, err
	}
	if p.Status.IsActive() {
		return registry.Project{}, &registry.ProjectBusyError{ID: id, Status: p.Status}
	}
	delete(m.projects, id)
	return p, nil
}

func (m *mockOrchestrator) StartProject(ctx context.Context, id string) (registry.Project, error) {
	m.lastCtx = ctx
	p, err := m.project(id)
	if err != nil {
		return p, err
	}
	if m.startErr != nil {
		return p, m.startErr
	}
	p.Status = registry.StatusRunning
	m.projects[id] = p
	return p, nil
}

func (m *mockOrchestrator) StopProject(ctx context.Context, id string) (registry.Project, error) {
	p, err := m.project(id)
	if err != nil {
		return p, err
	}
	p.Status = registry.StatusStopped
	m.projects[id] = p
	return p, nil
}

func (m *mockOrchestrator) RestartProject(ctx context.Context, id string) (registry.Project, error) {
	return m.StartProject(ctx, id)
}

func (m *mockOrchestrator) TailLogs(ctx context.Context, id string, n int) ([]logstore.Entry, error) {
	if _, err := m.project(id); err != nil {
		return nil, err
	}
	if id != "p2" {
		return nil, nil
	}
	if n < len(m.logs) {
		return m.logs[len(m.logs)-n:], nil
	}
	return m.logs, nil
}

func (m *mockOrchestrator) SubscribeLogs(ctx context.Context, id string, n int) ([]logstore.Entry, <-chan logstore.Entry, func(), error) {
	entries, err := m.TailLogs(ctx, id, n)
	if err != nil {
		return nil, nil, nil, err
	}
	ch := make(chan logstore.Entry, len(m.logs)+1)
	// Replays the backlog, as a subscription racing the tail would.
	for _, e := range m.logs {
		ch <- e
	}
	ch <- logstore.Entry{ID: 3, ProjectID: id, Level: logstore.LevelInfo, Message: "live"}
	close(ch)
	return entries, ch, func() {}, nil
}

func (m *mockOrchestrator) GitInfo(ctx context.Context, id string) (*gitsync.Info, error) {
	if _, err := m.project(id); err != nil {
		return nil, err
	}
	return &gitsync.Info{IsRepository: true, CurrentBranch: "main", Upstream: "origin/main"}, nil
}

func (m *mockOrchestrator) SyncGit(ctx context.Context, id string) (*gitsync.SyncResult, error) {
	if _, err := m.project(id); err != nil {
		return nil, err
	}
	if m.syncErr != nil {
		return nil, m.syncErr
	}
	return &gitsync.SyncResult{Branch: "main", Upstream: "origin/main", Updated: true, Pulled: 2}, nil
}

func (m *mockOrchestrator) CheckoutBranch(ctx context.Context, id, branch string) (*gitsync.Info, error) {
	if strings.HasPrefix(branch, "-") {
		return nil, fmt.Errorf("%w: bad branch name %q", orchestrator.ErrInvalidInput, branch)
	}
	return &gitsync.Info{IsRepository: true, CurrentBranch: branch}, nil
}

func (m *mockOrchestrator) Status(ctx context.Context) (status.AppStatus, time.Duration) {
	return status.Aggregate(m.ListProjects(ctx), true), status.PollInterval(m.ListProjects(ctx))
}

func (m *mockOrchestrator) CheckPort(ctx context.Context, port int) (*ports.Conflict, error) {
	if port < 1 || port > 65535 {
		return nil, fmt.Errorf("%w: port %d out of range", orchestrator.ErrInvalidInput, port)
	}
	if m.conflict != nil && m.conflict.Port == port {
		return m.conflict, nil
	}
	return nil, nil
}

func (m *mockOrchestrator) KillProcess(ctx context.Context, pid int) error {
	if m.killErr != nil {
		return m.killErr
	}
	m.killed = append(m.killed, pid)
	return nil
}

func (m *mockOrchestrator) RestartProxy(ctx context.Context) error {
	return &proxy.ApplyError{Backend: "traefik", Err: proxy.ErrTraefikNotFound}
}

func (m *mockOrchestrator) Routes() []proxy.Route {
	return []proxy.Route{{Domain: "api.local", Upstream: "localhost:4002", Project: "p2"}}
}

func (m *mockOrchestrator) ListServices(ctx context.Context) []services.Info {
	return []services.Info{m.services["postgres"]}
}

func (m *mockOrchestrator) serviceOp(name string, state services.State) (services.Info, error) {
	info, ok := m.services[name]
	if !ok {
		return services.Info{}, &services.UnknownServiceError{Name: name, Suggestion: "postgres"}
	}
	info.Status.State = state
	m.services[name] = info
	return info, nil
}

func (m *mockOrchestrator) StartService(ctx context.Context, name string) (services.Info, error) {
	return m.serviceOp(name, services.StateRunning)
}

func (m *mockOrchestrator) StopService(ctx context.Context, name string) (services.Info, error) {
	return m.serviceOp(name, services.StateStopped)
}

func (m *mockOrchestrator) InstallService(ctx context.Context, name string) (services.Info, error) {
	if _, ok := m.services[name]; !ok {
		return services.Info{}, &services.UnknownServiceError{Name: name}
	}
	return services.Info{}, &services.CommandError{Service: name, Action: "install", Err: errors.New("exit status 1")}
}

func (m *mockOrchestrator) ListScripts(ctx context.Context) []scripts.Script {
	return []scripts.Script{{Name: "hello", Command: "echo hello"}}
}

func (m *mockOrchestrator) RunScript(ctx context.Context, name string) (*scripts.Result, error) {
	if name != "hello" {
		return nil, &scripts.UnknownScriptError{Name: name, Suggestion: "hello"}
	}
	return m.script, m.scriptErr
}

func (m *mockOrchestrator) ConfigPath() string { return "/home/dev/.config/relief/relief.hjson" }

func (m *mockOrchestrator) ConfigText(ctx context.Context) (string, error) {
	return m.config, nil
}

func (m *mockOrchestrator) SaveConfigText(ctx context.Context, text string) (*config.Config, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.saved = text
	return config.Defaults(), nil
}

func (m *mockOrchestrator) ReloadConfig(ctx context.Context) (*config.Config, error) {
	return config.Defaults(), nil
}

type mockEventBus struct {
	events []events.Event
	filter events.EventFilter
}

func newMockEventBus() *mockEventBus {
	return &mockEventBus{
		events: []events.Event{
			{ID: "1", Type: events.EventProjectStarted, Project: "p2", Timestamp: time.Now()},
			{ID: "2", Type: events.EventServiceStarted, Timestamp: time.Now()},
		},
	}
}

func (m *mockEventBus) Publish(ctx context.Context, event events.Event) error {
	m.events = append(m.events, event)
	return nil
}

func (m *mockEventBus) Subscribe(pattern string, handler events.EventHandler) (events.SubscriptionID, error) {
	return "sub-1", nil
}

func (m *mockEventBus) SubscribeAsync(pattern string, handler events.EventHandler, bufferSize int) (events.SubscriptionID, error) {
	return "sub-1", nil
}

func (m *mockEventBus) Unsubscribe(id events.SubscriptionID) error {
	return nil
}

func (m *mockEventBus) History(filter events.EventFilter) ([]events.Event, error) {
	m.filter = filter
	return m.events, nil
}

func (m *mockEventBus) Close() error {
	return nil
}

// helpers

func decode(t *testing.T, rec *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return resp
}

func withVars(req *http.Request, vars map[string]string) *http.Request {
	return mux.SetURLVars(req, vars)
}

// Project handlers

func TestProjectHandler_List(t *testing.T) {
	handler := NewProjectHandler(newMockOrchestrator())

	req := httptest.NewRequest("GET", "/api/v1/projects", nil)
	rec := httptest.NewRecorder()

	handler.List(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.Len(t, resp.Data, 2)
	assert.NotNil(t, resp.Meta)
}

func TestProjectHandler_Get_NotFound(t *testing.T) {
	handler := NewProjectHandler(newMockOrchestrator())

	req := withVars(httptest.NewRequest("GET", "/api/v1/projects/missing", nil), map[string]string{"id": "missing"})
	rec := httptest.NewRecorder()

	handler.Get(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
}

func TestProjectHandler_Add(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"created", `{"path":"/src/new"}`, http.StatusCreated, ""},
		{"duplicate path", `{"path":"/src/shop"}`, http.StatusConflict, ErrConflict},
		{"unknown type", `{"path":"/src/empty"}`, http.StatusBadRequest, ErrBadRequest},
		{"missing path", `{}`, http.StatusBadRequest, ErrBadRequest},
		{"bad json", `{`, http.StatusBadRequest, ErrBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewProjectHandler(newMockOrchestrator())
			req := httptest.NewRequest("POST", "/api/v1/projects", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()

			handler.Add(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.code != "" {
				resp := decode(t, rec)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.code, resp.Error.Code)
			}
		})
	}
}

func TestProjectHandler_Remove(t *testing.T) {
	mock := newMockOrchestrator()
	handler := NewProjectHandler(mock)

	req := withVars(httptest.NewRequest("DELETE", "/api/v1/projects/p2", nil), map[string]string{"id": "p2"})
	rec := httptest.NewRecorder()
	handler.Remove(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, ErrConflict, decode(t, rec).Error.Code)

	req = withVars(httptest.NewRequest("DELETE", "/api/v1/projects/p1", nil), map[string]string{"id": "p1"})
	rec = httptest.NewRecorder()
	handler.Remove(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, mock.projects, "p1")
}

func TestProjectHandler_Start(t *testing.T) {
	mock := newMockOrchestrator()
	handler := NewProjectHandler(mock)

	ctx, cancel := context.WithCancel(context.Background())
	req := withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/start", nil).WithContext(ctx), map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()

	handler.Start(rec, req)
	cancel()

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, registry.StatusRunning, mock.projects["p1"].Status)
	// The start is not tied to the client connection.
	assert.NoError(t, mock.lastCtx.Err())
}

func TestProjectHandler_Start_PortConflict(t *testing.T) {
	conflict := &ports.ConflictError{Conflict: ports.Conflict{Port: 4001, PID: 5000, Command: "node server.js --port=4001"}}

	t.Run("latest version", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.startErr = conflict
		handler := NewProjectHandler(mock)

		req := withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/start", nil), map[string]string{"id": "p1"})
		rec := httptest.NewRecorder()
		handler.Start(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decode(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrPortInUse, resp.Error.Code)
		assert.Equal(t, "port 4001 is already in use by PID 5000 (node server.js --port=4001)", resp.Error.Message)
		assert.Equal(t, float64(4001), resp.Error.Details["port"])
		assert.Equal(t, float64(5000), resp.Error.Details["pid"])
		assert.Equal(t, "PORT_IN_USE:4001:5000:node server.js --port=4001", resp.Error.Details["legacy"])
	})

	t.Run("legacy version", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.startErr = conflict
		handler := NewProjectHandler(mock)

		req := httptest.NewRequest("POST", "/api/v1/projects/p1/start", nil)
		req = req.WithContext(version.WithContext(req.Context(), version.Version20260117))
		req = withVars(req, map[string]string{"id": "p1"})
		rec := httptest.NewRecorder()
		handler.Start(rec, req)

		assert.Equal(t, http.StatusConflict, rec.Code)
		resp := decode(t, rec)
		require.NotNil(t, resp.Error)
		assert.Equal(t, ErrPortInUse, resp.Error.Code)
		assert.Equal(t, "PORT_IN_USE:4001:5000:node server.js --port=4001", resp.Error.Message)
		assert.Equal(t, resp.Error.Message, resp.Error.Details["legacy"])
		assert.NotContains(t, resp.Error.Details, "pid")

		parsed, err := ports.ParseLegacy(resp.Error.Message)
		require.NoError(t, err)
		assert.Equal(t, conflict.Conflict, parsed)
	})
}

func TestProjectHandler_Logs(t *testing.T) {
	handler := NewProjectHandler(newMockOrchestrator())

	req := withVars(httptest.NewRequest("GET", "/api/v1/projects/p2/logs?lines=1", nil), map[string]string{"id": "p2"})
	rec := httptest.NewRecorder()
	handler.Logs(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data struct {
			Project string           `json:"project"`
			Entries []logstore.Entry `json:"entries"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "p2", body.Data.Project)
	require.Len(t, body.Data.Entries, 1)
	assert.Equal(t, "boom", body.Data.Entries[0].Message)

	// No entries is an empty list, not null.
	req = withVars(httptest.NewRequest("GET", "/api/v1/projects/p1/logs", nil), map[string]string{"id": "p1"})
	rec = httptest.NewRecorder()
	handler.Logs(rec, req)
	assert.Contains(t, rec.Body.String(), `"entries":[]`)
}

func TestLogLines(t *testing.T) {
	tests := []struct {
		query string
		want  int
	}{
		{"", defaultLogLines},
		{"?lines=5", 5},
		{"?lines=0", 0},
		{"?lines=-3", defaultLogLines},
		{"?lines=abc", defaultLogLines},
		{"?lines=99999999", maxLogLines},
	}
	for _, tt := range tests {
		req := httptest.NewRequest("GET", "/api/v1/projects/p1/logs"+tt.query, nil)
		assert.Equal(t, tt.want, logLines(req), tt.query)
	}
}

func TestProjectHandler_GitSync_Diverged(t *testing.T) {
	mock := newMockOrchestrator()
	mock.syncErr = &gitsync.DivergedHistoryError{Branch: "main", Upstream: "origin/main", Ahead: 1, Behind: 2}
	handler := NewProjectHandler(mock)

	req := withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/git/sync", nil), map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()
	handler.GitSync(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, ErrGitDiverged, resp.Error.Code)
	assert.Equal(t, float64(1), resp.Error.Details["ahead"])
	assert.Equal(t, float64(2), resp.Error.Details["behind"])
}

func TestProjectHandler_GitCheckout(t *testing.T) {
	handler := NewProjectHandler(newMockOrchestrator())

	req := withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/git/checkout", strings.NewReader(`{"branch":"feature"}`)), map[string]string{"id": "p1"})
	rec := httptest.NewRecorder()
	handler.GitCheckout(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/git/checkout", strings.NewReader(`{"branch":"--force"}`)), map[string]string{"id": "p1"})
	rec = httptest.NewRecorder()
	handler.GitCheckout(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req = withVars(httptest.NewRequest("POST", "/api/v1/projects/p1/git/checkout", strings.NewReader(`{}`)), map[string]string{"id": "p1"})
	rec = httptest.NewRecorder()
	handler.GitCheckout(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// System handlers

func TestSystemHandler_Status(t *testing.T) {
	handler := NewSystemHandler(newMockOrchestrator())

	req := httptest.NewRequest("GET", "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	handler.Status(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data status.AppStatus `json:"data"`
		Meta MetaInfo         `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Data.TotalProjects)
	assert.Equal(t, 1, body.Data.Running)
	assert.True(t, body.Data.TraefikRunning)
	assert.Equal(t, int64(3000), body.Meta.PollIntervalMS)
}

func TestSystemHandler_Port(t *testing.T) {
	mock := newMockOrchestrator()
	mock.conflict = &ports.Conflict{Port: 4001, PID: 77, Command: "ruby"}
	handler := NewSystemHandler(mock)

	req := withVars(httptest.NewRequest("GET", "/api/v1/ports/4001", nil), map[string]string{"port": "4001"})
	rec := httptest.NewRecorder()
	handler.Port(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data PortResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, PortResponse{Port: 4001, InUse: true, PID: 77, Command: "ruby", Legacy: "PORT_IN_USE:4001:77:ruby"}, body.Data)

	req = withVars(httptest.NewRequest("GET", "/api/v1/ports/4002", nil), map[string]string{"port": "4002"})
	rec = httptest.NewRecorder()
	handler.Port(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.False(t, body.Data.InUse)

	req = withVars(httptest.NewRequest("GET", "/api/v1/ports/0", nil), map[string]string{"port": "0"})
	rec = httptest.NewRecorder()
	handler.Port(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSystemHandler_Kill(t *testing.T) {
	mock := newMockOrchestrator()
	handler := NewSystemHandler(mock)

	req := withVars(httptest.NewRequest("POST", "/api/v1/processes/5000/kill", nil), map[string]string{"pid": "5000"})
	rec := httptest.NewRecorder()
	handler.Kill(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []int{5000}, mock.killed)

	mock.killErr = fmt.Errorf("kill 5001: %w", ports.ErrProcessNotFound)
	req = withVars(httptest.NewRequest("POST", "/api/v1/processes/5001/kill", nil), map[string]string{"pid": "5001"})
	rec = httptest.NewRecorder()
	handler.Kill(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSystemHandler_RestartProxy_Error(t *testing.T) {
	handler := NewSystemHandler(newMockOrchestrator())

	req := httptest.NewRequest("POST", "/api/v1/proxy/restart", nil)
	rec := httptest.NewRecorder()
	handler.RestartProxy(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, ErrProxyError, decode(t, rec).Error.Code)
}

// Service and script handlers

func TestServiceHandler(t *testing.T) {
	mock := newMockOrchestrator()
	handler := NewServiceHandler(mock)

	rec := httptest.NewRecorder()
	handler.List(rec, httptest.NewRequest("GET", "/api/v1/services", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	req := withVars(httptest.NewRequest("POST", "/api/v1/services/postgres/start", nil), map[string]string{"name": "postgres"})
	rec = httptest.NewRecorder()
	handler.Start(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.StateRunning, mock.services["postgres"].Status.State)

	req = withVars(httptest.NewRequest("POST", "/api/v1/services/postgress/stop", nil), map[string]string{"name": "postgress"})
	rec = httptest.NewRecorder()
	handler.Stop(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	resp := decode(t, rec)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
	assert.Equal(t, "postgres", resp.Error.Details["suggestion"])

	req = withVars(httptest.NewRequest("POST", "/api/v1/services/postgres/install", nil), map[string]string{"name": "postgres"})
	rec = httptest.NewRecorder()
	handler.Install(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, ErrProcessError, decode(t, rec).Error.Code)
}

func TestScriptHandler_Run(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.script = &scripts.Result{Name: "hello", Success: true, Output: "hello\n"}
		handler := NewScriptHandler(mock)

		req := withVars(httptest.NewRequest("POST", "/api/v1/scripts/hello/run", nil), map[string]string{"name": "hello"})
		rec := httptest.NewRecorder()
		handler.Run(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"output":"hello\n"`)
	})

	t.Run("non-zero exit is still a result", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.script = &scripts.Result{Name: "hello", Success: false, ExitCode: 3}
		handler := NewScriptHandler(mock)

		req := withVars(httptest.NewRequest("POST", "/api/v1/scripts/hello/run", nil), map[string]string{"name": "hello"})
		rec := httptest.NewRecorder()
		handler.Run(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"exit_code":3`)
	})

	t.Run("unknown", func(t *testing.T) {
		handler := NewScriptHandler(newMockOrchestrator())

		req := withVars(httptest.NewRequest("POST", "/api/v1/scripts/helo/run", nil), map[string]string{"name": "helo"})
		rec := httptest.NewRecorder()
		handler.Run(rec, req)

		assert.Equal(t, http.StatusNotFound, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, ErrUnknownScript, resp.Error.Code)
		assert.Equal(t, "hello", resp.Error.Details["suggestion"])
	})

	t.Run("timeout keeps partial output", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.script = &scripts.Result{Name: "hello", Output: "partial"}
		mock.scriptErr = &scripts.TimeoutError{Name: "hello", Timeout: time.Second}
		handler := NewScriptHandler(mock)

		req := withVars(httptest.NewRequest("POST", "/api/v1/scripts/hello/run", nil), map[string]string{"name": "hello"})
		rec := httptest.NewRecorder()
		handler.Run(rec, req)

		assert.Equal(t, http.StatusGatewayTimeout, rec.Code)
		resp := decode(t, rec)
		assert.Equal(t, ErrTimeout, resp.Error.Code)
		assert.Equal(t, "partial", resp.Error.Details["output"])
	})
}

// Config handlers

func TestConfigHandler_Get(t *testing.T) {
	handler := NewConfigHandler(newMockOrchestrator())

	rec := httptest.NewRecorder()
	handler.Get(rec, httptest.NewRequest("GET", "/api/v1/config", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data ConfigText `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "{\n  domain_suffix: local\n}\n", body.Data.Text)
	assert.Equal(t, "/home/dev/.config/relief/relief.hjson", body.Data.Path)
}

func TestConfigHandler_Put(t *testing.T) {
	t.Run("raw text", func(t *testing.T) {
		mock := newMockOrchestrator()
		handler := NewConfigHandler(mock)

		req := httptest.NewRequest("PUT", "/api/v1/config", strings.NewReader("{ domain_suffix: test }"))
		req.Header.Set("Content-Type", "text/plain")
		rec := httptest.NewRecorder()
		handler.Put(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "{ domain_suffix: test }", mock.saved)
	})

	t.Run("json body", func(t *testing.T) {
		mock := newMockOrchestrator()
		handler := NewConfigHandler(mock)

		req := httptest.NewRequest("PUT", "/api/v1/config", strings.NewReader(`{"text":"{ domain_suffix: dev }"}`))
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		rec := httptest.NewRecorder()
		handler.Put(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "{ domain_suffix: dev }", mock.saved)
	})

	t.Run("parse error", func(t *testing.T) {
		mock := newMockOrchestrator()
		mock.saveErr = &config.ParseError{Err: errors.New("found ':' but expected a value")}
		handler := NewConfigHandler(mock)

		req := httptest.NewRequest("PUT", "/api/v1/config", strings.NewReader("{ :"))
		rec := httptest.NewRecorder()
		handler.Put(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, ErrConfigError, decode(t, rec).Error.Code)
		assert.Empty(t, mock.saved)
	})

	t.Run("too large", func(t *testing.T) {
		handler := NewConfigHandler(newMockOrchestrator())

		req := httptest.NewRequest("PUT", "/api/v1/config", strings.NewReader(strings.Repeat("x", maxConfigSize+1)))
		rec := httptest.NewRecorder()
		handler.Put(rec, req)

		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})
}

// Event handlers

func TestEventHandler_History(t *testing.T) {
	handler := NewEventHandler(newMockEventBus())

	req := httptest.NewRequest("GET", "/api/v1/events", nil)
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEventHandler_History_WithFilters(t *testing.T) {
	bus := newMockEventBus()
	handler := NewEventHandler(bus)

	req := httptest.NewRequest("GET", "/api/v1/events?type=project.*&type=service.started&project=p2&limit=10&since=2026-01-02T15:04:05Z", nil)
	rec := httptest.NewRecorder()

	handler.History(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"project.*", "service.started"}, bus.filter.Types)
	assert.Equal(t, "p2", bus.filter.Project)
	assert.Equal(t, 10, bus.filter.Limit)
	assert.Equal(t, time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC), bus.filter.Since)
}

func TestEventHandler_History_BadFilters(t *testing.T) {
	handler := NewEventHandler(newMockEventBus())

	for _, q := range []string{"limit=-1", "limit=x", "since=yesterday"} {
		rec := httptest.NewRecorder()
		handler.History(rec, httptest.NewRequest("GET", "/api/v1/events?"+q, nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

// Error mapping

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"project not found", fmt.Errorf("x: %w", registry.ErrProjectNotFound), http.StatusNotFound, ErrNotFound},
		{"service not found", services.ErrServiceNotFound, http.StatusNotFound, ErrNotFound},
		{"invalid input", orchestrator.ErrInvalidInput, http.StatusBadRequest, ErrBadRequest},
		{"not a repository", &gitsync.NotRepositoryError{Path: "/tmp"}, http.StatusBadRequest, ErrBadRequest},
		{"busy", &registry.ProjectBusyError{ID: "p", Status: registry.StatusRunning}, http.StatusConflict, ErrConflict},
		{"dirty tree", &gitsync.DirtyWorktreeError{Path: "/src"}, http.StatusConflict, ErrConflict},
		{"no remote", &gitsync.NoRemoteError{Branch: "main"}, http.StatusConflict, ErrGitNoRemote},
		{"git timeout", &gitsync.TimeoutError{Op: "fetch", Timeout: time.Minute}, http.StatusGatewayTimeout, ErrTimeout},
		{"ready timeout", &supervisor.ReadyTimeoutError{Project: "shop", Port: 4001, Timeout: time.Second}, http.StatusGatewayTimeout, ErrTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout, ErrTimeout},
		{"no config file", orchestrator.ErrNoConfigFile, http.StatusConflict, ErrConfigError},
		{"spawn", &supervisor.ProcessSpawnError{Project: "shop", Err: errors.New("exec: not found")}, http.StatusUnprocessableEntity, ErrProcessError},
		{"crash", &supervisor.ProcessCrashedError{Project: "shop", Summary: "exit status 2: panic"}, http.StatusUnprocessableEntity, ErrProcessError},
		{"dependency", &dependency.DependencyError{Project: "shop", Unsatisfied: []registry.Dependency{{Name: "node"}}}, http.StatusUnprocessableEntity, ErrProcessError},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError, ErrInternalError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, info, _ := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.err.Error(), info.Message)
		})
	}
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteJSON(rec, http.StatusOK, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode(t, rec)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.NotNil(t, resp.Meta)
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	WriteError(rec, http.StatusNotFound, ErrNotFound, "resource not found")

	assert.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode(t, rec)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrNotFound, resp.Error.Code)
	assert.Equal(t, "resource not found", resp.Error.Message)
}

func TestWriteErrorWithDetails(t *testing.T) {
	rec := httptest.NewRecorder()

	details := map[string]interface{}{
		"field": "path",
		"value": "",
	}
	WriteErrorWithDetails(rec, http.StatusBadRequest, ErrBadRequest, "validation failed", details)

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	resp := decode(t, rec)
	require.NotNil(t, resp.Error)
	assert.NotNil(t, resp.Error.Details)
}
