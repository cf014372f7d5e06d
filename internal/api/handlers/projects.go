// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/logstore"
	"github.com/wingedpig/relief/internal/registry"
)

const (
	defaultLogLines = 100
	maxLogLines     = 10000
)

// ProjectService is the project surface of the orchestrator.
type ProjectService interface {
	ListProjects(ctx context.Context) []registry.Project
	GetProject(ctx context.Context, id string) (registry.Project, error)
	AddLocalProject(ctx context.Context, path string) (registry.Project, error)
	RemoveProject(ctx context.Context, id string) (registry.Project, error)
	StartProject(ctx context.Context, id string) (registry.Project, error)
	StopProject(ctx context.Context, id string) (registry.Project, error)
	RestartProject(ctx context.Context, id string) (registry.Project, error)

	TailLogs(ctx context.Context, id string, n int) ([]logstore.Entry, error)
	SubscribeLogs(ctx context.Context, id string, n int) ([]logstore.Entry, <-chan logstore.Entry, func(), error)

	GitInfo(ctx context.Context, id string) (*gitsync.Info, error)
	SyncGit(ctx context.Context, id string) (*gitsync.SyncResult, error)
	CheckoutBranch(ctx context.Context, id, branch string) (*gitsync.Info, error)
}

// ProjectHandler handles project API requests.
type ProjectHandler struct {
	svc ProjectService
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(svc ProjectService) *ProjectHandler {
	return &ProjectHandler{svc: svc}
}

// detached keeps request values but not cancellation: a start should not
// be abandoned halfway because the client hung up.
func detached(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// List returns all projects.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.svc.ListProjects(r.Context()))
}

// Get returns a single project with freshly evaluated dependencies.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

type addProjectRequest struct {
	Path string `json:"path"`
}

// Add registers a project from a local directory.
func (h *ProjectHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req addProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "path is required")
		return
	}

	p, err := h.svc.AddLocalProject(r.Context(), req.Path)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, p)
}

// Remove deletes a project registration.
func (h *ProjectHandler) Remove(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.RemoveProject(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

// Start starts a project and waits until it is running.
func (h *ProjectHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.StartProject)
}

// Stop stops a project.
func (h *ProjectHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.StopProject)
}

// Restart stops then starts a project.
func (h *ProjectHandler) Restart(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.RestartProject)
}

func (h *ProjectHandler) transition(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (registry.Project, error)) {
	p, err := op(detached(r), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, p)
}

func logLines(r *http.Request) int {
	lines := defaultLogLines
	if s := r.URL.Query().Get("lines"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			lines = n
		}
	}
	if lines > maxLogLines {
		lines = maxLogLines
	}
	return lines
}

// Logs returns the most recent log entries of a project.
func (h *ProjectHandler) Logs(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	entries, err := h.svc.TailLogs(r.Context(), id, logLines(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	if entries == nil {
		entries = []logstore.Entry{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"project": id,
		"entries": entries,
	})
}

// LogsWebSocket sends the recent backlog, then every new entry, as JSON
// messages. The connection closes when the project is removed.
func (h *ProjectHandler) LogsWebSocket(w http.ResponseWriter, r *http.Request) {
	backlog, ch, cancel, err := h.svc.SubscribeLogs(r.Context(), mux.Vars(r)["id"], logLines(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	defer cancel()

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var lastID int64
	for _, e := range backlog {
		if err := conn.WriteJSON(e); err != nil {
			return
		}
		lastID = e.ID
	}

	done := make(chan struct{})
	go readUntilClosed(conn, done)
	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	// The subscription starts before the backlog is read, so entries may
	// arrive twice.
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "project removed"))
				return
			}
			if e.ID <= lastID {
				continue
			}
			lastID = e.ID
			if err := conn.WriteJSON(e); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// GitInfo returns the repository state of a project.
func (h *ProjectHandler) GitInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.svc.GitInfo(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// GitSync fast-forwards the current branch from its upstream.
func (h *ProjectHandler) GitSync(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.SyncGit(detached(r), mux.Vars(r)["id"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}

type checkoutRequest struct {
	Branch string `json:"branch"`
}

// GitCheckout switches the project to another branch.
func (h *ProjectHandler) GitCheckout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
		return
	}
	if req.Branch == "" {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "branch is required")
		return
	}

	info, err := h.svc.CheckoutBranch(detached(r), mux.Vars(r)["id"], req.Branch)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}
