// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/status"
)

// SystemService covers the host-level operations: status, ports,
// processes and the proxy.
type SystemService interface {
	Status(ctx context.Context) (status.AppStatus, time.Duration)
	CheckPort(ctx context.Context, port int) (*ports.Conflict, error)
	KillProcess(ctx context.Context, pid int) error
	RestartProxy(ctx context.Context) error
	Routes() []proxy.Route
}

// SystemHandler handles status, port, process and proxy requests.
type SystemHandler struct {
	svc SystemService
}

// NewSystemHandler creates a new system handler.
func NewSystemHandler(svc SystemService) *SystemHandler {
	return &SystemHandler{svc: svc}
}

// Status returns the aggregate status. meta.poll_interval_ms tells
// pollers how soon to ask again.
func (h *SystemHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, interval := h.svc.Status(r.Context())
	WriteJSONWithMeta(w, http.StatusOK, st, &MetaInfo{PollIntervalMS: interval.Milliseconds()})
}

// PortResponse is the result of a port check.
type PortResponse struct {
	Port    int    `json:"port"`
	InUse   bool   `json:"in_use"`
	PID     int    `json:"pid,omitempty"`
	Command string `json:"command,omitempty"`
	Legacy  string `json:"legacy,omitempty"`
}

// Port reports whether a port is held and by whom.
func (h *SystemHandler) Port(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(mux.Vars(r)["port"])
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "port must be a number")
		return
	}

	conflict, err := h.svc.CheckPort(r.Context(), port)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}

	resp := PortResponse{Port: port}
	if conflict != nil {
		resp.InUse = true
		resp.PID = conflict.PID
		resp.Command = conflict.Command
		resp.Legacy = ports.FormatLegacy(*conflict)
	}
	WriteJSON(w, http.StatusOK, resp)
}

// Kill terminates a process by pid.
func (h *SystemHandler) Kill(w http.ResponseWriter, r *http.Request) {
	pid, err := strconv.Atoi(mux.Vars(r)["pid"])
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "pid must be a number")
		return
	}

	if err := h.svc.KillProcess(detached(r), pid); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"pid": pid, "killed": true})
}

// RestartProxy restarts the proxy backend and re-applies routes.
func (h *SystemHandler) RestartProxy(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RestartProxy(detached(r)); err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"routes": h.svc.Routes()})
}

// Routes returns the routing table currently applied.
func (h *SystemHandler) Routes(w http.ResponseWriter, r *http.Request) {
	routes := h.svc.Routes()
	if routes == nil {
		routes = []proxy.Route{}
	}
	WriteJSON(w, http.StatusOK, routes)
}
