// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
)

// ServiceController manages the configured backing services.
type ServiceController interface {
	ListServices(ctx context.Context) []services.Info
	StartService(ctx context.Context, name string) (services.Info, error)
	StopService(ctx context.Context, name string) (services.Info, error)
	InstallService(ctx context.Context, name string) (services.Info, error)
}

// ScriptService runs global scripts.
type ScriptService interface {
	ListScripts(ctx context.Context) []scripts.Script
	RunScript(ctx context.Context, name string) (*scripts.Result, error)
}

// ServiceHandler handles managed service requests.
type ServiceHandler struct {
	svc ServiceController
}

// NewServiceHandler creates a new service handler.
func NewServiceHandler(svc ServiceController) *ServiceHandler {
	return &ServiceHandler{svc: svc}
}

// List returns all managed services.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.svc.ListServices(r.Context()))
}

// Start starts a service. Starting a running service succeeds.
func (h *ServiceHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, h.svc.StartService)
}

// Stop stops a service. Stopping a stopped service succeeds.
func (h *ServiceHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, h.svc.StopService)
}

// Install runs the service's install command.
func (h *ServiceHandler) Install(w http.ResponseWriter, r *http.Request) {
	h.do(w, r, h.svc.InstallService)
}

func (h *ServiceHandler) do(w http.ResponseWriter, r *http.Request, op func(context.Context, string) (services.Info, error)) {
	info, err := op(detached(r), mux.Vars(r)["name"])
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, info)
}

// ScriptHandler handles global script requests.
type ScriptHandler struct {
	svc ScriptService
}

// NewScriptHandler creates a new script handler.
func NewScriptHandler(svc ScriptService) *ScriptHandler {
	return &ScriptHandler{svc: svc}
}

// List returns the configured scripts.
func (h *ScriptHandler) List(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.svc.ListScripts(r.Context()))
}

// Run executes a script to completion. A script that exits non-zero is
// still a successful request; the result carries success=false.
func (h *ScriptHandler) Run(w http.ResponseWriter, r *http.Request) {
	result, err := h.svc.RunScript(detached(r), mux.Vars(r)["name"])
	if err != nil {
		var timeout *scripts.TimeoutError
		if errors.As(err, &timeout) && result != nil {
			WriteErrorWithDetails(w, http.StatusGatewayTimeout, ErrTimeout, err.Error(), map[string]interface{}{
				"output":    result.Output,
				"truncated": result.Truncated,
			})
			return
		}
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, result)
}
