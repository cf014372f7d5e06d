// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/wingedpig/relief/internal/api/version"
	"github.com/wingedpig/relief/internal/config"
	"github.com/wingedpig/relief/internal/dependency"
	"github.com/wingedpig/relief/internal/gitsync"
	"github.com/wingedpig/relief/internal/orchestrator"
	"github.com/wingedpig/relief/internal/ports"
	"github.com/wingedpig/relief/internal/proxy"
	"github.com/wingedpig/relief/internal/registry"
	"github.com/wingedpig/relief/internal/scripts"
	"github.com/wingedpig/relief/internal/services"
	"github.com/wingedpig/relief/internal/supervisor"
)

// Response is the standard API response wrapper.
type Response struct {
	Data  interface{} `json:"data,omitempty"`
	Error *ErrorInfo  `json:"error,omitempty"`
	Meta  *MetaInfo   `json:"meta,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// MetaInfo contains response metadata.
type MetaInfo struct {
	Timestamp      time.Time `json:"timestamp"`
	PollIntervalMS int64     `json:"poll_interval_ms,omitempty"`
}

// Error codes
const (
	ErrNotFound      = "NOT_FOUND"
	ErrBadRequest    = "BAD_REQUEST"
	ErrConflict      = "CONFLICT"
	ErrPortInUse     = "PORT_IN_USE"
	ErrGitDiverged   = "GIT_DIVERGED"
	ErrGitNoRemote   = "GIT_NO_REMOTE"
	ErrUnknownScript = "UNKNOWN_SCRIPT"
	ErrConfigError   = "CONFIG_ERROR"
	ErrProxyError    = "PROXY_ERROR"
	ErrProcessError  = "PROCESS_ERROR"
	ErrTimeout       = "TIMEOUT"
	ErrInternalError = "INTERNAL_ERROR"
)

// endpointPortInUse names the PORT_IN_USE error for version transformers.
const endpointPortInUse = "error.port_in_use"

func init() {
	version.RegisterTransformer(version.Version20260117, endpointPortInUse, legacyPortConflict)
}

// legacyPortConflict reports a conflict the way the first API version did:
// the whole conflict packed into the message.
func legacyPortConflict(data interface{}) interface{} {
	info, ok := data.(*ErrorInfo)
	if !ok {
		return data
	}
	legacy, _ := info.Details["legacy"].(string)
	if legacy == "" {
		return info
	}
	return &ErrorInfo{
		Code:    info.Code,
		Message: legacy,
		Details: map[string]interface{}{"legacy": legacy},
	}
}

// WriteJSON writes a JSON response.
func WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	write(w, status, Response{Data: data, Meta: &MetaInfo{Timestamp: time.Now()}})
}

// WriteJSONWithMeta writes a JSON response with caller-provided metadata.
func WriteJSONWithMeta(w http.ResponseWriter, status int, data interface{}, meta *MetaInfo) {
	if meta == nil {
		meta = &MetaInfo{}
	}
	if meta.Timestamp.IsZero() {
		meta.Timestamp = time.Now()
	}
	write(w, status, Response{Data: data, Meta: meta})
}

// WriteError writes an error response.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteErrorWithDetails(w, status, code, message, nil)
}

// WriteErrorWithDetails writes an error response with details.
func WriteErrorWithDetails(w http.ResponseWriter, status int, code, message string, details map[string]interface{}) {
	write(w, status, Response{
		Error: &ErrorInfo{Code: code, Message: message, Details: details},
		Meta:  &MetaInfo{Timestamp: time.Now()},
	})
}

func write(w http.ResponseWriter, status int, resp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// WriteServiceError maps an error from the orchestrator to its HTTP status
// and error code, shaped for the API version of the request.
func WriteServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, info, endpoint := classify(err)
	if status >= 500 && info.Code == ErrInternalError {
		log.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	if endpoint != "" {
		if transformed, ok := version.Transform(version.FromContext(r.Context()), endpoint, info).(*ErrorInfo); ok {
			info = transformed
		}
	}
	write(w, status, Response{Error: info, Meta: &MetaInfo{Timestamp: time.Now()}})
}

func classify(err error) (int, *ErrorInfo, string) {
	info := &ErrorInfo{Message: err.Error()}

	var (
		conflict   *ports.ConflictError
		duplicate  *registry.DuplicatePathError
		busy       *registry.ProjectBusyError
		transition *registry.InvalidTransitionError
		diverged   *gitsync.DivergedHistoryError
		noRemote   *gitsync.NoRemoteError
		dirty      *gitsync.DirtyWorktreeError
		notRepo    *gitsync.NotRepositoryError
		gitTimeout *gitsync.TimeoutError
		unknown    *scripts.UnknownScriptError
		scriptTime *scripts.TimeoutError
		unknownSvc *services.UnknownServiceError
		parseErr   *config.ParseError
		applyErr   *proxy.ApplyError
		depErr     *dependency.DependencyError
		spawnErr   *supervisor.ProcessSpawnError
		crashErr   *supervisor.ProcessCrashedError
		readyErr   *supervisor.ReadyTimeoutError
		svcCmdErr  *services.CommandError
	)

	switch {
	case errors.As(err, &conflict):
		info.Code = ErrPortInUse
		info.Details = map[string]interface{}{
			"port":    conflict.Port,
			"pid":     conflict.PID,
			"command": conflict.Command,
			"legacy":  conflict.Legacy(),
		}
		return http.StatusConflict, info, endpointPortInUse

	case errors.As(err, &unknown):
		info.Code = ErrUnknownScript
		info.Details = suggestion(unknown.Suggestion)
		return http.StatusNotFound, info, ""
	case errors.As(err, &unknownSvc):
		info.Code = ErrNotFound
		info.Details = suggestion(unknownSvc.Suggestion)
		return http.StatusNotFound, info, ""
	case errors.Is(err, registry.ErrProjectNotFound), errors.Is(err, services.ErrServiceNotFound),
		errors.Is(err, ports.ErrProcessNotFound):
		info.Code = ErrNotFound
		return http.StatusNotFound, info, ""

	case errors.Is(err, orchestrator.ErrInvalidInput),
		errors.Is(err, config.ErrUnknownProjectType),
		errors.As(err, &notRepo):
		info.Code = ErrBadRequest
		return http.StatusBadRequest, info, ""

	case errors.As(err, &duplicate), errors.As(err, &busy), errors.As(err, &transition):
		info.Code = ErrConflict
		return http.StatusConflict, info, ""
	case errors.As(err, &dirty):
		info.Code = ErrConflict
		return http.StatusConflict, info, ""

	case errors.As(err, &diverged):
		info.Code = ErrGitDiverged
		info.Details = map[string]interface{}{
			"branch":   diverged.Branch,
			"upstream": diverged.Upstream,
			"ahead":    diverged.Ahead,
			"behind":   diverged.Behind,
		}
		return http.StatusConflict, info, ""
	case errors.As(err, &noRemote):
		info.Code = ErrGitNoRemote
		return http.StatusConflict, info, ""

	case errors.As(err, &gitTimeout), errors.As(err, &scriptTime), errors.As(err, &readyErr),
		errors.Is(err, context.DeadlineExceeded):
		info.Code = ErrTimeout
		return http.StatusGatewayTimeout, info, ""

	case errors.As(err, &parseErr):
		info.Code = ErrConfigError
		return http.StatusBadRequest, info, ""
	case errors.Is(err, orchestrator.ErrNoConfigFile):
		info.Code = ErrConfigError
		return http.StatusConflict, info, ""

	case errors.As(err, &applyErr), errors.Is(err, proxy.ErrTraefikNotFound):
		info.Code = ErrProxyError
		return http.StatusBadGateway, info, ""

	case errors.As(err, &depErr):
		info.Code = ErrProcessError
		deps := make([]string, 0, len(depErr.Unsatisfied))
		for _, d := range depErr.Unsatisfied {
			deps = append(deps, d.Name)
		}
		info.Details = map[string]interface{}{"unsatisfied": deps}
		return http.StatusUnprocessableEntity, info, ""
	case errors.As(err, &crashErr):
		info.Code = ErrProcessError
		info.Details = map[string]interface{}{"summary": crashErr.Summary}
		return http.StatusUnprocessableEntity, info, ""
	case errors.As(err, &spawnErr), errors.As(err, &svcCmdErr):
		info.Code = ErrProcessError
		return http.StatusUnprocessableEntity, info, ""
	}

	info.Code = ErrInternalError
	return http.StatusInternalServerError, info, ""
}

func suggestion(s string) map[string]interface{} {
	if s == "" {
		return nil
	}
	return map[string]interface{}{"suggestion": s}
}
