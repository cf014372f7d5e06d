// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api serves the HTTP control surface.
package api

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/wingedpig/relief/internal/api/handlers"
	"github.com/wingedpig/relief/internal/api/middleware"
	"github.com/wingedpig/relief/internal/api/version"
	"github.com/wingedpig/relief/internal/events"
)

// ServerConfig holds configuration for the API server.
type ServerConfig struct {
	Host    string
	Port    int
	TLSCert string
	TLSKey  string
}

// Orchestrator is everything the handlers need from the core.
type Orchestrator interface {
	handlers.ProjectService
	handlers.SystemService
	handlers.ServiceController
	handlers.ScriptService
	handlers.ConfigService
}

// Dependencies holds all dependencies for API handlers.
type Dependencies struct {
	Orchestrator Orchestrator
	EventBus     events.EventBus
	Version      string // build version reported by /version
}

// NewRouter creates the API router.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(version.Middleware)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusNotFound, handlers.ErrNotFound, "no such endpoint")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteError(w, http.StatusMethodNotAllowed, handlers.ErrBadRequest, "method not allowed")
	})

	api := r.PathPrefix("/api/v1").Subrouter()

	projects := handlers.NewProjectHandler(deps.Orchestrator)
	api.HandleFunc("/projects", projects.List).Methods("GET")
	api.HandleFunc("/projects", projects.Add).Methods("POST")
	api.HandleFunc("/projects/{id}", projects.Get).Methods("GET")
	api.HandleFunc("/projects/{id}", projects.Remove).Methods("DELETE")
	api.HandleFunc("/projects/{id}/start", projects.Start).Methods("POST")
	api.HandleFunc("/projects/{id}/stop", projects.Stop).Methods("POST")
	api.HandleFunc("/projects/{id}/restart", projects.Restart).Methods("POST")
	api.HandleFunc("/projects/{id}/logs", projects.Logs).Methods("GET")
	api.HandleFunc("/projects/{id}/logs/ws", projects.LogsWebSocket).Methods("GET")
	api.HandleFunc("/projects/{id}/git", projects.GitInfo).Methods("GET")
	api.HandleFunc("/projects/{id}/git/sync", projects.GitSync).Methods("POST")
	api.HandleFunc("/projects/{id}/git/checkout", projects.GitCheckout).Methods("POST")

	system := handlers.NewSystemHandler(deps.Orchestrator)
	api.HandleFunc("/status", system.Status).Methods("GET")
	api.HandleFunc("/ports/{port:[0-9]+}", system.Port).Methods("GET")
	api.HandleFunc("/processes/{pid:[0-9]+}/kill", system.Kill).Methods("POST")
	api.HandleFunc("/proxy/routes", system.Routes).Methods("GET")
	api.HandleFunc("/proxy/restart", system.RestartProxy).Methods("POST")

	svcs := handlers.NewServiceHandler(deps.Orchestrator)
	api.HandleFunc("/services", svcs.List).Methods("GET")
	api.HandleFunc("/services/{name}/start", svcs.Start).Methods("POST")
	api.HandleFunc("/services/{name}/stop", svcs.Stop).Methods("POST")
	api.HandleFunc("/services/{name}/install", svcs.Install).Methods("POST")

	scripts := handlers.NewScriptHandler(deps.Orchestrator)
	api.HandleFunc("/scripts", scripts.List).Methods("GET")
	api.HandleFunc("/scripts/{name}/run", scripts.Run).Methods("POST")

	cfg := handlers.NewConfigHandler(deps.Orchestrator)
	api.HandleFunc("/config", cfg.Get).Methods("GET")
	api.HandleFunc("/config", cfg.Put).Methods("PUT")
	api.HandleFunc("/config/reload", cfg.Reload).Methods("POST")

	if deps.EventBus != nil {
		eventHandler := handlers.NewEventHandler(deps.EventBus)
		api.HandleFunc("/events", eventHandler.History).Methods("GET")
		api.HandleFunc("/events/ws", eventHandler.WebSocket).Methods("GET")
	}

	api.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{
			"version":     deps.Version,
			"api_version": version.FromContext(r.Context()),
		})
	}).Methods("GET")

	return r
}

// Server represents the API server.
type Server struct {
	router *mux.Router
	cfg    ServerConfig
	server *http.Server
}

// NewServer creates a new API server.
func NewServer(cfg ServerConfig, deps Dependencies) *Server {
	return &Server{
		router: NewRouter(deps),
		cfg:    cfg,
	}
}

// Router returns the underlying router.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	return net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
}

// Listen binds the listen address so a port clash is reported before the
// app finishes starting. Serve the returned listener with Serve.
func (s *Server) Listen() (net.Listener, error) {
	tlsEnabled, err := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if err != nil {
		return nil, fmt.Errorf("TLS configuration error: %w", err)
	}
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", s.Addr(), err)
	}
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	scheme := "http"
	if tlsEnabled {
		scheme = "https"
	}
	log.Printf("API server listening on %s://%s", scheme, ln.Addr())
	return ln, nil
}

// Serve serves requests on ln until Shutdown. It returns
// http.ErrServerClosed after a clean shutdown.
func (s *Server) Serve(ln net.Listener) error {
	tlsEnabled, _ := CheckTLSConfig(s.cfg.TLSCert, s.cfg.TLSKey)
	if tlsEnabled {
		return s.server.ServeTLS(ln, expandPath(s.cfg.TLSCert), expandPath(s.cfg.TLSKey))
	}
	return s.server.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}

	log.Println("Shutting down API server...")

	shutdownCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		shutdownCtx, cancel = context.WithTimeout(ctx, 30*time.Second)
		defer cancel()
	}
	return s.server.Shutdown(shutdownCtx)
}
