// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"context"
	"encoding/json"
	"io"
	"mime"
	"net/http"

	"github.com/wingedpig/relief/internal/config"
)

const maxConfigSize = 1 << 20

// ConfigService reads, writes and reloads the global config file.
type ConfigService interface {
	ConfigPath() string
	ConfigText(ctx context.Context) (string, error)
	SaveConfigText(ctx context.Context, text string) (*config.Config, error)
	ReloadConfig(ctx context.Context) (*config.Config, error)
}

// ConfigHandler handles config requests.
type ConfigHandler struct {
	svc ConfigService
}

// NewConfigHandler creates a new config handler.
func NewConfigHandler(svc ConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

// ConfigText is the raw text of the config file.
type ConfigText struct {
	Path string `json:"path"`
	Text string `json:"text"`
}

// ConfigApplied is returned after a save or reload.
type ConfigApplied struct {
	Path   string         `json:"path"`
	Config *config.Config `json:"config"`
}

// Get returns the config file text.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	text, err := h.svc.ConfigText(r.Context())
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ConfigText{Path: h.svc.ConfigPath(), Text: text})
}

// Put validates and saves new config text, then applies it. The body is
// either JSON {"text": "..."} or the raw HJSON text. Invalid text is
// rejected and the file is left alone.
func (h *ConfigHandler) Put(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxConfigSize+1))
	if err != nil {
		WriteError(w, http.StatusBadRequest, ErrBadRequest, "failed to read request body")
		return
	}
	if len(body) > maxConfigSize {
		WriteError(w, http.StatusRequestEntityTooLarge, ErrBadRequest, "config text too large")
		return
	}

	text := string(body)
	if mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mediaType == "application/json" {
		var req ConfigText
		if err := json.Unmarshal(body, &req); err != nil {
			WriteError(w, http.StatusBadRequest, ErrBadRequest, "invalid request body")
			return
		}
		text = req.Text
	}

	cfg, err := h.svc.SaveConfigText(detached(r), text)
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ConfigApplied{Path: h.svc.ConfigPath(), Config: cfg})
}

// Reload re-reads the config file and applies it.
func (h *ConfigHandler) Reload(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.svc.ReloadConfig(detached(r))
	if err != nil {
		WriteServiceError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, ConfigApplied{Path: h.svc.ConfigPath(), Config: cfg})
}
