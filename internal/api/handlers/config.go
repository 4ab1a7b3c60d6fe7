// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/basinlabs/cuid/internal/config"
)

// ConfigHandler serves GET/PUT /api/config.
type ConfigHandler struct {
	store *config.Store[config.Config]
}

// NewConfigHandler builds a ConfigHandler over the given store.
func NewConfigHandler(store *config.Store[config.Config]) *ConfigHandler {
	return &ConfigHandler{store: store}
}

// Get returns the current configuration snapshot.
func (h *ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Snapshot())
}

// Update deep-merges the request body into the configuration.
func (h *ConfigHandler) Update(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}

	cfg, err := h.store.Update(partial, config.SourceAPI)
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, cfg)
}

// PreferencesHandler serves GET/PUT /api/preferences.
type PreferencesHandler struct {
	store *config.Store[config.Preferences]
}

// NewPreferencesHandler builds a PreferencesHandler over the given store.
func NewPreferencesHandler(store *config.Store[config.Preferences]) *PreferencesHandler {
	return &PreferencesHandler{store: store}
}

// Get returns the current preferences snapshot.
func (h *PreferencesHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.store.Snapshot())
}

// Update deep-merges the request body into preferences.
func (h *PreferencesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}

	prefs, err := h.store.Update(partial, config.SourceAPI)
	if err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, prefs)
}
