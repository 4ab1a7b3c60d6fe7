// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/basinlabs/cuid/internal/metadata"
)

// SessionsHandler serves PATCH /api/sessions/:id.
type SessionsHandler struct {
	store *metadata.Store
}

// NewSessionsHandler builds a SessionsHandler over store.
func NewSessionsHandler(store *metadata.Store) *SessionsHandler {
	return &SessionsHandler{store: store}
}

type patchSessionRequest struct {
	CustomName            *string `json:"custom_name"`
	Pinned                *bool   `json:"pinned"`
	Archived              *bool   `json:"archived"`
	ContinuationSessionID *string `json:"continuation_session_id"`
	InitialCommitHead     *string `json:"initial_commit_head"`
	PermissionMode        *string `json:"permission_mode"`
}

// Update applies a partial metadata update to one session.
func (h *SessionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["id"]
	if sessionID == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "missing session id")
		return
	}

	var body patchSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		WriteError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
		return
	}

	fields := metadata.Fields{
		CustomName:            body.CustomName,
		Pinned:                body.Pinned,
		Archived:              body.Archived,
		ContinuationSessionID: body.ContinuationSessionID,
		InitialCommitHead:     body.InitialCommitHead,
	}
	if body.PermissionMode != nil {
		mode := metadata.PermissionMode(*body.PermissionMode)
		switch mode {
		case metadata.PermissionDefault, metadata.PermissionStrict, metadata.PermissionBypass:
			fields.PermissionMode = &mode
		default:
			WriteError(w, http.StatusBadRequest, CodeValidation, "invalid permission_mode")
			return
		}
	}

	rec, err := h.store.Update(r.Context(), sessionID, fields)
	if err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}
