// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"strconv"

	"github.com/basinlabs/cuid/internal/conversation"
)

// ConversationsHandler serves GET /api/conversations.
type ConversationsHandler struct {
	svc *conversation.Service
}

// NewConversationsHandler builds a ConversationsHandler over svc.
func NewConversationsHandler(svc *conversation.Service) *ConversationsHandler {
	return &ConversationsHandler{svc: svc}
}

// List returns the filtered, paginated, annotated conversation list. With
// ?statsOnly=1 it instead returns the dependency-graph and metadata counts
// without walking or re-parsing any transcript files, for the CLI health
// check.
func (h *ConversationsHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	if q.Get("statsOnly") == "1" {
		stats, err := h.svc.Stats(r.Context())
		if err != nil {
			WriteInternalError(w, r, err)
			return
		}
		WriteJSON(w, http.StatusOK, stats)
		return
	}

	filter := conversation.Filter{Cursor: q.Get("cursor")}
	if v := q.Get("archived"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, "archived must be a boolean")
			return
		}
		filter.Archived = &b
	}
	if v := q.Get("hasContinuation"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, "hasContinuation must be a boolean")
			return
		}
		filter.HasContinuation = &b
	}
	if v := q.Get("pinned"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, "pinned must be a boolean")
			return
		}
		filter.Pinned = &b
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			WriteError(w, http.StatusBadRequest, CodeValidation, "limit must be a positive integer")
			return
		}
		filter.Limit = n
	}

	page, err := h.svc.List(r.Context(), filter)
	if err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}
