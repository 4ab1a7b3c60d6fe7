// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"

	"github.com/basinlabs/cuid/internal/conversation"
)

// AdminHandler exposes maintenance operations against a running server's
// in-process state — operations the CLI cannot perform out-of-process
// since the cache and stores live in the server's memory, not on disk in a
// directly-editable form.
type AdminHandler struct {
	svc *conversation.Service
}

// NewAdminHandler builds an AdminHandler over svc.
func NewAdminHandler(svc *conversation.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

// ClearCache drops the running server's parsed-transcript cache, forcing a
// full re-parse of every transcript file on the next conversation list.
// Backs the `cuid sessions gc` CLI subcommand.
func (h *AdminHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearCache()
	WriteJSON(w, http.StatusOK, map[string]bool{"cleared": true})
}
