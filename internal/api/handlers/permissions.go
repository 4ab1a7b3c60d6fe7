// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/basinlabs/cuid/internal/permission"
)

// PermissionsHandler serves the permission broker's HTTP surface: listing
// pending requests for a UI badge count, polling a single request, and
// posting an approval or denial.
type PermissionsHandler struct {
	broker *permission.Broker
}

// NewPermissionsHandler builds a PermissionsHandler over broker.
func NewPermissionsHandler(broker *permission.Broker) *PermissionsHandler {
	return &PermissionsHandler{broker: broker}
}

// Pending lists every currently-pending request, oldest first.
func (h *PermissionsHandler) Pending(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.broker.Pending())
}

// Poll returns the current state of one request, used both by the
// subordinate tool server's polling loop and by the UI for a single
// request's detail view.
func (h *PermissionsHandler) Poll(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	req, err := h.broker.Poll(id)
	if err != nil {
		if errors.Is(err, permission.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "permission request not found")
			return
		}
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

type approveRequest struct {
	ModifiedInput json.RawMessage `json:"modified_input,omitempty"`
}

// Approve resolves a pending request as approved, optionally replacing its
// tool input.
func (h *PermissionsHandler) Approve(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body approveRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
			return
		}
	}

	req, err := h.broker.Approve(id, body.ModifiedInput)
	if err != nil {
		if errors.Is(err, permission.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "permission request not found")
			return
		}
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}

type denyRequest struct {
	Reason string `json:"deny_reason"`
}

// Deny resolves a pending request as denied with a reason.
func (h *PermissionsHandler) Deny(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body denyRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, http.StatusBadRequest, CodeValidation, "invalid JSON body")
			return
		}
	}

	req, err := h.broker.Deny(id, body.Reason)
	if err != nil {
		if errors.Is(err, permission.ErrNotFound) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "permission request not found")
			return
		}
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, req)
}
