// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/basinlabs/cuid/internal/config"
	"github.com/basinlabs/cuid/internal/push"
)

// NotificationsHandler serves the push-subscription routes.
type NotificationsHandler struct {
	store        *push.Store
	broadcaster  *push.Broadcaster
	cfg          *config.Store[config.Config]
}

// NewNotificationsHandler builds a NotificationsHandler.
func NewNotificationsHandler(store *push.Store, broadcaster *push.Broadcaster, cfg *config.Store[config.Config]) *NotificationsHandler {
	return &NotificationsHandler{store: store, broadcaster: broadcaster, cfg: cfg}
}

type notificationsStatus struct {
	Enabled          bool `json:"enabled"`
	ActiveSubscriber int  `json:"active_subscriptions"`
}

// Status reports whether push is enabled and how many active subscriptions exist.
func (h *NotificationsHandler) Status(w http.ResponseWriter, r *http.Request) {
	active, err := h.store.Active(r.Context())
	if err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, notificationsStatus{
		Enabled:          h.cfg.Snapshot().Notifications.Enabled,
		ActiveSubscriber: len(active),
	})
}

type registerRequest struct {
	Endpoint  string `json:"endpoint"`
	P256dh    string `json:"p256dh"`
	Auth      string `json:"auth"`
	UserAgent string `json:"user_agent"`
}

// Register subscribes a new push endpoint.
func (h *NotificationsHandler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Endpoint == "" || body.P256dh == "" || body.Auth == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "endpoint, p256dh, and auth are required")
		return
	}

	if err := h.store.Register(r.Context(), push.Subscription{
		Endpoint:  body.Endpoint,
		P256dh:    body.P256dh,
		Auth:      body.Auth,
		UserAgent: body.UserAgent,
	}); err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}

type unregisterRequest struct {
	Endpoint string `json:"endpoint"`
}

// Unregister removes a push endpoint.
func (h *NotificationsHandler) Unregister(w http.ResponseWriter, r *http.Request) {
	var body unregisterRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Endpoint == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "endpoint is required")
		return
	}
	if err := h.store.Unregister(r.Context(), body.Endpoint); err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, nil)
}

// Test broadcasts a test notification to every active subscription.
func (h *NotificationsHandler) Test(w http.ResponseWriter, r *http.Request) {
	results, err := h.broadcaster.Broadcast(r.Context(), push.Message{
		Title: "cuid",
		Body:  "Test notification",
	})
	if err != nil {
		WriteInternalError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, results)
}
