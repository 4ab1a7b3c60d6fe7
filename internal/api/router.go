// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package api wires the HTTP surface: route table, middleware chain, and
// graceful shutdown.
package api

import (
	"time"

	"github.com/gorilla/mux"

	"github.com/basinlabs/cuid/internal/api/handlers"
	"github.com/basinlabs/cuid/internal/api/middleware"
	"github.com/basinlabs/cuid/internal/config"
	"github.com/basinlabs/cuid/internal/conversation"
	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/metadata"
	"github.com/basinlabs/cuid/internal/permission"
	"github.com/basinlabs/cuid/internal/push"
)

// Dependencies holds every component the router's handlers are adapters
// over.
type Dependencies struct {
	Config          *config.Store[config.Config]
	Preferences     *config.Store[config.Preferences]
	Conversations   *conversation.Service
	Metadata        *metadata.Store
	Permissions     *permission.Broker
	PushStore       *push.Store
	PushBroadcaster *push.Broadcaster
	Logs            *logging.Ring
	FilesystemRoots []string

	AuthToken string
	TestMode  bool
}

// NewRouter builds the route table in full, behind the global middleware
// chain: logging, recovery, CORS, then bearer-token auth (bypassed in test
// mode) with a failed-attempt rate limit.
func NewRouter(deps Dependencies) *mux.Router {
	r := mux.NewRouter()

	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.CORS)
	r.Use(middleware.Auth(deps.AuthToken, deps.TestMode, middleware.NewFailureLimiter(10, time.Minute)))

	cfgH := handlers.NewConfigHandler(deps.Config)
	r.HandleFunc("/api/config", cfgH.Get).Methods("GET")
	r.HandleFunc("/api/config", cfgH.Update).Methods("PUT")

	prefH := handlers.NewPreferencesHandler(deps.Preferences)
	r.HandleFunc("/api/preferences", prefH.Get).Methods("GET")
	r.HandleFunc("/api/preferences", prefH.Update).Methods("PUT")

	convH := handlers.NewConversationsHandler(deps.Conversations)
	r.HandleFunc("/api/conversations", convH.List).Methods("GET")

	sessH := handlers.NewSessionsHandler(deps.Metadata)
	r.HandleFunc("/api/sessions/{id}", sessH.Update).Methods("PATCH")

	fsH := handlers.NewFilesystemHandler(deps.FilesystemRoots)
	r.HandleFunc("/api/filesystem/list", fsH.List).Methods("GET")
	r.HandleFunc("/api/filesystem/read", fsH.Read).Methods("GET")

	wdH := handlers.NewWorkingDirsHandler(deps.Conversations)
	r.HandleFunc("/api/working-directories", wdH.List).Methods("GET")

	notifH := handlers.NewNotificationsHandler(deps.PushStore, deps.PushBroadcaster, deps.Config)
	r.HandleFunc("/api/notifications/status", notifH.Status).Methods("GET")
	r.HandleFunc("/api/notifications/register", notifH.Register).Methods("POST")
	r.HandleFunc("/api/notifications/unregister", notifH.Unregister).Methods("POST")
	r.HandleFunc("/api/notifications/test", notifH.Test).Methods("POST")

	logsH := handlers.NewLogsHandler(deps.Logs)
	r.HandleFunc("/api/logs/stream", logsH.Stream).Methods("GET")
	r.HandleFunc("/api/logs/recent", logsH.Recent).Methods("GET")

	permH := handlers.NewPermissionsHandler(deps.Permissions)
	r.HandleFunc("/api/permissions/pending", permH.Pending).Methods("GET")
	r.HandleFunc("/api/permissions/{id}", permH.Poll).Methods("GET")
	r.HandleFunc("/api/permissions/{id}/approve", permH.Approve).Methods("POST")
	r.HandleFunc("/api/permissions/{id}/deny", permH.Deny).Methods("POST")

	adminH := handlers.NewAdminHandler(deps.Conversations)
	r.HandleFunc("/internal/cache/clear", adminH.ClearCache).Methods("POST")

	return r
}
