// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package handlers implements the HTTP surface of the control plane: one
// file per route group, each a thin adapter over the internal components
// (config, conversation, metadata, permission, push, logging).
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/basinlabs/cuid/internal/logging"
)

var log = logging.For("api")

// Error codes from the error-handling taxonomy.
const (
	CodeValidation   = "VALIDATION_ERROR"
	CodeUnauthorized = "UNAUTHORIZED"
	CodeRateLimited  = "RATE_LIMITED"
	CodeNotFound     = "NOT_FOUND"
	CodeConflict     = "CONFLICT"
	CodeInternal     = "INTERNAL_ERROR"
)

// ErrorInfo is the body of every non-2xx JSON response.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error ErrorInfo `json:"error"`
}

// WriteJSON writes v as a JSON response body with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// WriteError writes a {error:{code,message}} body with the given status.
func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, errorEnvelope{Error: ErrorInfo{Code: code, Message: message}})
}

// WriteInternalError logs err with the request's context and writes a
// generic 500 body; details never reach the client.
func WriteInternalError(w http.ResponseWriter, r *http.Request, err error) {
	log.Error().Err(err).Str("path", r.URL.Path).Msg("internal error")
	WriteError(w, http.StatusInternalServerError, CodeInternal, "internal server error")
}
