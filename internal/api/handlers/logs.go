// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/basinlabs/cuid/internal/logging"
)

// LogsHandler serves the log ring buffer: a bounded recent-history query
// and a live server-sent-event stream.
type LogsHandler struct {
	ring *logging.Ring
}

// NewLogsHandler builds a LogsHandler over ring.
func NewLogsHandler(ring *logging.Ring) *LogsHandler {
	return &LogsHandler{ring: ring}
}

// Recent returns up to n of the most recent log lines (default 100).
func (h *LogsHandler) Recent(w http.ResponseWriter, r *http.Request) {
	n := 100
	if v := r.URL.Query().Get("n"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed <= 0 {
			WriteError(w, http.StatusBadRequest, CodeValidation, "n must be a positive integer")
			return
		}
		n = parsed
	}

	lines := h.ring.Recent(n)
	out := make([]string, len(lines))
	for i, l := range lines {
		out[i] = string(l)
	}
	WriteJSON(w, http.StatusOK, out)
}

// Stream serves a server-sent-event stream of log lines as they are
// written, starting from the moment the client connects.
func (h *LogsHandler) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteError(w, http.StatusInternalServerError, CodeInternal, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	ch := h.ring.Subscribe()
	defer h.ring.Unsubscribe(ch)

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", line)
			flusher.Flush()
		}
	}
}
