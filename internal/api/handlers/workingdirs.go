// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"net/http"
	"path/filepath"
	"sort"
	"strings"

	"github.com/basinlabs/cuid/internal/conversation"
)

// WorkingDirsHandler serves GET /api/working-directories: the set of
// project working directories observed across every known conversation,
// each given a disambiguating suffix when two directories share a base
// name (e.g. two checkouts of "api" under different parents).
type WorkingDirsHandler struct {
	svc *conversation.Service
}

// NewWorkingDirsHandler builds a WorkingDirsHandler over svc.
func NewWorkingDirsHandler(svc *conversation.Service) *WorkingDirsHandler {
	return &WorkingDirsHandler{svc: svc}
}

type workingDir struct {
	Path  string `json:"path"`
	Label string `json:"label"`
}

// List returns every distinct project directory with a disambiguated label.
func (h *WorkingDirsHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := h.svc.List(r.Context(), conversation.Filter{Limit: 1 << 20})
	if err != nil {
		WriteInternalError(w, r, err)
		return
	}

	seen := make(map[string]struct{})
	var paths []string
	for _, c := range page.Conversations {
		if c.Project == "" {
			continue
		}
		if _, ok := seen[c.Project]; ok {
			continue
		}
		seen[c.Project] = struct{}{}
		paths = append(paths, c.Project)
	}
	sort.Strings(paths)

	byBase := make(map[string]int)
	for _, p := range paths {
		byBase[filepath.Base(p)]++
	}

	out := make([]workingDir, 0, len(paths))
	for _, p := range paths {
		base := filepath.Base(p)
		label := base
		if byBase[base] > 1 {
			parent := filepath.Base(filepath.Dir(p))
			label = strings.TrimSuffix(parent, string(filepath.Separator)) + "/" + base
		}
		out = append(out, workingDir{Path: p, Label: label})
	}

	WriteJSON(w, http.StatusOK, out)
}
