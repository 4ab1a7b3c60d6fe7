// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import (
	"bufio"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// FilesystemHandler serves directory listing and file reads for the
// working-directory picker.
type FilesystemHandler struct {
	// Roots restricts which absolute paths may be listed or read; empty
	// means no restriction (single-user local tool).
	Roots []string
}

// NewFilesystemHandler builds a FilesystemHandler.
func NewFilesystemHandler(roots []string) *FilesystemHandler {
	return &FilesystemHandler{Roots: roots}
}

type fileEntry struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	IsDir bool   `json:"is_dir"`
}

// List serves GET /api/filesystem/list?path=&recursive=&respectGitignore=.
func (h *FilesystemHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	path := q.Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "path is required")
		return
	}
	if !h.allowed(path) {
		WriteError(w, http.StatusBadRequest, CodeValidation, "path outside allowed roots")
		return
	}

	recursive, _ := strconv.ParseBool(q.Get("recursive"))
	respectGitignore, _ := strconv.ParseBool(q.Get("respectGitignore"))

	var ignore []string
	if respectGitignore {
		ignore = loadGitignore(path)
	}

	var entries []fileEntry
	walkDir(path, path, recursive, ignore, &entries)

	sort.Slice(entries, func(i, j int) bool { return entries[i].Path < entries[j].Path })
	WriteJSON(w, http.StatusOK, entries)
}

func walkDir(root, dir string, recursive bool, ignore []string, out *[]fileEntry) {
	items, err := os.ReadDir(dir)
	if err != nil {
		log.Warn().Err(err).Str("dir", dir).Msg("failed to read directory")
		return
	}

	for _, item := range items {
		full := filepath.Join(dir, item.Name())
		rel, err := filepath.Rel(root, full)
		if err != nil {
			rel = full
		}
		if matchesAny(ignore, rel) {
			continue
		}

		*out = append(*out, fileEntry{Name: item.Name(), Path: full, IsDir: item.IsDir()})
		if item.IsDir() && recursive {
			walkDir(root, full, recursive, ignore, out)
		}
	}
}

func matchesAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(p, filepath.Base(rel)); ok {
			return true
		}
	}
	return false
}

func loadGitignore(dir string) []string {
	f, err := os.Open(filepath.Join(dir, ".gitignore"))
	if err != nil {
		return nil
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, strings.TrimPrefix(line, "/"))
	}
	return patterns
}

// Read serves GET /api/filesystem/read?path=.
func (h *FilesystemHandler) Read(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		WriteError(w, http.StatusBadRequest, CodeValidation, "path is required")
		return
	}
	if !h.allowed(path) {
		WriteError(w, http.StatusBadRequest, CodeValidation, "path outside allowed roots")
		return
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			WriteError(w, http.StatusNotFound, CodeNotFound, "file not found")
			return
		}
		WriteInternalError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *FilesystemHandler) allowed(path string) bool {
	if len(h.Roots) == 0 {
		return true
	}
	clean := filepath.Clean(path)
	for _, root := range h.Roots {
		root := filepath.Clean(root)
		if clean == root || strings.HasPrefix(clean, root+string(filepath.Separator)) {
			return true
		}
	}
	return false
}
