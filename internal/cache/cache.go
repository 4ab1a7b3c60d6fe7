// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package cache memoizes per-file transcript parses keyed by modification
// time, guaranteeing at most one concurrent parse pass for a given set of
// files under concurrent readers.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/transcript"
)

var log = logging.For("cache")

// parseConcurrency bounds how many files are parsed at once for a single
// get_or_parse pass.
const parseConcurrency = 8

// CachedFile is one memoized file's parse result.
type CachedFile struct {
	Path    string
	Mtime   time.Time
	Project string
	Entries []transcript.Entry
}

// ParseFunc parses a single transcript file.
type ParseFunc func(path string) ([]transcript.Entry, error)

// ProjectFunc derives the owning project from a file path.
type ProjectFunc func(path string) string

// Stats reports cache occupancy, for diagnostics and tests.
type Stats struct {
	FileCount  int
	EntryCount int
}

// Cache is a per-file parse cache parameterized over the aggregate type T
// produced by a caller-supplied aggregate function. The cache itself has
// no notion of sessions or conversations; it only owns file-level memoization
// and single-flight de-duplication.
type Cache[T any] struct {
	mu      sync.RWMutex
	files   map[string]CachedFile
	flight  singleflight.Group
}

// New creates an empty Cache.
func New[T any]() *Cache[T] {
	return &Cache[T]{files: make(map[string]CachedFile)}
}

// GetOrParse computes the new/changed/removed sets against fileMtimes,
// parses new and changed files concurrently (bounded), evicts removed
// files, and calls aggregate over the resulting cache contents.
//
// Concurrent calls with an identical fileMtimes signature share one parse
// pass via single-flight; calls with distinct signatures queue and run
// serially relative to each other only insofar as they contend on c.mu.
func (c *Cache[T]) GetOrParse(
	fileMtimes map[string]time.Time,
	parseFile ParseFunc,
	projectOf ProjectFunc,
	aggregate func([]CachedFile) ([]T, error),
) ([]T, error) {
	sig := signature(fileMtimes)

	result, err, _ := c.flight.Do(sig, func() (interface{}, error) {
		return c.doGetOrParse(fileMtimes, parseFile, projectOf, aggregate)
	})
	if err != nil {
		return nil, err
	}
	return result.([]T), nil
}

func (c *Cache[T]) doGetOrParse(
	fileMtimes map[string]time.Time,
	parseFile ParseFunc,
	projectOf ProjectFunc,
	aggregate func([]CachedFile) ([]T, error),
) ([]T, error) {
	newPaths, changedPaths, removedPaths := c.partition(fileMtimes)

	toParse := append(append([]string{}, newPaths...), changedPaths...)
	if len(toParse) > 0 {
		c.parseAll(toParse, fileMtimes, parseFile, projectOf)
	}

	c.mu.Lock()
	for _, p := range removedPaths {
		delete(c.files, p)
	}
	c.mu.Unlock()

	c.mu.RLock()
	snapshot := make([]CachedFile, 0, len(c.files))
	for _, f := range c.files {
		snapshot = append(snapshot, f)
	}
	c.mu.RUnlock()

	sort.Slice(snapshot, func(i, j int) bool { return snapshot[i].Path < snapshot[j].Path })

	return aggregate(snapshot)
}

// partition splits fileMtimes into new, changed, and removed path sets
// relative to the current cache contents.
func (c *Cache[T]) partition(fileMtimes map[string]time.Time) (newPaths, changedPaths, removedPaths []string) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	for path, mtime := range fileMtimes {
		cached, ok := c.files[path]
		switch {
		case !ok:
			newPaths = append(newPaths, path)
		case !cached.Mtime.Equal(mtime):
			changedPaths = append(changedPaths, path)
		}
	}
	for path := range c.files {
		if _, ok := fileMtimes[path]; !ok {
			removedPaths = append(removedPaths, path)
		}
	}
	return newPaths, changedPaths, removedPaths
}

// parseAll parses the given paths concurrently, bounded by
// parseConcurrency, and installs each successfully-parsed file atomically.
// An individual file's parse error is logged and that file is left
// uncached so it is retried on the next call.
func (c *Cache[T]) parseAll(paths []string, fileMtimes map[string]time.Time, parseFile ParseFunc, projectOf ProjectFunc) {
	var g errgroup.Group
	g.SetLimit(parseConcurrency)

	for _, path := range paths {
		path := path
		g.Go(func() error {
			entries, err := parseFile(path)
			if err != nil {
				log.Warn().Err(err).Str("file", path).Msg("failed to parse transcript file, will retry next pass")
				return nil
			}

			cf := CachedFile{
				Path:    path,
				Mtime:   fileMtimes[path],
				Project: projectOf(path),
				Entries: entries,
			}

			c.mu.Lock()
			c.files[path] = cf
			c.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // individual errors are swallowed above; g.Wait() is always nil
}

// IsValid reports whether path is cached with exactly mtime.
func (c *Cache[T]) IsValid(path string, mtime time.Time) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cached, ok := c.files[path]
	return ok && cached.Mtime.Equal(mtime)
}

// Update installs a parsed file directly, bypassing GetOrParse. Used by a
// directory watcher that wants to warm the cache ahead of the next poll.
func (c *Cache[T]) Update(path string, entries []transcript.Entry, mtime time.Time, project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files[path] = CachedFile{Path: path, Mtime: mtime, Project: project, Entries: entries}
}

// Clear empties the cache. Used by the sessions gc CLI subcommand to force
// a full re-parse.
func (c *Cache[T]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.files = make(map[string]CachedFile)
}

// Stats reports current cache occupancy.
func (c *Cache[T]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Stats{FileCount: len(c.files)}
	for _, f := range c.files {
		s.EntryCount += len(f.Entries)
	}
	return s
}

// signature computes a stable key for a file_mtimes map so that identical
// inputs (regardless of map iteration order) collide in the single-flight
// group.
func signature(fileMtimes map[string]time.Time) string {
	paths := make([]string, 0, len(fileMtimes))
	for p := range fileMtimes {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	h := sha256.New()
	for _, p := range paths {
		fmt.Fprintf(h, "%s=%d\n", p, fileMtimes[p].UnixNano())
	}
	return hex.EncodeToString(h.Sum(nil))
}
