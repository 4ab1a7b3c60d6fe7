// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/watcher"
)

var log = logging.For("config")

// ChangeSource identifies who triggered a config change notification.
type ChangeSource string

const (
	SourceAPI      ChangeSource = "api"
	SourceExternal ChangeSource = "external"
)

// Subscriber is notified after every successful config swap.
type Subscriber[T any] func(old, new T, source ChangeSource)

// watchDebounce is how long the store waits after a filesystem event
// before re-reading the file, coalescing the editor's typical
// write-then-rename burst into one reload.
const watchDebounce = 150 * time.Millisecond

// Store is a generic JSON-backed, deep-mergeable, live-reloadable
// document store. It backs both config.json and preferences.json: the two
// differ only in their type parameter and default-filling function.
type Store[T any] struct {
	mu            sync.RWMutex
	path          string
	raw           map[string]any
	current       T
	applyDefaults func(*T)
	validate      func(*T) error

	subMu       sync.Mutex
	subscribers []Subscriber[T]

	watcher   *fsnotify.Watcher
	debouncer *watcher.Debouncer
	closeOnce sync.Once
}

// Open loads path (creating it from defaultValue if absent), applies
// applyDefaults to fill optional sections, and validates via validate (if
// non-nil). It does not start the filesystem watcher; call Watch for that.
func Open[T any](path string, defaultValue T, applyDefaults func(*T), validate func(*T) error) (*Store[T], error) {
	raw, err := readFile(path)
	if err != nil {
		return nil, fmt.Errorf("open config store: %w", err)
	}

	if raw == nil {
		raw, err = toRaw(defaultValue)
		if err != nil {
			return nil, err
		}
	}

	s := &Store[T]{path: path, raw: raw, applyDefaults: applyDefaults, validate: validate}
	if err := s.rebuildCurrentLocked(); err != nil {
		return nil, err
	}
	if validate != nil {
		if err := validate(&s.current); err != nil {
			return nil, fmt.Errorf("validate config: %w", err)
		}
	}
	if err := s.writeLocked(); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns the current typed value.
func (s *Store[T]) Snapshot() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update deep-merges partial (an arbitrary JSON-shaped map, e.g. decoded
// from a PUT body) into the store, persists atomically, and notifies
// subscribers. Unknown top-level keys and untouched nested scalars survive
// the merge (P6).
func (s *Store[T]) Update(partial map[string]any, source ChangeSource) (T, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.current
	merged := DeepMerge(cloneMap(s.raw), partial)
	s.raw = merged

	if err := s.rebuildCurrentLocked(); err != nil {
		return old, err
	}
	if err := s.writeLocked(); err != nil {
		return old, err
	}

	s.notify(old, s.current, source)
	return s.current, nil
}

// Subscribe registers fn to be called after every successful swap.
func (s *Store[T]) Subscribe(fn Subscriber[T]) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.subscribers = append(s.subscribers, fn)
}

func (s *Store[T]) notify(old, new T, source ChangeSource) {
	s.subMu.Lock()
	subs := append([]Subscriber[T]{}, s.subscribers...)
	s.subMu.Unlock()
	for _, fn := range subs {
		fn(old, new, source)
	}
}

// Watch starts an fsnotify watcher on the store's file. External edits are
// debounced, revalidated, and on success atomically swap the in-memory
// snapshot and notify subscribers with source=external; invalid JSON is
// logged and the previous state is kept.
func (s *Store[T]) Watch() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	dir := filepath.Dir(s.path)
	if err := w.Add(dir); err != nil {
		w.Close()
		return fmt.Errorf("watch config dir: %w", err)
	}

	s.watcher = w
	s.debouncer = watcher.NewDebouncer(watchDebounce)

	go s.watchLoop()
	return nil
}

func (s *Store[T]) watchLoop() {
	for {
		select {
		case event, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != filepath.Clean(s.path) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			s.debouncer.Debounce(s.path, s.reloadFromDisk)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("path", s.path).Msg("config watcher error")
		}
	}
}

func (s *Store[T]) reloadFromDisk() {
	raw, err := readFile(s.path)
	if err != nil || raw == nil {
		log.Warn().Err(err).Str("path", s.path).Msg("config file unreadable on external change, keeping previous state")
		return
	}

	s.mu.Lock()
	old := s.current
	prevRaw := s.raw
	s.raw = raw
	err = s.rebuildCurrentLocked()
	if err == nil && s.validate != nil {
		err = s.validate(&s.current)
	}
	if err != nil {
		log.Warn().Err(err).Str("path", s.path).Msg("config file invalid on external change, keeping previous state")
		s.raw = prevRaw
		s.current = old
		s.mu.Unlock()
		return
	}
	new := s.current
	s.mu.Unlock()

	s.notify(old, new, SourceExternal)
}

// Close stops the filesystem watcher, if started.
func (s *Store[T]) Close() {
	s.closeOnce.Do(func() {
		if s.debouncer != nil {
			s.debouncer.Stop()
		}
		if s.watcher != nil {
			s.watcher.Close()
		}
	})
}

// rebuildCurrentLocked decodes s.raw into s.current and applies defaults.
// Caller must hold s.mu.
func (s *Store[T]) rebuildCurrentLocked() error {
	typed, err := encodeTyped[T](s.raw)
	if err != nil {
		return err
	}
	if s.applyDefaults != nil {
		s.applyDefaults(&typed)
	}
	s.current = typed
	return nil
}

// writeLocked atomically rewrites the backing file from s.raw, re-merged
// with the typed+defaulted value so that defaults filled in-memory are
// also visible on disk. Caller must hold s.mu.
func (s *Store[T]) writeLocked() error {
	defaulted, err := toRaw(s.current)
	if err != nil {
		return err
	}
	out := DeepMerge(cloneMap(defaulted), s.raw)

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp config file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename config file: %w", err)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if nested, ok := v.(map[string]any); ok {
			out[k] = cloneMap(nested)
			continue
		}
		out[k] = v
	}
	return out
}
