// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package conversation

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/basinlabs/cuid/internal/watcher"
)

const watchDebounce = 250 * time.Millisecond

// Watch starts an fsnotify watcher over every project directory under the
// transcript root, warming the cache directly on each changed ".jsonl"
// file instead of relying solely on the next poll-driven List call. New
// project subdirectories created after Watch starts are picked up as they
// are written to. Close stops the watcher.
func (s *Service) Watch() (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	dirs, err := projectDirs(s.root)
	if err != nil {
		w.Close()
		return nil, err
	}
	for _, dir := range dirs {
		if err := w.Add(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to watch transcript directory")
		}
	}
	if err := w.Add(s.root); err != nil {
		w.Close()
		return nil, err
	}

	tw := &Watcher{
		svc:       s,
		fsWatcher: w,
		debouncer: watcher.NewDebouncer(watchDebounce),
		done:      make(chan struct{}),
	}
	go tw.run()
	return tw, nil
}

// Watcher is a running transcript-directory watcher; Close stops it.
type Watcher struct {
	svc       *Service
	fsWatcher *fsnotify.Watcher
	debouncer *watcher.Debouncer
	closeOnce sync.Once
	done      chan struct{}
}

func (tw *Watcher) run() {
	defer close(tw.done)
	for {
		select {
		case event, ok := <-tw.fsWatcher.Events:
			if !ok {
				return
			}
			tw.handle(event)
		case err, ok := <-tw.fsWatcher.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("transcript watcher error")
		}
	}
}

func (tw *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Create) != 0 {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := tw.fsWatcher.Add(event.Name); err != nil {
				log.Warn().Err(err).Str("dir", event.Name).Msg("failed to watch new transcript directory")
			}
			return
		}
	}

	if !strings.HasSuffix(event.Name, ".jsonl") {
		return
	}
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	path := event.Name
	tw.debouncer.Debounce(path, func() {
		if err := tw.svc.WarmFile(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to warm cache after transcript change")
		}
	})
}

// Close stops the watcher. Safe to call more than once.
func (tw *Watcher) Close() {
	tw.closeOnce.Do(func() {
		tw.debouncer.Stop()
		tw.fsWatcher.Close()
	})
	<-tw.done
}

// WarmFile parses a single transcript file and installs the result into
// the cache directly, bypassing the mtime-diff scan List otherwise uses.
func (s *Service) WarmFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	entries, err := s.parseFile(path)
	if err != nil {
		return err
	}
	s.cache.Update(path, entries, info.ModTime(), s.projectOf(path))
	return nil
}

// projectDirs lists every immediate project subdirectory under root (not
// root itself, which Watch adds separately), so fsnotify can be told to
// watch each one (it does not watch subtrees recursively). A missing root
// yields an empty list.
func projectDirs(root string) ([]string, error) {
	var dirs []string
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Join(root, e.Name()))
		}
	}
	return dirs, nil
}
