// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package cache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/basinlabs/cuid/internal/transcript"
)

type fileCount struct {
	Path  string
	Count int
}

func TestGetOrParse_ParsesNewFiles(t *testing.T) {
	c := New[fileCount]()

	var calls int32
	parse := func(path string) ([]transcript.Entry, error) {
		atomic.AddInt32(&calls, 1)
		return []transcript.Entry{{SessionID: path}}, nil
	}
	projectOf := func(path string) string { return "proj" }
	aggregate := func(files []CachedFile) ([]fileCount, error) {
		out := make([]fileCount, 0, len(files))
		for _, f := range files {
			out = append(out, fileCount{Path: f.Path, Count: len(f.Entries)})
		}
		return out, nil
	}

	mtimes := map[string]time.Time{"a.jsonl": time.Unix(1, 0), "b.jsonl": time.Unix(2, 0)}
	result, err := c.GetOrParse(mtimes, parse, projectOf, aggregate)
	require.NoError(t, err)
	require.Len(t, result, 2)
	require.EqualValues(t, 2, calls)

	// Second call with identical mtimes must not re-parse.
	_, err = c.GetOrParse(mtimes, parse, projectOf, aggregate)
	require.NoError(t, err)
	require.EqualValues(t, 2, calls)
}

func TestGetOrParse_EvictsRemovedFiles(t *testing.T) {
	c := New[fileCount]()
	parse := func(path string) ([]transcript.Entry, error) {
		return []transcript.Entry{{SessionID: path}}, nil
	}
	projectOf := func(path string) string { return "proj" }
	aggregate := func(files []CachedFile) ([]fileCount, error) {
		out := make([]fileCount, 0, len(files))
		for _, f := range files {
			out = append(out, fileCount{Path: f.Path})
		}
		return out, nil
	}

	first := map[string]time.Time{"a.jsonl": time.Unix(1, 0), "b.jsonl": time.Unix(2, 0)}
	_, err := c.GetOrParse(first, parse, projectOf, aggregate)
	require.NoError(t, err)

	second := map[string]time.Time{"a.jsonl": time.Unix(1, 0)}
	result, err := c.GetOrParse(second, parse, projectOf, aggregate)
	require.NoError(t, err)
	require.Len(t, result, 1)
	require.Equal(t, "a.jsonl", result[0].Path)
}

func TestGetOrParse_ReparsesChangedMtime(t *testing.T) {
	c := New[fileCount]()
	var calls int32
	parse := func(path string) ([]transcript.Entry, error) {
		n := atomic.AddInt32(&calls, 1)
		return []transcript.Entry{{SessionID: path}, {SessionID: path + string(rune(n))}}, nil
	}
	projectOf := func(path string) string { return "proj" }
	aggregate := func(files []CachedFile) ([]fileCount, error) {
		out := make([]fileCount, 0, len(files))
		for _, f := range files {
			out = append(out, fileCount{Path: f.Path, Count: len(f.Entries)})
		}
		return out, nil
	}

	mtimes := map[string]time.Time{"a.jsonl": time.Unix(1, 0)}
	_, err := c.GetOrParse(mtimes, parse, projectOf, aggregate)
	require.NoError(t, err)
	require.EqualValues(t, 1, calls)

	mtimes["a.jsonl"] = time.Unix(5, 0)
	_, err = c.GetOrParse(mtimes, parse, projectOf, aggregate)
	require.NoError(t, err)
	require.EqualValues(t, 2, calls)
}

func TestGetOrParse_SingleFlight(t *testing.T) {
	c := New[fileCount]()
	var calls int32
	release := make(chan struct{})
	parse := func(path string) ([]transcript.Entry, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []transcript.Entry{{SessionID: path}}, nil
	}
	projectOf := func(path string) string { return "proj" }
	aggregate := func(files []CachedFile) ([]fileCount, error) {
		return []fileCount{{Path: "result", Count: len(files)}}, nil
	}

	mtimes := map[string]time.Time{"a.jsonl": time.Unix(1, 0)}

	var wg sync.WaitGroup
	const concurrent = 5
	for i := 0; i < concurrent; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.GetOrParse(mtimes, parse, projectOf, aggregate)
			require.NoError(t, err)
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	require.EqualValues(t, 1, calls)
}

func TestClearAndStats(t *testing.T) {
	c := New[fileCount]()
	c.Update("a.jsonl", []transcript.Entry{{SessionID: "a"}}, time.Unix(1, 0), "proj")

	stats := c.Stats()
	require.Equal(t, 1, stats.FileCount)
	require.Equal(t, 1, stats.EntryCount)

	c.Clear()
	stats = c.Stats()
	require.Equal(t, 0, stats.FileCount)
}
