// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package conversation is the driver that ties the Transcript Reader, File
// Parse Cache, Dependency Graph Engine, and Session Metadata Store
// together into the single listing the HTTP API exposes: a sorted,
// filterable, paginated view of every observed conversation, each
// annotated with its dependency-graph leaf/hash and its metadata flags.
package conversation

import (
	"context"
	"encoding/base64"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/basinlabs/cuid/internal/cache"
	"github.com/basinlabs/cuid/internal/depgraph"
	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/metadata"
	"github.com/basinlabs/cuid/internal/transcript"
)

var log = logging.For("conversation")

// Conversation is one session as the API presents it: the transcript's
// derived facts merged with its metadata record and its dependency-graph
// annotations.
type Conversation struct {
	SessionID             string                   `json:"session_id"`
	Project               string                   `json:"project"`
	MessageCount          int                      `json:"message_count"`
	CreatedAt             time.Time                `json:"created_at"`
	UpdatedAt             time.Time                `json:"updated_at"`
	CustomName            string                   `json:"custom_name"`
	Pinned                bool                     `json:"pinned"`
	Archived              bool                     `json:"archived"`
	ContinuationSessionID string                   `json:"continuation_session_id,omitempty"`
	InitialCommitHead     string                   `json:"initial_commit_head,omitempty"`
	PermissionMode        metadata.PermissionMode  `json:"permission_mode"`
	LeafSession           string                   `json:"leaf_session"`
	Hash                  string                   `json:"hash"`
}

// Filter narrows List's result to a subset of conversations.
type Filter struct {
	Archived        *bool
	HasContinuation *bool
	Pinned          *bool
	Cursor          string
	Limit           int
}

// Page is one paginated slice of conversations plus the cursor to fetch
// the next one; NextCursor is empty once there are no more results.
type Page struct {
	Conversations []Conversation `json:"conversations"`
	NextCursor    string         `json:"next_cursor,omitempty"`
}

const defaultLimit = 50

// Service is the conversation-listing driver. It owns no storage of its
// own: it walks the transcript root, drives the cache and dependency
// engine, and merges in the metadata store.
type Service struct {
	root   string
	reader *transcript.Reader
	cache  *cache.Cache[Conversation]
	md     *metadata.Store

	mu      sync.RWMutex
	engine  *depgraph.Engine
	byID    map[string]string // session id -> transcript file path, refreshed each List
}

// NewService creates a Service rooted at the assistant CLI's transcript
// directory tree (e.g. $HOME/.claude/projects). AttachEngine must be
// called once the dependency graph engine is constructed, since the
// engine itself needs a MessageFetcher bound back to this Service.
func NewService(root string, md *metadata.Store) *Service {
	return &Service{
		root:   root,
		reader: transcript.NewReader(),
		cache:  cache.New[Conversation](),
		md:     md,
		byID:   make(map[string]string),
	}
}

// AttachEngine binds the dependency graph engine this service drives.
// Must be called before List or FetchMessages is used.
func (s *Service) AttachEngine(e *depgraph.Engine) {
	s.mu.Lock()
	s.engine = e
	s.mu.Unlock()
}

// ClearCache drops every cached parse result, forcing a full re-scan of the
// transcript tree on the next List call.
func (s *Service) ClearCache() {
	s.cache.Clear()
}

// FetchMessages implements depgraph.MessageFetcher: given a session id, it
// locates that session's transcript file and reduces its entries to their
// hash-visible (role, content) form in file order.
func (s *Service) FetchMessages(sessionID string) ([]transcript.HashVisible, error) {
	s.mu.RLock()
	path, ok := s.byID[sessionID]
	s.mu.RUnlock()
	if !ok {
		var err error
		path, err = s.locate(sessionID)
		if err != nil {
			return nil, err
		}
	}

	entries, _, err := s.reader.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read transcript for session %s: %w", sessionID, err)
	}

	out := make([]transcript.HashVisible, 0, len(entries))
	for _, e := range entries {
		out = append(out, transcript.ExtractHashVisible(e.Message))
	}
	return out, nil
}

func (s *Service) locate(sessionID string) (string, error) {
	want := sessionID + ".jsonl"
	var found string
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || found != "" {
			return nil
		}
		if !d.IsDir() && filepath.Base(path) == want {
			found = path
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if found == "" {
		return "", fmt.Errorf("no transcript file for session %s", sessionID)
	}
	return found, nil
}

// List returns a filtered, paginated, dependency-graph-annotated view of
// every observed conversation.
func (s *Service) List(ctx context.Context, filter Filter) (Page, error) {
	fileMtimes, byID, err := s.discover()
	if err != nil {
		return Page{}, fmt.Errorf("discover transcript files: %w", err)
	}

	s.mu.Lock()
	s.byID = byID
	engine := s.engine
	s.mu.Unlock()

	convs, err := s.cache.GetOrParse(fileMtimes, s.parseFile, s.projectOf, aggregate)
	if err != nil {
		return Page{}, fmt.Errorf("aggregate conversations: %w", err)
	}

	if engine != nil {
		depConvs := make([]depgraph.Conversation, len(convs))
		for i, c := range convs {
			depConvs[i] = depgraph.Conversation{
				SessionID:    c.SessionID,
				MessageCount: c.MessageCount,
				CreatedAt:    c.CreatedAt,
				UpdatedAt:    c.UpdatedAt,
			}
		}
		enhanced := engine.Enhance(depConvs)
		leafByID := make(map[string]depgraph.Enhanced, len(enhanced))
		for _, e := range enhanced {
			leafByID[e.SessionID] = e
		}
		for i, c := range convs {
			if e, ok := leafByID[c.SessionID]; ok {
				convs[i].LeafSession = e.LeafSession
				convs[i].Hash = e.Hash
			}
		}
	}

	for i, c := range convs {
		rec, err := s.md.Get(ctx, c.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", c.SessionID).Msg("metadata lookup failed, using defaults")
			continue
		}
		convs[i].CustomName = rec.CustomName
		convs[i].Pinned = rec.Pinned
		convs[i].Archived = rec.Archived
		convs[i].ContinuationSessionID = rec.ContinuationSessionID
		convs[i].InitialCommitHead = rec.InitialCommitHead
		convs[i].PermissionMode = rec.PermissionMode
	}

	convs = applyFilter(convs, filter)

	sort.Slice(convs, func(i, j int) bool {
		if !convs[i].UpdatedAt.Equal(convs[j].UpdatedAt) {
			return convs[i].UpdatedAt.After(convs[j].UpdatedAt)
		}
		return convs[i].SessionID < convs[j].SessionID
	})

	return paginate(convs, filter)
}

// Stats summarizes the current conversation set for the dashboard-less
// health check fast-path (?statsOnly=1).
type Stats struct {
	SessionCount int `json:"session_count"`
	TreeDepth    int `json:"tree_depth"`
	LeafCount    int `json:"leaf_count"`
	Pinned       int `json:"pinned"`
	Archived     int `json:"archived"`
}

// Stats returns dependency-graph and metadata counts without walking or
// re-parsing any transcript files.
func (s *Service) Stats(ctx context.Context) (Stats, error) {
	s.mu.RLock()
	engine := s.engine
	s.mu.RUnlock()

	var out Stats
	if engine != nil {
		gs := engine.Stats()
		out.SessionCount = gs.SessionCount
		out.TreeDepth = gs.TreeDepth
		out.LeafCount = gs.LeafCount
	}
	mstats, err := s.md.Stats(ctx)
	if err != nil {
		return out, fmt.Errorf("metadata stats: %w", err)
	}
	out.Pinned = mstats.Pinned
	out.Archived = mstats.Archived
	return out, nil
}

func applyFilter(convs []Conversation, f Filter) []Conversation {
	out := convs[:0]
	for _, c := range convs {
		if f.Archived != nil && c.Archived != *f.Archived {
			continue
		}
		if f.Pinned != nil && c.Pinned != *f.Pinned {
			continue
		}
		if f.HasContinuation != nil {
			has := c.ContinuationSessionID != ""
			if has != *f.HasContinuation {
				continue
			}
		}
		out = append(out, c)
	}
	return out
}

func paginate(convs []Conversation, f Filter) (Page, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	start := 0
	if f.Cursor != "" {
		afterID, err := decodeCursor(f.Cursor)
		if err != nil {
			return Page{}, fmt.Errorf("invalid cursor: %w", err)
		}
		for i, c := range convs {
			if c.SessionID == afterID {
				start = i + 1
				break
			}
		}
	}

	if start >= len(convs) {
		return Page{Conversations: nil}, nil
	}

	end := start + limit
	var next string
	if end < len(convs) {
		next = encodeCursor(convs[end-1].SessionID)
	} else {
		end = len(convs)
	}

	return Page{Conversations: convs[start:end], NextCursor: next}, nil
}

func encodeCursor(sessionID string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(sessionID))
}

func decodeCursor(cursor string) (string, error) {
	b, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (s *Service) parseFile(path string) ([]transcript.Entry, error) {
	entries, stats, err := s.reader.ReadFile(path)
	if stats.LinesSkipped > 0 {
		log.Warn().Str("path", path).Int("skipped", stats.LinesSkipped).Msg("malformed transcript lines skipped")
	}
	return entries, err
}

func (s *Service) projectOf(path string) string {
	rel, err := filepath.Rel(s.root, path)
	if err != nil {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

func aggregate(files []cache.CachedFile) ([]Conversation, error) {
	bySession := make(map[string]*Conversation)
	for _, f := range files {
		for sessionID, entries := range transcript.GroupBySession(f.Entries) {
			c, ok := bySession[sessionID]
			if !ok {
				c = &Conversation{SessionID: sessionID, Project: f.Project}
				bySession[sessionID] = c
			}
			for _, e := range entries {
				c.MessageCount++
				if c.CreatedAt.IsZero() || e.Timestamp.Before(c.CreatedAt) {
					c.CreatedAt = e.Timestamp
				}
				if e.Timestamp.After(c.UpdatedAt) {
					c.UpdatedAt = e.Timestamp
				}
			}
		}
	}

	out := make([]Conversation, 0, len(bySession))
	for _, c := range bySession {
		out = append(out, *c)
	}
	return out, nil
}

func (s *Service) discover() (map[string]time.Time, map[string]string, error) {
	fileMtimes := make(map[string]time.Time)
	byID := make(map[string]string)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d == nil || d.IsDir() || !strings.HasSuffix(path, ".jsonl") {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		fileMtimes[path] = info.ModTime()
		byID[transcript.SessionIDFromPath(path)] = path
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return fileMtimes, byID, nil
}
