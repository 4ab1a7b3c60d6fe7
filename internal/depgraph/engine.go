// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package depgraph reconstructs parent/child relationships between
// conversation forks from their prefix-hash chains and propagates each
// session's nearest leaf descendant.
package depgraph

import (
	"sort"
	"sync"
	"time"

	"github.com/basinlabs/cuid/internal/logging"
	"github.com/basinlabs/cuid/internal/transcript"
)

var log = logging.For("depgraph")

const schemaVersion = 1

// rebuildThreshold is retained per spec as a future optimization trigger;
// the engine always runs the full-rebuild primitives below regardless,
// since they are idempotent and inexpensive at observed scales.
const rebuildThreshold = 0.3

// Conversation is the minimal shape the engine needs from a caller's
// conversation listing: enough to decide whether a session's hash chain
// is stale.
type Conversation struct {
	SessionID    string
	MessageCount int
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Enhanced augments a Conversation with the fields the engine computes.
type Enhanced struct {
	Conversation
	LeafSession string
	Hash        string
}

// MessageFetcher returns the ordered, hash-visible message list for a
// session, used to (re)compute its prefix-hash chain.
type MessageFetcher func(sessionID string) ([]transcript.HashVisible, error)

// Record is one session's persisted dependency state.
type Record struct {
	SessionID        string    `json:"session_id"`
	PrefixHashes     []string  `json:"prefix_hashes"`
	EndHash          string    `json:"end_hash"`
	ParentSession    string    `json:"parent_session,omitempty"`
	ChildrenSessions []string  `json:"children_sessions,omitempty"`
	LeafSession      string    `json:"leaf_session"`
	MessageCount     int       `json:"message_count"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
	Depth            int       `json:"depth"`
}

// Stats summarizes the current graph.
type Stats struct {
	SessionCount int
	TreeDepth    int
	LeafCount    int
}

// Engine maintains the dependency graph and persists it as durable JSON.
type Engine struct {
	mu      sync.RWMutex
	records map[string]*Record
	path    string
	fetch   MessageFetcher
}

// New loads an Engine from path (if present) and binds it to fetch for
// recomputing stale sessions' message chains. A corrupt or missing
// persisted file is treated as an empty graph; the engine rebuilds from
// whatever conversations it is next asked to enhance.
func New(path string, fetch MessageFetcher) *Engine {
	e := &Engine{records: make(map[string]*Record), path: path, fetch: fetch}
	if err := e.load(); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("dependency graph file unreadable or corrupt, starting from empty graph")
	}
	return e
}

// Enhance brings the engine's records up to date with conversations and
// returns each one annotated with leaf_session and hash. It never fails
// user-visibly: any internal error is logged and the affected
// conversations are returned annotated with leaf_session = self and
// hash = "" rather than propagating the error.
func (e *Engine) Enhance(conversations []Conversation) []Enhanced {
	e.mu.Lock()
	err := e.update(conversations)
	e.mu.Unlock()

	if err != nil {
		log.Error().Err(err).Msg("dependency graph enhance failed, degrading to self-leaf annotations")
		out := make([]Enhanced, len(conversations))
		for i, c := range conversations {
			out[i] = Enhanced{Conversation: c, LeafSession: c.SessionID, Hash: ""}
		}
		return out
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Enhanced, len(conversations))
	for i, c := range conversations {
		if r, ok := e.records[c.SessionID]; ok {
			out[i] = Enhanced{Conversation: c, LeafSession: r.LeafSession, Hash: r.EndHash}
		} else {
			out[i] = Enhanced{Conversation: c, LeafSession: c.SessionID, Hash: ""}
		}
	}
	return out
}

// Lookup returns a copy of a session's record, if known.
func (e *Engine) Lookup(sessionID string) (Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.records[sessionID]
	if !ok {
		return Record{}, false
	}
	return *r, true
}

// Stats reports aggregate graph statistics.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()

	s := Stats{SessionCount: len(e.records)}
	maxDepth := 0
	for _, r := range e.records {
		if len(r.ChildrenSessions) == 0 {
			s.LeafCount++
		}
		if r.Depth > maxDepth {
			maxDepth = r.Depth
		}
	}
	s.TreeDepth = maxDepth
	return s
}

// update performs the incremental-then-full-rebuild update described by
// the spec: recompute prefix hashes for stale sessions, then re-run parent
// discovery and leaf propagation over the whole graph (cheap and
// idempotent at observed scales, so the affected-only fast path is not
// worth the bookkeeping it would need).
func (e *Engine) update(conversations []Conversation) error {
	now := time.Now()

	for _, c := range conversations {
		existing, ok := e.records[c.SessionID]
		if ok && existing.MessageCount == c.MessageCount {
			continue
		}

		messages, err := e.fetch(c.SessionID)
		if err != nil {
			log.Warn().Err(err).Str("session_id", c.SessionID).Msg("failed to fetch messages, leaving prior record in place")
			continue
		}

		hashes := ComputePrefixHashes(messages)
		createdAt := c.CreatedAt
		if ok {
			createdAt = existing.CreatedAt
		}
		if createdAt.IsZero() {
			createdAt = now
		}

		e.records[c.SessionID] = &Record{
			SessionID:    c.SessionID,
			PrefixHashes: hashes,
			EndHash:      EndHash(hashes),
			MessageCount: c.MessageCount,
			CreatedAt:    createdAt,
			UpdatedAt:    now,
		}
	}

	e.rebuildParents()
	e.rebuildLeaves()

	return e.persist(now)
}

// rebuildParents implements parent discovery: build an end_hash -> id
// index, then for each session find the highest prefix index whose hash
// matches another session's end_hash. That "highest index" is the
// session's closest ancestor.
func (e *Engine) rebuildParents() {
	endHashIndex := make(map[string]string, len(e.records))
	for id, r := range e.records {
		if r.EndHash != "" {
			endHashIndex[r.EndHash] = id
		}
	}

	ids := e.sortedIDs()

	for _, id := range ids {
		r := e.records[id]
		r.ParentSession = ""
		if len(r.PrefixHashes) < 2 {
			continue
		}
		for i := len(r.PrefixHashes) - 2; i >= 0; i-- {
			if owner, ok := endHashIndex[r.PrefixHashes[i]]; ok && owner != id {
				r.ParentSession = owner
				break
			}
		}
	}

	for _, id := range ids {
		e.records[id].ChildrenSessions = nil
	}
	for _, id := range ids {
		r := e.records[id]
		if r.ParentSession == "" {
			continue
		}
		parent, ok := e.records[r.ParentSession]
		if !ok {
			continue
		}
		parent.ChildrenSessions = append(parent.ChildrenSessions, id)
	}
}

// rebuildLeaves implements Kahn-style reverse-topological leaf
// propagation: leaves seed themselves, then each node's leaf is the
// nearest-leaf of the first minimum-distance child encountered in
// children_sessions order.
func (e *Engine) rebuildLeaves() {
	type state struct {
		leaf      string
		distance  int
		resolved  bool
	}
	states := make(map[string]*state, len(e.records))
	remaining := make(map[string]int, len(e.records))

	for id, r := range e.records {
		states[id] = &state{}
		remaining[id] = len(r.ChildrenSessions)
	}

	var queue []string
	for id, n := range remaining {
		if n == 0 {
			queue = append(queue, id)
		}
	}
	sort.Strings(queue)

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]

		r := e.records[id]
		st := states[id]
		if len(r.ChildrenSessions) == 0 {
			st.leaf = id
			st.distance = 0
		} else {
			bestLeaf := ""
			bestDistance := -1
			for _, child := range r.ChildrenSessions {
				cs := states[child]
				if bestDistance == -1 || cs.distance+1 < bestDistance {
					bestDistance = cs.distance + 1
					bestLeaf = cs.leaf
				}
			}
			st.leaf = bestLeaf
			st.distance = bestDistance
		}
		st.resolved = true
		r.LeafSession = st.leaf
		r.Depth = st.distance

		if r.ParentSession == "" {
			continue
		}
		remaining[r.ParentSession]--
		if remaining[r.ParentSession] == 0 {
			queue = append(queue, r.ParentSession)
		}
	}
}

func (e *Engine) sortedIDs() []string {
	ids := make([]string, 0, len(e.records))
	for id := range e.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
