// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package transcript parses append-only, line-delimited transcript files
// into typed entries and exposes the canonicalization rules the dependency
// graph engine hashes over.
package transcript

import (
	"encoding/json"
	"time"
)

// Kind enumerates the discriminant of a transcript line.
type Kind string

const (
	KindUser      Kind = "user"
	KindAssistant Kind = "assistant"
	KindSummary   Kind = "summary"
	KindMeta      Kind = "meta"
)

// Entry is one immutable record parsed from a single transcript line.
type Entry struct {
	Kind       Kind            `json:"kind"`
	UUID       string          `json:"uuid"`
	ParentUUID string          `json:"parent_uuid,omitempty"`
	SessionID  string          `json:"session_id"`
	Timestamp  time.Time       `json:"timestamp"`
	Message    RawMessage      `json:"message"`

	// Auxiliary fields carried through but not hashed.
	Cost     float64 `json:"cost,omitempty"`
	Duration int64   `json:"duration_ms,omitempty"`
	Model    string  `json:"model,omitempty"`
	CWD      string  `json:"cwd,omitempty"`
}

// RawMessage is the discriminated message payload as parsed from the
// transcript line's "message" field. Content may be a plain string or an
// array of content blocks; both shapes are preserved for display, and
// reduced to hash-visible (role, text) via ExtractHashVisible.
type RawMessage struct {
	Role    string          `json:"role"`
	Content json.RawMessage `json:"content"`
}

// ContentBlock is one element of a structured (array) content payload.
// Non-text block types are preserved verbatim in Raw for display but are
// ignored when computing hash-visible text.
type ContentBlock struct {
	Type string          `json:"type"`
	Text string          `json:"text,omitempty"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the original bytes around in Raw while still
// extracting Type/Text for the common case.
func (c *ContentBlock) UnmarshalJSON(data []byte) error {
	type alias ContentBlock
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = ContentBlock(a)
	c.Raw = append(json.RawMessage(nil), data...)
	return nil
}
