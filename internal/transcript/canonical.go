// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"bytes"
	"encoding/json"
)

// HashVisible is the (role, content) reduction of a message that
// participates in prefix-hash computation. Everything else about an Entry
// (timestamps, cost, model, cwd, non-text content blocks) is carried
// through for display but has no bearing on a session's hash chain.
type HashVisible struct {
	Role    string
	Content string
}

// ExtractHashVisible reduces a RawMessage to its hash-visible form: role
// defaults to "unknown" when absent, and content is either the literal
// string (if Content is a JSON string) or the in-order concatenation, with
// no separator, of the "text" fields of content blocks whose type is
// "text". Non-text blocks contribute nothing.
func ExtractHashVisible(msg RawMessage) HashVisible {
	role := msg.Role
	if role == "" {
		role = "unknown"
	}

	if len(msg.Content) == 0 {
		return HashVisible{Role: role, Content: ""}
	}

	var asString string
	if json.Unmarshal(msg.Content, &asString) == nil {
		return HashVisible{Role: role, Content: asString}
	}

	var blocks []ContentBlock
	if err := json.Unmarshal(msg.Content, &blocks); err != nil {
		return HashVisible{Role: role, Content: ""}
	}

	var buf bytes.Buffer
	for _, b := range blocks {
		if b.Type == "text" {
			buf.WriteString(b.Text)
		}
	}
	return HashVisible{Role: role, Content: buf.String()}
}

// CanonicalJSON renders {role, content} with sorted keys and no whitespace,
// the exact preimage concatenated onto the previous prefix hash. Since the
// struct has exactly two fields and Go's encoding/json emits struct fields
// in declaration order (not alphabetical), the fields are declared in
// sorted-key order directly: "content" before "role".
func CanonicalJSON(hv HashVisible) []byte {
	data, _ := json.Marshal(struct {
		Content string `json:"content"`
		Role    string `json:"role"`
	}{Content: hv.Content, Role: hv.Role})
	return data
}
