// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package depgraph

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/basinlabs/cuid/internal/transcript"
)

// ComputePrefixHashes returns the prefix-hash chain for an ordered message
// list: hashes[i] = SHA256(hashes[i-1] ++ canonical({role, content})), with
// hashes[-1] treated as the empty string. Each element is 64 lowercase hex
// characters.
func ComputePrefixHashes(messages []transcript.HashVisible) []string {
	hashes := make([]string, len(messages))
	prev := ""
	for i, m := range messages {
		canon := transcript.CanonicalJSON(m)
		sum := sha256.Sum256(append([]byte(prev), canon...))
		prev = hex.EncodeToString(sum[:])
		hashes[i] = prev
	}
	return hashes
}

// EndHash returns the last element of a prefix-hash chain, or "" if empty.
func EndHash(hashes []string) string {
	if len(hashes) == 0 {
		return ""
	}
	return hashes[len(hashes)-1]
}
