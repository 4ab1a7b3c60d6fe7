// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package transcript

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractHashVisible_StringContent(t *testing.T) {
	msg := RawMessage{Role: "user", Content: json.RawMessage(`"hello"`)}
	hv := ExtractHashVisible(msg)
	require.Equal(t, "user", hv.Role)
	require.Equal(t, "hello", hv.Content)
}

func TestExtractHashVisible_BlocksConcatenateTextOnly(t *testing.T) {
	msg := RawMessage{
		Role: "assistant",
		Content: json.RawMessage(`[
			{"type":"text","text":"foo"},
			{"type":"tool_use","name":"Bash"},
			{"type":"text","text":"bar"}
		]`),
	}
	hv := ExtractHashVisible(msg)
	require.Equal(t, "foobar", hv.Content)
}

func TestExtractHashVisible_MissingRoleDefaultsUnknown(t *testing.T) {
	msg := RawMessage{Content: json.RawMessage(`"x"`)}
	hv := ExtractHashVisible(msg)
	require.Equal(t, "unknown", hv.Role)
}

func TestCanonicalJSON_SortedKeysNoWhitespace(t *testing.T) {
	data := CanonicalJSON(HashVisible{Role: "user", Content: "hi"})
	require.Equal(t, `{"content":"hi","role":"user"}`, string(data))
}
