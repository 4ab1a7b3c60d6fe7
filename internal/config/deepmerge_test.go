// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeepMerge_PreservesUnrelatedSiblings(t *testing.T) {
	dst := map[string]any{
		"interface": map[string]any{
			"colorScheme": "system",
			"language":    "zh",
		},
		"router": map[string]any{"fast": "gpt"},
	}
	src := map[string]any{
		"interface": map[string]any{
			"notifications": map[string]any{"enabled": true},
		},
	}

	merged := DeepMerge(dst, src)
	iface := merged["interface"].(map[string]any)
	require.Equal(t, "zh", iface["language"])
	notifications := iface["notifications"].(map[string]any)
	require.Equal(t, true, notifications["enabled"])
	require.Contains(t, merged, "router")
}

func TestDeepMerge_ScalarOverride(t *testing.T) {
	dst := map[string]any{"a": 1, "b": 2}
	src := map[string]any{"a": 99}
	merged := DeepMerge(dst, src)
	require.Equal(t, 99, merged["a"])
	require.Equal(t, 2, merged["b"])
}
