// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"fmt"
	"os"

	hjson "github.com/hjson/hjson-go/v4"
)

// decodeRaw parses HJSON (a superset of JSON) bytes into the untyped map
// representation DeepMerge and the Store operate over.
func decodeRaw(data []byte) (map[string]any, error) {
	var raw map[string]any
	if err := hjson.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse hjson: %w", err)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	return raw, nil
}

// encodeTyped round-trips a raw map into T via JSON, giving callers a
// type-safe view alongside the raw map that preserves unknown keys.
func encodeTyped[T any](raw map[string]any) (T, error) {
	var out T
	data, err := json.Marshal(raw)
	if err != nil {
		return out, fmt.Errorf("marshal raw config: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("unmarshal typed config: %w", err)
	}
	return out, nil
}

// toRaw converts a typed value back into the generic map representation,
// used the first time a store is created and no on-disk file exists yet.
func toRaw(v any) (map[string]any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("unmarshal config to raw: %w", err)
	}
	return raw, nil
}

// readFile reads and HJSON-decodes path, returning (nil, nil) if the file
// does not exist so callers can distinguish "create fresh" from "corrupt".
func readFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return decodeRaw(data)
}
