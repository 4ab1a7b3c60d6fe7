// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestOpen_CreatesFromDefaultsWhenMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	machineID, authToken, err := BootstrapIdentity()
	require.NoError(t, err)

	defaults := Config{MachineID: machineID, AuthToken: authToken}
	store, err := Open(path, defaults, ApplyDefaults, Validate)
	require.NoError(t, err)
	defer store.Close()

	cfg := store.Snapshot()
	require.Equal(t, machineID, cfg.MachineID)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, "system", cfg.Interface.ColorScheme)

	_, err = os.Stat(path)
	require.NoError(t, err)
}

func TestUpdate_DeepMergePreservesSiblingsAndUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"machineId": "m1",
		"authToken": "t1",
		"server": {"host": "127.0.0.1", "port": 8080},
		"interface": {"colorScheme": "system", "language": "zh"},
		"router": {"fast": {"provider": "x", "model": "y"}},
		"customExtension": {"flag": true}
	}`), 0644))

	store, err := Open(path, Config{}, ApplyDefaults, Validate)
	require.NoError(t, err)
	defer store.Close()

	updated, err := store.Update(map[string]any{
		"interface": map[string]any{
			"colorScheme": "dark",
		},
	}, SourceAPI)
	require.NoError(t, err)
	require.Equal(t, "dark", updated.Interface.ColorScheme)
	require.Equal(t, "zh", updated.Interface.Language) // sibling preserved

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"zh"`)
	require.Contains(t, string(raw), `"router"`)          // untouched nested section preserved
	require.Contains(t, string(raw), `"customExtension"`) // unknown-to-struct key preserved
}

func TestWatch_ExternalEditReloadsAndNotifies(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"machineId": "m1", "authToken": "t1",
		"server": {"host": "127.0.0.1", "port": 8080},
		"interface": {"colorScheme": "system", "language": "en"}
	}`), 0644))

	store, err := Open(path, Config{}, ApplyDefaults, Validate)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Watch())

	notified := make(chan ChangeSource, 1)
	store.Subscribe(func(old, new Config, source ChangeSource) {
		notified <- source
	})

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{
		"machineId": "m1", "authToken": "t1",
		"server": {"host": "127.0.0.1", "port": 9090},
		"interface": {"colorScheme": "dark", "language": "en"}
	}`), 0644))

	select {
	case src := <-notified:
		require.Equal(t, SourceExternal, src)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for external reload notification")
	}

	require.Equal(t, 9090, store.Snapshot().Server.Port)
}

func TestWatch_InvalidExternalEditKeepsPreviousState(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"machineId": "m1", "authToken": "t1",
		"server": {"host": "127.0.0.1", "port": 8080},
		"interface": {"colorScheme": "system", "language": "en"}
	}`), 0644))

	store, err := Open(path, Config{}, ApplyDefaults, Validate)
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.Watch())

	before := store.Snapshot()

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(`{not valid json`), 0644))
	time.Sleep(300 * time.Millisecond)

	require.Equal(t, before, store.Snapshot())
}

func TestPreferencesStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "preferences.json")
	store, err := Open(path, Preferences{}, ApplyPreferencesDefaults, nil)
	require.NoError(t, err)
	defer store.Close()

	prefs := store.Snapshot()
	require.Equal(t, "system", prefs.Interface.ColorScheme)

	updated, err := store.Update(map[string]any{
		"interface": map[string]any{"language": "fr"},
	}, SourceAPI)
	require.NoError(t, err)
	require.Equal(t, "fr", updated.Interface.Language)
	require.Equal(t, "system", updated.Interface.ColorScheme)
}
