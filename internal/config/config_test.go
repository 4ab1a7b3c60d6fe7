// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate_RequiresIdentityAndServer(t *testing.T) {
	cfg := Config{}
	require.Error(t, Validate(&cfg))

	cfg.MachineID = "m1"
	cfg.AuthToken = "t1"
	require.Error(t, Validate(&cfg))

	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8080
	require.NoError(t, Validate(&cfg))
}

func TestApplyDefaults_FillsOptionalSections(t *testing.T) {
	cfg := Config{MachineID: "m", AuthToken: "t"}
	ApplyDefaults(&cfg)
	require.Equal(t, "127.0.0.1", cfg.Server.Host)
	require.Equal(t, 7890, cfg.Server.Port)
	require.Equal(t, "info", cfg.Logging.Level)
	require.Equal(t, "system", cfg.Interface.ColorScheme)
}
