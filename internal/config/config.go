// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package config implements the live-reloadable configuration and
// preferences stores: JSON-backed, deep-merged on partial update, watched
// for external edits, validated at load.
package config

import "fmt"

// Config is the process-wide, live-reloadable configuration.
type Config struct {
	MachineID     string              `json:"machineId"`
	AuthToken     string              `json:"authToken"`
	Server        ServerConfig        `json:"server"`
	Notifications NotificationsConfig `json:"notifications"`
	Router        map[string]Route    `json:"router,omitempty"`
	Interface     InterfaceConfig     `json:"interface"`
	Logging       LoggingConfig       `json:"logging"`
}

// ServerConfig is the HTTP listener's bind address.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// NotificationsConfig controls web-push delivery.
type NotificationsConfig struct {
	Enabled     bool   `json:"enabled"`
	PushSubject string `json:"pushSubject,omitempty"`
	VAPID       VAPID  `json:"vapid"`
	NtfyURL     string `json:"ntfyUrl,omitempty"`
}

// VAPID holds the web-push VAPID keypair.
type VAPID struct {
	PublicKey  string `json:"publicKey,omitempty"`
	PrivateKey string `json:"privateKey,omitempty"`
}

// Route maps a logical model name to a concrete provider and model.
type Route struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// InterfaceConfig is the UI's color scheme and language, also exposed
// standalone as Preferences.
type InterfaceConfig struct {
	ColorScheme string `json:"colorScheme"`
	Language    string `json:"language"`
}

// LoggingConfig wires Config.Logging to internal/logging's Init.
type LoggingConfig struct {
	Level  string `json:"level"`
	Format string `json:"format"`
}

// Preferences is the UI preferences document, a thin sibling of Config
// served from its own file (preferences.json) through the same generic
// Store[T] machinery.
type Preferences struct {
	Interface InterfaceConfig `json:"interface"`
}

// ApplyDefaults fills in optional sections left unset, matching the
// teacher's applyDefaults idiom (one field-by-field pass, no reflection).
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "127.0.0.1"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 7890
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	if cfg.Interface.ColorScheme == "" {
		cfg.Interface.ColorScheme = "system"
	}
	if cfg.Interface.Language == "" {
		cfg.Interface.Language = "en"
	}
}

// ApplyPreferencesDefaults mirrors ApplyDefaults for the smaller
// preferences document.
func ApplyPreferencesDefaults(p *Preferences) {
	if p.Interface.ColorScheme == "" {
		p.Interface.ColorScheme = "system"
	}
	if p.Interface.Language == "" {
		p.Interface.Language = "en"
	}
}

// Validate checks the required fields the spec calls out explicitly.
func Validate(cfg *Config) error {
	if cfg.MachineID == "" {
		return fmt.Errorf("config: machineId is required")
	}
	if cfg.AuthToken == "" {
		return fmt.Errorf("config: authToken is required")
	}
	if cfg.Server.Host == "" {
		return fmt.Errorf("config: server.host is required")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("config: server.port must be between 1 and 65535")
	}
	return nil
}
