// Package logging provides structured logging for cuid using zerolog.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, safe to read after Init.
var Logger zerolog.Logger

// Level aliases zerolog.Level so callers need not import zerolog directly.
type Level = zerolog.Level

// Log levels exposed for convenience.
const (
	DebugLevel = zerolog.DebugLevel
	InfoLevel  = zerolog.InfoLevel
	WarnLevel  = zerolog.WarnLevel
	ErrorLevel = zerolog.ErrorLevel
)

// Config holds logger configuration, sourced from Config.Logging.
type Config struct {
	Level  Level
	Format string // "json" or "text"
	Output io.Writer
}

// DefaultConfig returns a default configuration.
func DefaultConfig() Config {
	return Config{Level: InfoLevel, Format: "json", Output: os.Stderr}
}

// Init initializes the global logger. Safe to call again on config reload.
func Init(cfg Config) {
	if cfg.Output == nil {
		cfg.Output = os.Stderr
	}
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = cfg.Output
	if cfg.Format == "text" {
		out = zerolog.ConsoleWriter{Out: cfg.Output, TimeFormat: time.RFC3339}
	}

	Logger = zerolog.New(out).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel parses a log level string (case-insensitive), defaulting to info.
func ParseLevel(level string) Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return DebugLevel
	case "warn", "warning":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// For returns a child logger tagged with a component name.
func For(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

func init() {
	Init(DefaultConfig())
}
