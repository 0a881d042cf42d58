// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package log builds the daemon's structured loggers.
package log

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/term"
)

// Format represents the log output format.
type Format string

const (
	// FormatJSON outputs logs in JSON format for machine parsing.
	FormatJSON Format = "json"
	// FormatText outputs logs in human-readable text format.
	FormatText Format = "text"
)

// Custom log levels extending slog's standard levels.
const (
	// LevelTrace is more verbose than Debug, used for raw device traffic.
	LevelTrace = slog.Level(-8)
)

// Standard field keys for structured logging.
const (
	// InstanceIDKey identifies one daemon process lifetime.
	InstanceIDKey = "instance_id"
	// ComponentKey names the subsystem that emitted the record.
	ComponentKey = "component"
	// DeviceKey is the field key for hidraw device paths.
	DeviceKey = "device"
	// SignalKey is the field key for signal names.
	SignalKey = "signal"
	// DurationKey is the field key for duration in milliseconds.
	DurationKey = "duration_ms"
	// EventKey is the field key for event types.
	EventKey = "event"
)

// Config holds the logging configuration.
type Config struct {
	// Level sets the minimum log level (trace, debug, info, warn, error).
	// Default: error
	Level string

	// Format sets the output format (json, text).
	// Default: text on a terminal, json otherwise
	Format Format

	// Output is the writer for log output. Nil disables the stream sink.
	// Default: os.Stderr
	Output io.Writer

	// AddSource adds source file and line information to logs.
	// Default: false
	AddSource bool
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Level:     "error",
		Format:    detectFormat(os.Stderr),
		Output:    os.Stderr,
		AddSource: false,
	}
}

// FromEnv creates a Config from environment variables.
// Supported environment variables:
//   - UNIFYD_DEBUG: true/1 to enable debug level and source logging (takes precedence)
//   - UNIFYD_LOG_LEVEL: trace, debug, info, warn, error
//   - UNIFYD_LOG_FORMAT: json, text
//   - UNIFYD_LOG_SOURCE: 1 to enable source file/line
func FromEnv() *Config {
	return ApplyEnv(DefaultConfig())
}

// ApplyEnv overlays environment variables onto cfg and returns it.
func ApplyEnv(cfg *Config) *Config {
	debug := os.Getenv("UNIFYD_DEBUG")
	if debug == "true" || debug == "1" {
		cfg.Level = "debug"
		cfg.AddSource = true
	} else if level := os.Getenv("UNIFYD_LOG_LEVEL"); level != "" {
		cfg.Level = strings.ToLower(level)
	}

	if format := os.Getenv("UNIFYD_LOG_FORMAT"); format != "" {
		cfg.Format = Format(strings.ToLower(format))
	}

	if os.Getenv("UNIFYD_LOG_SOURCE") == "1" {
		cfg.AddSource = true
	}

	return cfg
}

// LevelForVerbosity maps the number of -d flags to a level name.
// Each repetition lowers the threshold by one step, with trace as the floor.
func LevelForVerbosity(count int) string {
	switch {
	case count <= 0:
		return "error"
	case count == 1:
		return "warn"
	case count == 2:
		return "info"
	case count == 3:
		return "debug"
	default:
		return "trace"
	}
}

// New creates a new structured logger from the given configuration.
func New(cfg *Config) *slog.Logger {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Output == nil {
		return slog.New(discardHandler{})
	}
	return slog.New(newHandler(cfg.Output, cfg.Format, ParseLevel(cfg.Level), cfg.AddSource))
}

func newHandler(w io.Writer, format Format, level slog.Leveler, addSource bool) slog.Handler {
	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: addSource,
	}

	switch format {
	case FormatText:
		return slog.NewTextHandler(w, opts)
	case FormatJSON:
		fallthrough
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// ParseLevel converts a string level to slog.Level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return LevelTrace
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// detectFormat picks text for interactive terminals and JSON for everything else.
func detectFormat(f *os.File) Format {
	if f != nil && term.IsTerminal(int(f.Fd())) {
		return FormatText
	}
	return FormatJSON
}

// WithComponent returns a new logger with a component name field.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With(ComponentKey, component)
}

// WithInstanceID returns a new logger tagged with the daemon instance ID.
func WithInstanceID(logger *slog.Logger, instanceID string) *slog.Logger {
	return logger.With(InstanceIDKey, instanceID)
}

// WithDevice returns a new logger with a device path field.
func WithDevice(logger *slog.Logger, path string) *slog.Logger {
	return logger.With(slog.String(DeviceKey, path))
}

// Error creates an error attribute.
func Error(err error) slog.Attr {
	return slog.Any("error", err)
}

// Duration creates a duration attribute in milliseconds.
func Duration(key string, value int64) slog.Attr {
	return slog.Int64(key+"_ms", value)
}

// Trace logs a message at trace level with optional attributes.
func Trace(logger *slog.Logger, msg string, attrs ...slog.Attr) {
	if !logger.Enabled(context.Background(), LevelTrace) {
		return
	}
	logger.LogAttrs(context.Background(), LevelTrace, msg, attrs...)
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }
