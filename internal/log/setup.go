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

package log

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// SetupOptions describes the daemon's logging sinks.
type SetupOptions struct {
	// Verbosity is the number of -d flags given.
	Verbosity int

	// Foreground enables the stderr sink even without -d.
	Foreground bool

	// Format and AddSource apply to the stderr sink; empty Format auto-detects.
	Format    Format
	AddSource bool

	// Output replaces os.Stderr for the stream sink.
	Output io.Writer

	// DiagnosticDir holds the diagnostic file; empty means os.TempDir().
	// Set NoDiagnostic to skip the file entirely.
	DiagnosticDir string
	NoDiagnostic  bool
}

// Sinks owns the files opened by Setup.
type Sinks struct {
	// DiagnosticPath is the diagnostic file, empty when disabled.
	DiagnosticPath string

	diag *os.File
}

// Close closes and removes the diagnostic file.
func (s *Sinks) Close() error {
	if s == nil || s.diag == nil {
		return nil
	}
	err := s.diag.Close()
	if rmErr := os.Remove(s.DiagnosticPath); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		err = errors.Join(err, rmErr)
	}
	s.diag = nil
	return err
}

// Setup builds the daemon logger.
//
// The stderr sink logs at the verbosity level and is attached only when
// -d was given or the daemon runs in the foreground. The diagnostic file
// always records at least warnings, and info when verbosity allows it.
func Setup(opts SetupOptions) (*slog.Logger, *Sinks, error) {
	cfg := DefaultConfig()
	cfg.Level = LevelForVerbosity(opts.Verbosity)
	cfg.AddSource = opts.AddSource
	if opts.Output != nil {
		cfg.Output = opts.Output
	}
	if opts.Format != "" {
		cfg.Format = opts.Format
	}
	cfg = ApplyEnv(cfg)
	level := ParseLevel(cfg.Level)

	var handlers []slog.Handler
	if opts.Verbosity > 0 || opts.Foreground {
		handlers = append(handlers, newHandler(cfg.Output, cfg.Format, level, cfg.AddSource))
	}

	sinks := &Sinks{}
	if !opts.NoDiagnostic {
		f, err := os.CreateTemp(opts.DiagnosticDir, "unifyd_daemon_*.log")
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create diagnostic log: %w", err)
		}
		sinks.diag = f
		sinks.DiagnosticPath = f.Name()
		handlers = append(handlers, newHandler(f, FormatText, diagnosticLevel(level), false))
	}

	if len(handlers) == 0 {
		return slog.New(discardHandler{}), sinks, nil
	}
	if len(handlers) == 1 {
		return slog.New(handlers[0]), sinks, nil
	}
	return slog.New(teeHandler(handlers)), sinks, nil
}

// diagnosticLevel clamps level into [info, warn].
func diagnosticLevel(level slog.Level) slog.Level {
	return max(min(level, slog.LevelWarn), slog.LevelInfo)
}

// teeHandler fans records out to every handler that accepts their level.
type teeHandler []slog.Handler

func (t teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t teeHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range t {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (t teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (t teeHandler) WithGroup(name string) slog.Handler {
	out := make(teeHandler, len(t))
	for i, h := range t {
		out[i] = h.WithGroup(name)
	}
	return out
}
