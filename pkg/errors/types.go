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

package errors

import (
	"fmt"
)

// UsageError represents invalid command-line input.
// The caller reports it with usage text and a non-zero exit status.
type UsageError struct {
	// Arg is the offending flag or token, if known
	Arg string

	// Message is the human-readable error description
	Message string

	// Usage is the usage text printed alongside the error
	Usage string

	// Cause is the underlying parse error (if any)
	Cause error
}

// Error implements the error interface.
func (e *UsageError) Error() string {
	if e.Arg != "" {
		return fmt.Sprintf("usage error at %s: %s", e.Arg, e.Message)
	}
	return fmt.Sprintf("usage error: %s", e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *UsageError) Unwrap() error {
	return e.Cause
}

// IsUserVisible implements UserVisibleError.
func (e *UsageError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *UsageError) UserMessage() string { return e.Message }

// Suggestion implements UserVisibleError.
func (e *UsageError) Suggestion() string {
	return "Run with --help for usage, or --help-actions to list actions"
}

// ErrorType implements ErrorClassifier.
func (e *UsageError) ErrorType() string { return "usage" }

// DetachError represents a failure to separate the daemon from its terminal.
// Stage is 1 or 2 for the first or second spawn.
type DetachError struct {
	Stage int
	Cause error
}

// Error implements the error interface.
func (e *DetachError) Error() string {
	return fmt.Sprintf("fork #%d failed: %v", e.Stage, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *DetachError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *DetachError) ErrorType() string { return "detach" }

// PIDFileError represents a failure to write or remove the PID file.
// It is never fatal to the daemon.
type PIDFileError struct {
	Path  string
	Op    string
	Cause error
}

// Error implements the error interface.
func (e *PIDFileError) Error() string {
	return fmt.Sprintf("failed to %s PID file %s: %v", e.Op, e.Path, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *PIDFileError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *PIDFileError) ErrorType() string { return "pid_file" }

// HookError represents a startup or shutdown hook that failed or panicked.
type HookError struct {
	// Hook is "startup" or "shutdown"
	Hook string

	// Panic is the recovered panic value, if the hook panicked
	Panic any

	// Cause is the returned error, if the hook returned one
	Cause error
}

// Error implements the error interface.
func (e *HookError) Error() string {
	if e.Panic != nil {
		return fmt.Sprintf("%s hook panicked: %v", e.Hook, e.Panic)
	}
	return fmt.Sprintf("%s hook failed: %v", e.Hook, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *HookError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *HookError) ErrorType() string { return "hook" }

// MissingDependencyError represents a required system component that is absent.
type MissingDependencyError struct {
	// Dependency names the missing component (e.g., "hidraw")
	Dependency string

	// Hint tells the user what to install
	Hint string
}

// Error implements the error interface.
func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("missing required system dependency %s", e.Dependency)
}

// IsUserVisible implements UserVisibleError.
func (e *MissingDependencyError) IsUserVisible() bool { return true }

// UserMessage implements UserVisibleError.
func (e *MissingDependencyError) UserMessage() string { return e.Error() }

// Suggestion implements UserVisibleError.
func (e *MissingDependencyError) Suggestion() string { return e.Hint }

// ErrorType implements ErrorClassifier.
func (e *MissingDependencyError) ErrorType() string { return "dependency" }

// ConfigError represents configuration problems.
// Use this for configuration file errors, missing settings, or invalid config values.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "pid_file", "metrics.listen")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error at %s: %s", e.Key, e.Reason)
	}
	return fmt.Sprintf("config error: %s", e.Reason)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// ErrorType implements ErrorClassifier.
func (e *ConfigError) ErrorType() string { return "config" }
