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

package lifecycle

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LifecycleEvent is one line of the lifecycle audit log.
type LifecycleEvent struct {
	Timestamp  time.Time         `json:"timestamp"`
	Event      string            `json:"event"` // "start", "detached", "pid_file", "signal", "stop", ...
	InstanceID string            `json:"instance_id,omitempty"`
	PID        int               `json:"pid,omitempty"`
	Version    string            `json:"version,omitempty"`
	Success    bool              `json:"success"`
	Message    string            `json:"message,omitempty"`
	Flags      map[string]string `json:"flags,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// LifecycleLogger appends daemon lifecycle events to a JSON-lines file.
// A logger with an empty path discards every event.
type LifecycleLogger struct {
	logPath    string
	instanceID string

	mu sync.Mutex
}

// NewLifecycleLogger creates a new lifecycle logger.
func NewLifecycleLogger(logPath, instanceID string) *LifecycleLogger {
	return &LifecycleLogger{
		logPath:    logPath,
		instanceID: instanceID,
	}
}

// LogStart logs a daemon start with the command-line flags it was given.
func (l *LifecycleLogger) LogStart(version string, args []string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "start",
		PID:     os.Getpid(),
		Version: version,
		Success: true,
		Message: "Daemon start initiated",
		Flags:   parseFlags(args),
	})
}

// LogDetached logs the post-detachment daemon PID.
func (l *LifecycleLogger) LogDetached(pid int) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "detached",
		PID:     pid,
		Success: true,
		Message: "Detached from terminal",
	})
}

// LogDetachFailure logs a failed detachment.
func (l *LifecycleLogger) LogDetachFailure(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "detach_failure",
		PID:     os.Getpid(),
		Success: false,
		Message: "Failed to detach",
		Error:   err.Error(),
	})
}

// LogSignal logs a received stop signal.
func (l *LifecycleLogger) LogSignal(cause StopCause) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "signal",
		PID:     os.Getpid(),
		Success: true,
		Message: fmt.Sprintf("Stop requested: %s", cause),
	})
}

// LogStartupFailure logs a failed startup hook.
func (l *LifecycleLogger) LogStartupFailure(err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "startup_failure",
		PID:     os.Getpid(),
		Success: false,
		Message: "Startup hook failed",
		Error:   err.Error(),
	})
}

// LogStop logs the end of the run loop.
func (l *LifecycleLogger) LogStop(cause StopCause, uptime time.Duration) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop",
		PID:     os.Getpid(),
		Success: true,
		Message: fmt.Sprintf("Daemon stopped (reason: %s, uptime: %v)", cause, uptime.Round(time.Second)),
	})
}

// LogStopRequest logs a stop action aimed at a running daemon.
func (l *LifecycleLogger) LogStopRequest(pid int, force bool) error {
	msg := "Stop requested"
	if force {
		msg = "Stop requested (force)"
	}
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_request",
		PID:     pid,
		Success: true,
		Message: msg,
	})
}

// LogStopFailure logs a daemon that could not be stopped.
func (l *LifecycleLogger) LogStopFailure(pid int, err error) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stop_failure",
		PID:     pid,
		Success: false,
		Message: "Failed to stop daemon",
		Error:   err.Error(),
	})
}

// LogStalePID logs a PID file naming a process that is gone.
func (l *LifecycleLogger) LogStalePID(pid int, reason string) error {
	return l.writeEvent(LifecycleEvent{
		Event:   "stale_pid",
		PID:     pid,
		Success: true,
		Message: fmt.Sprintf("Stale PID file: %s", reason),
	})
}

// writeEvent appends a lifecycle event to the log file.
func (l *LifecycleLogger) writeEvent(event LifecycleEvent) error {
	if l == nil || l.logPath == "" {
		return nil
	}
	event.Timestamp = time.Now()
	event.InstanceID = l.instanceID

	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.logPath), 0700); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(l.logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return fmt.Errorf("failed to open lifecycle log: %w", err)
	}
	defer f.Close()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}

	return nil
}

// parseFlags converts command-line arguments to a map of flags.
// This is a simple parser for logging purposes.
func parseFlags(args []string) map[string]string {
	flags := make(map[string]string)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if !strings.HasPrefix(arg, "-") {
			continue
		}

		key := strings.TrimLeft(arg, "-")
		if k, v, ok := strings.Cut(key, "="); ok {
			flags[k] = v
			continue
		}

		if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
			flags[key] = args[i+1]
			i++
		} else {
			flags[key] = "true"
		}
	}

	return flags
}
