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
	"log/slog"
	"time"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// HookCall describes one lifecycle hook invocation for logging purposes.
type HookCall struct {
	// Name is the hook name ("startup", "shutdown", "resume").
	Name string

	// Metadata contains additional attributes.
	Metadata map[string]interface{}
}

// HookResult describes the outcome of a hook invocation.
type HookResult struct {
	Success    bool
	Error      string
	DurationMs int64
}

// LogHookStart logs the start of a hook invocation.
func LogHookStart(logger *slog.Logger, call *HookCall) {
	attrs := []any{
		EventKey, "hook_start",
		"hook", call.Name,
	}
	for k, v := range call.Metadata {
		attrs = append(attrs, k, v)
	}
	logger.Debug("hook invoked", attrs...)
}

// LogHookResult logs the outcome of a hook invocation.
func LogHookResult(logger *slog.Logger, call *HookCall, res *HookResult) {
	attrs := []any{
		EventKey, "hook_result",
		"hook", call.Name,
		"success", res.Success,
		DurationKey, res.DurationMs,
	}
	if res.Error != "" {
		attrs = append(attrs, "error", res.Error)
	}

	level := slog.LevelDebug
	message := "hook completed"
	if !res.Success {
		level = slog.LevelError
		message = "hook failed"
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// HookMiddleware wraps hook invocations with logging and panic recovery.
type HookMiddleware struct {
	logger *slog.Logger
}

// NewHookMiddleware creates a new hook logging middleware.
func NewHookMiddleware(logger *slog.Logger) *HookMiddleware {
	return &HookMiddleware{logger: logger}
}

// Invoke runs fn, logging before and after. A panic in fn is recovered and
// returned as a *errors.HookError, as is any returned error.
func (m *HookMiddleware) Invoke(call *HookCall, fn func() error) (err error) {
	start := time.Now()
	LogHookStart(m.logger, call)

	defer func() {
		if r := recover(); r != nil {
			err = &unifyderrors.HookError{Hook: call.Name, Panic: r}
		}

		res := &HookResult{
			Success:    err == nil,
			DurationMs: time.Since(start).Milliseconds(),
		}
		if err != nil {
			res.Error = err.Error()
		}
		LogHookResult(m.logger, call, res)
	}()

	if fn == nil {
		return nil
	}
	if hookErr := fn(); hookErr != nil {
		return &unifyderrors.HookError{Hook: call.Name, Cause: hookErr}
	}
	return nil
}
