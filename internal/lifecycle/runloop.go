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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tombee/unifyd/internal/log"
)

// DefaultPollInterval bounds how long a missed wakeup can delay shutdown.
const DefaultPollInterval = time.Second

// ErrAlreadyRun is returned when Run is called more than once.
var ErrAlreadyRun = errors.New("run loop already used")

// State is the run loop's lifecycle state.
type State int32

const (
	// StateIdle is the initial state.
	StateIdle State = iota
	// StateRunning is entered once the startup hook has returned successfully.
	StateRunning
	// StateStopped is entered once the shutdown hook has returned.
	StateStopped
)

// String implements fmt.Stringer.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}

// Hook is a lifecycle callback. Returned errors and panics are logged.
type Hook func() error

// RunLoopOptions configures a RunLoop.
type RunLoopOptions struct {
	// PollInterval is the safety-net poll of the running flag.
	// Default: DefaultPollInterval
	PollInterval time.Duration

	// Logger receives lifecycle logs. Default: slog.Default()
	Logger *slog.Logger

	// OnStateChange, if set, is called on every state transition.
	OnStateChange func(State)
}

// RunLoop brackets a workload between exactly one startup and one shutdown.
type RunLoop struct {
	bridge   *SignalBridge
	interval time.Duration
	logger   *slog.Logger
	hooks    *log.HookMiddleware
	onState  func(State)

	state    atomic.Int32
	started  atomic.Bool
	shutdown sync.Once
}

// NewRunLoop creates a run loop driven by bridge.
func NewRunLoop(bridge *SignalBridge, opts RunLoopOptions) *RunLoop {
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &RunLoop{
		bridge:   bridge,
		interval: opts.PollInterval,
		logger:   opts.Logger,
		hooks:    log.NewHookMiddleware(opts.Logger),
		onState:  opts.OnStateChange,
	}
}

// State returns the current state.
func (r *RunLoop) State() State {
	return State(r.state.Load())
}

// Stop asks a running loop to return. It is safe from any goroutine.
func (r *RunLoop) Stop() {
	r.bridge.RequestStop(ReasonRequested, nil)
}

// Run installs the signal handlers unless the caller already has, calls startup, blocks until a stop is
// requested and then calls shutdown.
//
// shutdown is called exactly once on every path out of Run, including a
// failed or panicking startup and a panic during the wait. A startup failure
// is returned as a *errors.HookError after shutdown has run; shutdown
// failures are logged and not returned.
func (r *RunLoop) Run(ctx context.Context, startup, shutdown Hook) (err error) {
	if !r.started.CompareAndSwap(false, true) {
		return ErrAlreadyRun
	}

	// A caller that installed the bridge first keeps its handlers until it
	// has released the PID file.
	if r.bridge.Install() {
		defer r.bridge.Uninstall()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("daemon loop error", slog.Any("panic", rec))
		}
		r.runShutdown(shutdown)
	}()

	if err := r.hooks.Invoke(&log.HookCall{Name: "startup"}, startup); err != nil {
		r.logger.Error("startup failed, shutting down", slog.Any("error", err))
		return err
	}
	r.setState(StateRunning)

	r.wait(ctx)
	return nil
}

// wait blocks until the bridge's running flag is cleared. The wake channel
// gives immediate return; the ticker only covers a missed wakeup.
func (r *RunLoop) wait(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	ctxDone := ctx.Done()
	for r.bridge.Running() {
		select {
		case <-r.bridge.Wake():
		case <-ticker.C:
		case <-ctxDone:
			r.bridge.RequestStop(ReasonContext, nil)
			ctxDone = nil
		}
	}
}

func (r *RunLoop) runShutdown(shutdown Hook) {
	r.shutdown.Do(func() {
		r.logger.Info("daemon stopping", slog.String("reason", r.bridge.Cause().String()))
		if err := r.hooks.Invoke(&log.HookCall{Name: "shutdown"}, shutdown); err != nil {
			r.logger.Error("shutdown failed", slog.Any("error", err))
		}
		r.setState(StateStopped)
	})
}

func (r *RunLoop) setState(s State) {
	r.state.Store(int32(s))
	if r.onState != nil {
		r.onState(s)
	}
}
