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

package actions

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/pflag"

	"github.com/tombee/unifyd/internal/lifecycle"
)

// DefaultStopTimeout is how long stop waits after SIGTERM.
const DefaultStopTimeout = 30 * time.Second

// StopAction terminates the daemon named by the PID file.
//
// It sends SIGTERM and waits for the process to exit; with --force a
// daemon still alive after the timeout is killed. Stopping a daemon that
// is not running succeeds after removing any stale PID file.
type StopAction struct{}

// Name implements Action.
func (*StopAction) Name() string { return "stop" }

// Summary implements Action.
func (*StopAction) Summary() string {
	return "stop the running daemon (needs --pid-file)"
}

// Run implements Action.
func (a *StopAction) Run(ctx context.Context, env *Env, call Call) int {
	fs := pflag.NewFlagSet(a.Name(), pflag.ContinueOnError)
	timeout := fs.Duration("timeout", DefaultStopTimeout, "graceful shutdown timeout")
	force := fs.Bool("force", false, "send SIGKILL if the daemon outlives the timeout")
	if ok, code := parseArgs(env, a.Name(), "[--timeout DURATION] [--force]", fs, call.Args); !ok {
		return code
	}

	pidPath := call.Options.PIDFile
	if pidPath == "" {
		fmt.Fprintln(env.Stderr, "stop: no PID file configured; pass --pid-file or set pid_file")
		return ExitFailure
	}

	lifecycleLog := lifecycle.NewLifecycleLogger(call.Options.LifecycleLog, "")
	warn := func(err error) {
		if err != nil {
			fmt.Fprintf(env.Stderr, "Warning: failed to write lifecycle log: %v\n", err)
		}
	}

	pidMgr := lifecycle.NewPIDFileManager(pidPath)
	if !pidMgr.Exists() {
		fmt.Fprintln(env.Stdout, "unifyd is not running (no PID file)")
		return ExitOK
	}
	pid, err := pidMgr.Read()
	if err != nil {
		fmt.Fprintf(env.Stderr, "stop: %v\n", err)
		return ExitFailure
	}

	if !lifecycle.IsProcessRunning(pid) {
		warn(lifecycleLog.LogStalePID(pid, "process not running"))
		fmt.Fprintf(env.Stdout, "unifyd process %d is not running (removing stale PID file)\n", pid)
		if err := pidMgr.Remove(); err != nil {
			fmt.Fprintf(env.Stderr, "stop: %v\n", err)
			return ExitFailure
		}
		return ExitOK
	}

	if !lifecycle.IsDaemonProcess(pid) {
		fmt.Fprintf(env.Stderr, "stop: PID %d is not a unifyd process (refusing to stop)\n", pid)
		return ExitFailure
	}

	warn(lifecycleLog.LogStopRequest(pid, *force))
	fmt.Fprintf(env.Stdout, "Stopping unifyd (PID %d)...\n", pid)

	start := time.Now()
	if err := lifecycle.GracefulShutdown(ctx, pid, *timeout, *force); err != nil {
		if errors.Is(err, lifecycle.ErrProcessNotRunning) {
			fmt.Fprintln(env.Stdout, "unifyd stopped")
			return ExitOK
		}
		warn(lifecycleLog.LogStopFailure(pid, err))
		fmt.Fprintf(env.Stderr, "stop: failed to stop unifyd: %v\n", err)
		return ExitFailure
	}

	// A killed daemon cannot remove its own PID file
	if left, err := pidMgr.Read(); err == nil && left == pid {
		if err := pidMgr.Remove(); err != nil {
			fmt.Fprintf(env.Stderr, "Warning: failed to remove PID file: %v\n", err)
		}
	}

	env.Logger.Debug("daemon stopped", slog.Int("pid", pid), slog.Duration("took", time.Since(start)))
	fmt.Fprintln(env.Stdout, "unifyd stopped")
	return ExitOK
}
