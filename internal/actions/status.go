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
	"net"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/tombee/unifyd/internal/lifecycle"
)

// Retry schedule for status --wait.
const (
	healthWaitInitial = 100 * time.Millisecond
	healthWaitMax     = 2 * time.Second
)

// StatusAction reports whether the daemon named by the PID file is alive.
type StatusAction struct{}

// Name implements Action.
func (*StatusAction) Name() string { return "status" }

// Summary implements Action.
func (*StatusAction) Summary() string {
	return "report whether the daemon is running (needs --pid-file)"
}

// Run implements Action.
func (a *StatusAction) Run(ctx context.Context, env *Env, call Call) int {
	fs := pflag.NewFlagSet(a.Name(), pflag.ContinueOnError)
	quiet := fs.BoolP("quiet", "q", false, "print nothing, only set the exit status")
	wait := fs.Duration("wait", 0, "wait up to DURATION for the health endpoint to report healthy")
	if ok, code := parseArgs(env, a.Name(), "[--quiet] [--wait DURATION]", fs, call.Args); !ok {
		return code
	}

	say := func(format string, args ...any) {
		if !*quiet {
			fmt.Fprintf(env.Stdout, format+"\n", args...)
		}
	}

	pidPath := call.Options.PIDFile
	if pidPath == "" {
		fmt.Fprintln(env.Stderr, "status: no PID file configured; pass --pid-file or set pid_file")
		return ExitUnknown
	}

	pid, err := lifecycle.NewPIDFileManager(pidPath).Read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			say("unifyd is not running")
			return ExitNotRunning
		}
		fmt.Fprintf(env.Stderr, "status: %v\n", err)
		return ExitUnknown
	}

	if !lifecycle.IsProcessRunning(pid) {
		say("unifyd is not running (stale PID file %s names %d)", pidPath, pid)
		return ExitFailure
	}
	if !lifecycle.IsDaemonProcess(pid) {
		say("PID %d from %s is not a unifyd process", pid, pidPath)
		return ExitFailure
	}

	if info := lifecycle.GetProcessInfo(pid); !info.Started.IsZero() {
		say("unifyd is running (PID %d, up %s)", pid, time.Since(info.Started).Round(time.Second))
	} else {
		say("unifyd is running (PID %d)", pid)
	}

	addr := call.Options.MetricsListen
	if *wait > 0 {
		if addr == "" {
			fmt.Fprintln(env.Stderr, "status: --wait needs metrics_listen; skipping health wait")
			return ExitOK
		}
		checker := lifecycle.NewHealthChecker(HealthURL(addr)).
			WithBackoff(healthWaitInitial, healthWaitMax, 2)
		if err := checker.WaitUntilHealthy(ctx, *wait); err != nil {
			say("health: unavailable (%v)", err)
			return ExitUnknown
		}
		say("health: ok")
		return ExitOK
	}

	if addr != "" {
		checkCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()

		result := lifecycle.NewHealthChecker(HealthURL(addr)).Check(checkCtx)
		if result.Success {
			say("health: ok")
		} else if result.Status != "" {
			say("health: %s (run loop %s)", result.Status, result.RunLoop)
		} else if result.Error != nil {
			say("health: unavailable (%v)", result.Error)
		} else {
			say("health: unavailable (status %d)", result.StatusCode)
		}
	}

	return ExitOK
}

// HealthURL returns the health endpoint served on a metrics listen address.
func HealthURL(listen string) string {
	host, port, err := net.SplitHostPort(listen)
	if err != nil {
		return "http://" + listen + "/healthz"
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port) + "/healthz"
}
