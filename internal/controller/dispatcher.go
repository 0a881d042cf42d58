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

package controller

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/tombee/unifyd/internal/actions"
	"github.com/tombee/unifyd/internal/cli"
	"github.com/tombee/unifyd/internal/lifecycle"
	"github.com/tombee/unifyd/internal/listener"
	"github.com/tombee/unifyd/internal/suspend"
	"github.com/tombee/unifyd/internal/udev"
)

// ActionDispatcher runs one-shot actions.
type ActionDispatcher interface {
	PrintHelp(w io.Writer)
	Dispatch(ctx context.Context, call actions.Call) int
}

// Workload is what the run loop starts and stops.
type Workload interface {
	Start() error
	Stop() error
	Restart() error
	Ping() int
}

// Options configures a Dispatcher. Only Actions is required.
type Options struct {
	Actions ActionDispatcher

	Stdout io.Writer
	Stderr io.Writer

	// Version is logged at daemon start.
	Version string

	// Args are recorded in the lifecycle log. Default: os.Args[1:]
	Args []string

	// NewWorkload builds the device listener. Default: listener.New
	NewWorkload func(opts cli.DaemonOptions, logger *slog.Logger) Workload

	// Detach separates the daemon from the terminal. Default: lifecycle.Detacher
	Detach func(logger *slog.Logger) (lifecycle.Role, error)

	// CheckDependencies fails when the kernel lacks hidraw support.
	CheckDependencies func() error

	// WatchSuspend subscribes to sleep notifications. Default: suspend.Watch
	WatchSuspend func(logger *slog.Logger, cb suspend.Callbacks) (io.Closer, error)

	// UdevRulesDirs are searched by the udev advisory. Default: udev.DefaultRulesDirs
	UdevRulesDirs []string

	// DiagnosticDir holds the diagnostic log. Default: os.TempDir()
	DiagnosticDir string
}

// Dispatcher acts on a resolved Intent.
type Dispatcher struct {
	opts Options
}

// New creates a Dispatcher, filling unset options with the real
// implementations.
func New(opts Options) *Dispatcher {
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.Args == nil {
		opts.Args = os.Args[1:]
	}
	if opts.NewWorkload == nil {
		opts.NewWorkload = func(o cli.DaemonOptions, logger *slog.Logger) Workload {
			return listener.New(listener.Options{DeviceHint: o.DeviceHint, Logger: logger})
		}
	}
	if opts.Detach == nil {
		opts.Detach = func(logger *slog.Logger) (lifecycle.Role, error) {
			return lifecycle.NewDetacher(logger).Detach()
		}
	}
	if opts.CheckDependencies == nil {
		opts.CheckDependencies = func() error {
			return checkDependencies(runtime.GOOS, HidrawSysDir)
		}
	}
	if opts.WatchSuspend == nil {
		opts.WatchSuspend = func(logger *slog.Logger, cb suspend.Callbacks) (io.Closer, error) {
			w, err := suspend.Watch(logger, cb)
			if err != nil {
				return nil, err
			}
			return w, nil
		}
	}
	if opts.UdevRulesDirs == nil {
		opts.UdevRulesDirs = udev.DefaultRulesDirs
	}
	return &Dispatcher{opts: opts}
}

// Run acts on intent and returns the process exit status.
func (d *Dispatcher) Run(ctx context.Context, intent cli.Intent) int {
	switch it := intent.(type) {
	case cli.Help:
		fmt.Fprint(d.opts.Stdout, it.Text)
		return cli.ExitSuccess

	case cli.ActionList:
		d.opts.Actions.PrintHelp(d.opts.Stdout)
		return cli.ExitSuccess

	case cli.OneShot:
		return d.opts.Actions.Dispatch(ctx, actions.Call{
			Name:       it.Name,
			Args:       it.Args,
			DeviceHint: it.DeviceHint,
			Options:    it.Options,
		})

	case cli.Daemon:
		return d.runDaemon(ctx, it.Options)

	default:
		fmt.Fprintf(d.opts.Stderr, "%s: unsupported intent %T\n", cli.ProgramName, intent)
		return cli.ExitFailure
	}
}
