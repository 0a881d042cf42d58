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
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/unifyd/internal/cli"
	"github.com/tombee/unifyd/internal/lifecycle"
	"github.com/tombee/unifyd/internal/log"
	"github.com/tombee/unifyd/internal/suspend"
	"github.com/tombee/unifyd/internal/tracing"
	"github.com/tombee/unifyd/internal/udev"
	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// runDaemon checks dependencies, detaches and serves until stopped.
func (d *Dispatcher) runDaemon(ctx context.Context, opts cli.DaemonOptions) int {
	if err := d.opts.CheckDependencies(); err != nil {
		return cli.HandleExitError(d.opts.Stderr, err)
	}

	detached := false
	if !opts.NoFork {
		boot, _, err := log.Setup(log.SetupOptions{
			Verbosity:    opts.Verbosity,
			Format:       log.Format(opts.LogFormat),
			Output:       d.opts.Stderr,
			NoDiagnostic: true,
		})
		if err != nil {
			return cli.HandleExitError(d.opts.Stderr, err)
		}
		role, err := d.opts.Detach(boot)
		if err != nil {
			_ = lifecycle.NewLifecycleLogger(opts.LifecycleLog, "").LogDetachFailure(err)
			return cli.HandleExitError(d.opts.Stderr, err)
		}
		if role == lifecycle.RoleParent {
			return cli.ExitSuccess
		}
		detached = true
	}

	return d.serve(ctx, opts, detached)
}

// serve runs in the daemon process: after detachment, or directly with
// --no-fork.
func (d *Dispatcher) serve(ctx context.Context, opts cli.DaemonOptions, detached bool) (code int) {
	logger, sinks, err := log.Setup(log.SetupOptions{
		Verbosity:     opts.Verbosity,
		Foreground:    opts.NoFork,
		Format:        log.Format(opts.LogFormat),
		AddSource:     opts.LogAddSource,
		Output:        d.opts.Stderr,
		DiagnosticDir: d.opts.DiagnosticDir,
	})
	if err != nil {
		return cli.HandleExitError(d.opts.Stderr, err)
	}
	defer sinks.Close()

	instanceID := uuid.NewString()
	logger = log.WithInstanceID(logger, instanceID)

	tp, err := tracing.Setup(ctx, tracing.Options{
		Config:         opts.Tracing,
		ServiceVersion: d.opts.Version,
		InstanceID:     instanceID,
		ConsoleOutput:  d.opts.Stderr,
	})
	if err != nil {
		logger.Warn("tracing disabled", log.Error(err))
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
		defer cancel()
		if err := tp.Shutdown(sctx); err != nil {
			logger.Warn("failed to flush traces", log.Error(err))
		}
	}()

	prev := slog.Default()
	slog.SetDefault(logger)
	defer slog.SetDefault(prev)

	lang, enc := processLocale()
	logger.Info(fmt.Sprintf("daemon version %s, language %s (encoding %s)", d.opts.Version, lang, enc))
	if sinks.DiagnosticPath != "" {
		logger.Debug("diagnostic log", slog.String("path", sinks.DiagnosticPath))
	}

	events := lifecycle.NewLifecycleLogger(opts.LifecycleLog, instanceID)
	_ = events.LogStart(d.opts.Version, d.opts.Args)
	if detached {
		_ = events.LogDetached(os.Getpid())
	}

	// Handlers go in before the PID file so a signal cannot skip its removal.
	bridge := lifecycle.NewSignalBridge(logger)
	bridge.OnSignal = func(sig os.Signal) {
		signalsReceived.WithLabelValues(sig.String()).Inc()
	}
	bridge.Install()
	defer bridge.Uninstall()

	defer func() {
		if r := recover(); r != nil {
			logger.Error(fmt.Sprintf("%s-daemon: error: %v", cli.ProgramName, r))
			code = cli.ExitFailure
		}
	}()

	release := lifecycle.WritePIDFile(opts.PIDFile, logger)
	defer release()

	udev.Advise(logger, d.opts.UdevRulesDirs)

	workload := d.opts.NewWorkload(opts, logger)
	hooks := newWorkloadHooks(workload, opts.RestartOnWakeUp, logger)

	if w, err := d.opts.WatchSuspend(logger, hooks.callbacks()); err != nil {
		if errors.Is(err, suspend.ErrUnsupported) {
			logger.Debug("suspend/resume watch unavailable", log.Error(err))
		} else {
			logger.Warn("failed to watch for suspend/resume", log.Error(err))
		}
	} else if w != nil {
		defer w.Close()
	}

	var status *statusServer
	if opts.MetricsListen != "" {
		status = newStatusServer(logger, deviceCounter(workload))
		if err := status.Start(opts.MetricsListen); err != nil {
			logger.Warn("failed to start metrics endpoint", slog.String("addr", opts.MetricsListen), log.Error(err))
			status = nil
		} else {
			defer status.Close()
		}
	}

	loop := lifecycle.NewRunLoop(bridge, lifecycle.RunLoopOptions{
		PollInterval: opts.PollInterval,
		Logger:       logger,
		OnStateChange: func(s lifecycle.State) {
			recordState(s)
			if status != nil {
				status.setState(s)
			}
		},
	})

	started := time.Now()
	if err := loop.Run(ctx, hooks.startup, hooks.shutdown); err != nil {
		hookFailures.WithLabelValues("startup").Inc()
		_ = events.LogStartupFailure(err)
		logger.Error(fmt.Sprintf("%s-daemon: error: %v", cli.ProgramName, err),
			slog.String("error_type", unifyderrors.Type(err)))
		return cli.ExitFailure
	}

	cause := bridge.Cause()
	if cause.Signal != nil {
		_ = events.LogSignal(cause)
	}
	_ = events.LogStop(cause, time.Since(started))
	return cli.ExitSuccess
}

// deviceCounter reports tracked devices when the workload can list them.
func deviceCounter(w Workload) func() int {
	lister, ok := w.(interface{ Devices() []string })
	if !ok {
		return nil
	}
	return func() int { return len(lister.Devices()) }
}
