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

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/unifyd/internal/config"
	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// Catalog reports whether a one-shot action exists.
type Catalog interface {
	Has(name string) bool
}

type rootFlags struct {
	debug           int
	hidraw          string
	restartOnWakeUp bool
	pidFile         string
	noFork          bool
	configPath      string
	version         bool
	helpActions     bool
}

// NewRootCommand creates the root command. Executing it hands the resolved
// Intent to emit instead of acting on it.
func NewRootCommand(catalog Catalog, emit func(Intent)) *cobra.Command {
	f := &rootFlags{}

	cmd := &cobra.Command{
		Use:   ProgramName + " [flags] [ACTION [ACTION-ARGS...]]",
		Short: "Headless daemon for Unifying receiver devices",
		Long: `unifyd watches the hidraw devices of a USB receiver and keeps their
settings applied. Without ACTION it detaches into the background; with
ACTION it runs that action once and exits with its status.

Run 'unifyd --help-actions' to list actions.`,
		Args:                  cobra.ArbitraryArgs,
		SilenceUsage:          true,
		SilenceErrors:         true,
		DisableFlagsInUseLine: true,
		RunE: func(c *cobra.Command, args []string) error {
			intent, err := f.resolve(c, args, catalog)
			if err != nil {
				return err
			}
			emit(intent)
			return nil
		},
	}

	fl := cmd.Flags()
	fl.SortFlags = false
	fl.SetInterspersed(false)
	fl.CountVarP(&f.debug, "debug", "d", "print logging messages, for debugging purposes (may be repeated for extra verbosity)")
	fl.StringVarP(&f.hidraw, "hidraw", "D", "", "use the receiver at `PATH`, e.g. /dev/hidraw0 (default: first detected receiver)")
	fl.BoolVar(&f.restartOnWakeUp, "restart-on-wake-up", false, "restart the device listener after the system wakes up")
	fl.StringVar(&f.pidFile, "pid-file", "", "write the daemon process id to `PATH`")
	fl.BoolVar(&f.noFork, "no-fork", false, "stay in the foreground instead of detaching")
	fl.StringVar(&f.configPath, "config", "", "read configuration from `PATH` (default: ~/.config/unifyd/config.yaml)")
	fl.BoolVarP(&f.version, "version", "V", false, "print the program version and exit")
	fl.BoolVar(&f.helpActions, "help-actions", false, "print help for the optional actions")

	cmd.SetFlagErrorFunc(func(c *cobra.Command, err error) error {
		return &unifyderrors.UsageError{Message: err.Error(), Usage: UsageText(c), Cause: err}
	})
	cmd.SetHelpFunc(func(c *cobra.Command, _ []string) {
		emit(Help{Text: UsageText(c)})
	})

	return cmd
}

// Resolve parses argv (without the program name) into an Intent.
//
// Invalid flags and unknown actions return a *errors.UsageError. An
// unreadable or invalid configuration file returns a *errors.ConfigError.
func Resolve(argv []string, catalog Catalog) (Intent, error) {
	var intent Intent
	cmd := NewRootCommand(catalog, func(i Intent) { intent = i })
	cmd.SetArgs(argv)

	if err := cmd.Execute(); err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, &unifyderrors.UsageError{Message: "no command resolved", Usage: UsageText(cmd)}
	}
	return intent, nil
}

func (f *rootFlags) resolve(c *cobra.Command, args []string, catalog Catalog) (Intent, error) {
	if f.version {
		return Help{Text: VersionText()}, nil
	}
	if f.helpActions {
		return ActionList{}, nil
	}

	if len(args) > 0 && (catalog == nil || !catalog.Has(args[0])) {
		return nil, &unifyderrors.UsageError{
			Arg:     args[0],
			Message: fmt.Sprintf("unknown action %q", args[0]),
			Usage:   UsageText(c),
		}
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	opts := f.options(c, cfg)

	if len(args) > 0 {
		return OneShot{
			Name:       args[0],
			Args:       args[1:],
			DeviceHint: opts.DeviceHint,
			Options:    opts,
		}, nil
	}
	return Daemon{Options: opts}, nil
}

// options layers explicitly given flags over cfg.
func (f *rootFlags) options(c *cobra.Command, cfg *config.Config) DaemonOptions {
	opts := DaemonOptions{
		Verbosity:       f.debug,
		DeviceHint:      cfg.Hidraw,
		RestartOnWakeUp: cfg.RestartOnWakeUp,
		NoFork:          cfg.NoFork,
		PIDFile:         cfg.PIDFile,
		ConfigPath:      f.configPath,
		PollInterval:    cfg.PollInterval.D(),
		LifecycleLog:    cfg.LifecycleLog,
		MetricsListen:   cfg.Metrics.Listen,
		LogFormat:       cfg.Log.Format,
		LogAddSource:    cfg.Log.AddSource,
		Tracing:         cfg.Tracing,
	}

	changed := c.Flags().Changed
	if changed("hidraw") {
		opts.DeviceHint = f.hidraw
	}
	if changed("restart-on-wake-up") {
		opts.RestartOnWakeUp = f.restartOnWakeUp
	}
	if changed("no-fork") {
		opts.NoFork = f.noFork
	}
	if changed("pid-file") {
		opts.PIDFile = f.pidFile
	}

	return opts
}
