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
	"fmt"

	"github.com/spf13/pflag"

	"github.com/tombee/unifyd/internal/config"
)

// ConfigAction prints the effective configuration.
type ConfigAction struct{}

// Name implements Action.
func (*ConfigAction) Name() string { return "config" }

// Summary implements Action.
func (*ConfigAction) Summary() string {
	return "print the effective configuration for the selected receiver"
}

// Run implements Action.
func (a *ConfigAction) Run(ctx context.Context, env *Env, call Call) int {
	fs := pflag.NewFlagSet(a.Name(), pflag.ContinueOnError)
	if ok, code := parseArgs(env, a.Name(), "[--help]", fs, call.Args); !ok {
		return code
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(env.Stderr, "config: unexpected argument %q\n", fs.Arg(0))
		return ExitUsage
	}

	data, err := Effective(call).YAML()
	if err != nil {
		fmt.Fprintf(env.Stderr, "config: %v\n", err)
		return ExitFailure
	}
	if _, err := env.Stdout.Write(data); err != nil {
		return ExitFailure
	}
	return ExitOK
}

// Effective rebuilds the configuration file view of call's options.
func Effective(call Call) *config.Config {
	opts := call.Options
	cfg := config.Default()
	cfg.PIDFile = opts.PIDFile
	cfg.NoFork = opts.NoFork
	cfg.RestartOnWakeUp = opts.RestartOnWakeUp
	cfg.Hidraw = call.DeviceHint
	if opts.PollInterval > 0 {
		cfg.PollInterval = config.Duration(opts.PollInterval)
	}
	cfg.LifecycleLog = opts.LifecycleLog
	cfg.Metrics.Listen = opts.MetricsListen
	cfg.Log.Format = opts.LogFormat
	cfg.Log.AddSource = opts.LogAddSource
	if opts.Tracing != (config.TracingConfig{}) {
		cfg.Tracing = opts.Tracing
	}
	return cfg
}
