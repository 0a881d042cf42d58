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
	"time"

	"github.com/tombee/unifyd/internal/config"
)

// Intent is the resolved meaning of one invocation. It is one of Help,
// ActionList, OneShot or Daemon.
type Intent interface {
	intent()
}

// Help prints Text to stdout and exits 0. Both --help and --version
// resolve to Help.
type Help struct {
	Text string
}

// ActionList prints the one-shot action catalog and exits 0.
type ActionList struct{}

// OneShot runs a single action and exits with its status.
type OneShot struct {
	Name       string
	Args       []string
	DeviceHint string

	// Options carries the rest of the resolved configuration so actions
	// such as status and stop can find the PID file.
	Options DaemonOptions
}

// Daemon runs the long-lived service.
type Daemon struct {
	Options DaemonOptions
}

func (Help) intent()       {}
func (ActionList) intent() {}
func (OneShot) intent()    {}
func (Daemon) intent()     {}

// DaemonOptions is the configuration frozen at parse time.
type DaemonOptions struct {
	// Verbosity is the number of -d flags.
	Verbosity int

	// DeviceHint is the -D path, empty for all devices.
	DeviceHint string

	RestartOnWakeUp bool
	NoFork          bool

	// PIDFile is empty when no PID file should be written.
	PIDFile string

	// ConfigPath is the --config value, empty for the default location.
	ConfigPath string

	PollInterval  time.Duration
	LifecycleLog  string
	MetricsListen string
	LogFormat     string
	LogAddSource  bool

	Tracing config.TracingConfig
}
