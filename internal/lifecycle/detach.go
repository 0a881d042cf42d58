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
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// StageEnv carries the detachment stage across re-execs.
const StageEnv = "UNIFYD_DETACH_STAGE"

// Role tells the caller what to do after Detach returns.
type Role int

const (
	// RoleDaemon means the caller is the detached daemon and should continue.
	RoleDaemon Role = iota
	// RoleParent means the caller spawned its successor and should exit 0.
	RoleParent
)

// String implements fmt.Stringer.
func (r Role) String() string {
	if r == RoleParent {
		return "parent"
	}
	return "daemon"
}

// Detacher separates the daemon from the invoking terminal and session.
type Detacher struct {
	// Executable is the binary to re-exec. Default: os.Executable()
	Executable string

	// Args are the arguments passed to each stage. Default: os.Args[1:]
	Args []string

	// Env is the base environment of each stage. Default: os.Environ()
	Env []string

	// Dir is the working directory of each stage. Default: "/"
	Dir string

	// Logger receives detachment diagnostics.
	Logger *slog.Logger
}

// NewDetacher creates a Detacher that re-execs the running binary with its
// original arguments.
func NewDetacher(logger *slog.Logger) *Detacher {
	exe, err := os.Executable()
	if err != nil {
		exe = os.Args[0]
	}
	return &Detacher{
		Executable: exe,
		Args:       os.Args[1:],
		Env:        os.Environ(),
		Dir:        "/",
		Logger:     logger,
	}
}

// CurrentStage returns the detachment stage of this process: 0 for a
// process started by the user, 1 for the session leader, 2 for the daemon.
func CurrentStage() int {
	stage, err := strconv.Atoi(os.Getenv(StageEnv))
	if err != nil || stage < 0 || stage > 2 {
		return 0
	}
	return stage
}

// stageEnv returns env with StageEnv replaced by stage.
func stageEnv(env []string, stage int) []string {
	out := make([]string, 0, len(env)+1)
	prefix := StageEnv + "="
	for _, kv := range env {
		if !strings.HasPrefix(kv, prefix) {
			out = append(out, kv)
		}
	}
	return append(out, prefix+strconv.Itoa(stage))
}

func (d *Detacher) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

func flushStdio() {
	_ = os.Stdout.Sync()
	_ = os.Stderr.Sync()
}
