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

//go:build unix

package lifecycle

import (
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

// Detach advances this process one stage through the double spawn.
//
// Stage 0 starts stage 1 as a new session leader and returns RoleParent.
// Stage 1 clears the umask, starts stage 2 inside its session and returns
// RoleParent. Stage 2 returns RoleDaemon. Both children get /dev/null for
// stdin, stdout and stderr and "/" as working directory.
//
// A failed spawn returns a *errors.DetachError; the caller must exit 1.
func (d *Detacher) Detach() (Role, error) {
	logger := d.logger()

	switch stage := CurrentStage(); stage {
	case 0:
		pid, err := d.spawn(1, true)
		if err != nil {
			logger.Error("fork #1 failed", slog.Any("error", err))
			return RoleParent, &unifyderrors.DetachError{Stage: 1, Cause: err}
		}
		logger.Debug("spawned session leader", slog.Int("pid", pid))
		return RoleParent, nil

	case 1:
		if sid, err := unix.Getsid(0); err == nil && sid != os.Getpid() {
			logger.Warn("detach stage 1 is not a session leader", slog.Int("sid", sid))
		}
		unix.Umask(0)

		pid, err := d.spawn(2, false)
		if err != nil {
			logger.Error("fork #2 failed", slog.Any("error", err))
			return RoleParent, &unifyderrors.DetachError{Stage: 2, Cause: err}
		}
		logger.Debug("spawned daemon", slog.Int("pid", pid))
		return RoleParent, nil

	default:
		os.Unsetenv(StageEnv)
		if err := redirectStdio(); err != nil {
			logger.Warn("failed to redirect standard streams", slog.Any("error", err))
		}
		logger.Debug("detached", slog.Int("pid", os.Getpid()))
		return RoleDaemon, nil
	}
}

// spawn starts the next stage and releases it without waiting.
func (d *Detacher) spawn(stage int, setsid bool) (int, error) {
	flushStdio()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()

	dir := d.Dir
	if dir == "" {
		dir = "/"
	}

	cmd := exec.Command(d.Executable, d.Args...)
	cmd.Env = stageEnv(d.Env, stage)
	cmd.Dir = dir
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: setsid,
	}

	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		return pid, fmt.Errorf("process started but failed to release: %w", err)
	}

	return pid, nil
}

// redirectStdio points the standard descriptors at /dev/null. Stage 2
// already inherits /dev/null; this also covers a daemon started with
// StageEnv=2 by hand.
func redirectStdio() error {
	flushStdio()

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer devNull.Close()

	for _, fd := range []int{0, 1, 2} {
		if fd == int(devNull.Fd()) {
			continue
		}
		if err := dupOnto(int(devNull.Fd()), fd); err != nil {
			return fmt.Errorf("failed to redirect fd %d: %w", fd, err)
		}
	}
	return nil
}
