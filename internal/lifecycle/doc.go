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

/*
Package lifecycle implements the daemon's process lifecycle: detachment from
the invoking terminal, PID file ownership, signal-driven stop requests and the
run loop that brackets the device listener between one startup and one
shutdown hook.

# Detachment

Go cannot fork a running process safely, so detachment is a two-stage
re-exec of the current binary. The original process spawns stage 1 in a new
session with working directory "/" and exits 0. Stage 1 clears its umask,
spawns stage 2 outside of Setsid (so it is not a session leader and can never
reacquire a controlling terminal) and exits 0. Stage 2 is the daemon:

	role, err := lifecycle.NewDetacher(logger).Detach()
	if err != nil {
	    return 1
	}
	if role == lifecycle.RoleParent {
	    return 0
	}

Detachment must run before any signal handler, watcher or run loop is
installed.

# PID Files

	release := lifecycle.WritePIDFile("/run/unifyd.pid", logger)
	defer release()

The file holds the decimal PID of the post-detachment process and an
advisory lock for as long as it exists. Failures are logged and never fatal.

# Run Loop

	bridge := lifecycle.NewSignalBridge(logger)
	loop := lifecycle.NewRunLoop(bridge, lifecycle.RunLoopOptions{Logger: logger})
	err := loop.Run(ctx, listener.Start, listener.Stop)

The shutdown hook runs exactly once for every Run that got past Idle,
including when startup fails or the wait phase panics.

# Process Operations

IsProcessRunning, GracefulShutdown and IsDaemonProcess support the one-shot
status and stop actions, which act on a daemon through its PID file.
*/
package lifecycle
