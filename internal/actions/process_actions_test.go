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

//go:build linux

package actions

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/unifyd/internal/cli"
)

// startFakeDaemon runs script under a copy of sh named unifyd so the
// process looks like a daemon to IsDaemonProcess. Scripts must not end in a
// single command the shell could exec in place.
func startFakeDaemon(t *testing.T, script string) *exec.Cmd {
	t.Helper()

	src, err := exec.LookPath("sh")
	require.NoError(t, err)
	bin := filepath.Join(t.TempDir(), "unifyd")
	data, err := os.ReadFile(src)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(bin, data, 0755))

	cmd := exec.Command(bin, "-c", script)
	require.NoError(t, cmd.Start())
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	t.Cleanup(func() {
		cmd.Process.Kill()
		<-done
	})
	return cmd
}

func writePID(t *testing.T, pid int) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "unifyd.pid")
	require.NoError(t, os.WriteFile(path, []byte(strconv.Itoa(pid)), 0644))
	return path
}

func run(t *testing.T, name, pidFile string, opts cli.DaemonOptions, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	opts.PIDFile = pidFile
	r := Default(Env{Stdout: &stdout, Stderr: &stderr})
	code := r.Dispatch(context.Background(), Call{Name: name, Args: args, Options: opts})
	return code, stdout.String(), stderr.String()
}

func TestStatusAction(t *testing.T) {
	t.Run("no PID file configured", func(t *testing.T) {
		code, _, stderr := run(t, "status", "", cli.DaemonOptions{})
		assert.Equal(t, ExitUnknown, code)
		assert.Contains(t, stderr, "no PID file configured")
	})

	t.Run("not running", func(t *testing.T) {
		code, stdout, _ := run(t, "status", filepath.Join(t.TempDir(), "x.pid"), cli.DaemonOptions{})
		assert.Equal(t, ExitNotRunning, code)
		assert.Contains(t, stdout, "not running")
	})

	t.Run("stale PID", func(t *testing.T) {
		code, stdout, _ := run(t, "status", writePID(t, 999999999), cli.DaemonOptions{})
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stdout, "stale PID file")
	})

	t.Run("PID of another program", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		require.NoError(t, cmd.Start())
		defer func() {
			cmd.Process.Kill()
			cmd.Wait()
		}()

		code, stdout, _ := run(t, "status", writePID(t, cmd.Process.Pid), cli.DaemonOptions{})
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stdout, "not a unifyd process")
	})

	t.Run("running with health", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/healthz", r.URL.Path)
			io.WriteString(w, "ok")
		}))
		defer server.Close()

		daemon := startFakeDaemon(t, "while :; do sleep 1; done")
		opts := cli.DaemonOptions{MetricsListen: strings.TrimPrefix(server.URL, "http://")}

		code, stdout, _ := run(t, "status", writePID(t, daemon.Process.Pid), opts)
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, stdout, "unifyd is running (PID "+strconv.Itoa(daemon.Process.Pid)+", up ")
		assert.Contains(t, stdout, "health: ok")
	})

	t.Run("wait until healthy", func(t *testing.T) {
		var probes atomic.Int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if probes.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				io.WriteString(w, `{"status":"unavailable","checks":{"run_loop":"idle"}}`)
				return
			}
			io.WriteString(w, `{"status":"healthy","checks":{"run_loop":"running"}}`)
		}))
		defer server.Close()

		daemon := startFakeDaemon(t, "while :; do sleep 1; done")
		opts := cli.DaemonOptions{MetricsListen: strings.TrimPrefix(server.URL, "http://")}

		code, stdout, stderr := run(t, "status", writePID(t, daemon.Process.Pid), opts, "--wait", "10s")
		assert.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, "health: ok")
		assert.GreaterOrEqual(t, probes.Load(), int32(3))
	})

	t.Run("wait times out", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		daemon := startFakeDaemon(t, "while :; do sleep 1; done")
		opts := cli.DaemonOptions{MetricsListen: strings.TrimPrefix(server.URL, "http://")}

		code, stdout, _ := run(t, "status", writePID(t, daemon.Process.Pid), opts, "--wait", "300ms")
		assert.Equal(t, ExitUnknown, code)
		assert.Contains(t, stdout, "health: unavailable")
	})

	t.Run("quiet", func(t *testing.T) {
		code, stdout, _ := run(t, "status", filepath.Join(t.TempDir(), "x.pid"), cli.DaemonOptions{}, "-q")
		assert.Equal(t, ExitNotRunning, code)
		assert.Empty(t, stdout)
	})
}

func TestStopAction(t *testing.T) {
	t.Run("not running is success", func(t *testing.T) {
		code, stdout, _ := run(t, "stop", filepath.Join(t.TempDir(), "x.pid"), cli.DaemonOptions{})
		assert.Equal(t, ExitOK, code)
		assert.Contains(t, stdout, "no PID file")
	})

	t.Run("stale PID file is removed", func(t *testing.T) {
		pidFile := writePID(t, 999999999)
		code, _, _ := run(t, "stop", pidFile, cli.DaemonOptions{})
		assert.Equal(t, ExitOK, code)
		assert.NoFileExists(t, pidFile)
	})

	t.Run("refuses to signal another program", func(t *testing.T) {
		cmd := exec.Command("sleep", "60")
		require.NoError(t, cmd.Start())
		defer func() {
			cmd.Process.Kill()
			cmd.Wait()
		}()

		code, _, stderr := run(t, "stop", writePID(t, cmd.Process.Pid), cli.DaemonOptions{})
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stderr, "refusing to stop")
	})

	t.Run("terminates the daemon", func(t *testing.T) {
		daemon := startFakeDaemon(t, "while :; do sleep 1; done")
		pidFile := writePID(t, daemon.Process.Pid)
		lifecycleLog := filepath.Join(t.TempDir(), "lifecycle.log")

		code, stdout, stderr := run(t, "stop", pidFile, cli.DaemonOptions{LifecycleLog: lifecycleLog}, "--timeout", "5s")
		assert.Equal(t, ExitOK, code, stderr)
		assert.Contains(t, stdout, "unifyd stopped")
		assert.NoFileExists(t, pidFile)

		data, err := os.ReadFile(lifecycleLog)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"event":"stop_request"`)
	})

	t.Run("force kills a daemon ignoring SIGTERM", func(t *testing.T) {
		daemon := startFakeDaemon(t, "trap '' TERM; while :; do sleep 1; done")
		time.Sleep(100 * time.Millisecond)
		pidFile := writePID(t, daemon.Process.Pid)

		code, _, stderr := run(t, "stop", pidFile, cli.DaemonOptions{}, "--timeout", "300ms", "--force")
		assert.Equal(t, ExitOK, code, stderr)
	})

	t.Run("times out without force", func(t *testing.T) {
		daemon := startFakeDaemon(t, "trap '' TERM; while :; do sleep 1; done")
		time.Sleep(100 * time.Millisecond)
		pidFile := writePID(t, daemon.Process.Pid)

		code, _, stderr := run(t, "stop", pidFile, cli.DaemonOptions{}, "--timeout", "300ms")
		assert.Equal(t, ExitFailure, code)
		assert.Contains(t, stderr, "shutdown timeout")
	})
}
