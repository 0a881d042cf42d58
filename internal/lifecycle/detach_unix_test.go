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
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

const detachHelperEnv = "UNIFYD_WANT_DETACH_HELPER"

type detachReport struct {
	PID   int    `json:"pid"`
	SID   int    `json:"sid"`
	Dir   string `json:"dir"`
	Stage string `json:"stage"`
	Umask int    `json:"umask"`
	Stdin string `json:"stdin"`
}

// TestDetachHelperProcess is not a real test. It is re-executed by
// TestDetacher_Detach as each stage of the detachment.
func TestDetachHelperProcess(t *testing.T) {
	out := os.Getenv(detachHelperEnv)
	if out == "" {
		return
	}

	d := NewDetacher(discardLogger())
	d.Args = []string{"-test.run=^TestDetachHelperProcess$"}
	role, err := d.Detach()
	if err != nil || role == RoleParent {
		os.Exit(0)
	}

	sid, _ := unix.Getsid(0)
	dir, _ := os.Getwd()
	umask := unix.Umask(0)
	stdin, _ := os.Readlink("/proc/self/fd/0")

	data, _ := json.Marshal(detachReport{
		PID:   os.Getpid(),
		SID:   sid,
		Dir:   dir,
		Stage: os.Getenv(StageEnv),
		Umask: umask,
		Stdin: stdin,
	})
	tmp := out + ".tmp"
	_ = os.WriteFile(tmp, data, 0644)
	_ = os.Rename(tmp, out)
	os.Exit(0)
}

func TestDetacher_Detach(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}

	out := filepath.Join(t.TempDir(), "report.json")
	exe, err := os.Executable()
	require.NoError(t, err)

	d := &Detacher{
		Executable: exe,
		Args:       []string{"-test.run=^TestDetachHelperProcess$"},
		Env:        append(os.Environ(), detachHelperEnv+"="+out),
		Dir:        "/",
		Logger:     discardLogger(),
	}

	role, err := d.Detach()
	require.NoError(t, err)
	assert.Equal(t, RoleParent, role)

	var data []byte
	require.Eventually(t, func() bool {
		data, err = os.ReadFile(out)
		return err == nil
	}, 20*time.Second, 20*time.Millisecond, "daemon stage never reported")

	var report detachReport
	require.NoError(t, json.Unmarshal(data, &report))

	ourSID, err := unix.Getsid(0)
	require.NoError(t, err)

	assert.NotEqual(t, os.Getpid(), report.PID)
	assert.NotEqual(t, ourSID, report.SID, "daemon must be in a new session")
	assert.NotEqual(t, report.PID, report.SID, "daemon must not be a session leader")
	assert.Equal(t, "/", report.Dir)
	assert.Empty(t, report.Stage)
	assert.Equal(t, 0, report.Umask)
	if _, statErr := os.Stat("/proc/self/fd/0"); statErr == nil {
		assert.Equal(t, os.DevNull, report.Stdin)
	}
}

func TestDetacher_SpawnFailure(t *testing.T) {
	t.Setenv(StageEnv, "")
	d := &Detacher{
		Executable: filepath.Join(t.TempDir(), "does-not-exist"),
		Logger:     discardLogger(),
	}

	role, err := d.Detach()
	assert.Equal(t, RoleParent, role)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fork #1 failed")
}

func TestCurrentStage(t *testing.T) {
	tests := []struct {
		value string
		want  int
	}{
		{"", 0},
		{"1", 1},
		{"2", 2},
		{"3", 0},
		{"x", 0},
	}
	for _, tt := range tests {
		t.Setenv(StageEnv, tt.value)
		assert.Equal(t, tt.want, CurrentStage(), "value %q", tt.value)
	}
}

func TestStageEnv(t *testing.T) {
	env := stageEnv([]string{"A=1", StageEnv + "=1", "B=2"}, 2)
	assert.Equal(t, []string{"A=1", "B=2", StageEnv + "=2"}, env)
}
