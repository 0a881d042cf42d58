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
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/tombee/unifyd/internal/actions"
	"github.com/tombee/unifyd/internal/cli"
	"github.com/tombee/unifyd/internal/lifecycle"
	"github.com/tombee/unifyd/internal/suspend"
)

// syncBuffer is a bytes.Buffer safe for concurrent log writes.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeActions struct {
	helped bool
	calls  []actions.Call
	code   int
}

func (a *fakeActions) PrintHelp(w io.Writer) {
	a.helped = true
	io.WriteString(w, "actions:\n  probe\n")
}

func (a *fakeActions) Dispatch(_ context.Context, call actions.Call) int {
	a.calls = append(a.calls, call)
	return a.code
}

type fakeWorkload struct {
	mu       sync.Mutex
	starts   int
	stops    int
	restarts int
	pings    int

	startErr   error
	startPanic any
	started    chan struct{}
}

func newFakeWorkload() *fakeWorkload {
	return &fakeWorkload{started: make(chan struct{})}
}

func (w *fakeWorkload) Start() error {
	w.mu.Lock()
	w.starts++
	w.mu.Unlock()
	if w.startPanic != nil {
		panic(w.startPanic)
	}
	if w.startErr != nil {
		return w.startErr
	}
	close(w.started)
	return nil
}

func (w *fakeWorkload) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stops++
	return nil
}

func (w *fakeWorkload) Restart() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.restarts++
	return nil
}

func (w *fakeWorkload) Ping() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pings++
	return 1
}

func (w *fakeWorkload) counts() (starts, stops, restarts, pings int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.starts, w.stops, w.restarts, w.pings
}

type testHarness struct {
	d        *Dispatcher
	actions  *fakeActions
	workload *fakeWorkload
	stdout   *syncBuffer
	stderr   *syncBuffer
	diagDir  string

	mu        sync.Mutex
	built     int
	callbacks suspend.Callbacks
	detaches  int
}

// newHarness builds a Dispatcher whose collaborators are all fakes.
// Detach returns role and detachErr.
func newHarness(t *testing.T, role lifecycle.Role, detachErr error) *testHarness {
	t.Helper()

	h := &testHarness{
		actions:  &fakeActions{},
		workload: newFakeWorkload(),
		stdout:   &syncBuffer{},
		stderr:   &syncBuffer{},
		diagDir:  t.TempDir(),
	}
	h.d = New(Options{
		Actions: h.actions,
		Stdout:  h.stdout,
		Stderr:  h.stderr,
		Version: "1.2.3",
		Args:    []string{"--no-fork"},
		NewWorkload: func(cli.DaemonOptions, *slog.Logger) Workload {
			h.mu.Lock()
			h.built++
			h.mu.Unlock()
			return h.workload
		},
		Detach: func(*slog.Logger) (lifecycle.Role, error) {
			h.mu.Lock()
			h.detaches++
			h.mu.Unlock()
			return role, detachErr
		},
		CheckDependencies: func() error { return nil },
		WatchSuspend: func(_ *slog.Logger, cb suspend.Callbacks) (io.Closer, error) {
			h.mu.Lock()
			h.callbacks = cb
			h.mu.Unlock()
			return nil, suspend.ErrUnsupported
		},
		UdevRulesDirs: []string{t.TempDir()},
		DiagnosticDir: h.diagDir,
	})
	return h
}

func (h *testHarness) workloadsBuilt() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.built
}

var errBoom = errors.New("boom")
