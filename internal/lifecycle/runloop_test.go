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
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	unifyderrors "github.com/tombee/unifyd/pkg/errors"
)

type stateRecorder struct {
	mu     sync.Mutex
	states []State
}

func (r *stateRecorder) record(s State) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states = append(r.states, s)
}

func (r *stateRecorder) get() []State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]State(nil), r.states...)
}

func newTestLoop(interval time.Duration) (*RunLoop, *SignalBridge, *stateRecorder) {
	rec := &stateRecorder{}
	bridge := NewSignalBridge(discardLogger())
	loop := NewRunLoop(bridge, RunLoopOptions{
		PollInterval:  interval,
		Logger:        discardLogger(),
		OnStateChange: rec.record,
	})
	return loop, bridge, rec
}

func TestRunLoop_StopAfterStartup(t *testing.T) {
	loop, _, rec := newTestLoop(10 * time.Second)

	var startups, shutdowns atomic.Int32
	startup := func() error {
		startups.Add(1)
		go loop.Stop()
		return nil
	}
	shutdown := func() error {
		shutdowns.Add(1)
		return nil
	}

	start := time.Now()
	require.NoError(t, loop.Run(context.Background(), startup, shutdown))

	assert.Less(t, time.Since(start), 2*time.Second, "stop must not wait for the poll interval")
	assert.Equal(t, int32(1), startups.Load())
	assert.Equal(t, int32(1), shutdowns.Load())
	assert.Equal(t, []State{StateRunning, StateStopped}, rec.get())
	assert.Equal(t, StateStopped, loop.State())
}

func TestRunLoop_StopBeforeRun(t *testing.T) {
	loop, bridge, _ := newTestLoop(10 * time.Second)
	bridge.RequestStop(ReasonRequested, nil)

	var shutdowns atomic.Int32
	err := loop.Run(context.Background(), nil, func() error {
		shutdowns.Add(1)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, int32(1), shutdowns.Load())
}

func TestRunLoop_StartupFailure(t *testing.T) {
	t.Run("error", func(t *testing.T) {
		loop, _, rec := newTestLoop(time.Second)
		boom := errors.New("device missing")

		var shutdowns atomic.Int32
		err := loop.Run(context.Background(),
			func() error { return boom },
			func() error { shutdowns.Add(1); return nil },
		)

		var hookErr *unifyderrors.HookError
		require.ErrorAs(t, err, &hookErr)
		assert.Equal(t, "startup", hookErr.Hook)
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, int32(1), shutdowns.Load())
		assert.Equal(t, []State{StateStopped}, rec.get())
	})

	t.Run("panic", func(t *testing.T) {
		loop, _, _ := newTestLoop(time.Second)

		var shutdowns atomic.Int32
		err := loop.Run(context.Background(),
			func() error { panic("listener exploded") },
			func() error { shutdowns.Add(1); return nil },
		)

		var hookErr *unifyderrors.HookError
		require.ErrorAs(t, err, &hookErr)
		assert.Equal(t, "listener exploded", hookErr.Panic)
		assert.Equal(t, int32(1), shutdowns.Load())
	})
}

func TestRunLoop_ShutdownFailureIsNotReturned(t *testing.T) {
	loop, bridge, rec := newTestLoop(time.Second)
	bridge.RequestStop(ReasonRequested, nil)

	err := loop.Run(context.Background(), nil, func() error { panic("close failed") })

	assert.NoError(t, err)
	assert.Equal(t, StateStopped, loop.State())
	assert.Equal(t, []State{StateRunning, StateStopped}, rec.get())
}

func TestRunLoop_ContextCancel(t *testing.T) {
	loop, bridge, _ := newTestLoop(10 * time.Second)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx, nil, nil)
	}()

	require.Eventually(t, func() bool { return loop.State() == StateRunning }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("run loop did not return after cancel")
	}
	assert.Equal(t, ReasonContext, bridge.Cause().Reason)
}

func TestRunLoop_PollCatchesMissedWakeup(t *testing.T) {
	loop, bridge, _ := newTestLoop(20 * time.Millisecond)

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(context.Background(), nil, nil)
	}()
	require.Eventually(t, func() bool { return loop.State() == StateRunning }, 2*time.Second, 5*time.Millisecond)

	// Clear the flag without a wakeup
	bridge.running.Store(false)

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not observe the cleared flag")
	}
}

func bridgeInstalled(b *SignalBridge) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.installed
}

func TestRunLoop_KeepsCallerInstalledBridge(t *testing.T) {
	loop, bridge, _ := newTestLoop(10 * time.Millisecond)
	require.True(t, bridge.Install())
	defer bridge.Uninstall()

	go func() {
		time.Sleep(20 * time.Millisecond)
		loop.Stop()
	}()
	require.NoError(t, loop.Run(context.Background(), func() error { return nil }, func() error { return nil }))

	assert.True(t, bridgeInstalled(bridge), "handlers must stay until the caller uninstalls")
}

func TestRunLoop_UninstallsOwnBridge(t *testing.T) {
	loop, bridge, _ := newTestLoop(10 * time.Millisecond)

	startup := func() error {
		assert.True(t, bridgeInstalled(bridge))
		go loop.Stop()
		return nil
	}
	require.NoError(t, loop.Run(context.Background(), startup, func() error { return nil }))

	assert.False(t, bridgeInstalled(bridge))
}

func TestRunLoop_RunTwice(t *testing.T) {
	loop, bridge, _ := newTestLoop(time.Second)
	bridge.RequestStop(ReasonRequested, nil)

	require.NoError(t, loop.Run(context.Background(), nil, nil))
	assert.ErrorIs(t, loop.Run(context.Background(), nil, nil), ErrAlreadyRun)
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "stopped", StateStopped.String())
	assert.Equal(t, "state(9)", State(9).String())
}
