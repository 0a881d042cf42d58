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
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkloadHooks_Resume(t *testing.T) {
	t.Run("pings without restart-on-wake-up", func(t *testing.T) {
		w := newFakeWorkload()
		h := newWorkloadHooks(w, false, slog.New(slog.DiscardHandler))
		require.NoError(t, h.startup())

		cb := h.callbacks()
		cb.OnSuspend()
		cb.OnResume()

		starts, stops, restarts, pings := w.counts()
		assert.Equal(t, 1, starts)
		assert.Zero(t, stops)
		assert.Zero(t, restarts)
		assert.Equal(t, 1, pings)
	})

	t.Run("stops on suspend and restarts on resume", func(t *testing.T) {
		w := newFakeWorkload()
		h := newWorkloadHooks(w, true, slog.New(slog.DiscardHandler))
		require.NoError(t, h.startup())

		cb := h.callbacks()
		cb.OnSuspend()
		cb.OnResume()

		_, stops, restarts, pings := w.counts()
		assert.Equal(t, 1, stops)
		assert.Equal(t, 1, restarts)
		assert.Zero(t, pings)
	})
}

func TestWorkloadHooks_IgnoresCallbacksOutsideRun(t *testing.T) {
	w := newFakeWorkload()
	h := newWorkloadHooks(w, true, slog.New(slog.DiscardHandler))
	cb := h.callbacks()

	cb.OnResume()
	_, _, restarts, _ := w.counts()
	assert.Zero(t, restarts, "resume before startup")

	require.NoError(t, h.startup())
	require.NoError(t, h.shutdown())

	cb.OnSuspend()
	cb.OnResume()
	_, stops, restarts, _ := w.counts()
	assert.Equal(t, 1, stops, "only the shutdown stop")
	assert.Zero(t, restarts, "resume after shutdown")
}

func TestWorkloadHooks_ShutdownAfterFailedStartup(t *testing.T) {
	w := newFakeWorkload()
	w.startErr = errBoom
	h := newWorkloadHooks(w, false, slog.New(slog.DiscardHandler))

	assert.ErrorIs(t, h.startup(), errBoom)
	assert.NoError(t, h.shutdown())

	h.callbacks().OnResume()
	_, stops, _, pings := w.counts()
	assert.Equal(t, 1, stops)
	assert.Zero(t, pings)
}
