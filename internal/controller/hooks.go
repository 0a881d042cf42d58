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
	"context"
	"log/slog"
	"sync"

	"go.opentelemetry.io/otel/attribute"

	"github.com/tombee/unifyd/internal/log"
	"github.com/tombee/unifyd/internal/suspend"
	"github.com/tombee/unifyd/internal/tracing"
)

// workloadHooks serializes the run loop hooks with suspend/resume
// callbacks, which arrive on the D-Bus goroutine. Callbacks before startup
// or after shutdown are ignored.
type workloadHooks struct {
	w             Workload
	restartOnWake bool
	logger        *slog.Logger

	mu      sync.Mutex
	started bool
	stopped bool
}

func newWorkloadHooks(w Workload, restartOnWake bool, logger *slog.Logger) *workloadHooks {
	return &workloadHooks{
		w:             w,
		restartOnWake: restartOnWake,
		logger:        log.WithComponent(logger, "hooks"),
	}
}

func (h *workloadHooks) startup() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := tracing.Run(context.Background(), "unifyd.startup", h.w.Start); err != nil {
		return err
	}
	h.started = true
	return nil
}

// shutdown stops the workload even if startup failed part way.
func (h *workloadHooks) shutdown() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.stopped = true
	if err := tracing.Run(context.Background(), "unifyd.shutdown", h.w.Stop); err != nil {
		hookFailures.WithLabelValues("shutdown").Inc()
		return err
	}
	return nil
}

func (h *workloadHooks) live() bool {
	return h.started && !h.stopped
}

func (h *workloadHooks) onSuspend() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.live() {
		return
	}
	h.logger.Info("system suspending")
	if h.restartOnWake {
		if err := tracing.Run(context.Background(), "unifyd.suspend", h.w.Stop); err != nil {
			h.logger.Warn("failed to stop devices before suspend", log.Error(err))
		}
	}
}

func (h *workloadHooks) onResume() {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.live() {
		return
	}
	if h.restartOnWake {
		h.logger.Info("system resumed, restarting devices")
		resumeActions.WithLabelValues("restart").Inc()
		err := tracing.Run(context.Background(), "unifyd.resume", h.w.Restart,
			attribute.String("action", "restart"))
		if err != nil {
			h.logger.Error("failed to restart devices after resume", log.Error(err))
		}
		return
	}
	h.logger.Info("system resumed, pinging devices")
	resumeActions.WithLabelValues("ping").Inc()
	var n int
	_ = tracing.Run(context.Background(), "unifyd.resume", func() error {
		n = h.w.Ping()
		return nil
	}, attribute.String("action", "ping"))
	h.logger.Debug("ping complete", slog.Int("online", n))
}

func (h *workloadHooks) callbacks() suspend.Callbacks {
	return suspend.Callbacks{OnSuspend: h.onSuspend, OnResume: h.onResume}
}
