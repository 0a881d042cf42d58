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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/tombee/unifyd/internal/lifecycle"
)

var (
	// runState mirrors lifecycle.State (0 idle, 1 running, 2 stopped)
	runState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifyd_run_state",
			Help: "Run loop state: 0 idle, 1 running, 2 stopped",
		},
	)

	// signalsReceived counts stop-causing signals by name
	signalsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifyd_signals_total",
			Help: "Total stop signals received by signal name",
		},
		[]string{"signal"},
	)

	// hookFailures counts failed or panicking lifecycle hooks
	hookFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifyd_hook_failures_total",
			Help: "Total lifecycle hook failures by hook (startup, shutdown)",
		},
		[]string{"hook"},
	)

	// resumeActions counts what was done on system resume
	resumeActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifyd_resume_total",
			Help: "Total resume notifications by action taken (restart, ping)",
		},
		[]string{"action"},
	)
)

func recordState(s lifecycle.State) {
	runState.Set(float64(s))
}
