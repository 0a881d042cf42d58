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

package listener

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// devicesTracked is the number of hidraw nodes currently tracked
	devicesTracked = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifyd_devices",
			Help: "Number of hidraw devices currently tracked by the listener",
		},
	)

	// deviceEvents counts device callbacks by kind
	deviceEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "unifyd_device_events_total",
			Help: "Total device events by kind (online, offline, setting, error, error_suppressed)",
		},
		[]string{"event"},
	)

	// listenerRunning is 1 while the listener is started
	listenerRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "unifyd_listener_running",
			Help: "Whether the device listener is running",
		},
	)
)

func recordEvent(kind string) {
	deviceEvents.WithLabelValues(kind).Inc()
}
