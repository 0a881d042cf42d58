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
	"log/slog"

	"github.com/tombee/unifyd/internal/log"
)

// Device is one tracked hidraw node.
type Device struct {
	Path string

	// Online is true when the node could be opened read-write.
	Online bool
}

// Handler receives device callbacks. Calls are made from the listener's
// goroutines, one at a time.
type Handler interface {
	StatusChanged(dev Device)
	SettingChanged(dev Device, setting, value string)
	Error(dev Device, err error)
}

// LogHandler logs every callback. It is the daemon's headless handler.
type LogHandler struct {
	logger *slog.Logger
}

// NewLogHandler creates a handler logging to logger.
func NewLogHandler(logger *slog.Logger) *LogHandler {
	return &LogHandler{logger: log.WithComponent(logger, "device")}
}

// StatusChanged implements Handler.
func (h *LogHandler) StatusChanged(dev Device) {
	status := "offline"
	if dev.Online {
		status = "online"
	}
	h.logger.Info("device status changed", slog.String(log.DeviceKey, dev.Path), slog.String("status", status))
}

// SettingChanged implements Handler.
func (h *LogHandler) SettingChanged(dev Device, setting, value string) {
	h.logger.Info("device setting changed",
		slog.String(log.DeviceKey, dev.Path),
		slog.String("setting", setting),
		slog.String("value", value))
}

// Error implements Handler.
func (h *LogHandler) Error(dev Device, err error) {
	h.logger.Error("device error", slog.String(log.DeviceKey, dev.Path), log.Error(err))
}
