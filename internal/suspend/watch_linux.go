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

package suspend

import (
	"fmt"
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// Watch subscribes to logind sleep notifications on the system bus.
func Watch(logger *slog.Logger, cb Callbacks) (*Watcher, error) {
	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to system bus: %w", err)
	}

	w, err := newWatcher(conn, cb, logger)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to subscribe to %s.%s: %w", logindInterface, prepareForSleep, err)
	}
	return w, nil
}
