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

// Package suspend reports system sleep and wake-up using systemd-logind's
// PrepareForSleep signal on the system D-Bus.
package suspend

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"

	"github.com/tombee/unifyd/internal/log"
)

const (
	logindPath      = dbus.ObjectPath("/org/freedesktop/login1")
	logindInterface = "org.freedesktop.login1.Manager"
	prepareForSleep = "PrepareForSleep"
)

// ErrUnsupported is returned by Watch on platforms without logind.
var ErrUnsupported = errors.New("suspend/resume notification is not supported on this platform")

// Callbacks are invoked from the watcher's goroutine.
type Callbacks struct {
	// OnSuspend runs when the system is about to sleep. May be nil.
	OnSuspend func()

	// OnResume runs after the system has woken up. May be nil.
	OnResume func()
}

// Watcher delivers sleep notifications until closed.
type Watcher struct {
	conn   *dbus.Conn
	ch     chan *dbus.Signal
	cb     Callbacks
	logger *slog.Logger

	once sync.Once
	done chan struct{}
}

func newWatcher(conn *dbus.Conn, cb Callbacks, logger *slog.Logger) (*Watcher, error) {
	err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(logindPath),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForSleep),
	)
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		conn:   conn,
		ch:     make(chan *dbus.Signal, 8),
		cb:     cb,
		logger: log.WithComponent(logger, "suspend"),
		done:   make(chan struct{}),
	}
	conn.Signal(w.ch)

	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.done)
	for sig := range w.ch {
		w.handleSignal(sig)
	}
}

// handleSignal dispatches one PrepareForSleep signal. Its single boolean
// argument is true before sleep and false after wake-up.
func (w *Watcher) handleSignal(sig *dbus.Signal) {
	if sig == nil || sig.Name != logindInterface+"."+prepareForSleep || len(sig.Body) != 1 {
		return
	}
	sleeping, ok := sig.Body[0].(bool)
	if !ok {
		w.logger.Debug("ignoring malformed PrepareForSleep", slog.Any("body", sig.Body))
		return
	}

	if sleeping {
		w.logger.Info("system suspending")
		if w.cb.OnSuspend != nil {
			w.cb.OnSuspend()
		}
		return
	}

	w.logger.Info("system resumed")
	if w.cb.OnResume != nil {
		w.cb.OnResume()
	}
}

// Close stops notifications and closes the bus connection. It is safe to
// call on a nil Watcher and more than once.
func (w *Watcher) Close() error {
	if w == nil {
		return nil
	}

	var err error
	w.once.Do(func() {
		w.conn.RemoveSignal(w.ch)
		close(w.ch)
		<-w.done
		err = w.conn.Close()
	})
	return err
}
