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

// Package listener tracks the hidraw device nodes of a receiver.
//
// The listener scans the device directory on start and then follows
// arrivals, removals and permission changes with fsnotify. Every change is
// reported to a Handler.
package listener

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/time/rate"

	"github.com/tombee/unifyd/internal/log"
)

// DefaultDir is where hidraw nodes appear.
const DefaultDir = "/dev"

// Error reports are limited to a burst of errorBurst, then one per
// errorInterval; the rest are only counted.
const (
	errorBurst    = 5
	errorInterval = time.Second
)

// Options configures a Listener.
type Options struct {
	// Dir is the directory holding hidraw nodes. Default: DefaultDir
	Dir string

	// DeviceHint limits the listener to one node. Its directory replaces Dir.
	DeviceHint string

	// Handler receives device callbacks. Default: a LogHandler on Logger
	Handler Handler

	// Logger receives listener diagnostics. Default: slog.Default()
	Logger *slog.Logger
}

// Listener follows hidraw device nodes.
type Listener struct {
	dir     string
	only    string
	handler Handler
	logger  *slog.Logger

	errLimit *rate.Limiter

	// cb serializes handler calls and device map updates
	cb      sync.Mutex
	devices map[string]*Device

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// New creates a stopped listener.
func New(opts Options) *Listener {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Handler == nil {
		opts.Handler = NewLogHandler(opts.Logger)
	}

	l := &Listener{
		dir:      opts.Dir,
		handler:  opts.Handler,
		logger:   log.WithComponent(opts.Logger, "listener"),
		errLimit: rate.NewLimiter(rate.Every(errorInterval), errorBurst),
		devices:  make(map[string]*Device),
	}
	if l.dir == "" {
		l.dir = DefaultDir
	}
	if opts.DeviceHint != "" {
		hint := filepath.Clean(opts.DeviceHint)
		l.dir = filepath.Dir(hint)
		l.only = filepath.Base(hint)
	}
	return l
}

// Start begins watching and reports the devices already present.
// Starting a running listener is a no-op.
func (l *Listener) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.watcher != nil {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := fsw.Add(l.dir); err != nil {
		fsw.Close()
		return fmt.Errorf("failed to watch %s: %w", l.dir, err)
	}

	l.watcher = fsw
	l.stopCh = make(chan struct{})
	l.doneCh = make(chan struct{})
	go l.eventLoop(fsw, l.stopCh, l.doneCh)

	if n := l.scan(); n == 0 {
		l.logger.Warn("no receiver found; waiting for one to appear", slog.String("dir", l.dir))
	}
	listenerRunning.Set(1)
	l.logger.Info("listener started", slog.String("dir", l.dir))
	return nil
}

// Stop stops watching and reports every tracked device offline.
// Stopping a stopped listener is a no-op.
func (l *Listener) Stop() error {
	l.mu.Lock()
	fsw, stopCh, doneCh := l.watcher, l.stopCh, l.doneCh
	l.watcher = nil
	l.mu.Unlock()

	if fsw == nil {
		return nil
	}

	close(stopCh)
	<-doneCh
	err := fsw.Close()

	l.cb.Lock()
	for _, path := range l.sortedPaths() {
		l.removeLocked(path)
	}
	l.cb.Unlock()

	listenerRunning.Set(0)
	l.logger.Info("listener stopped")
	return err
}

// Restart stops and starts the listener.
func (l *Listener) Restart() error {
	if err := l.Stop(); err != nil {
		l.logger.Warn("error while stopping listener", log.Error(err))
	}
	return l.Start()
}

// Running reports whether the listener is started.
func (l *Listener) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.watcher != nil
}

// Ping re-probes every tracked device and picks up nodes whose events
// were missed. It returns the number of tracked devices.
func (l *Listener) Ping() int {
	l.cb.Lock()
	for _, path := range l.sortedPaths() {
		if _, err := os.Stat(path); err != nil {
			l.removeLocked(path)
			continue
		}
		l.probeLocked(path)
	}
	l.cb.Unlock()

	return l.scan()
}

// Devices returns the tracked device paths in sorted order.
func (l *Listener) Devices() []string {
	l.cb.Lock()
	defer l.cb.Unlock()
	return l.sortedPaths()
}

// scan adds every matching node in the directory and returns the number
// of tracked devices.
func (l *Listener) scan() int {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		l.logger.Error("failed to scan device directory", slog.String("dir", l.dir), log.Error(err))
	}

	l.cb.Lock()
	defer l.cb.Unlock()

	for _, e := range entries {
		if l.matches(e.Name()) {
			l.addLocked(filepath.Join(l.dir, e.Name()))
		}
	}
	return len(l.devices)
}

func (l *Listener) matches(name string) bool {
	if l.only != "" {
		return name == l.only
	}
	return strings.HasPrefix(name, "hidraw")
}

func (l *Listener) eventLoop(fsw *fsnotify.Watcher, stopCh <-chan struct{}, doneCh chan<- struct{}) {
	defer close(doneCh)

	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				l.logger.Warn("device watcher event channel closed")
				return
			}
			l.handleEvent(event)
		case err, ok := <-fsw.Errors:
			if !ok {
				l.logger.Warn("device watcher error channel closed")
				return
			}
			l.logger.Error("device watcher error", log.Error(err))
			recordEvent("error")
		}
	}
}

func (l *Listener) handleEvent(event fsnotify.Event) {
	if !l.matches(filepath.Base(event.Name)) {
		return
	}
	log.Trace(l.logger, "device event", slog.String(log.DeviceKey, event.Name), slog.String("op", event.Op.String()))

	l.cb.Lock()
	defer l.cb.Unlock()

	switch {
	case event.Has(fsnotify.Create):
		l.addLocked(event.Name)
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		l.removeLocked(event.Name)
	case event.Has(fsnotify.Chmod):
		dev, ok := l.devices[event.Name]
		if !ok {
			l.addLocked(event.Name)
			return
		}
		if info, err := os.Stat(event.Name); err == nil {
			recordEvent("setting")
			l.handler.SettingChanged(*dev, "mode", info.Mode().Perm().String())
		}
		l.probeLocked(event.Name)
	}
}

func (l *Listener) addLocked(path string) {
	if _, ok := l.devices[path]; ok {
		return
	}
	l.devices[path] = &Device{Path: path}
	devicesTracked.Set(float64(len(l.devices)))
	l.probeLocked(path)
}

func (l *Listener) removeLocked(path string) {
	dev, ok := l.devices[path]
	if !ok {
		return
	}
	delete(l.devices, path)
	devicesTracked.Set(float64(len(l.devices)))

	if dev.Online {
		dev.Online = false
		recordEvent("offline")
		l.handler.StatusChanged(*dev)
	}
}

// probeLocked opens the node to learn whether it is usable and reports a
// change of status. An unusable node is reported through Handler.Error.
func (l *Listener) probeLocked(path string) {
	dev := l.devices[path]
	online := false

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err == nil {
		f.Close()
		online = true
	} else if dev.Online || !errors.Is(err, os.ErrNotExist) {
		l.reportErrorLocked(dev, err)
	}

	if online != dev.Online {
		dev.Online = online
		if online {
			recordEvent("online")
		} else {
			recordEvent("offline")
		}
		l.handler.StatusChanged(*dev)
	}
}

func (l *Listener) reportErrorLocked(dev *Device, err error) {
	if !l.errLimit.Allow() {
		recordEvent("error_suppressed")
		l.logger.Debug("device error suppressed", slog.String(log.DeviceKey, dev.Path), log.Error(err))
		return
	}
	recordEvent("error")
	l.handler.Error(*dev, err)
}

func (l *Listener) sortedPaths() []string {
	paths := make([]string, 0, len(l.devices))
	for p := range l.devices {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}
