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
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"sync/atomic"
	"syscall"
)

// StopReason classifies why the run loop was asked to stop.
type StopReason int

const (
	// ReasonNone means no stop has been requested.
	ReasonNone StopReason = iota
	// ReasonInterrupt is an interactive interrupt (SIGINT, Ctrl+C).
	ReasonInterrupt
	// ReasonTerminate is a termination request (SIGTERM).
	ReasonTerminate
	// ReasonSignal is any other stop-causing signal.
	ReasonSignal
	// ReasonContext is cancellation of the run loop's context.
	ReasonContext
	// ReasonRequested is a programmatic stop.
	ReasonRequested
)

// String implements fmt.Stringer.
func (r StopReason) String() string {
	switch r {
	case ReasonInterrupt:
		return "keyboard interrupt"
	case ReasonTerminate:
		return "SIGTERM"
	case ReasonSignal:
		return "signal"
	case ReasonContext:
		return "context cancelled"
	case ReasonRequested:
		return "stop requested"
	default:
		return "none"
	}
}

// StopCause records the first stop request.
type StopCause struct {
	Reason StopReason
	Signal os.Signal
}

// String renders the cause the way it appears in exit log lines.
func (c StopCause) String() string {
	if c.Reason == ReasonSignal && c.Signal != nil {
		return describeSignal(c.Signal)
	}
	return c.Reason.String()
}

// SignalBridge turns stop-causing signals into a single "keep running" flag.
//
// The flag starts true and only ever goes false. Signals are received on a
// relay goroutine that does nothing but flip the flag, record the cause,
// wake the run loop and log one line.
type SignalBridge struct {
	logger *slog.Logger

	running atomic.Bool
	cause   atomic.Pointer[StopCause]
	wake    chan struct{}

	// OnSignal, if set, is called on the relay goroutine after each signal.
	OnSignal func(os.Signal)

	mu        sync.Mutex
	sigCh     chan os.Signal
	done      chan struct{}
	installed bool
}

// NewSignalBridge creates a bridge in the running state.
func NewSignalBridge(logger *slog.Logger) *SignalBridge {
	if logger == nil {
		logger = slog.Default()
	}
	b := &SignalBridge{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
	b.running.Store(true)
	return b
}

// Install starts delivering StopSignals to the bridge. It is idempotent and
// reports whether this call did the installing; only that caller should
// Uninstall.
func (b *SignalBridge) Install() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.installed {
		return false
	}
	b.sigCh = make(chan os.Signal, 1)
	b.done = make(chan struct{})
	signal.Notify(b.sigCh, StopSignals...)
	b.installed = true

	go b.relay(b.sigCh, b.done)
	return true
}

// Uninstall restores default signal behavior and stops the relay.
func (b *SignalBridge) Uninstall() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.installed {
		return
	}
	signal.Stop(b.sigCh)
	close(b.done)
	b.installed = false
}

// Running reports whether no stop has been requested yet.
func (b *SignalBridge) Running() bool {
	return b.running.Load()
}

// Wake is signalled (without blocking the sender) on every stop request.
func (b *SignalBridge) Wake() <-chan struct{} {
	return b.wake
}

// Cause returns the first recorded stop cause.
func (b *SignalBridge) Cause() StopCause {
	if c := b.cause.Load(); c != nil {
		return *c
	}
	return StopCause{Reason: ReasonNone}
}

// RequestStop clears the running flag and wakes the run loop.
// Only the first cause is kept; later requests just wake again.
func (b *SignalBridge) RequestStop(reason StopReason, sig os.Signal) {
	b.cause.CompareAndSwap(nil, &StopCause{Reason: reason, Signal: sig})
	b.running.Store(false)

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

func (b *SignalBridge) relay(sigCh <-chan os.Signal, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case sig := <-sigCh:
			b.handle(sig)
		}
	}
}

func (b *SignalBridge) handle(sig os.Signal) {
	reason := classifySignal(sig)
	b.RequestStop(reason, sig)

	switch reason {
	case ReasonInterrupt:
		if b.logger.Enabled(context.Background(), slog.LevelInfo) {
			b.logger.Info("goroutine dump", slog.String("stacks", goroutineStacks()))
		}
		b.logger.Info(DaemonName + "-daemon: exit due to keyboard interrupt")
	case ReasonTerminate:
		b.logger.Info(DaemonName + "-daemon: exit due to SIGTERM")
	default:
		b.logger.Info(fmt.Sprintf("%s-daemon: exit due to %s", DaemonName, describeSignal(sig)))
	}

	if b.OnSignal != nil {
		b.OnSignal(sig)
	}
}

// describeSignal renders sig as "signal N (name)" where possible.
func describeSignal(sig os.Signal) string {
	if s, ok := sig.(syscall.Signal); ok {
		return fmt.Sprintf("signal %d (%s)", int(s), s)
	}
	return fmt.Sprintf("signal %s", sig)
}

func goroutineStacks() string {
	buf := make([]byte, 64<<10)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		if len(buf) >= 8<<20 {
			return string(buf)
		}
		buf = make([]byte, 2*len(buf))
	}
}
