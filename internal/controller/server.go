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
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"runtime"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tombee/unifyd/internal/lifecycle"
	"github.com/tombee/unifyd/internal/log"
)

const (
	readHeaderTimeout   = 5 * time.Second
	serverShutdownGrace = 2 * time.Second
)

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime,omitempty"`
	Checks    map[string]string `json:"checks,omitempty"`
}

// statusServer serves /metrics and /healthz while the daemon runs.
type statusServer struct {
	logger  *slog.Logger
	started time.Time
	state   atomic.Int32
	devices func() int

	srv *http.Server
	ln  net.Listener
}

func newStatusServer(logger *slog.Logger, devices func() int) *statusServer {
	s := &statusServer{
		logger:  log.WithComponent(logger, "metrics"),
		started: time.Now(),
		devices: devices,
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", s.handleHealth)
	s.srv = &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}
	return s
}

// setState records the run loop state for /healthz.
func (s *statusServer) setState(st lifecycle.State) {
	s.state.Store(int32(st))
}

// Start binds addr and serves in the background.
func (s *statusServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.logger.Info("metrics endpoint listening", slog.String("addr", ln.Addr().String()))

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics server failed", log.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *statusServer) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

// Close shuts the server down, waiting briefly for in-flight requests.
func (s *statusServer) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), serverShutdownGrace)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

func (s *statusServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	st := lifecycle.State(s.state.Load())

	checks := map[string]string{
		"run_loop": st.String(),
		"runtime":  runtime.Version(),
	}
	if s.devices != nil {
		checks["devices"] = strconv.Itoa(s.devices())
	}

	resp := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.started).Round(time.Second).String(),
		Checks:    checks,
	}
	code := http.StatusOK
	if st != lifecycle.StateRunning {
		resp.Status = "unavailable"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}
