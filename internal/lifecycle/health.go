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
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrHealthCheckTimeout is returned by WaitUntilHealthy when the daemon
// never reports healthy.
var ErrHealthCheckTimeout = errors.New("health check timeout")

// maxHealthBody bounds how much of a /healthz body is decoded.
const maxHealthBody = 64 << 10

// HealthChecker probes a running daemon's /healthz endpoint.
type HealthChecker struct {
	url     string
	client  *http.Client
	backoff backoff
}

type backoff struct {
	initial, max time.Duration
	factor       float64
}

func (b backoff) next(d time.Duration) time.Duration {
	d = time.Duration(float64(d) * b.factor)
	return min(d, b.max)
}

// HealthCheckResult is the outcome of one probe.
type HealthCheckResult struct {
	// Success is true for a 2xx response.
	Success    bool
	StatusCode int

	// Status and RunLoop are decoded from the JSON body when present.
	Status  string
	RunLoop string

	Error error
}

// NewHealthChecker creates a checker for url with a 5s request timeout.
// Default backoff: 50ms doubling up to 1s.
func NewHealthChecker(url string) *HealthChecker {
	return &HealthChecker{
		url:     url,
		client:  &http.Client{Timeout: 5 * time.Second},
		backoff: backoff{initial: 50 * time.Millisecond, max: time.Second, factor: 2},
	}
}

// WithBackoff replaces the retry schedule used by WaitUntilHealthy.
func (h *HealthChecker) WithBackoff(initial, max time.Duration, multiplier float64) *HealthChecker {
	h.backoff = backoff{initial: initial, max: max, factor: multiplier}
	return h
}

// Check performs a single probe. Transport failures are reported in
// Error, never returned.
func (h *HealthChecker) Check(ctx context.Context) *HealthCheckResult {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return &HealthCheckResult{Error: fmt.Errorf("failed to create request: %w", err)}
	}

	resp, err := h.client.Do(req)
	if err != nil {
		return &HealthCheckResult{Error: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	res := &HealthCheckResult{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		StatusCode: resp.StatusCode,
	}

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	if json.NewDecoder(io.LimitReader(resp.Body, maxHealthBody)).Decode(&body) == nil {
		res.Status = body.Status
		res.RunLoop = body.Checks["run_loop"]
	}
	return res
}

// WaitUntilHealthy probes until a check succeeds, ctx ends or timeout
// passes, backing off between attempts.
func (h *HealthChecker) WaitUntilHealthy(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	wait := h.backoff.initial
	for attempt := 1; ; attempt++ {
		res := h.Check(ctx)
		if res.Success {
			return nil
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			cause := res.Error
			if cause == nil {
				cause = fmt.Errorf("status %d", res.StatusCode)
			}
			return fmt.Errorf("%w after %d attempts: %v", ErrHealthCheckTimeout, attempt, cause)
		case <-timer.C:
		}
		wait = h.backoff.next(wait)
	}
}
