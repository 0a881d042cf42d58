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

package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/unifyd/internal/config"
)

// ScopeName is the instrumentation scope of every unifyd span.
const ScopeName = "github.com/tombee/unifyd"

// Options configures Setup.
type Options struct {
	Config config.TracingConfig

	// ServiceVersion is recorded on the resource.
	ServiceVersion string

	// InstanceID is recorded as service.instance.id.
	InstanceID string

	// ConsoleOutput receives console spans. Default: os.Stderr
	ConsoleOutput io.Writer
}

// Provider owns the SDK tracer provider installed by Setup.
type Provider struct {
	tp *sdktrace.TracerProvider
}

// Setup installs a global tracer provider for the configured exporter.
// With no exporter configured it returns a Provider whose methods are no-ops.
func Setup(ctx context.Context, opts Options) (*Provider, error) {
	if opts.Config.Exporter == "" {
		return &Provider{}, nil
	}
	if opts.ConsoleOutput == nil {
		opts.ConsoleOutput = os.Stderr
	}

	exp, err := newExporter(ctx, opts.Config, opts.ConsoleOutput)
	if err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName("unifyd"),
			semconv.ServiceVersion(opts.ServiceVersion),
			semconv.ServiceInstanceID(opts.InstanceID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(opts.Config.SampleRate)),
		sdktrace.WithBatcher(exp),
	)
	otel.SetTracerProvider(tp)

	return &Provider{tp: tp}, nil
}

// Enabled reports whether spans are being exported.
func (p *Provider) Enabled() bool {
	return p != nil && p.tp != nil
}

// Shutdown flushes pending spans and releases the exporter.
func (p *Provider) Shutdown(ctx context.Context) error {
	if !p.Enabled() {
		return nil
	}
	return p.tp.Shutdown(ctx)
}

// Tracer returns the unifyd tracer from the global provider.
func Tracer() trace.Tracer {
	return otel.Tracer(ScopeName)
}
