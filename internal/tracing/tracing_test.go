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
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/unifyd/internal/config"
)

// withRecorder installs a synchronous span recorder as the global provider.
func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestRun_RecordsSpans(t *testing.T) {
	rec := withRecorder(t)
	boom := errors.New("boom")

	require.NoError(t, Run(context.Background(), "unifyd.startup", func() error { return nil },
		attribute.String("hook", "startup")))
	require.ErrorIs(t, Run(context.Background(), "unifyd.shutdown", func() error { return boom }), boom)

	spans := rec.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, "unifyd.startup", spans[0].Name())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("hook", "startup"))

	assert.Equal(t, "unifyd.shutdown", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Equal(t, "boom", spans[1].Status().Description)
	require.NotEmpty(t, spans[1].Events())
	assert.Equal(t, "exception", spans[1].Events()[0].Name)
}

func TestSetup_Disabled(t *testing.T) {
	p, err := Setup(context.Background(), Options{})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()))

	var nilProvider *Provider
	assert.NoError(t, nilProvider.Shutdown(context.Background()))
}

func TestSetup_Console(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	var out bytes.Buffer
	p, err := Setup(context.Background(), Options{
		Config:         config.TracingConfig{Exporter: ExporterConsole, SampleRate: 1},
		ServiceVersion: "1.2.3",
		InstanceID:     "abc",
		ConsoleOutput:  &out,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	require.NoError(t, Run(context.Background(), "unifyd.resume", func() error { return nil }))
	require.NoError(t, p.Shutdown(context.Background()))

	assert.Contains(t, out.String(), "unifyd.resume")
	assert.Contains(t, out.String(), "1.2.3")
}

func TestSetup_UnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), Options{Config: config.TracingConfig{Exporter: "zipkin"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported exporter type")
}

func TestNewSampler(t *testing.T) {
	tests := []struct {
		rate float64
		want string
	}{
		{1, "AlwaysOnSampler"},
		{2, "AlwaysOnSampler"},
		{0, "AlwaysOffSampler"},
		{0.25, "TraceIDRatioBased{0.25}"},
	}
	for _, tt := range tests {
		desc := NewSampler(tt.rate).Description()
		assert.True(t, strings.HasPrefix(desc, "ParentBased{root:"), desc)
		assert.Contains(t, desc, tt.want)
	}
}
