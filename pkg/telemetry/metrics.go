// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	errs "github.com/jllopis/fluxcheck/pkg/errors"
)

// ValidationMetrics counts validations and the errors they produce.
type ValidationMetrics struct {
	validations metric.Int64Counter
	errors      metric.Int64Counter
	duration    metric.Float64Histogram
	tools       metric.Int64Counter
}

// NewValidationMetrics registers the instruments on mp, or on the global
// meter provider when mp is nil.
func NewValidationMetrics(mp metric.MeterProvider) (*ValidationMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("fluxcheck/validate")

	validations, err := meter.Int64Counter(
		"fluxcheck.validations.total",
		metric.WithDescription("Validations by detected format and outcome"),
	)
	if err != nil {
		return nil, err
	}
	errors, err := meter.Int64Counter(
		"fluxcheck.validation.errors.total",
		metric.WithDescription("Validation errors by code"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram(
		"fluxcheck.validation.duration_ms",
		metric.WithDescription("Validation latency"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}
	tools, err := meter.Int64Counter(
		"fluxcheck.tool.calls.total",
		metric.WithDescription("MCP tool calls by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	return &ValidationMetrics{
		validations: validations,
		errors:      errors,
		duration:    duration,
		tools:       tools,
	}, nil
}

// RecordValidation records one finished validation.
func (m *ValidationMetrics) RecordValidation(ctx context.Context, format string, valid bool, list errs.List, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := metric.WithAttributes(
		attribute.String(AttrFormat, format),
		attribute.Bool(AttrValid, valid),
	)
	m.validations.Add(ctx, 1, outcome)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, metric.WithAttributes(attribute.String(AttrFormat, format)))
	for _, e := range list {
		if e == nil {
			continue
		}
		m.errors.Add(ctx, 1, metric.WithAttributes(
			attribute.String(AttrErrorCode, string(e.Code)),
			attribute.String(AttrFormat, format),
		))
	}
}

// RecordToolCall records one MCP tool invocation.
func (m *ValidationMetrics) RecordToolCall(ctx context.Context, name string, success bool) {
	if m == nil {
		return
	}
	m.tools.Add(ctx, 1, metric.WithAttributes(ToolAttributes(name, "", success)...))
}
