// Copyright 2026 © The fluxcheck Authors
// SPDX-License-Identifier: Apache-2.0

// Package validate detects whether content is a jobspec or a batch script,
// runs the matching validator and assembles a uniform Result.
package validate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gopkg.in/yaml.v3"

	"github.com/jllopis/fluxcheck/pkg/batch"
	errs "github.com/jllopis/fluxcheck/pkg/errors"
	"github.com/jllopis/fluxcheck/pkg/jobspec"
	"github.com/jllopis/fluxcheck/pkg/telemetry"
)

// Result is the outcome of one validation. Errors is never nil and Valid is
// true iff Errors is empty. Jobspec is set only for valid structured
// jobspecs.
type Result struct {
	Jobspec *jobspec.Jobspec `json:"jobspec"`
	Errors  []string         `json:"errors"`
	Valid   bool             `json:"valid"`

	Format     Format            `json:"-"`
	Directives []batch.Directive `json:"-"`
	Details    errs.List         `json:"-"`
}

func newResult(format Format, js *jobspec.Jobspec, dirs []batch.Directive, list errs.List) Result {
	valid := len(list) == 0
	if !valid {
		js = nil
	}
	return Result{
		Jobspec:    js,
		Errors:     list.Strings(),
		Valid:      valid,
		Format:     format,
		Directives: dirs,
		Details:    list,
	}
}

// Option configures a Validator.
type Option func(*Validator)

// WithMode selects fail-fast or collect-all reporting.
func WithMode(m jobspec.Mode) Option {
	return func(v *Validator) { v.opts.Mode = m }
}

// WithMaxDepth bounds resource tree nesting. Values <= 0 use the default.
func WithMaxDepth(depth int) Option {
	return func(v *Validator) { v.opts.MaxDepth = depth }
}

// WithLogger sets the logger used for validation events.
func WithLogger(l *slog.Logger) Option {
	return func(v *Validator) { v.logger = l }
}

// WithTracer overrides the tracer used for Validate spans.
func WithTracer(t trace.Tracer) Option {
	return func(v *Validator) { v.tracer = t }
}

// WithMetrics records every validation on m.
func WithMetrics(m *telemetry.ValidationMetrics) Option {
	return func(v *Validator) { v.metrics = m }
}

// Validator validates jobspecs and batch scripts. It holds no per-call
// state and is safe for concurrent use.
type Validator struct {
	opts    jobspec.Options
	logger  *slog.Logger
	tracer  trace.Tracer
	metrics *telemetry.ValidationMetrics

	decode func(*yaml.Node, jobspec.Options) (*jobspec.Jobspec, errs.List)
}

// New creates a Validator in collect-all mode unless configured otherwise.
func New(opts ...Option) *Validator {
	v := &Validator{
		tracer: otel.Tracer("fluxcheck/validate"),
		decode: jobspec.Decode,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Mode returns the configured reporting mode.
func (v *Validator) Mode() jobspec.Mode { return v.opts.Mode }

func (v *Validator) log() *slog.Logger {
	if v.logger != nil {
		return v.logger
	}
	return slog.Default()
}

var defaultValidator = New()

// Validate checks content with a collect-all Validator.
func Validate(content string) Result {
	return defaultValidator.Validate(context.Background(), content)
}

// Validate checks content and returns the assembled result. A panic inside
// validation is reported as a single internal error.
func (v *Validator) Validate(ctx context.Context, content string) (res Result) {
	start := time.Now()
	ctx, span := v.tracer.Start(ctx, "Validate",
		trace.WithAttributes(telemetry.RequestAttributes("", v.opts.Mode.String(), len(content))...))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			v.log().ErrorContext(ctx, "validation panicked", "panic", r, "stack", string(debug.Stack()))
			res = newResult(res.Format, nil, nil, errs.List{
				errs.Newf(errs.CodeInternal, "internal error during validation: %v", r),
			})
		}

		nodes := 0
		if res.Jobspec != nil {
			nodes = len(res.Jobspec.ResourceCounts())
		}
		span.SetAttributes(telemetry.ResultAttributes(res.Valid, len(res.Errors), nodes)...)
		span.SetAttributes(telemetry.RequestAttributes(res.Format.String(), v.opts.Mode.String(), len(content))...)
		if res.Format == FormatBatch {
			span.SetAttributes(attribute.Int(telemetry.AttrDirectives, len(res.Directives)))
		}
		if !res.Valid {
			span.SetStatus(codes.Error, "invalid")
		}
		v.metrics.RecordValidation(ctx, res.Format.String(), res.Valid, res.Details, time.Since(start))

		if res.Valid {
			v.log().DebugContext(ctx, "validation passed", "format", res.Format, "nodes", nodes)
		} else {
			v.log().InfoContext(ctx, "validation failed", "format", res.Format, "errors", len(res.Errors))
		}
	}()

	return v.run(content)
}

func (v *Validator) run(content string) Result {
	format, doc, err := detect(content)
	switch {
	case format == FormatUnknown && err != nil:
		return newResult(format, nil, nil, errs.List{errs.New(errs.CodeSyntax, "failed to parse jobspec", err)})
	case format == FormatUnknown:
		return newResult(format, nil, nil, errs.List{errs.Newf(errs.CodeInvalidInput, "content is empty")})
	case format == FormatBatch:
		dirs, list := batch.Validate(content, v.opts.Mode)
		return newResult(format, nil, dirs, list)
	}
	js, list := v.decode(doc, v.opts)
	return newResult(format, js, nil, list)
}

// Count validates content and, when it is a valid jobspec, returns one
// observation per resource vertex in pre-order. Batch scripts carry no
// resource tree and yield no observations.
func (v *Validator) Count(ctx context.Context, content string) ([]jobspec.ResourceCount, Result) {
	res := v.Validate(ctx, content)
	if !res.Valid || res.Jobspec == nil {
		return nil, res
	}
	return res.Jobspec.ResourceCounts(), res
}

// FormatCounts writes one "Type: <kind>, count: <count>" line per
// observation.
func FormatCounts(w io.Writer, counts []jobspec.ResourceCount) error {
	for _, c := range counts {
		if _, err := fmt.Fprintf(w, "Type: %s, count: %d\n", c.Kind, c.Count); err != nil {
			return err
		}
	}
	return nil
}
