// Package observability carries the logging, metrics and tracing plumbing
// shared by every component.
package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracer starts spans. The indirection keeps a no-op implementation
// available for tests and for deployments with tracing disabled.
type Tracer interface {
	// StartSpan opens a span as a child of the one in ctx.
	StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span)
}

// Span is the subset of span behavior the engine needs.
type Span interface {
	// End completes the span.
	End()

	// SetAttributes attaches attributes after creation.
	SetAttributes(attrs ...attribute.KeyValue)

	// NoticeError records err and marks the span failed. A nil err is a
	// no-op.
	NoticeError(err error)
}

// SpanOption configures span creation.
type SpanOption func(*spanSettings)

type spanSettings struct {
	kind  trace.SpanKind
	attrs []attribute.KeyValue
}

// WithAttributes attaches attributes at span creation.
func WithAttributes(attrs ...attribute.KeyValue) SpanOption {
	return func(s *spanSettings) {
		s.attrs = append(s.attrs, attrs...)
	}
}

// WithSpanKind overrides the default internal span kind.
func WithSpanKind(kind trace.SpanKind) SpanOption {
	return func(s *spanSettings) {
		s.kind = kind
	}
}

// NewTracer returns a Tracer backed by the global OpenTelemetry provider.
func NewTracer(name string) Tracer {
	return otelTracer{tracer: otel.Tracer(name)}
}

type otelTracer struct {
	tracer trace.Tracer
}

func (t otelTracer) StartSpan(ctx context.Context, name string, opts ...SpanOption) (context.Context, Span) {
	settings := spanSettings{kind: trace.SpanKindInternal}
	for _, opt := range opts {
		opt(&settings)
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithSpanKind(settings.kind),
		trace.WithAttributes(settings.attrs...),
	)
	return ctx, otelSpan{span: span}
}

type otelSpan struct {
	span trace.Span
}

func (s otelSpan) End() {
	s.span.End()
}

func (s otelSpan) SetAttributes(attrs ...attribute.KeyValue) {
	s.span.SetAttributes(attrs...)
}

func (s otelSpan) NoticeError(err error) {
	if err == nil {
		return
	}
	s.span.RecordError(err)
	s.span.SetStatus(codes.Error, err.Error())
}

// NewNoopTracer returns a Tracer whose spans do nothing.
func NewNoopTracer() Tracer {
	return noopTracer{}
}

type noopTracer struct{}

func (noopTracer) StartSpan(ctx context.Context, _ string, _ ...SpanOption) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End()                                  {}
func (noopSpan) SetAttributes(_ ...attribute.KeyValue) {}
func (noopSpan) NoticeError(_ error)                   {}
