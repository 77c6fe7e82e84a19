// Package observability provides OpenTelemetry tracing for pipeline runs
package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/ajitpratap0/formatflow"

// Tracer returns the tracer of the globally installed provider. Until Init
// runs this is the OpenTelemetry no-op tracer.
func Tracer() trace.Tracer {
	return otel.Tracer(instrumentationName)
}

// Span wraps an OpenTelemetry span and batches attributes until End
type Span struct {
	span       trace.Span
	startTime  time.Time
	attributes []attribute.KeyValue
}

// NewSpan starts a span on the global tracer
func NewSpan(ctx context.Context, operationName string) (context.Context, *Span) {
	ctx, span := Tracer().Start(ctx, operationName)

	return ctx, &Span{
		span:      span,
		startTime: time.Now(),
	}
}

// SetAttribute adds an attribute to the span
func (s *Span) SetAttribute(key string, value interface{}) {
	var attr attribute.KeyValue

	switch v := value.(type) {
	case string:
		attr = attribute.String(key, v)
	case int:
		attr = attribute.Int(key, v)
	case int64:
		attr = attribute.Int64(key, v)
	case float64:
		attr = attribute.Float64(key, v)
	case bool:
		attr = attribute.Bool(key, v)
	default:
		attr = attribute.String(key, fmt.Sprintf("%v", v))
	}

	s.attributes = append(s.attributes, attr)
}

// AddEvent adds an event to the span
func (s *Span) AddEvent(name string, attrs ...attribute.KeyValue) {
	s.span.AddEvent(name, trace.WithAttributes(attrs...))
}

// Finish sets the status from err and ends the span
func (s *Span) Finish(err error) {
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.End()
}

// End ends the span
func (s *Span) End() {
	if len(s.attributes) > 0 {
		s.span.SetAttributes(s.attributes...)
	}
	s.span.SetAttributes(attribute.Int64("duration_us", time.Since(s.startTime).Microseconds()))
	s.span.End()
}

// UnitTracer traces the steps of one pipeline unit (an input or an output)
type UnitTracer struct {
	kind string
	id   string
}

// NewUnitTracer creates a tracer for the unit kind ("input" or "output") and id
func NewUnitTracer(kind, id string) *UnitTracer {
	return &UnitTracer{kind: kind, id: id}
}

// StartSpan starts a unit step span
func (ut *UnitTracer) StartSpan(ctx context.Context, phase string) (context.Context, *Span) {
	ctx, span := NewSpan(ctx, fmt.Sprintf("%s.%s", ut.kind, phase))

	span.SetAttribute("unit.kind", ut.kind)
	span.SetAttribute("unit.id", ut.id)
	span.SetAttribute("unit.phase", phase)

	return ctx, span
}

// TraceStep runs fn inside a span named after the unit kind and phase
func (ut *UnitTracer) TraceStep(ctx context.Context, phase string, fn func(ctx context.Context) error) error {
	ctx, span := ut.StartSpan(ctx, phase)
	err := fn(ctx)
	span.Finish(err)
	return err
}
