package eventlog

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// NewEvent builds an Event with trace_id/span_id taken from the span active
// in ctx. Both are empty strings when no span is active (unit tests).
func NewEvent(ctx context.Context, source Source, eventType string, outcome Outcome) *Event {
	e := &Event{
		Source:    source,
		EventType: eventType,
		Outcome:   outcome,
		CreatedAt: time.Now().UTC(),
	}

	sc := trace.SpanFromContext(ctx).SpanContext()
	if sc.IsValid() {
		e.TraceID = sc.TraceID().String()
		e.SpanID = sc.SpanID().String()
	}
	return e
}
