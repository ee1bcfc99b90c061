// Package eventlog defines the payment event audit trail.
//
// Every webhook delivery and redirect-path verification attempt is appended
// here, whatever its outcome. The log answers two questions:
//
//  1. Observability: which confirmations reached us for an order, in what
//     order, and from which entry point — correlated with the distributed
//     trace via the trace_id field.
//
//  2. Forensics: duplicate deliveries and signature failures are visible
//     after the fact even though processing itself keeps no idempotency
//     state.
package eventlog

import "time"

// Source is the entry point that produced the event.
type Source string

const (
	SourceWebhook  Source = "webhook"
	SourceRedirect Source = "redirect"
)

// Outcome is what processing did with the event.
type Outcome string

const (
	OutcomeProcessed        Outcome = "processed"
	OutcomeRejectedBadSig   Outcome = "rejected_bad_signature"
	OutcomeSkippedUnknown   Outcome = "skipped_unknown_type"
	OutcomeProcessingFailed Outcome = "processing_failed"
)

// Event is a single row in the payment_events table.
type Event struct {
	// OrderID is the store's order ID, when it could be resolved.
	OrderID string

	// GatewayOrderID is the gateway's order identifier from the payload.
	GatewayOrderID string

	// PaymentID is the gateway payment identifier, when present.
	PaymentID string

	Source    Source
	EventType string
	Outcome   Outcome

	// Detail carries the error string for failed outcomes.
	Detail string

	// TraceID/SpanID come from the OTel span active when the event was
	// logged, so a row can be joined with its trace.
	TraceID string
	SpanID  string

	CreatedAt time.Time
}
