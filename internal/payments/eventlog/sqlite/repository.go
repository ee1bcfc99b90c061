// Package sqlite provides a SQLite-backed implementation of
// eventlog.Repository.
//
// WAL mode is enabled on Open so readers never block the writer — the
// webhook handler writes while an operator may be querying the log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/pressandpolish/storefront/internal/payments/eventlog"

	// Pure-Go SQLite driver; avoids CGO so the image builds on Alpine.
	_ "modernc.org/sqlite"
)

// schema is the DDL executed once on startup. The table is append-only: each
// row is an immutable payment event.
const schema = `
CREATE TABLE IF NOT EXISTS payment_events (
    id               INTEGER PRIMARY KEY AUTOINCREMENT,

    -- Store order ID when it could be resolved; empty otherwise.
    order_id         TEXT NOT NULL DEFAULT '',

    -- Gateway identifiers taken from the payload.
    gateway_order_id TEXT NOT NULL DEFAULT '',
    payment_id       TEXT NOT NULL DEFAULT '',

    -- 'webhook' or 'redirect'.
    source           TEXT NOT NULL,

    -- Gateway event type, e.g. 'payment.captured'; 'verify' for redirects.
    event_type       TEXT NOT NULL,

    -- What processing did: processed / rejected_bad_signature / ...
    outcome          TEXT NOT NULL,

    -- Error detail for failed outcomes.
    detail           TEXT NOT NULL DEFAULT '',

    -- W3C trace/span IDs from the active OTel span.
    trace_id         TEXT NOT NULL DEFAULT '',
    span_id          TEXT NOT NULL DEFAULT '',

    -- RFC3339 stored as TEXT, SQLite idiom.
    created_at       TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_payment_events_order_id
    ON payment_events(order_id, created_at);

CREATE INDEX IF NOT EXISTS idx_payment_events_gateway_order_id
    ON payment_events(gateway_order_id, created_at);
`

// Repository is the SQLite implementation of eventlog.Repository.
type Repository struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Repository, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %q: %w", path, err)
	}

	// SQLite performs best with a single writer connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("eventlog: apply schema: %w", err)
	}

	return &Repository{db: db}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save appends a new event row. Safe for concurrent use.
func (r *Repository) Save(ctx context.Context, e *eventlog.Event) error {
	const q = `
		INSERT INTO payment_events
			(order_id, gateway_order_id, payment_id, source, event_type, outcome, detail, trace_id, span_id, created_at)
		VALUES
			(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := r.db.ExecContext(ctx, q,
		e.OrderID,
		e.GatewayOrderID,
		e.PaymentID,
		string(e.Source),
		e.EventType,
		string(e.Outcome),
		e.Detail,
		e.TraceID,
		e.SpanID,
		e.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("eventlog: save event for %q: %w", e.GatewayOrderID, err)
	}
	return nil
}

// ListByGatewayOrderID returns all events recorded for a gateway order,
// oldest first. Used for forensics and in tests.
func (r *Repository) ListByGatewayOrderID(ctx context.Context, gatewayOrderID string) ([]eventlog.Event, error) {
	const q = `
		SELECT order_id, gateway_order_id, payment_id, source, event_type, outcome, detail, trace_id, span_id, created_at
		FROM   payment_events
		WHERE  gateway_order_id = ?
		ORDER  BY created_at ASC, id ASC`

	rows, err := r.db.QueryContext(ctx, q, gatewayOrderID)
	if err != nil {
		return nil, fmt.Errorf("eventlog: list events for %q: %w", gatewayOrderID, err)
	}
	defer rows.Close()

	var out []eventlog.Event
	for rows.Next() {
		var e eventlog.Event
		var createdAt string
		if err := rows.Scan(
			&e.OrderID, &e.GatewayOrderID, &e.PaymentID,
			&e.Source, &e.EventType, &e.Outcome, &e.Detail,
			&e.TraceID, &e.SpanID, &createdAt,
		); err != nil {
			return nil, fmt.Errorf("eventlog: scan event: %w", err)
		}
		e.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt)
		if err != nil {
			return nil, fmt.Errorf("eventlog: parse time %q: %w", createdAt, err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("eventlog: iterate events: %w", err)
	}
	return out, nil
}
