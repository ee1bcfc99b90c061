package eventlog

import "context"

// Repository is the port for persisting payment events. The confirmation
// service depends on this abstraction, not on SQLite directly, so tests can
// use an in-memory implementation.
type Repository interface {
	// Save appends a new event. The table is an append-only audit log,
	// never an upsert.
	Save(ctx context.Context, e *Event) error
}
