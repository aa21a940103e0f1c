package storage

import (
	"context"

	"flow-vault/internal/domain"
)

// TokenRecordStore provides access to token_records storage.
type TokenRecordStore interface {
	// Insert adds a new token record. Returns ErrDuplicateKey if token_id exists.
	Insert(ctx context.Context, r *domain.TokenRecord) error

	// GetByID retrieves a record by token ID. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, tokenID domain.TokenID) (*domain.TokenRecord, error)

	// Delete removes a record. Returns ErrNotFound if none exists.
	Delete(ctx context.Context, tokenID domain.TokenID) error

	// GetAll retrieves all live records, ordered by token_id ASC.
	GetAll(ctx context.Context) ([]*domain.TokenRecord, error)
}

// TokenCounterStore provides the monotonic token ID counter. IDs start at 0
// and are never reused; deleted tokens leave holes that are never filled.
type TokenCounterStore interface {
	// Current returns the next token ID to be assigned.
	Current(ctx context.Context) (domain.TokenID, error)

	// Advance increments the counter and returns the new next value.
	// Called exactly once per successful mint.
	Advance(ctx context.Context) (domain.TokenID, error)
}

// IssuanceEventStore provides access to issuance_events storage.
type IssuanceEventStore interface {
	// Insert adds a new issuance event. Returns ErrDuplicateKey if token_id exists.
	Insert(ctx context.Context, e *domain.IssuanceEvent) error

	// GetByReceiver retrieves all events for a receiver, ordered by timestamp ASC.
	GetByReceiver(ctx context.Context, receiver domain.Address) ([]*domain.IssuanceEvent, error)

	// GetAll retrieves all events, ordered by token_id ASC.
	GetAll(ctx context.Context) ([]*domain.IssuanceEvent, error)
}

// StreamOpStore provides access to the append-only stream operation archive.
type StreamOpStore interface {
	// InsertBulk adds multiple operations.
	InsertBulk(ctx context.Context, ops []*domain.StreamOp) error

	// GetByReceiver retrieves all operations targeting an address, ordered by timestamp ASC.
	GetByReceiver(ctx context.Context, to domain.Address) ([]*domain.StreamOp, error)

	// GetByTimeRange retrieves operations within [start, end] (inclusive).
	GetByTimeRange(ctx context.Context, start, end int64) ([]*domain.StreamOp, error)
}
