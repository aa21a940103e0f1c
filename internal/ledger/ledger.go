// Package ledger owns the per-token record of flow rate and escrowed
// deposit. It is the single source of truth for how much rate a token
// contributes to its owner's stream.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// ErrInvariantViolation marks a defect in operation sequencing: a record
// already present at mint, or missing at an expected lookup. Callers must
// abort rather than proceed.
var ErrInvariantViolation = errors.New("ledger invariant violation")

// Ledger provides record and counter semantics over a TokenRecordStore
// and the monotonic token counter.
type Ledger struct {
	records storage.TokenRecordStore
	counter storage.TokenCounterStore
	now     func() int64
}

// New creates a Ledger.
func New(records storage.TokenRecordStore, counter storage.TokenCounterStore) *Ledger {
	return &Ledger{
		records: records,
		counter: counter,
		now:     func() int64 { return time.Now().UnixMilli() },
	}
}

// Record inserts the record for a freshly minted token. An existing record
// is an internal invariant violation, not a user error.
func (l *Ledger) Record(ctx context.Context, tokenID domain.TokenID, flowRate, deposit int64) error {
	r := &domain.TokenRecord{
		TokenID:       tokenID,
		FlowRate:      flowRate,
		DepositAmount: deposit,
		MintedAt:      l.now(),
		CreatedAt:     l.now(),
	}
	if err := l.records.Insert(ctx, r); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return fmt.Errorf("%w: record for token %d already exists", ErrInvariantViolation, tokenID)
		}
		return fmt.Errorf("record token %d: %w", tokenID, err)
	}
	return nil
}

// RateOf returns the token's flow rate and whether a record exists. A
// missing record reports rate 0 and ok=false; callers must check ok before
// routing to avoid phantom stream reductions.
func (l *Ledger) RateOf(ctx context.Context, tokenID domain.TokenID) (int64, bool, error) {
	r, err := l.records.GetByID(ctx, tokenID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("rate of token %d: %w", tokenID, err)
	}
	return r.FlowRate, true, nil
}

// Get returns the full record for a token. Returns storage.ErrNotFound if
// none exists.
func (l *Ledger) Get(ctx context.Context, tokenID domain.TokenID) (*domain.TokenRecord, error) {
	return l.records.GetByID(ctx, tokenID)
}

// Erase removes the record on burn. A missing record is an internal
// invariant violation.
func (l *Ledger) Erase(ctx context.Context, tokenID domain.TokenID) error {
	if err := l.records.Delete(ctx, tokenID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: no record for token %d", ErrInvariantViolation, tokenID)
		}
		return fmt.Errorf("erase token %d: %w", tokenID, err)
	}
	return nil
}

// NextID returns the token ID the next successful mint will use.
func (l *Ledger) NextID(ctx context.Context) (domain.TokenID, error) {
	return l.counter.Current(ctx)
}

// AdvanceID commits the counter after a successful mint. IDs are never
// reused, even after burn.
func (l *Ledger) AdvanceID(ctx context.Context) error {
	if _, err := l.counter.Advance(ctx); err != nil {
		return fmt.Errorf("advance token counter: %w", err)
	}
	return nil
}

// All returns every live record, ordered by token ID.
func (l *Ledger) All(ctx context.Context) ([]*domain.TokenRecord, error) {
	return l.records.GetAll(ctx)
}

// SetNowFunc overrides the clock, for tests.
func (l *Ledger) SetNowFunc(now func() int64) {
	l.now = now
}
