package postgres

import (
	"context"
	"fmt"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// TokenCounterStore implements storage.TokenCounterStore using PostgreSQL.
// The counter lives in a single-row table seeded by the migrations.
type TokenCounterStore struct {
	pool *Pool
}

// NewTokenCounterStore creates a new TokenCounterStore.
func NewTokenCounterStore(pool *Pool) *TokenCounterStore {
	return &TokenCounterStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TokenCounterStore = (*TokenCounterStore)(nil)

// Current returns the next token ID to be assigned.
func (s *TokenCounterStore) Current(ctx context.Context) (id domain.TokenID, err error) {
	defer recordQuery("token_counter_current", time.Now(), &err)

	query := `SELECT next_id FROM token_counter WHERE singleton`

	var next int64
	if err := s.pool.QueryRow(ctx, query).Scan(&next); err != nil {
		if isNotFoundError(err) {
			return 0, fmt.Errorf("token counter row missing: %w", storage.ErrNotFound)
		}
		return 0, fmt.Errorf("read token counter: %w", err)
	}
	return domain.TokenID(next), nil
}

// Advance increments the counter and returns the new next value.
func (s *TokenCounterStore) Advance(ctx context.Context) (id domain.TokenID, err error) {
	defer recordQuery("token_counter_advance", time.Now(), &err)

	query := `
		UPDATE token_counter
		SET next_id = next_id + 1
		WHERE singleton
		RETURNING next_id
	`

	var next int64
	if err := s.pool.QueryRow(ctx, query).Scan(&next); err != nil {
		if isNotFoundError(err) {
			return 0, fmt.Errorf("token counter row missing: %w", storage.ErrNotFound)
		}
		return 0, fmt.Errorf("advance token counter: %w", err)
	}
	return domain.TokenID(next), nil
}
