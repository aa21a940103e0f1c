package memory

import (
	"context"
	"sync"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// TokenCounterStore is an in-memory implementation of storage.TokenCounterStore.
type TokenCounterStore struct {
	mu   sync.Mutex
	next domain.TokenID
}

// NewTokenCounterStore creates a new in-memory counter starting at 0.
func NewTokenCounterStore() *TokenCounterStore {
	return &TokenCounterStore{}
}

// Current returns the next token ID to be assigned.
func (s *TokenCounterStore) Current(_ context.Context) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next, nil
}

// Advance increments the counter and returns the new next value.
func (s *TokenCounterStore) Advance(_ context.Context) (domain.TokenID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	return s.next, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenCounterStore = (*TokenCounterStore)(nil)
