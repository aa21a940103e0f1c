package memory

import (
	"context"
	"sort"
	"sync"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// TokenRecordStore is an in-memory implementation of storage.TokenRecordStore.
type TokenRecordStore struct {
	mu   sync.RWMutex
	data map[domain.TokenID]*domain.TokenRecord
}

// NewTokenRecordStore creates a new in-memory token record store.
func NewTokenRecordStore() *TokenRecordStore {
	return &TokenRecordStore{
		data: make(map[domain.TokenID]*domain.TokenRecord),
	}
}

// Insert adds a new token record. Returns ErrDuplicateKey if token_id exists.
func (s *TokenRecordStore) Insert(_ context.Context, r *domain.TokenRecord) error {
	if r == nil || r.FlowRate <= 0 || r.DepositAmount <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.TokenID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	recordCopy := *r
	s.data[r.TokenID] = &recordCopy
	return nil
}

// GetByID retrieves a record by token ID. Returns ErrNotFound if not exists.
func (s *TokenRecordStore) GetByID(_ context.Context, tokenID domain.TokenID) (*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	recordCopy := *r
	return &recordCopy, nil
}

// Delete removes a record. Returns ErrNotFound if none exists.
func (s *TokenRecordStore) Delete(_ context.Context, tokenID domain.TokenID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tokenID]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, tokenID)
	return nil
}

// GetAll retrieves all live records, ordered by token_id ASC.
func (s *TokenRecordStore) GetAll(_ context.Context) ([]*domain.TokenRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TokenRecord, 0, len(s.data))
	for _, r := range s.data {
		recordCopy := *r
		result = append(result, &recordCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TokenRecordStore = (*TokenRecordStore)(nil)
