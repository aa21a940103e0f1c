package memory

import (
	"context"
	"sort"
	"sync"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// IssuanceEventStore is an in-memory implementation of storage.IssuanceEventStore.
type IssuanceEventStore struct {
	mu   sync.RWMutex
	data map[domain.TokenID]*domain.IssuanceEvent
}

// NewIssuanceEventStore creates a new in-memory issuance event store.
func NewIssuanceEventStore() *IssuanceEventStore {
	return &IssuanceEventStore{
		data: make(map[domain.TokenID]*domain.IssuanceEvent),
	}
}

// Insert adds a new issuance event. Returns ErrDuplicateKey if token_id exists.
func (s *IssuanceEventStore) Insert(_ context.Context, e *domain.IssuanceEvent) error {
	if e == nil || e.Receiver == "" || e.FlowRate <= 0 {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[e.TokenID]; exists {
		return storage.ErrDuplicateKey
	}

	eventCopy := *e
	s.data[e.TokenID] = &eventCopy
	return nil
}

// GetByReceiver retrieves all events for a receiver, ordered by timestamp ASC.
func (s *IssuanceEventStore) GetByReceiver(_ context.Context, receiver domain.Address) ([]*domain.IssuanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.IssuanceEvent
	for _, e := range s.data {
		if e.Receiver == receiver {
			eventCopy := *e
			result = append(result, &eventCopy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetAll retrieves all events, ordered by token_id ASC.
func (s *IssuanceEventStore) GetAll(_ context.Context) ([]*domain.IssuanceEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.IssuanceEvent, 0, len(s.data))
	for _, e := range s.data {
		eventCopy := *e
		result = append(result, &eventCopy)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.IssuanceEventStore = (*IssuanceEventStore)(nil)
