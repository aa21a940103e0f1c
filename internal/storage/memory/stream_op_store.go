package memory

import (
	"context"
	"sort"
	"sync"

	"flow-vault/internal/domain"
	"flow-vault/internal/storage"
)

// StreamOpStore is an in-memory implementation of storage.StreamOpStore.
type StreamOpStore struct {
	mu   sync.RWMutex
	data []*domain.StreamOp
}

// NewStreamOpStore creates a new in-memory stream operation archive.
func NewStreamOpStore() *StreamOpStore {
	return &StreamOpStore{}
}

// InsertBulk adds multiple operations.
func (s *StreamOpStore) InsertBulk(_ context.Context, ops []*domain.StreamOp) error {
	for _, op := range ops {
		if op == nil || op.Kind == "" {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, op := range ops {
		opCopy := *op
		s.data = append(s.data, &opCopy)
	}
	return nil
}

// GetByReceiver retrieves all operations targeting an address, ordered by timestamp ASC.
func (s *StreamOpStore) GetByReceiver(_ context.Context, to domain.Address) ([]*domain.StreamOp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StreamOp
	for _, op := range s.data {
		if op.To == to {
			opCopy := *op
			result = append(result, &opCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// GetByTimeRange retrieves operations within [start, end] (inclusive).
func (s *StreamOpStore) GetByTimeRange(_ context.Context, start, end int64) ([]*domain.StreamOp, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.StreamOp
	for _, op := range s.data {
		if op.Timestamp >= start && op.Timestamp <= end {
			opCopy := *op
			result = append(result, &opCopy)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp < result[j].Timestamp
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.StreamOpStore = (*StreamOpStore)(nil)
