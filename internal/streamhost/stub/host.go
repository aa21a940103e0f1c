// Package stub provides an in-memory stream host for testing. It enforces
// the host's own rules strictly (no zero-rate streams, no duplicate
// creates, no updates to missing streams) so router bugs surface as
// errors instead of silently corrupting state.
package stub

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flow-vault/internal/domain"
	"flow-vault/internal/streamhost"
)

type streamKey struct {
	asset string
	from  domain.Address
	to    domain.Address
}

// Host implements streamhost.Host backed by an in-memory stream table.
type Host struct {
	mu         sync.Mutex
	sender     domain.Address // implicit `from` for create/update
	streams    map[streamKey]int64
	restricted map[domain.Address]bool
	ops        []*domain.StreamOp

	// Failure injection, keyed by method name ("create", "update",
	// "delete", "query", "restricted").
	failures map[string]error
}

// NewHost creates a stub host. sender is the implicit source address for
// create/update calls, i.e. the vault's custody address.
func NewHost(sender domain.Address) *Host {
	return &Host{
		sender:     sender,
		streams:    make(map[streamKey]int64),
		restricted: make(map[domain.Address]bool),
		failures:   make(map[string]error),
	}
}

// GetOutgoingRate returns the current rate, 0 if no stream exists.
func (h *Host) GetOutgoingRate(_ context.Context, asset string, from, to domain.Address) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failures["query"]; err != nil {
		return 0, err
	}
	return h.streams[streamKey{asset, from, to}], nil
}

// CreateStream opens a new stream. Fails on zero/negative rate or if a
// stream already exists for the key.
func (h *Host) CreateStream(_ context.Context, asset string, to domain.Address, rate int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failures["create"]; err != nil {
		return err
	}
	if rate <= 0 {
		return fmt.Errorf("create stream: non-positive rate %d", rate)
	}
	key := streamKey{asset, h.sender, to}
	if _, exists := h.streams[key]; exists {
		return fmt.Errorf("create stream: stream to %s already exists", to)
	}
	h.streams[key] = rate
	h.logOp(domain.StreamOpCreate, asset, h.sender, to, rate)
	return nil
}

// UpdateStream sets an existing stream to rate. Fails on zero/negative
// rate or if no stream exists.
func (h *Host) UpdateStream(_ context.Context, asset string, to domain.Address, rate int64) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failures["update"]; err != nil {
		return err
	}
	if rate <= 0 {
		return fmt.Errorf("update stream: non-positive rate %d", rate)
	}
	key := streamKey{asset, h.sender, to}
	if _, exists := h.streams[key]; !exists {
		return fmt.Errorf("update stream: no stream to %s", to)
	}
	h.streams[key] = rate
	h.logOp(domain.StreamOpUpdate, asset, h.sender, to, rate)
	return nil
}

// DeleteStream tears down a stream. Fails if none exists.
func (h *Host) DeleteStream(_ context.Context, asset string, from, to domain.Address) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failures["delete"]; err != nil {
		return err
	}
	key := streamKey{asset, from, to}
	if _, exists := h.streams[key]; !exists {
		return fmt.Errorf("delete stream: no stream from %s to %s", from, to)
	}
	delete(h.streams, key)
	h.logOp(domain.StreamOpDelete, asset, from, to, 0)
	return nil
}

// IsRestrictedReceiver reports whether the address was marked restricted.
func (h *Host) IsRestrictedReceiver(_ context.Context, addr domain.Address) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if err := h.failures["restricted"]; err != nil {
		return false, err
	}
	return h.restricted[addr], nil
}

// SetRestricted marks or unmarks an address as a restricted receiver.
func (h *Host) SetRestricted(addr domain.Address, restricted bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.restricted[addr] = restricted
}

// FailWith makes the named method ("create", "update", "delete", "query",
// "restricted") fail with err; nil clears the failure.
func (h *Host) FailWith(method string, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err == nil {
		delete(h.failures, method)
		return
	}
	h.failures[method] = err
}

// StreamCount returns the number of live streams.
func (h *Host) StreamCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.streams)
}

// HasStream reports whether a stream object exists for the key, regardless
// of rate. Used to assert no dangling zero-rate stream is left behind.
func (h *Host) HasStream(asset string, from, to domain.Address) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, exists := h.streams[streamKey{asset, from, to}]
	return exists
}

// Ops returns a copy of the recorded operation log.
func (h *Host) Ops() []*domain.StreamOp {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*domain.StreamOp, len(h.ops))
	for i, op := range h.ops {
		opCopy := *op
		out[i] = &opCopy
	}
	return out
}

func (h *Host) logOp(kind, asset string, from, to domain.Address, rate int64) {
	h.ops = append(h.ops, &domain.StreamOp{
		Kind:      kind,
		Asset:     asset,
		From:      from,
		To:        to,
		Rate:      rate,
		Timestamp: time.Now().UnixMilli(),
	})
}

// Verify interface compliance at compile time.
var _ streamhost.Host = (*Host)(nil)
