package registry

import (
	"context"
	"sort"
	"sync"

	"flow-vault/internal/domain"
)

// InMem is the in-process reference implementation of Registry. Token name
// and symbol are fixed at construction.
type InMem struct {
	name   string
	symbol string

	mu     sync.RWMutex
	owners map[domain.TokenID]domain.Address
	hook   TransferHook
}

// NewInMem creates an empty registry.
func NewInMem(name, symbol string) *InMem {
	return &InMem{
		name:   name,
		symbol: symbol,
		owners: make(map[domain.TokenID]domain.Address),
	}
}

// Name returns the token collection name.
func (r *InMem) Name() string { return r.name }

// Symbol returns the token collection symbol.
func (r *InMem) Symbol() string { return r.symbol }

// SetHook installs the pre-transfer hook. The vault installs itself here;
// the hook must be set before the first mint.
func (r *InMem) SetHook(hook TransferHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.hook = hook
}

// OwnerOf returns the current owner of a token.
func (r *InMem) OwnerOf(_ context.Context, tokenID domain.TokenID) (domain.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return "", ErrTokenNotFound
	}
	return owner, nil
}

// Mint assigns a new token to owner after running the hook with a zero
// old owner.
func (r *InMem) Mint(ctx context.Context, owner domain.Address, tokenID domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.owners[tokenID]; exists {
		return ErrTokenExists
	}
	if err := r.runHook(ctx, domain.ZeroAddress, owner, tokenID); err != nil {
		return err
	}
	r.owners[tokenID] = owner
	return nil
}

// Transfer moves a token between owners after running the hook.
func (r *InMem) Transfer(ctx context.Context, from, to domain.Address, tokenID domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return ErrTokenNotFound
	}
	if owner != from {
		return ErrWrongOwner
	}
	if err := r.runHook(ctx, from, to, tokenID); err != nil {
		return err
	}
	r.owners[tokenID] = to
	return nil
}

// Burn removes a token after running the hook with a zero new owner.
func (r *InMem) Burn(ctx context.Context, tokenID domain.TokenID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	owner, exists := r.owners[tokenID]
	if !exists {
		return ErrTokenNotFound
	}
	if err := r.runHook(ctx, owner, domain.ZeroAddress, tokenID); err != nil {
		return err
	}
	delete(r.owners, tokenID)
	return nil
}

// List returns all current ownerships, ordered by token ID.
func (r *InMem) List(_ context.Context) ([]Ownership, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Ownership, 0, len(r.owners))
	for id, owner := range r.owners {
		result = append(result, Ownership{TokenID: id, Owner: owner})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].TokenID < result[j].TokenID
	})
	return result, nil
}

// runHook validates, then applies. Either failure aborts the ownership
// change before the owner map is touched.
func (r *InMem) runHook(ctx context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error {
	if r.hook == nil {
		return nil
	}
	if err := r.hook.ValidateTransfer(ctx, oldOwner, newOwner, tokenID); err != nil {
		return err
	}
	return r.hook.ApplyTransfer(ctx, oldOwner, newOwner, tokenID)
}

// Verify interface compliance at compile time.
var _ Registry = (*InMem)(nil)
