// Package registry tracks token ownership and notifies the vault before
// every ownership change.
package registry

import (
	"context"
	"errors"

	"flow-vault/internal/domain"
)

// Registry errors.
var (
	// ErrTokenExists is returned when minting an ID that is already registered.
	ErrTokenExists = errors.New("token already registered")

	// ErrTokenNotFound is returned when the token is not registered.
	ErrTokenNotFound = errors.New("token not registered")

	// ErrWrongOwner is returned when a transfer names an old owner that
	// does not hold the token.
	ErrWrongOwner = errors.New("from address does not own token")
)

// TransferHook is invoked before any ownership change, including the
// mint-time initial assignment (old owner zero) and the burn-time final
// removal (new owner zero). Validation and the stream state transition are
// separate steps so the atomicity boundary is explicit: a failure in
// either aborts the ownership change with no effect.
type TransferHook interface {
	// ValidateTransfer checks the change without mutating anything.
	ValidateTransfer(ctx context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error

	// ApplyTransfer redirects the token's stream from oldOwner to newOwner.
	ApplyTransfer(ctx context.Context, oldOwner, newOwner domain.Address, tokenID domain.TokenID) error
}

// Ownership pairs a token with its current owner.
type Ownership struct {
	TokenID domain.TokenID
	Owner   domain.Address
}

// Registry assigns each token a unique owner. Every mutation runs the
// transfer hook first and aborts if the hook fails.
type Registry interface {
	// OwnerOf returns the current owner. Returns ErrTokenNotFound if the
	// token is not registered.
	OwnerOf(ctx context.Context, tokenID domain.TokenID) (domain.Address, error)

	// Mint assigns a new token to owner (old owner is the zero address).
	Mint(ctx context.Context, owner domain.Address, tokenID domain.TokenID) error

	// Transfer moves a token from one owner to another.
	Transfer(ctx context.Context, from, to domain.Address, tokenID domain.TokenID) error

	// Burn removes the token (new owner is the zero address).
	Burn(ctx context.Context, tokenID domain.TokenID) error

	// List returns all current ownerships, ordered by token ID.
	List(ctx context.Context) ([]Ownership, error)
}
