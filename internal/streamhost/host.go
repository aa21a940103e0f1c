// Package streamhost talks to the external payment-stream host: the
// authoritative ledger of who streams how much to whom.
package streamhost

import (
	"context"

	"flow-vault/internal/domain"
)

// Host defines the stream host interface consumed by the router. Every
// mutating call is fire-and-fail-propagate: a rejection aborts the entire
// enclosing operation, with no retry.
type Host interface {
	// GetOutgoingRate returns the current outgoing rate from `from` to `to`
	// for an asset, 0 if no stream exists. Always re-queried before
	// computing a delta; the host value is authoritative and never cached
	// across operations.
	GetOutgoingRate(ctx context.Context, asset string, from, to domain.Address) (int64, error)

	// CreateStream opens a new stream from the caller to `to` at rate.
	CreateStream(ctx context.Context, asset string, to domain.Address, rate int64) error

	// UpdateStream sets the existing stream from the caller to `to` to rate.
	UpdateStream(ctx context.Context, asset string, to domain.Address, rate int64) error

	// DeleteStream tears down the stream between from and to.
	DeleteStream(ctx context.Context, asset string, from, to domain.Address) error

	// IsRestrictedReceiver reports whether the address is flagged by the
	// host as unable to safely receive continuous streams.
	IsRestrictedReceiver(ctx context.Context, addr domain.Address) (bool, error)
}

// StreamEvent is a host-side stream mutation delivered over the event feed.
type StreamEvent struct {
	Kind      string `json:"kind"` // "create" | "update" | "delete"
	Asset     string `json:"asset"`
	From      string `json:"from"`
	To        string `json:"to"`
	Rate      int64  `json:"rate"`
	Timestamp int64  `json:"timestamp"` // Unix timestamp in milliseconds
}
