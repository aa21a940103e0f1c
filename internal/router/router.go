// Package router keeps the stream host consistent with the token ledger.
// For every ownership change it decides whether the stream to a
// destination must be created, increased, decreased, or torn down.
package router

import (
	"context"
	"fmt"

	"flow-vault/internal/domain"
	"flow-vault/internal/streamhost"
)

// Router adjusts outgoing streams from the vault's custody address. It
// never stores aggregate rates itself: the delta is always derived from
// the host-reported value at call time.
type Router struct {
	host    streamhost.Host
	asset   string
	custody domain.Address
}

// New creates a Router for one asset and one custody address.
func New(host streamhost.Host, asset string, custody domain.Address) *Router {
	return &Router{host: host, asset: asset, custody: custody}
}

// Increase raises the outgoing stream to `to` by rate. No-op when `to` is
// the custody address or the zero address: funds held by the vault never
// stream to the vault itself.
func (r *Router) Increase(ctx context.Context, to domain.Address, rate int64) error {
	if to.IsZero() || to == r.custody {
		return nil
	}

	current, err := r.host.GetOutgoingRate(ctx, r.asset, r.custody, to)
	if err != nil {
		return fmt.Errorf("increase to %s: %w", to, err)
	}

	if current == 0 {
		if err := r.host.CreateStream(ctx, r.asset, to, rate); err != nil {
			return fmt.Errorf("increase to %s: %w", to, err)
		}
		return nil
	}

	if err := r.host.UpdateStream(ctx, r.asset, to, current+rate); err != nil {
		return fmt.Errorf("increase to %s: %w", to, err)
	}
	return nil
}

// Decrease lowers the outgoing stream to `to` by rate. No-op when `to` is
// the custody address or the zero address. When the delta hits exactly
// zero the stream is deleted: the host does not support zero-rate streams
// and none may be left dangling.
func (r *Router) Decrease(ctx context.Context, to domain.Address, rate int64) error {
	if to.IsZero() || to == r.custody {
		return nil
	}

	current, err := r.host.GetOutgoingRate(ctx, r.asset, r.custody, to)
	if err != nil {
		return fmt.Errorf("decrease to %s: %w", to, err)
	}

	switch {
	case current == rate:
		if err := r.host.DeleteStream(ctx, r.asset, r.custody, to); err != nil {
			return fmt.Errorf("decrease to %s: %w", to, err)
		}
	case current > rate:
		if err := r.host.UpdateStream(ctx, r.asset, to, current-rate); err != nil {
			return fmt.Errorf("decrease to %s: %w", to, err)
		}
	default:
		// current < rate is unreachable while the ledger invariant holds.
		// Silently ignore rather than underflow: failing here would block
		// an otherwise valid transfer or burn.
	}
	return nil
}
