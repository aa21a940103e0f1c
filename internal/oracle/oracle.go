// Package oracle reads the external price reference.
package oracle

import (
	"context"
	"errors"

	"flow-vault/internal/domain"
)

// ErrNonPositivePrice is returned when the upstream reports a price <= 0.
// The enclosing operation must fail; the read is never retried.
var ErrNonPositivePrice = errors.New("oracle returned non-positive price")

// PriceOracle exposes a single latest-price read, normalized to an integer
// price at a known decimal scale.
type PriceOracle interface {
	// LatestPrice returns the most recent price observation. Propagates
	// failure; a non-positive price is an unrecoverable input error for
	// the calling operation.
	LatestPrice(ctx context.Context) (domain.PriceQuote, error)
}
