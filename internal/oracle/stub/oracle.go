package stub

import (
	"context"
	"sync"

	"flow-vault/internal/domain"
	"flow-vault/internal/oracle"
)

// PriceOracle implements oracle.PriceOracle for testing.
type PriceOracle struct {
	mu    sync.Mutex
	quote domain.PriceQuote
	err   error
	reads int
}

// NewPriceOracle creates a stub oracle with an initial quote.
func NewPriceOracle(price int64, decimals int) *PriceOracle {
	return &PriceOracle{quote: domain.PriceQuote{Price: price, Decimals: decimals}}
}

// LatestPrice returns the configured quote or the configured error.
func (o *PriceOracle) LatestPrice(_ context.Context) (domain.PriceQuote, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.reads++
	if o.err != nil {
		return domain.PriceQuote{}, o.err
	}
	if o.quote.Price <= 0 {
		return domain.PriceQuote{}, oracle.ErrNonPositivePrice
	}
	return o.quote, nil
}

// SetQuote replaces the quote returned by subsequent reads.
func (o *PriceOracle) SetQuote(price int64, decimals int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.quote = domain.PriceQuote{Price: price, Decimals: decimals}
}

// SetErr makes subsequent reads fail with err.
func (o *PriceOracle) SetErr(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.err = err
}

// Reads reports how many times LatestPrice was called.
func (o *PriceOracle) Reads() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.reads
}

// Verify interface compliance at compile time.
var _ oracle.PriceOracle = (*PriceOracle)(nil)
