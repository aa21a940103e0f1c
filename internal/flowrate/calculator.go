// Package flowrate converts a deposit plus a price observation into a
// per-second stream rate under fixed-point arithmetic.
package flowrate

import (
	"errors"
	"fmt"
	"math/big"

	"flow-vault/internal/domain"
)

// Calculation errors.
var (
	// ErrNonPositivePrice is returned when the oracle reports a price <= 0.
	ErrNonPositivePrice = errors.New("non-positive oracle price")

	// ErrRateNotPositive is returned when the computed rate truncates to
	// zero or below: the deposit is too small relative to the price.
	ErrRateNotPositive = errors.New("computed flow rate is not positive")
)

// Calculator derives per-second flow rates at a fixed annual yield.
type Calculator struct {
	annualYieldPercent int64
}

// NewCalculator creates a Calculator. The yield percent is fixed at
// construction and immutable thereafter.
func NewCalculator(annualYieldPercent int64) *Calculator {
	return &Calculator{annualYieldPercent: annualYieldPercent}
}

// AnnualYieldPercent returns the configured yield.
func (c *Calculator) AnnualYieldPercent() int64 {
	return c.annualYieldPercent
}

// Rate computes the per-second flow rate for a deposit at the quoted price:
//
//	rate = deposit * 10^decimals * yield / price / 100 / secondsPerYear
//
// Intermediate products use big.Int so realistic deposit sizes cannot
// overflow; every division truncates toward zero. A result that is not
// strictly positive is an error and the enclosing mint must be rejected
// with no state change.
func (c *Calculator) Rate(deposit int64, quote domain.PriceQuote) (int64, error) {
	if quote.Price <= 0 {
		return 0, ErrNonPositivePrice
	}
	if quote.Decimals < 0 {
		return 0, fmt.Errorf("invalid oracle decimals %d", quote.Decimals)
	}
	if deposit <= 0 {
		return 0, ErrRateNotPositive
	}

	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(quote.Decimals)), nil)

	num := new(big.Int).Mul(big.NewInt(deposit), scale)
	num.Mul(num, big.NewInt(c.annualYieldPercent))

	num.Quo(num, big.NewInt(quote.Price))
	num.Quo(num, big.NewInt(100))
	num.Quo(num, big.NewInt(domain.SecondsPerYear))

	if !num.IsInt64() {
		return 0, fmt.Errorf("flow rate overflows int64 for deposit %d", deposit)
	}
	rate := num.Int64()
	if rate <= 0 {
		return 0, ErrRateNotPositive
	}
	return rate, nil
}
