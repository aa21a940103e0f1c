// Package domain defines the core types shared across the vault.
package domain

// TokenID identifies a minted token. IDs are assigned from a monotonically
// increasing counter starting at 0 and are never reused, even after burn.
type TokenID uint64

// SecondsPerYear is the stream-rate denominator: a 365-day year with no
// leap adjustment. The systematic under-delivery from truncating division
// is specified behavior.
const SecondsPerYear = 31_536_000

// TokenRecord is the per-token ledger entry. Rate and deposit are immutable
// once set; the record exists exactly while the token is minted and not
// yet burned.
type TokenRecord struct {
	TokenID       TokenID
	FlowRate      int64 // asset units per second, strictly positive
	DepositAmount int64 // native units escrowed at mint, refunded verbatim on burn
	MintedAt      int64 // Unix timestamp in milliseconds
	CreatedAt     int64 // record creation timestamp (ms)
}
