package domain

import (
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Address is a base58-encoded 32-byte account address.
type Address string

// ZeroAddress is the all-zero account address. An empty string is treated
// as equivalent when routing streams.
const ZeroAddress Address = "11111111111111111111111111111111"

// ParseAddress validates and normalizes a base58 account address.
func ParseAddress(s string) (Address, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return "", fmt.Errorf("decode address %q: %w", s, err)
	}
	if len(raw) != 32 {
		return "", fmt.Errorf("address %q: expected 32 bytes, got %d", s, len(raw))
	}
	return Address(s), nil
}

// IsZero reports whether the address is empty or the all-zero address.
func (a Address) IsZero() bool {
	return a == "" || a == ZeroAddress
}

// Bytes decodes the address into its raw 32-byte form.
func (a Address) Bytes() ([]byte, error) {
	raw, err := base58.Decode(string(a))
	if err != nil {
		return nil, fmt.Errorf("decode address %q: %w", string(a), err)
	}
	if len(raw) != 32 {
		return nil, fmt.Errorf("address %q: expected 32 bytes, got %d", string(a), len(raw))
	}
	return raw, nil
}

// OffCurve reports whether the address is not a valid ed25519 point.
// Off-curve addresses are program-derived and cannot sign, so they can
// never authorize a burn or transfer themselves.
func (a Address) OffCurve() bool {
	raw, err := a.Bytes()
	if err != nil {
		return true
	}
	if _, err := new(edwards25519.Point).SetBytes(raw); err != nil {
		return true
	}
	return false
}
