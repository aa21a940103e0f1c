package domain

// PriceQuote is a normalized oracle observation: an integer price at a
// known decimal scale.
type PriceQuote struct {
	Price    int64 // scaled integer price, must be > 0 to be usable
	Decimals int   // decimal scale of Price
}
