package domain

import "strings"

// Pair identifies a market by its base and quote currency.
type Pair struct {
	Base  string `json:"base"`
	Quote string `json:"quote"`
}

func NewPair(base, quote string) Pair {
	return Pair{
		Base:  strings.ToUpper(strings.TrimSpace(base)),
		Quote: strings.ToUpper(strings.TrimSpace(quote)),
	}
}

// Symbol returns the canonical "BASE/QUOTE" form used as a map key
// and as the cache key for book snapshots.
func (p Pair) Symbol() string {
	return p.Base + "/" + p.Quote
}

func (p Pair) Valid() bool {
	return p.Base != "" && p.Quote != "" && p.Base != p.Quote
}
