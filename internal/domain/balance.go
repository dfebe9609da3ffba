package domain

import "github.com/shopspring/decimal"

// Balance is one user's holding of one currency. Available funds can be
// spent or withdrawn; reserved funds back resting orders.
type Balance struct {
	Owner     string          `json:"owner"`
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
}

// Total is the user's full holding of the currency.
func (b Balance) Total() decimal.Decimal {
	return b.Available.Add(b.Reserved)
}
