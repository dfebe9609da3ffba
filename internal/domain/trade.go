package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Trade records one fill between a resting (maker) order and an incoming
// (taker) order. Immutable once created; the trade log is append-only.
type Trade struct {
	ID           string          `json:"id"`
	Pair         Pair            `json:"pair"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerOwner   string          `json:"maker_owner"`
	TakerOwner   string          `json:"taker_owner"`
	// MakerFee and TakerFee are denominated in the currency each side's
	// proceeds arrive in: base for the buyer, quote for the seller.
	MakerFee  decimal.Decimal `json:"maker_fee"`
	TakerFee  decimal.Decimal `json:"taker_fee"`
	Timestamp time.Time       `json:"timestamp"`
}
