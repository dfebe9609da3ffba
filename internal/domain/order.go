package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Side string
type OrderType string
type OrderStatus string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"

	Limit      OrderType = "LIMIT"
	Market     OrderType = "MARKET"
	StopLoss   OrderType = "STOP_LOSS"
	TakeProfit OrderType = "TAKE_PROFIT"

	Pending         OrderStatus = "PENDING"
	PartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	Filled          OrderStatus = "FILLED"
	Cancelled       OrderStatus = "CANCELLED"
	Rejected        OrderStatus = "REJECTED"
)

// Order is owned and mutated exclusively by the matching engine once
// admitted. Read APIs hand out copies.
type Order struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	Pair      Pair            `json:"pair"`
	Side      Side            `json:"side"`
	Type      OrderType       `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Filled    decimal.Decimal `json:"filled"`
	Remaining decimal.Decimal `json:"remaining"`
	// Price is the limit price. Stop-loss and take-profit orders carry it
	// too: they turn into limit orders once triggered.
	Price     decimal.Decimal `json:"price"`
	StopPrice decimal.Decimal `json:"stop_price"`
	// Reserved tracks the funds still held for this order: quote currency
	// for buys, base currency for sells. Released as fills settle and on
	// cancellation.
	Reserved  decimal.Decimal `json:"-"`
	Status    OrderStatus     `json:"status"`
	Sequence  uint64          `json:"-"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

func (o *Order) IsBuy() bool { return o.Side == Buy }

// Terminal reports whether the order may no longer be mutated.
func (o *Order) Terminal() bool {
	return o.Status == Filled || o.Status == Cancelled || o.Status == Rejected
}

// Expired reports whether the order's expiry timestamp, if any, has passed.
func (o *Order) Expired(now time.Time) bool {
	return o.ExpiresAt != nil && now.After(*o.ExpiresAt)
}

// ReservedCurrency is the currency the order's reservation is held in.
func (o *Order) ReservedCurrency() string {
	if o.IsBuy() {
		return o.Pair.Quote
	}
	return o.Pair.Base
}

// Clone returns a copy safe to hand outside the engine lock.
func (o *Order) Clone() *Order {
	c := *o
	if o.ExpiresAt != nil {
		exp := *o.ExpiresAt
		c.ExpiresAt = &exp
	}
	return &c
}
