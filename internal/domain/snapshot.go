package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// BookLevel is one aggregated price level of a snapshot.
type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Orders int             `json:"orders"`
}

// BookSnapshot is a read-only leveled view of one order book.
type BookSnapshot struct {
	Pair      Pair        `json:"pair"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

// MarketSummary describes one pair for dashboards. BestBid/BestAsk/Spread
// are nil when the corresponding side of the book is empty.
type MarketSummary struct {
	Pair      Pair             `json:"pair"`
	BestBid   *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk   *decimal.Decimal `json:"best_ask,omitempty"`
	Spread    *decimal.Decimal `json:"spread,omitempty"`
	LastPrice *decimal.Decimal `json:"last_price,omitempty"`
	Volume    decimal.Decimal  `json:"volume"`
}
