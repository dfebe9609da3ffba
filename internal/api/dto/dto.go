package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

// All monetary quantities cross the API as exact decimal strings
// (shopspring/decimal marshals quoted), never binary floating point.

type RegisterPairRequest struct {
	Base  string `json:"base" binding:"required"`
	Quote string `json:"quote" binding:"required"`
}

type RegisterPairResponse struct {
	Symbol string `json:"symbol"`
}

type PlaceOrderRequest struct {
	OrderID   string          `json:"order_id,omitempty"`
	Owner     string          `json:"owner" binding:"required"`
	Base      string          `json:"base" binding:"required"`
	Quote     string          `json:"quote" binding:"required"`
	Side      string          `json:"side" binding:"required"`
	Type      string          `json:"type" binding:"required"`
	Amount    decimal.Decimal `json:"amount" binding:"required"`
	Price     decimal.Decimal `json:"price,omitempty"`
	StopPrice decimal.Decimal `json:"stop_price,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type Order struct {
	ID        string          `json:"id"`
	Owner     string          `json:"owner"`
	Symbol    string          `json:"symbol"`
	Side      string          `json:"side"`
	Type      string          `json:"type"`
	Amount    decimal.Decimal `json:"amount"`
	Filled    decimal.Decimal `json:"filled"`
	Remaining decimal.Decimal `json:"remaining"`
	Price     decimal.Decimal `json:"price"`
	StopPrice decimal.Decimal `json:"stop_price,omitempty"`
	Status    string          `json:"status"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
}

type Trade struct {
	ID           string          `json:"id"`
	Symbol       string          `json:"symbol"`
	Amount       decimal.Decimal `json:"amount"`
	Price        decimal.Decimal `json:"price"`
	MakerOrderID string          `json:"maker_order_id"`
	TakerOrderID string          `json:"taker_order_id"`
	MakerFee     decimal.Decimal `json:"maker_fee"`
	TakerFee     decimal.Decimal `json:"taker_fee"`
	Timestamp    time.Time       `json:"timestamp"`
}

type CancelOrderRequest struct {
	Owner   string `json:"owner" binding:"required"`
	OrderID string `json:"order_id" binding:"required"`
}

type CancelOrderResponse struct {
	OrderID   string `json:"order_id"`
	Cancelled bool   `json:"cancelled"`
}

type DepositRequest struct {
	Owner    string          `json:"owner" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

type WithdrawRequest struct {
	Owner    string          `json:"owner" binding:"required"`
	Currency string          `json:"currency" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
}

type BookLevel struct {
	Price  decimal.Decimal `json:"price"`
	Amount decimal.Decimal `json:"amount"`
	Orders int             `json:"orders"`
}

type BookSnapshot struct {
	Symbol    string      `json:"symbol"`
	Bids      []BookLevel `json:"bids"`
	Asks      []BookLevel `json:"asks"`
	Timestamp time.Time   `json:"timestamp"`
}

type MarketSummary struct {
	Symbol    string           `json:"symbol"`
	BestBid   *decimal.Decimal `json:"best_bid,omitempty"`
	BestAsk   *decimal.Decimal `json:"best_ask,omitempty"`
	Spread    *decimal.Decimal `json:"spread,omitempty"`
	LastPrice *decimal.Decimal `json:"last_price,omitempty"`
	Volume    decimal.Decimal  `json:"volume"`
}

type Balance struct {
	Currency  string          `json:"currency"`
	Available decimal.Decimal `json:"available"`
	Reserved  decimal.Decimal `json:"reserved"`
}

func FromOrder(o *domain.Order) Order {
	return Order{
		ID:        o.ID,
		Owner:     o.Owner,
		Symbol:    o.Pair.Symbol(),
		Side:      string(o.Side),
		Type:      string(o.Type),
		Amount:    o.Amount,
		Filled:    o.Filled,
		Remaining: o.Remaining,
		Price:     o.Price,
		StopPrice: o.StopPrice,
		Status:    string(o.Status),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
		ExpiresAt: o.ExpiresAt,
	}
}

func FromOrders(orders []*domain.Order) []Order {
	res := make([]Order, len(orders))
	for i, o := range orders {
		res[i] = FromOrder(o)
	}
	return res
}

func FromTrade(t *domain.Trade) Trade {
	return Trade{
		ID:           t.ID,
		Symbol:       t.Pair.Symbol(),
		Amount:       t.Amount,
		Price:        t.Price,
		MakerOrderID: t.MakerOrderID,
		TakerOrderID: t.TakerOrderID,
		MakerFee:     t.MakerFee,
		TakerFee:     t.TakerFee,
		Timestamp:    t.Timestamp,
	}
}

func FromTrades(trades []*domain.Trade) []Trade {
	res := make([]Trade, len(trades))
	for i, t := range trades {
		res[i] = FromTrade(t)
	}
	return res
}

func FromSnapshot(snap *domain.BookSnapshot) BookSnapshot {
	out := BookSnapshot{
		Symbol:    snap.Pair.Symbol(),
		Bids:      make([]BookLevel, len(snap.Bids)),
		Asks:      make([]BookLevel, len(snap.Asks)),
		Timestamp: snap.Timestamp,
	}
	for i, lvl := range snap.Bids {
		out.Bids[i] = BookLevel{Price: lvl.Price, Amount: lvl.Amount, Orders: lvl.Orders}
	}
	for i, lvl := range snap.Asks {
		out.Asks[i] = BookLevel{Price: lvl.Price, Amount: lvl.Amount, Orders: lvl.Orders}
	}
	return out
}

func FromSummaries(summaries []domain.MarketSummary) []MarketSummary {
	res := make([]MarketSummary, len(summaries))
	for i, s := range summaries {
		res[i] = MarketSummary{
			Symbol:    s.Pair.Symbol(),
			BestBid:   s.BestBid,
			BestAsk:   s.BestAsk,
			Spread:    s.Spread,
			LastPrice: s.LastPrice,
			Volume:    s.Volume,
		}
	}
	return res
}

func FromBalances(balances []domain.Balance) []Balance {
	res := make([]Balance, len(balances))
	for i, b := range balances {
		res[i] = Balance{Currency: b.Currency, Available: b.Available, Reserved: b.Reserved}
	}
	return res
}
