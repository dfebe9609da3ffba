package core

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

// OrderBook keeps the two-sided set of price levels for one pair plus an
// id index for O(1) cancellation lookup. It is not safe for concurrent
// use; the engine serializes access per pair.
type OrderBook struct {
	pair   domain.Pair
	bids   *levelTree
	asks   *levelTree
	orders map[string]*domain.Order
}

func NewOrderBook(pair domain.Pair) *OrderBook {
	return &OrderBook{
		pair:   pair,
		bids:   newLevelTree(),
		asks:   newLevelTree(),
		orders: make(map[string]*domain.Order),
	}
}

func (b *OrderBook) Pair() domain.Pair { return b.pair }

// Add routes the order to its side, creating the price level if needed.
func (b *OrderBook) Add(o *domain.Order) error {
	if _, exists := b.orders[o.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	b.sideFor(o.Side).Upsert(o.Price).Add(o)
	b.orders[o.ID] = o
	return nil
}

// Remove deletes the order from its level and the index, dropping the
// level when it empties.
func (b *OrderBook) Remove(orderID string) (*domain.Order, error) {
	o, ok := b.orders[orderID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	side := b.sideFor(o.Side)
	lvl := side.Find(o.Price)
	if lvl == nil {
		return nil, fmt.Errorf("%w: level %s missing for order %s", ErrOrderNotFound, o.Price, orderID)
	}
	empty, err := lvl.Remove(orderID)
	if err != nil {
		return nil, err
	}
	if empty {
		side.Delete(o.Price)
	}
	delete(b.orders, orderID)
	return o, nil
}

// Get looks up a resting order by id.
func (b *OrderBook) Get(orderID string) (*domain.Order, bool) {
	o, ok := b.orders[orderID]
	return o, ok
}

// BestBid returns the highest bid price; ok is false when the side is empty.
func (b *OrderBook) BestBid() (decimal.Decimal, bool) {
	lvl := b.bids.Max()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// BestAsk returns the lowest ask price; ok is false when the side is empty.
func (b *OrderBook) BestAsk() (decimal.Decimal, bool) {
	lvl := b.asks.Min()
	if lvl == nil {
		return decimal.Zero, false
	}
	return lvl.Price, true
}

// Spread returns best ask minus best bid; ok is false if either side is empty.
func (b *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	if !okB || !okA {
		return decimal.Zero, false
	}
	return ask.Sub(bid), true
}

// Crossed reports whether the best bid meets or exceeds the best ask.
func (b *OrderBook) Crossed() bool {
	bid, okB := b.BestBid()
	ask, okA := b.BestAsk()
	return okB && okA && bid.GreaterThanOrEqual(ask)
}

// Len is the number of resting orders across both sides.
func (b *OrderBook) Len() int { return len(b.orders) }

func (b *OrderBook) bestBidLevel() *PriceLevel { return b.bids.Max() }
func (b *OrderBook) bestAskLevel() *PriceLevel { return b.asks.Min() }

// Snapshot returns the top depth levels per side with aggregate amount and
// order count. Read-only; no book state changes.
func (b *OrderBook) Snapshot(depth int) *domain.BookSnapshot {
	snap := &domain.BookSnapshot{
		Pair:      b.pair,
		Bids:      make([]domain.BookLevel, 0, depth),
		Asks:      make([]domain.BookLevel, 0, depth),
		Timestamp: time.Now().UTC(),
	}
	b.bids.Descend(func(lvl *PriceLevel) bool {
		snap.Bids = append(snap.Bids, domain.BookLevel{
			Price:  lvl.Price,
			Amount: lvl.Total(),
			Orders: lvl.Len(),
		})
		return depth <= 0 || len(snap.Bids) < depth
	})
	b.asks.Ascend(func(lvl *PriceLevel) bool {
		snap.Asks = append(snap.Asks, domain.BookLevel{
			Price:  lvl.Price,
			Amount: lvl.Total(),
			Orders: lvl.Len(),
		})
		return depth <= 0 || len(snap.Asks) < depth
	})
	return snap
}

// ForEach visits every resting order; used by the expiry sweep.
func (b *OrderBook) ForEach(visit func(*domain.Order)) {
	for _, o := range b.orders {
		visit(o)
	}
}

func (b *OrderBook) sideFor(s domain.Side) *levelTree {
	if s == domain.Buy {
		return b.bids
	}
	return b.asks
}
