package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

func bookOrder(id string, side domain.Side, amount, price string) *domain.Order {
	return &domain.Order{
		ID:        id,
		Pair:      domain.NewPair("XRP", "USDC"),
		Side:      side,
		Type:      domain.Limit,
		Amount:    d(amount),
		Remaining: d(amount),
		Price:     d(price),
	}
}

func TestOrderBook_AddAndDuplicate(t *testing.T) {
	book := NewOrderBook(domain.NewPair("XRP", "USDC"))

	require.NoError(t, book.Add(bookOrder("b1", domain.Buy, "10", "0.50")))
	assert.Equal(t, 1, book.Len())

	err := book.Add(bookOrder("b1", domain.Buy, "5", "0.40"))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
	assert.Equal(t, 1, book.Len())

	o, ok := book.Get("b1")
	require.True(t, ok)
	assertDec(t, "10", o.Remaining)
	_, ok = book.Get("nope")
	assert.False(t, ok)
}

func TestOrderBook_BestPrices(t *testing.T) {
	book := NewOrderBook(domain.NewPair("XRP", "USDC"))

	_, ok := book.BestBid()
	assert.False(t, ok)
	_, ok = book.BestAsk()
	assert.False(t, ok)
	_, ok = book.Spread()
	assert.False(t, ok)
	assert.False(t, book.Crossed())

	require.NoError(t, book.Add(bookOrder("b1", domain.Buy, "10", "0.40")))
	require.NoError(t, book.Add(bookOrder("b2", domain.Buy, "10", "0.50")))
	require.NoError(t, book.Add(bookOrder("a1", domain.Sell, "10", "0.70")))
	require.NoError(t, book.Add(bookOrder("a2", domain.Sell, "10", "0.60")))

	bid, ok := book.BestBid()
	require.True(t, ok)
	assertDec(t, "0.50", bid)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assertDec(t, "0.60", ask)
	spread, ok := book.Spread()
	require.True(t, ok)
	assertDec(t, "0.10", spread)
	assert.False(t, book.Crossed())

	// An equal-price overlap counts as crossed.
	require.NoError(t, book.Add(bookOrder("b3", domain.Buy, "10", "0.60")))
	assert.True(t, book.Crossed())
}

func TestOrderBook_RemoveDropsEmptyLevel(t *testing.T) {
	book := NewOrderBook(domain.NewPair("XRP", "USDC"))
	require.NoError(t, book.Add(bookOrder("b1", domain.Buy, "10", "0.50")))
	require.NoError(t, book.Add(bookOrder("b2", domain.Buy, "5", "0.50")))
	require.NoError(t, book.Add(bookOrder("b3", domain.Buy, "5", "0.40")))

	removed, err := book.Remove("b1")
	require.NoError(t, err)
	assert.Equal(t, "b1", removed.ID)

	bid, ok := book.BestBid()
	require.True(t, ok)
	assertDec(t, "0.50", bid)

	// Emptying the best level promotes the next one.
	_, err = book.Remove("b2")
	require.NoError(t, err)
	bid, ok = book.BestBid()
	require.True(t, ok)
	assertDec(t, "0.40", bid)

	_, err = book.Remove("b2")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Equal(t, 1, book.Len())
}

func TestOrderBook_Snapshot(t *testing.T) {
	book := NewOrderBook(domain.NewPair("XRP", "USDC"))
	require.NoError(t, book.Add(bookOrder("b1", domain.Buy, "10", "0.50")))
	require.NoError(t, book.Add(bookOrder("b2", domain.Buy, "5", "0.50")))
	require.NoError(t, book.Add(bookOrder("b3", domain.Buy, "8", "0.40")))
	require.NoError(t, book.Add(bookOrder("b4", domain.Buy, "3", "0.30")))
	require.NoError(t, book.Add(bookOrder("a1", domain.Sell, "7", "0.60")))

	snap := book.Snapshot(2)
	assert.Equal(t, "XRP/USDC", snap.Pair.Symbol())
	require.Len(t, snap.Bids, 2)
	require.Len(t, snap.Asks, 1)

	// Bids aggregate per level, best first.
	assertDec(t, "0.50", snap.Bids[0].Price)
	assertDec(t, "15", snap.Bids[0].Amount)
	assert.Equal(t, 2, snap.Bids[0].Orders)
	assertDec(t, "0.40", snap.Bids[1].Price)
	assertDec(t, "0.60", snap.Asks[0].Price)

	// Depth zero means the whole book.
	full := book.Snapshot(0)
	assert.Len(t, full.Bids, 3)
}

func TestOrderBook_ForEach(t *testing.T) {
	book := NewOrderBook(domain.NewPair("XRP", "USDC"))
	require.NoError(t, book.Add(bookOrder("b1", domain.Buy, "10", "0.50")))
	require.NoError(t, book.Add(bookOrder("a1", domain.Sell, "7", "0.60")))

	seen := make(map[string]bool)
	book.ForEach(func(o *domain.Order) { seen[o.ID] = true })
	assert.Equal(t, map[string]bool{"b1": true, "a1": true}, seen)
}
