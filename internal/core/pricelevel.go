package core

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

// PriceLevel holds all resting orders that share one price, in arrival
// order. Invariant: total equals the sum of the remaining amounts of the
// queued orders.
type PriceLevel struct {
	Price  decimal.Decimal
	orders []*domain.Order
	total  decimal.Decimal
}

func NewPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{Price: price, total: decimal.Zero}
}

// Add appends the order to the back of the queue.
func (l *PriceLevel) Add(o *domain.Order) {
	l.orders = append(l.orders, o)
	l.total = l.total.Add(o.Remaining)
}

// Remove deletes the order by id and reports whether the level became
// empty; the caller deregisters empty levels from the book.
func (l *PriceLevel) Remove(orderID string) (empty bool, err error) {
	for i, o := range l.orders {
		if o.ID == orderID {
			l.orders = append(l.orders[:i], l.orders[i+1:]...)
			l.total = l.total.Sub(o.Remaining)
			return len(l.orders) == 0, nil
		}
	}
	return false, fmt.Errorf("%w: %s at level %s", ErrOrderNotFound, orderID, l.Price)
}

// Front returns the earliest-queued order, nil when empty.
func (l *PriceLevel) Front() *domain.Order {
	if len(l.orders) == 0 {
		return nil
	}
	return l.orders[0]
}

// Reduce lowers the aggregate by a filled amount. The order's own
// Remaining is decremented by the engine; only the tally lives here.
func (l *PriceLevel) Reduce(amount decimal.Decimal) {
	l.total = l.total.Sub(amount)
}

func (l *PriceLevel) Total() decimal.Decimal { return l.total }

func (l *PriceLevel) Len() int { return len(l.orders) }

// Orders returns the queue in time priority. Callers must not mutate it.
func (l *PriceLevel) Orders() []*domain.Order { return l.orders }
