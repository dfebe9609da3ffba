package in_memory

import (
	"context"
	"sort"
	"sync"

	"github.com/ledgerlabs/matchbook/internal/domain"
	"github.com/ledgerlabs/matchbook/internal/port"
)

var _ port.Repository = (*Repo)(nil)

// Repo is an in-memory Repository for tests and embedded use.
type Repo struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	trades   []*domain.Trade
	balances map[string]*domain.Balance
}

func NewRepo() *Repo {
	return &Repo{
		orders:   make(map[string]*domain.Order),
		balances: make(map[string]*domain.Balance),
	}
}

func (r *Repo) SaveOrder(ctx context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := o.Clone()
	r.orders[c.ID] = c
	return nil
}

func (r *Repo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.trades = append(r.trades, t)
	return nil
}

func (r *Repo) SaveBalance(ctx context.Context, b *domain.Balance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *b
	r.balances[b.Owner+"|"+b.Currency] = &c
	return nil
}

func (r *Repo) LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []*domain.Order
	for _, o := range r.orders {
		if o.Pair.Symbol() == symbol && !o.Terminal() {
			res = append(res, o.Clone())
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Sequence < res[j].Sequence })
	return res, nil
}

func (r *Repo) LoadBalances(ctx context.Context) ([]*domain.Balance, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	res := make([]*domain.Balance, 0, len(r.balances))
	for _, b := range r.balances {
		c := *b
		res = append(res, &c)
	}
	return res, nil
}

// TradeCount reports how many trades were persisted; used by tests.
func (r *Repo) TradeCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.trades)
}
