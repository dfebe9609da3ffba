package port

import (
	"context"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

// Repository persists engine state. The engine writes through it
// best-effort after mutations and reads from it on startup.
type Repository interface {
	SaveOrder(ctx context.Context, o *domain.Order) error
	SaveTrade(ctx context.Context, t *domain.Trade) error
	SaveBalance(ctx context.Context, b *domain.Balance) error
	// LoadOpenOrders returns non-terminal orders for a pair symbol in
	// insertion order (FIFO), used to rebuild the book on startup.
	LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error)
	LoadBalances(ctx context.Context) ([]*domain.Balance, error)
}
