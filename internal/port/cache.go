package port

import (
	"context"

	"github.com/ledgerlabs/matchbook/internal/domain"
)

// Cache holds recent book snapshots for cheap reads off the hot path.
type Cache interface {
	SetBook(ctx context.Context, symbol string, snap *domain.BookSnapshot) error
	GetBook(ctx context.Context, symbol string) (*domain.BookSnapshot, error)
	Invalidate(ctx context.Context, symbol string) error
}
