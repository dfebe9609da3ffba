package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ledgerlabs/matchbook/internal/domain"
	"github.com/ledgerlabs/matchbook/internal/port"
)

var _ port.Repository = (*Repo)(nil)

// Repo persists orders, trades and balances in Postgres.
type Repo struct {
	pool *pgxpool.Pool
}

// NewRepo creates a connection pool. Call Close when done.
func NewRepo(ctx context.Context, dsn string) (*Repo, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pg: create pool: %w", err)
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close() {
	if r.pool != nil {
		r.pool.Close()
	}
}

// EnsureSchema creates the tables if they do not exist.
func (r *Repo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, `
CREATE TABLE IF NOT EXISTS orders (
    id          TEXT PRIMARY KEY,
    owner       TEXT NOT NULL,
    base        TEXT NOT NULL,
    quote       TEXT NOT NULL,
    side        TEXT NOT NULL,
    type        TEXT NOT NULL,
    amount      NUMERIC NOT NULL,
    filled      NUMERIC NOT NULL,
    remaining   NUMERIC NOT NULL,
    price       NUMERIC NOT NULL,
    stop_price  NUMERIC NOT NULL,
    status      TEXT NOT NULL,
    sequence    BIGINT NOT NULL,
    created_at  TIMESTAMPTZ NOT NULL,
    updated_at  TIMESTAMPTZ NOT NULL,
    expires_at  TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS orders_symbol_open ON orders (base, quote) WHERE status IN ('PENDING','PARTIALLY_FILLED');

CREATE TABLE IF NOT EXISTS trades (
    id             TEXT PRIMARY KEY,
    base           TEXT NOT NULL,
    quote          TEXT NOT NULL,
    amount         NUMERIC NOT NULL,
    price          NUMERIC NOT NULL,
    maker_order_id TEXT NOT NULL,
    taker_order_id TEXT NOT NULL,
    maker_owner    TEXT NOT NULL,
    taker_owner    TEXT NOT NULL,
    maker_fee      NUMERIC NOT NULL,
    taker_fee      NUMERIC NOT NULL,
    executed_at    TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    owner     TEXT NOT NULL,
    currency  TEXT NOT NULL,
    available NUMERIC NOT NULL,
    reserved  NUMERIC NOT NULL,
    PRIMARY KEY (owner, currency)
);
`)
	return err
}

func (r *Repo) SaveOrder(ctx context.Context, o *domain.Order) error {
	if o == nil {
		return errors.New("pg: nil order")
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO orders(id, owner, base, quote, side, type, amount, filled, remaining,
                   price, stop_price, status, sequence, created_at, updated_at, expires_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (id) DO UPDATE SET
  filled     = EXCLUDED.filled,
  remaining  = EXCLUDED.remaining,
  status     = EXCLUDED.status,
  updated_at = EXCLUDED.updated_at
`, o.ID, o.Owner, o.Pair.Base, o.Pair.Quote, string(o.Side), string(o.Type),
		o.Amount, o.Filled, o.Remaining, o.Price, o.StopPrice, string(o.Status),
		int64(o.Sequence), o.CreatedAt, o.UpdatedAt, o.ExpiresAt)
	return err
}

func (r *Repo) SaveTrade(ctx context.Context, t *domain.Trade) error {
	if t == nil {
		return errors.New("pg: nil trade")
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO trades(id, base, quote, amount, price, maker_order_id, taker_order_id,
                   maker_owner, taker_owner, maker_fee, taker_fee, executed_at)
VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
ON CONFLICT (id) DO NOTHING
`, t.ID, t.Pair.Base, t.Pair.Quote, t.Amount, t.Price, t.MakerOrderID, t.TakerOrderID,
		t.MakerOwner, t.TakerOwner, t.MakerFee, t.TakerFee, t.Timestamp)
	return err
}

func (r *Repo) SaveBalance(ctx context.Context, b *domain.Balance) error {
	if b == nil {
		return errors.New("pg: nil balance")
	}
	_, err := r.pool.Exec(ctx, `
INSERT INTO balances(owner, currency, available, reserved)
VALUES($1,$2,$3,$4)
ON CONFLICT (owner, currency) DO UPDATE SET
  available = EXCLUDED.available,
  reserved  = EXCLUDED.reserved
`, b.Owner, b.Currency, b.Available, b.Reserved)
	return err
}

// LoadOpenOrders returns non-terminal orders for a symbol in insertion order.
func (r *Repo) LoadOpenOrders(ctx context.Context, symbol string) ([]*domain.Order, error) {
	pair, err := splitSymbol(symbol)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
SELECT id, owner, base, quote, side, type, amount, filled, remaining,
       price, stop_price, status, sequence, created_at, updated_at, expires_at
FROM orders
WHERE base = $1 AND quote = $2 AND status IN ('PENDING','PARTIALLY_FILLED')
ORDER BY sequence ASC
`, pair.Base, pair.Quote)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Order
	for rows.Next() {
		var o domain.Order
		var side, typ, status string
		var seq int64
		if err := rows.Scan(&o.ID, &o.Owner, &o.Pair.Base, &o.Pair.Quote, &side, &typ,
			&o.Amount, &o.Filled, &o.Remaining, &o.Price, &o.StopPrice, &status,
			&seq, &o.CreatedAt, &o.UpdatedAt, &o.ExpiresAt); err != nil {
			return nil, err
		}
		o.Side = domain.Side(side)
		o.Type = domain.OrderType(typ)
		o.Status = domain.OrderStatus(status)
		o.Sequence = uint64(seq)
		res = append(res, &o)
	}
	return res, rows.Err()
}

func (r *Repo) LoadBalances(ctx context.Context) ([]*domain.Balance, error) {
	rows, err := r.pool.Query(ctx, `SELECT owner, currency, available, reserved FROM balances`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []*domain.Balance
	for rows.Next() {
		var b domain.Balance
		if err := rows.Scan(&b.Owner, &b.Currency, &b.Available, &b.Reserved); err != nil {
			return nil, err
		}
		res = append(res, &b)
	}
	return res, rows.Err()
}

func splitSymbol(symbol string) (domain.Pair, error) {
	for i := 0; i < len(symbol); i++ {
		if symbol[i] == '/' {
			return domain.NewPair(symbol[:i], symbol[i+1:]), nil
		}
	}
	return domain.Pair{}, fmt.Errorf("pg: malformed symbol %q", symbol)
}
