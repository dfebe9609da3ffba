package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerlabs/matchbook/internal/domain"
	"github.com/ledgerlabs/matchbook/internal/port"
)

// Engine validates, admits and matches orders. One pairShard per market:
// all book mutations for a pair run under its mutex, independent pairs
// proceed in parallel. Reservation and book insertion happen inside the
// same critical section, so no caller can observe one without the other.
type Engine struct {
	repo   port.Repository
	cache  port.Cache
	logger zerolog.Logger
	fees   FeeSchedule
	ledger *BalanceLedger

	shardsMu sync.RWMutex
	shards   map[string]*pairShard

	// indexMu guards the order indexes. Always acquired after a shard
	// mutex, never before.
	indexMu sync.Mutex
	orders  map[string]*domain.Order
	owners  map[string][]*domain.Order

	tradeMu    sync.Mutex
	trades     []*domain.Trade
	userTrades map[string][]*domain.Trade

	seq atomic.Uint64
}

type pairShard struct {
	mu        sync.Mutex
	book      *OrderBook
	stops     []*domain.Order
	lastPrice decimal.Decimal
	hasLast   bool
	volume    decimal.Decimal
}

// Option configures the engine at construction time.
type Option func(*Engine)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

func WithFees(fees FeeSchedule) Option {
	return func(e *Engine) { e.fees = fees }
}

// NewEngine creates an engine. repo and cache may be nil for a purely
// in-memory instance; multiple engines can coexist, nothing is global.
func NewEngine(repo port.Repository, cache port.Cache, opts ...Option) *Engine {
	e := &Engine{
		repo:       repo,
		cache:      cache,
		logger:     zerolog.Nop(),
		fees:       DefaultFeeSchedule(),
		ledger:     NewBalanceLedger(),
		shards:     make(map[string]*pairShard),
		orders:     make(map[string]*domain.Order),
		owners:     make(map[string][]*domain.Order),
		userTrades: make(map[string][]*domain.Trade),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Ledger exposes the balance ledger for direct inspection.
func (e *Engine) Ledger() *BalanceLedger { return e.ledger }

// Deposit credits a user's available balance and persists it.
func (e *Engine) Deposit(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	if err := e.ledger.Deposit(owner, currency, amount); err != nil {
		return err
	}
	e.persistBalances(ctx, owner, currency)
	e.logger.Info().
		Str("owner", owner).
		Str("currency", currency).
		Str("amount", amount.String()).
		Msg("deposit")
	return nil
}

// Withdraw debits a user's available balance and persists it.
func (e *Engine) Withdraw(ctx context.Context, owner, currency string, amount decimal.Decimal) error {
	if err := e.ledger.Withdraw(owner, currency, amount); err != nil {
		return err
	}
	e.persistBalances(ctx, owner, currency)
	return nil
}

// RegisterPair creates an empty book for the pair. Idempotent.
func (e *Engine) RegisterPair(base, quote string) (domain.Pair, error) {
	pair := domain.NewPair(base, quote)
	if !pair.Valid() {
		return domain.Pair{}, fmt.Errorf("%w: %q/%q", ErrUnknownPair, base, quote)
	}
	e.shardsMu.Lock()
	defer e.shardsMu.Unlock()
	if _, ok := e.shards[pair.Symbol()]; !ok {
		e.shards[pair.Symbol()] = &pairShard{book: NewOrderBook(pair)}
		e.logger.Info().Str("pair", pair.Symbol()).Msg("pair registered")
	}
	return pair, nil
}

func (e *Engine) shard(pair domain.Pair) *pairShard {
	e.shardsMu.RLock()
	defer e.shardsMu.RUnlock()
	return e.shards[pair.Symbol()]
}

// PlaceOrderRequest carries everything needed to admit an order.
type PlaceOrderRequest struct {
	OrderID   string // optional; engine assigns a UUID when empty
	Owner     string
	Pair      domain.Pair
	Side      domain.Side
	Type      domain.OrderType
	Amount    decimal.Decimal
	Price     decimal.Decimal
	StopPrice decimal.Decimal
	ExpiresAt *time.Time
}

func (r *PlaceOrderRequest) validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: got %s", ErrInvalidAmount, r.Amount)
	}
	switch r.Type {
	case domain.Limit:
		if !r.Price.IsPositive() {
			return ErrMissingPrice
		}
	case domain.StopLoss, domain.TakeProfit:
		if !r.Price.IsPositive() {
			return ErrMissingPrice
		}
		if !r.StopPrice.IsPositive() {
			return ErrMissingStopPrice
		}
	case domain.Market:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidType, r.Type)
	}
	if r.Side != domain.Buy && r.Side != domain.Sell {
		return fmt.Errorf("%w: %q", ErrInvalidSide, r.Side)
	}
	return nil
}

// PlaceOrder admits and matches an order per the placement contract:
// either the order is fully admitted with its funds reserved, or it fails
// with no state change.
func (e *Engine) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*domain.Order, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	shard := e.shard(req.Pair)
	if shard == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, req.Pair.Symbol())
	}

	shard.mu.Lock()
	defer shard.mu.Unlock()

	id := req.OrderID
	if id == "" {
		id = uuid.NewString()
	}

	now := time.Now().UTC()
	o := &domain.Order{
		ID:        id,
		Owner:     req.Owner,
		Pair:      req.Pair,
		Side:      req.Side,
		Type:      req.Type,
		Amount:    req.Amount,
		Filled:    decimal.Zero,
		Remaining: req.Amount,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		Status:    domain.Pending,
		Sequence:  e.seq.Add(1),
		CreatedAt: now,
		UpdatedAt: now,
		ExpiresAt: req.ExpiresAt,
	}

	// Claim the id before reserving so concurrent placements on other
	// pairs cannot admit the same id twice.
	if err := e.claimOrderID(o); err != nil {
		return nil, err
	}

	required, err := e.requiredReservation(shard, o)
	if err != nil {
		e.unclaimOrderID(o.ID)
		return nil, err
	}
	if err := e.ledger.Reserve(o.Owner, o.ReservedCurrency(), required); err != nil {
		e.unclaimOrderID(o.ID)
		o.Status = domain.Rejected
		return nil, err
	}
	o.Reserved = required
	e.indexOwner(o)

	e.logger.Info().
		Str("order_id", o.ID).
		Str("owner", o.Owner).
		Str("pair", o.Pair.Symbol()).
		Str("side", string(o.Side)).
		Str("type", string(o.Type)).
		Str("amount", o.Amount.String()).
		Str("price", o.Price.String()).
		Msg("order admitted")

	switch o.Type {
	case domain.Market:
		e.executeMarket(ctx, shard, o)
	case domain.StopLoss, domain.TakeProfit:
		shard.stops = append(shard.stops, o)
		// Activate right away if the last trade already crossed the trigger.
		e.runMatching(ctx, shard)
	default:
		if err := shard.book.Add(o); err != nil {
			// Unreachable after claimOrderID, but never corrupt the
			// reservation if it happens.
			e.ledger.Release(o.Owner, o.ReservedCurrency(), o.Reserved)
			o.Reserved = decimal.Zero
			e.unclaimOrderID(o.ID)
			return nil, err
		}
		e.runMatching(ctx, shard)
	}

	e.persistOrder(ctx, o)
	e.persistBalances(ctx, o.Owner, o.ReservedCurrency())
	e.refreshCache(ctx, shard)
	return o, nil
}

// requiredReservation computes the funds to lock for admission: quote for
// buys, base for sells. Market orders are priced by walking the opposite
// side under the shard lock, so the reservation matches what execution
// will spend.
func (e *Engine) requiredReservation(shard *pairShard, o *domain.Order) (decimal.Decimal, error) {
	if o.Type == domain.Market {
		return e.marketReservation(shard, o)
	}
	if o.IsBuy() {
		return o.Amount.Mul(o.Price), nil
	}
	return o.Amount, nil
}

func (e *Engine) marketReservation(shard *pairShard, o *domain.Order) (decimal.Decimal, error) {
	var opposite *levelTree
	if o.IsBuy() {
		opposite = shard.book.asks
	} else {
		opposite = shard.book.bids
	}
	if opposite.Len() == 0 {
		return decimal.Zero, fmt.Errorf("%w: %s %s", ErrEmptyBook, o.Pair.Symbol(), o.Side)
	}

	need := o.Amount
	cost := decimal.Zero     // quote cost for a buy
	fillable := decimal.Zero // base amount coverable by resting liquidity
	walk := func(lvl *PriceLevel) bool {
		take := decimal.Min(need, lvl.Total())
		fillable = fillable.Add(take)
		cost = cost.Add(take.Mul(lvl.Price))
		need = need.Sub(take)
		return need.IsPositive()
	}
	if o.IsBuy() {
		opposite.Ascend(walk)
		return cost, nil
	}
	opposite.Descend(walk)
	return fillable, nil
}

// runMatching drains the cross repeatedly: while the best bid meets the
// best ask, the front orders of both levels trade at the maker's price.
// After the book uncrosses, parked stop orders triggered by the last
// trade price are activated and the pass repeats.
func (e *Engine) runMatching(ctx context.Context, shard *pairShard) {
	for {
		e.matchPass(ctx, shard)
		if e.activateStops(ctx, shard) == 0 {
			return
		}
	}
}

func (e *Engine) matchPass(ctx context.Context, shard *pairShard) {
	for {
		bidLvl := shard.book.bestBidLevel()
		askLvl := shard.book.bestAskLevel()
		if bidLvl == nil || askLvl == nil {
			return
		}
		if bidLvl.Price.LessThan(askLvl.Price) {
			return
		}
		buy := bidLvl.Front()
		sell := askLvl.Front()
		if buy == nil || sell == nil {
			// Defect: a level must never be empty while registered.
			e.logger.Error().
				Str("pair", shard.book.Pair().Symbol()).
				Str("bid_level", bidLvl.Price.String()).
				Str("ask_level", askLvl.Price.String()).
				Msg("empty price level in crossed book; halting matching pass")
			return
		}

		// Price priority belongs to the order that rested first.
		maker := buy
		if sell.Sequence < buy.Sequence {
			maker = sell
		}
		if !e.fill(ctx, shard, buy, sell, maker, maker.Price, bidLvl, askLvl) {
			return
		}
	}
}

// fill settles one trade of min(buy, sell) remaining at the given price
// and emits the trade record. Committed trades are never rolled back.
// A false return means the fill could not settle and the caller must
// stop its pass: re-reading the same levels would loop forever.
func (e *Engine) fill(ctx context.Context, shard *pairShard, buy, sell, maker *domain.Order,
	price decimal.Decimal, bidLvl, askLvl *PriceLevel) bool {

	qty := decimal.Min(buy.Remaining, sell.Remaining)
	if !qty.IsPositive() {
		e.logger.Error().
			Str("buy", buy.ID).
			Str("sell", sell.ID).
			Str("qty", qty.String()).
			Msg("non-positive fill amount; halting matching pass")
		return false
	}
	notional := qty.Mul(price)

	var buyerFee, sellerFee decimal.Decimal
	if maker == buy {
		buyerFee = e.fees.makerFee(qty)
		sellerFee = e.fees.takerFee(notional)
	} else {
		buyerFee = e.fees.takerFee(qty)
		sellerFee = e.fees.makerFee(notional)
	}

	pair := shard.book.Pair()

	// Buyer: spend reserved quote; a limit buy reserved at its own price,
	// so a better execution refunds the difference per filled unit.
	refund := decimal.Zero
	if buy.Type != domain.Market {
		refund = qty.Mul(buy.Price).Sub(notional)
	}
	e.ledger.DebitReserved(buy.Owner, pair.Quote, notional)
	e.ledger.Release(buy.Owner, pair.Quote, refund)
	buy.Reserved = buy.Reserved.Sub(notional).Sub(refund)
	e.ledger.Credit(buy.Owner, pair.Base, qty.Sub(buyerFee))
	e.ledger.CollectFee(pair.Base, buyerFee)

	// Seller: give up reserved base, receive quote proceeds minus fee.
	e.ledger.DebitReserved(sell.Owner, pair.Base, qty)
	sell.Reserved = sell.Reserved.Sub(qty)
	e.ledger.Credit(sell.Owner, pair.Quote, notional.Sub(sellerFee))
	e.ledger.CollectFee(pair.Quote, sellerFee)

	now := time.Now().UTC()
	for _, o := range []*domain.Order{buy, sell} {
		o.Filled = o.Filled.Add(qty)
		o.Remaining = o.Remaining.Sub(qty)
		o.UpdatedAt = now
		if o.Remaining.IsZero() {
			o.Status = domain.Filled
		} else {
			o.Status = domain.PartiallyFilled
		}
	}

	if bidLvl != nil {
		bidLvl.Reduce(qty)
	}
	if askLvl != nil {
		askLvl.Reduce(qty)
	}
	e.closeFilled(shard, buy)
	e.closeFilled(shard, sell)

	taker := sell
	if maker == sell {
		taker = buy
	}
	makerFee, takerFee := buyerFee, sellerFee
	if maker == sell {
		makerFee, takerFee = sellerFee, buyerFee
	}
	trade := &domain.Trade{
		ID:           uuid.NewString(),
		Pair:         pair,
		Amount:       qty,
		Price:        price,
		MakerOrderID: maker.ID,
		TakerOrderID: taker.ID,
		MakerOwner:   maker.Owner,
		TakerOwner:   taker.Owner,
		MakerFee:     makerFee,
		TakerFee:     takerFee,
		Timestamp:    now,
	}
	e.recordTrade(trade)
	shard.lastPrice = price
	shard.hasLast = true
	shard.volume = shard.volume.Add(qty)

	e.logger.Info().
		Str("trade_id", trade.ID).
		Str("pair", pair.Symbol()).
		Str("price", price.String()).
		Str("amount", qty.String()).
		Str("maker", maker.ID).
		Str("taker", taker.ID).
		Msg("trade executed")

	if e.repo != nil {
		if err := e.repo.SaveTrade(ctx, trade); err != nil {
			e.logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("trade persist failed")
		}
	}
	e.persistOrder(ctx, buy)
	e.persistOrder(ctx, sell)
	e.persistBalances(ctx, buy.Owner, pair.Base, pair.Quote)
	e.persistBalances(ctx, sell.Owner, pair.Base, pair.Quote)
	return true
}

// closeFilled removes a fully filled order from the book and returns any
// residual reservation (exact decimals leave none for limit orders).
func (e *Engine) closeFilled(shard *pairShard, o *domain.Order) {
	if o.Status != domain.Filled {
		return
	}
	if _, ok := shard.book.Get(o.ID); ok {
		if _, err := shard.book.Remove(o.ID); err != nil {
			e.logger.Error().Err(err).Str("order_id", o.ID).Msg("filled order missing from book")
		}
	}
	if o.Reserved.IsPositive() {
		e.ledger.Release(o.Owner, o.ReservedCurrency(), o.Reserved)
		o.Reserved = decimal.Zero
	}
}

// executeMarket fills a market order against the opposite side without it
// ever resting. The unfillable remainder is closed immediately (IOC).
func (e *Engine) executeMarket(ctx context.Context, shard *pairShard, o *domain.Order) {
	for o.Remaining.IsPositive() {
		var lvl *PriceLevel
		if o.IsBuy() {
			lvl = shard.book.bestAskLevel()
		} else {
			lvl = shard.book.bestBidLevel()
		}
		if lvl == nil {
			break
		}
		resting := lvl.Front()
		if resting == nil {
			e.logger.Error().Str("pair", o.Pair.Symbol()).Msg("empty level during market execution")
			break
		}
		var ok bool
		if o.IsBuy() {
			ok = e.fill(ctx, shard, o, resting, resting, lvl.Price, nil, lvl)
		} else {
			ok = e.fill(ctx, shard, resting, o, resting, lvl.Price, lvl, nil)
		}
		if !ok {
			break
		}
	}
	if !o.Terminal() {
		// Leftover means the book ran dry; release the residual
		// reservation and close the order.
		if o.Reserved.IsPositive() {
			e.ledger.Release(o.Owner, o.ReservedCurrency(), o.Reserved)
			o.Reserved = decimal.Zero
		}
		o.Status = domain.Cancelled
		o.UpdatedAt = time.Now().UTC()
	}
	e.runMatching(ctx, shard)
}

// activateStops moves triggered stop orders onto the book as limit orders
// and returns how many were activated.
func (e *Engine) activateStops(ctx context.Context, shard *pairShard) int {
	if !shard.hasLast || len(shard.stops) == 0 {
		return 0
	}
	activated := 0
	remaining := shard.stops[:0]
	for _, o := range shard.stops {
		if o.Terminal() {
			continue
		}
		if !stopTriggered(o, shard.lastPrice) {
			remaining = append(remaining, o)
			continue
		}
		if err := shard.book.Add(o); err != nil {
			e.logger.Error().Err(err).Str("order_id", o.ID).Msg("stop activation failed")
			remaining = append(remaining, o)
			continue
		}
		activated++
		e.logger.Info().
			Str("order_id", o.ID).
			Str("stop_price", o.StopPrice.String()).
			Str("last_price", shard.lastPrice.String()).
			Msg("stop order activated")
		e.persistOrder(ctx, o)
	}
	shard.stops = remaining
	return activated
}

func stopTriggered(o *domain.Order, last decimal.Decimal) bool {
	switch o.Type {
	case domain.StopLoss:
		if o.IsBuy() {
			return last.GreaterThanOrEqual(o.StopPrice)
		}
		return last.LessThanOrEqual(o.StopPrice)
	case domain.TakeProfit:
		if o.IsBuy() {
			return last.LessThanOrEqual(o.StopPrice)
		}
		return last.GreaterThanOrEqual(o.StopPrice)
	}
	return false
}

// CancelOrder removes a resting or parked order and releases its
// reservation. Synchronous; no intermediate cancelling state.
func (e *Engine) CancelOrder(ctx context.Context, owner, orderID string) error {
	e.indexMu.Lock()
	o, ok := e.orders[orderID]
	e.indexMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	shard := e.shard(o.Pair)
	if shard == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPair, o.Pair.Symbol())
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()

	if o.Owner != owner {
		return fmt.Errorf("%w: order %s", ErrUnauthorizedCancel, orderID)
	}
	if o.Terminal() {
		return fmt.Errorf("%w: order %s is %s", ErrAlreadyTerminal, orderID, o.Status)
	}

	e.cancelLocked(ctx, shard, o)
	e.refreshCache(ctx, shard)
	return nil
}

// cancelLocked performs the actual cancellation under the shard mutex.
func (e *Engine) cancelLocked(ctx context.Context, shard *pairShard, o *domain.Order) {
	if _, ok := shard.book.Get(o.ID); ok {
		if _, err := shard.book.Remove(o.ID); err != nil {
			e.logger.Error().Err(err).Str("order_id", o.ID).Msg("cancel: book removal failed")
		}
	} else {
		for i, s := range shard.stops {
			if s.ID == o.ID {
				shard.stops = append(shard.stops[:i], shard.stops[i+1:]...)
				break
			}
		}
	}
	if o.Reserved.IsPositive() {
		e.ledger.Release(o.Owner, o.ReservedCurrency(), o.Reserved)
		o.Reserved = decimal.Zero
	}
	o.Status = domain.Cancelled
	o.UpdatedAt = time.Now().UTC()
	e.persistOrder(ctx, o)
	e.persistBalances(ctx, o.Owner, o.ReservedCurrency())

	e.logger.Info().
		Str("order_id", o.ID).
		Str("owner", o.Owner).
		Str("pair", o.Pair.Symbol()).
		Msg("order cancelled")
}

// Snapshot returns the top depth levels per side, consulting the cache
// first the way reads bypass the matching path.
func (e *Engine) Snapshot(ctx context.Context, pair domain.Pair, depth int) (*domain.BookSnapshot, error) {
	shard := e.shard(pair)
	if shard == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPair, pair.Symbol())
	}
	if e.cache != nil {
		if snap, err := e.cache.GetBook(ctx, pair.Symbol()); err == nil && snap != nil {
			return trimSnapshot(snap, depth), nil
		}
	}
	shard.mu.Lock()
	snap := shard.book.Snapshot(depth)
	shard.mu.Unlock()
	if e.cache != nil {
		if err := e.cache.SetBook(ctx, pair.Symbol(), snap); err != nil {
			e.logger.Warn().Err(err).Str("pair", pair.Symbol()).Msg("snapshot cache set failed")
		}
	}
	return snap, nil
}

func trimSnapshot(snap *domain.BookSnapshot, depth int) *domain.BookSnapshot {
	if depth <= 0 {
		return snap
	}
	out := *snap
	if len(out.Bids) > depth {
		out.Bids = out.Bids[:depth]
	}
	if len(out.Asks) > depth {
		out.Asks = out.Asks[:depth]
	}
	return &out
}

// cloneOrder copies an order under its pair's shard mutex. Order fields
// are only ever written under that mutex, so the copy can never observe
// a fill mid-write.
func (e *Engine) cloneOrder(o *domain.Order) *domain.Order {
	shard := e.shard(o.Pair)
	if shard == nil {
		// Admitted orders always have a shard; reload is the only path
		// that could race pair registration, and it registers first.
		return o.Clone()
	}
	shard.mu.Lock()
	defer shard.mu.Unlock()
	return o.Clone()
}

// UserOrders returns copies of every order the owner has had admitted,
// newest first. Rejected orders were never admitted and do not appear.
func (e *Engine) UserOrders(owner string) []*domain.Order {
	e.indexMu.Lock()
	owned := make([]*domain.Order, len(e.owners[owner]))
	copy(owned, e.owners[owner])
	e.indexMu.Unlock()

	res := make([]*domain.Order, 0, len(owned))
	for _, o := range owned {
		res = append(res, e.cloneOrder(o))
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Sequence > res[j].Sequence })
	return res
}

// UserTrades returns the owner's trades, oldest first.
func (e *Engine) UserTrades(owner string) []*domain.Trade {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()
	res := make([]*domain.Trade, len(e.userTrades[owner]))
	copy(res, e.userTrades[owner])
	return res
}

// GetOrder returns a copy of one admitted order.
func (e *Engine) GetOrder(orderID string) (*domain.Order, error) {
	e.indexMu.Lock()
	o, ok := e.orders[orderID]
	e.indexMu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return e.cloneOrder(o), nil
}

// MarketSummary reports best bid/ask/spread/volume for every pair.
func (e *Engine) MarketSummary() []domain.MarketSummary {
	e.shardsMu.RLock()
	shards := make([]*pairShard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.shardsMu.RUnlock()

	res := make([]domain.MarketSummary, 0, len(shards))
	for _, shard := range shards {
		shard.mu.Lock()
		summary := domain.MarketSummary{
			Pair:   shard.book.Pair(),
			Volume: shard.volume,
		}
		if bid, ok := shard.book.BestBid(); ok {
			summary.BestBid = &bid
		}
		if ask, ok := shard.book.BestAsk(); ok {
			summary.BestAsk = &ask
		}
		if spread, ok := shard.book.Spread(); ok {
			summary.Spread = &spread
		}
		if shard.hasLast {
			last := shard.lastPrice
			summary.LastPrice = &last
		}
		shard.mu.Unlock()
		res = append(res, summary)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].Pair.Symbol() < res[j].Pair.Symbol() })
	return res
}

// SweepExpired cancels resting and parked orders whose expiry has passed
// and returns how many were removed. Runs outside the matching hot path.
func (e *Engine) SweepExpired(ctx context.Context, now time.Time) int {
	e.shardsMu.RLock()
	shards := make([]*pairShard, 0, len(e.shards))
	for _, s := range e.shards {
		shards = append(shards, s)
	}
	e.shardsMu.RUnlock()

	swept := 0
	for _, shard := range shards {
		shard.mu.Lock()
		var expired []*domain.Order
		shard.book.ForEach(func(o *domain.Order) {
			if o.Expired(now) {
				expired = append(expired, o)
			}
		})
		for _, o := range shard.stops {
			if o.Expired(now) {
				expired = append(expired, o)
			}
		}
		for _, o := range expired {
			e.cancelLocked(ctx, shard, o)
			swept++
		}
		if len(expired) > 0 {
			e.refreshCache(ctx, shard)
		}
		shard.mu.Unlock()
	}
	if swept > 0 {
		e.logger.Info().Int("orders", swept).Msg("expired orders swept")
	}
	return swept
}

// StartExpirySweeper runs SweepExpired on a ticker until ctx is done.
func (e *Engine) StartExpirySweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				e.SweepExpired(ctx, now)
			}
		}
	}()
}

// LoadFromRepo rebuilds ledger balances and open orders for the
// registered pairs on startup. Stored balances already carry their
// reserved amounts, so orders are reinserted without re-reserving.
func (e *Engine) LoadFromRepo(ctx context.Context) error {
	if e.repo == nil {
		return nil
	}
	balances, err := e.repo.LoadBalances(ctx)
	if err != nil {
		return fmt.Errorf("load balances: %w", err)
	}
	for _, b := range balances {
		e.ledger.restore(b)
	}

	e.shardsMu.RLock()
	symbols := make(map[string]*pairShard, len(e.shards))
	for sym, s := range e.shards {
		symbols[sym] = s
	}
	e.shardsMu.RUnlock()

	for sym, shard := range symbols {
		orders, err := e.repo.LoadOpenOrders(ctx, sym)
		if err != nil {
			return fmt.Errorf("load open orders for %s: %w", sym, err)
		}
		shard.mu.Lock()
		for _, o := range orders {
			if o.IsBuy() {
				o.Reserved = o.Remaining.Mul(o.Price)
			} else {
				o.Reserved = o.Remaining
			}
			if o.Sequence == 0 {
				o.Sequence = e.seq.Add(1)
			}
			if err := e.claimOrderID(o); err != nil {
				e.logger.Warn().Err(err).Str("order_id", o.ID).Msg("skipping duplicate on reload")
				continue
			}
			e.indexOwner(o)
			switch o.Type {
			case domain.StopLoss, domain.TakeProfit:
				shard.stops = append(shard.stops, o)
			default:
				if err := shard.book.Add(o); err != nil {
					e.logger.Warn().Err(err).Str("order_id", o.ID).Msg("skipping order on reload")
				}
			}
		}
		shard.mu.Unlock()
		e.logger.Info().Str("pair", sym).Int("orders", len(orders)).Msg("open orders reloaded")
	}
	return nil
}

func (e *Engine) claimOrderID(o *domain.Order) error {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	if _, dup := e.orders[o.ID]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicateOrder, o.ID)
	}
	e.orders[o.ID] = o
	return nil
}

func (e *Engine) unclaimOrderID(id string) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	delete(e.orders, id)
}

func (e *Engine) indexOwner(o *domain.Order) {
	e.indexMu.Lock()
	defer e.indexMu.Unlock()
	e.owners[o.Owner] = append(e.owners[o.Owner], o)
}

func (e *Engine) recordTrade(t *domain.Trade) {
	e.tradeMu.Lock()
	defer e.tradeMu.Unlock()
	e.trades = append(e.trades, t)
	e.userTrades[t.MakerOwner] = append(e.userTrades[t.MakerOwner], t)
	if t.TakerOwner != t.MakerOwner {
		e.userTrades[t.TakerOwner] = append(e.userTrades[t.TakerOwner], t)
	}
}

func (e *Engine) persistOrder(ctx context.Context, o *domain.Order) {
	if e.repo == nil {
		return
	}
	if err := e.repo.SaveOrder(ctx, o); err != nil {
		e.logger.Warn().Err(err).Str("order_id", o.ID).Msg("order persist failed")
	}
}

func (e *Engine) persistBalances(ctx context.Context, owner string, currencies ...string) {
	if e.repo == nil {
		return
	}
	for _, currency := range currencies {
		b := e.ledger.Balance(owner, currency)
		if err := e.repo.SaveBalance(ctx, &b); err != nil {
			e.logger.Warn().Err(err).
				Str("owner", owner).
				Str("currency", currency).
				Msg("balance persist failed")
		}
	}
}

func (e *Engine) refreshCache(ctx context.Context, shard *pairShard) {
	if e.cache == nil {
		return
	}
	snap := shard.book.Snapshot(0)
	if err := e.cache.SetBook(ctx, shard.book.Pair().Symbol(), snap); err != nil {
		e.logger.Warn().Err(err).Str("pair", shard.book.Pair().Symbol()).Msg("book cache refresh failed")
	}
}
