package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/ledgerlabs/matchbook/internal/api/dto"
	"github.com/ledgerlabs/matchbook/internal/core"
	"github.com/ledgerlabs/matchbook/internal/domain"
	"github.com/ledgerlabs/matchbook/internal/middleware"
)

const defaultDepth = 20

// Server exposes the matching engine over HTTP.
type Server struct {
	engine *core.Engine
	logger zerolog.Logger
	limit  time.Duration
	burst  int
}

func NewServer(engine *core.Engine, logger zerolog.Logger, rateLimit time.Duration, rateBurst int) *Server {
	return &Server{
		engine: engine,
		logger: logger.With().Str("component", "http").Logger(),
		limit:  rateLimit,
		burst:  rateBurst,
	}
}

// Router builds the gin engine with all routes registered.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	rl := middleware.NewRateLimiter(s.limit, s.burst)

	writes := r.Group("/", rl.Middleware())
	writes.POST("/pairs", s.registerPair)
	writes.POST("/orders", s.placeOrder)
	writes.POST("/orders/cancel", s.cancelOrder)
	writes.POST("/balances/deposit", s.deposit)
	writes.POST("/balances/withdraw", s.withdraw)

	r.GET("/orders", s.userOrders)
	r.GET("/trades", s.userTrades)
	r.GET("/orderbook", s.orderbook)
	r.GET("/markets", s.markets)
	r.GET("/balances", s.balances)

	return r
}

func (s *Server) Run(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server starting")
	return s.Router().Run(addr)
}

func (s *Server) registerPair(c *gin.Context) {
	var req dto.RegisterPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	pair, err := s.engine.RegisterPair(req.Base, req.Quote)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.RegisterPairResponse{Symbol: pair.Symbol()})
}

func (s *Server) placeOrder(c *gin.Context) {
	var req dto.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	order, err := s.engine.PlaceOrder(c.Request.Context(), core.PlaceOrderRequest{
		OrderID:   req.OrderID,
		Owner:     req.Owner,
		Pair:      domain.NewPair(req.Base, req.Quote),
		Side:      domain.Side(req.Side),
		Type:      domain.OrderType(req.Type),
		Amount:    req.Amount,
		Price:     req.Price,
		StopPrice: req.StopPrice,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromOrder(order))
}

func (s *Server) cancelOrder(c *gin.Context) {
	var req dto.CancelOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.CancelOrder(c.Request.Context(), req.Owner, req.OrderID); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CancelOrderResponse{OrderID: req.OrderID, Cancelled: true})
}

func (s *Server) deposit(c *gin.Context) {
	var req dto.DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.Deposit(c.Request.Context(), req.Owner, req.Currency, req.Amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBalances(s.engine.Ledger().Balances(req.Owner)))
}

func (s *Server) withdraw(c *gin.Context) {
	var req dto.WithdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.engine.Withdraw(c.Request.Context(), req.Owner, req.Currency, req.Amount); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromBalances(s.engine.Ledger().Balances(req.Owner)))
}

func (s *Server) userOrders(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner query parameter required"})
		return
	}
	c.JSON(http.StatusOK, dto.FromOrders(s.engine.UserOrders(owner)))
}

func (s *Server) userTrades(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner query parameter required"})
		return
	}
	c.JSON(http.StatusOK, dto.FromTrades(s.engine.UserTrades(owner)))
}

func (s *Server) orderbook(c *gin.Context) {
	pair := domain.NewPair(c.Query("base"), c.Query("quote"))
	depth := defaultDepth
	if raw := c.Query("depth"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "depth must be a non-negative integer"})
			return
		}
		depth = parsed
	}
	snap, err := s.engine.Snapshot(c.Request.Context(), pair, depth)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.FromSnapshot(snap))
}

func (s *Server) markets(c *gin.Context) {
	c.JSON(http.StatusOK, dto.FromSummaries(s.engine.MarketSummary()))
}

func (s *Server) balances(c *gin.Context) {
	owner := c.Query("owner")
	if owner == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner query parameter required"})
		return
	}
	c.JSON(http.StatusOK, dto.FromBalances(s.engine.Ledger().Balances(owner)))
}

// fail maps engine errors to HTTP statuses; the error text is passed
// through since the engine already phrases it for callers.
func (s *Server) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidSide),
		errors.Is(err, core.ErrInvalidType),
		errors.Is(err, core.ErrMissingPrice),
		errors.Is(err, core.ErrMissingStopPrice):
		status = http.StatusBadRequest
	case errors.Is(err, core.ErrInsufficientBalance),
		errors.Is(err, core.ErrEmptyBook):
		status = http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnknownPair),
		errors.Is(err, core.ErrOrderNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrUnauthorizedCancel):
		status = http.StatusForbidden
	case errors.Is(err, core.ErrDuplicateOrder),
		errors.Is(err, core.ErrAlreadyTerminal):
		status = http.StatusConflict
	default:
		s.logger.Error().Err(err).Msg("unexpected engine error")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
