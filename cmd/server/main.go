package main

import (
	"context"
	"os"
	"strings"

	"github.com/rs/zerolog"

	httpapi "github.com/ledgerlabs/matchbook/internal/api/http"
	"github.com/ledgerlabs/matchbook/internal/adapter/cache"
	"github.com/ledgerlabs/matchbook/internal/adapter/pg"
	"github.com/ledgerlabs/matchbook/internal/config"
	"github.com/ledgerlabs/matchbook/internal/core"
	"github.com/ledgerlabs/matchbook/internal/port"
)

func main() {
	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("config load failed")
	}
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		logger = logger.Level(level)
	}

	ctx := context.Background()

	var repo port.Repository
	if cfg.PostgresDSN != "" {
		pgRepo, err := pg.NewRepo(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Fatal().Err(err).Msg("postgres connect failed")
		}
		defer pgRepo.Close()
		if err := pgRepo.EnsureSchema(ctx); err != nil {
			logger.Fatal().Err(err).Msg("schema setup failed")
		}
		repo = pgRepo
	}

	var bookCache port.Cache
	if cfg.Redis.Addr != "" {
		redisCache := cache.NewRedisCache(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL)
		defer redisCache.Close()
		bookCache = redisCache
	}

	engine := core.NewEngine(repo, bookCache,
		core.WithLogger(logger.With().Str("component", "engine").Logger()),
		core.WithFees(core.FeeSchedule{
			Maker: cfg.MakerFee,
			Taker: cfg.TakerFee,
		}),
	)

	for _, symbol := range cfg.Pairs {
		parts := strings.SplitN(symbol, "/", 2)
		if len(parts) != 2 {
			logger.Fatal().Str("pair", symbol).Msg("malformed pair in PAIRS")
		}
		if _, err := engine.RegisterPair(parts[0], parts[1]); err != nil {
			logger.Fatal().Err(err).Str("pair", symbol).Msg("pair registration failed")
		}
	}

	if err := engine.LoadFromRepo(ctx); err != nil {
		logger.Fatal().Err(err).Msg("state reload failed")
	}

	engine.StartExpirySweeper(ctx, cfg.SweepInterval)

	server := httpapi.NewServer(engine, logger, cfg.RateLimit, cfg.RateLimitBurst)
	if err := server.Run(cfg.HTTPAddr); err != nil {
		logger.Fatal().Err(err).Msg("http server failed")
	}
}
