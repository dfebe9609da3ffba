package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds everything the server reads from the environment.
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Empty DSN runs the engine without persistence.
	PostgresDSN string `env:"POSTGRES_DSN"`

	Redis RedisConfig `envPrefix:"REDIS_"`

	// Pairs registered at startup, e.g. "XRP/USDC,BTC/USDC".
	Pairs []string `env:"PAIRS" envDefault:"XRP/USDC"`

	// Fee rates as decimal fractions: 0.001 is 0.1%. Parsed exactly,
	// never through binary floating point.
	MakerFee decimal.Decimal `env:"MAKER_FEE" envDefault:"0.001"`
	TakerFee decimal.Decimal `env:"TAKER_FEE" envDefault:"0.002"`

	SweepInterval  time.Duration `env:"SWEEP_INTERVAL" envDefault:"30s"`
	RateLimit      time.Duration `env:"RATE_LIMIT" envDefault:"50ms"`
	RateLimitBurst int           `env:"RATE_LIMIT_BURST" envDefault:"1"`
}

// RedisConfig configures the snapshot cache. Empty address disables it.
type RedisConfig struct {
	Addr     string        `env:"ADDR"`
	Password string        `env:"PASSWORD" envDefault:""`
	DB       int           `env:"DB" envDefault:"0"`
	TTL      time.Duration `env:"TTL" envDefault:"5m"`
}

// Load reads .env (if present) and the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
