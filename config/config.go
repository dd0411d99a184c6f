// Package config loads service settings from the environment (and .env when present).
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every tunable of the service. Reward threshold and reward size
// live here rather than in the engine code.
type Config struct {
	DatabaseURL string `env:"DATABASE_URL"`
	ListenAddr  string `env:"LISTEN_ADDR" envDefault:":5200"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`

	GatewayToken   string   `env:"GATEWAY_TOKEN"`
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	BotUsername    string   `env:"BOT_USERNAME" envDefault:"content_unlock_bot"`

	RewardThreshold int64 `env:"REWARD_THRESHOLD" envDefault:"5"`
	RewardCoins     int64 `env:"REWARD_COINS" envDefault:"1"`

	StoreTimeout  time.Duration `env:"STORE_TIMEOUT" envDefault:"5s"`
	TxMaxAttempts uint          `env:"TX_MAX_ATTEMPTS" envDefault:"5"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"4"`

	R2 R2Config `envPrefix:"R2_"`

	CatalogManifestKey  string        `env:"CATALOG_MANIFEST_KEY" envDefault:"catalog/catalog.json"`
	CatalogSyncInterval time.Duration `env:"CATALOG_SYNC_INTERVAL" envDefault:"10m"`
	LocatorTTL          time.Duration `env:"LOCATOR_TTL" envDefault:"15m"`
}

// R2Config points at the Cloudflare R2 (S3 compatible) bucket that holds the
// catalog manifest and the content objects.
type R2Config struct {
	AccountID       string `env:"ACCOUNT_ID"`
	AccessKeyID     string `env:"ACCESS_KEY_ID"`
	AccessKeySecret string `env:"ACCESS_KEY_SECRET"`
	Bucket          string `env:"BUCKET_NAME"`
	Endpoint        string `env:"ENDPOINT"` // overrides the account-derived endpoint
}

// Enabled reports whether enough R2 settings are present to build a client.
func (r R2Config) Enabled() bool {
	return r.Bucket != "" && (r.AccountID != "" || r.Endpoint != "")
}

// Load reads .env (if any) and then the process environment.
func Load() (*Config, error) {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.RewardThreshold < 1 {
		return fmt.Errorf("REWARD_THRESHOLD must be >= 1, got %d", c.RewardThreshold)
	}
	if c.RewardCoins < 1 {
		return fmt.Errorf("REWARD_COINS must be >= 1, got %d", c.RewardCoins)
	}
	if c.StoreTimeout <= 0 {
		return fmt.Errorf("STORE_TIMEOUT must be positive")
	}
	if c.TxMaxAttempts == 0 {
		c.TxMaxAttempts = 1
	}
	return nil
}
