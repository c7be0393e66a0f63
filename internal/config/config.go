// Package config loads the process configuration. Grounded on
// _examples/adred-codev-ws_poc/ws/config.go: caarlos0/env struct tags,
// godotenv for local development, Validate()/LogConfig() following the
// same shape, with the teacher's Kafka-relay fields replaced by the
// domain-stack fields SPEC_FULL.md §10.1 lists.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

// Config holds every configuration input spec.md §6 names, plus the
// ambient process knobs the teacher's config layer already solved
// (address, max connections, CPU safety thresholds, metrics interval).
type Config struct {
	Addr        string `env:"PC_ADDR" envDefault:":8080"`
	Environment string `env:"PC_ENVIRONMENT" envDefault:"development"`

	RedisAddr string `env:"PC_REDIS_ADDR" envDefault:"localhost:6379"`
	RedisEnv  string `env:"PC_REDIS_ENV" envDefault:"dev"`
	RedisRoot string `env:"PC_REDIS_ROOT" envDefault:"pixelcanvas"`

	PostgresDSN string `env:"PC_POSTGRES_DSN" envDefault:"postgres://localhost:5432/pixelcanvas"`

	// Tile geometry (spec.md §3, §6).
	TileSize          int32 `env:"PC_TILE_SIZE" envDefault:"256"`
	PixelSize         int   `env:"PC_PIXEL_SIZE" envDefault:"1"`
	BufferPoolMaxSize int   `env:"PC_BUFFER_POOL_MAX_SIZE" envDefault:"64"`

	// Cache TTLs + jitter (spec.md §4.C, §6).
	CacheTTLCurrent time.Duration `env:"PC_CACHE_TTL_CURRENT" envDefault:"300s"`
	CacheTTLPalette time.Duration `env:"PC_CACHE_TTL_PALETTE" envDefault:"3600s"`
	CacheTTLWebP    time.Duration `env:"PC_CACHE_TTL_WEBP" envDefault:"3600s"`
	CacheTTLMissing time.Duration `env:"PC_CACHE_TTL_MISSING" envDefault:"10s"`
	CacheJitterMinPct float64     `env:"PC_CACHE_JITTER_MIN_PCT" envDefault:"-5"`
	CacheJitterMaxPct float64     `env:"PC_CACHE_JITTER_MAX_PCT" envDefault:"5"`

	// Rate limiting (spec.md §4.J, §6) — independent per concern.
	RateLimitPaintRPM        int     `env:"PC_RATE_LIMIT_PAINT_RPM" envDefault:"30"`
	RateLimitTilesRPM        int     `env:"PC_RATE_LIMIT_TILES_RPM" envDefault:"120"`
	RateLimitGlobalRPM       int     `env:"PC_RATE_LIMIT_GLOBAL_RPM" envDefault:"600"`
	RateLimitWSMessagesRPM   int     `env:"PC_RATE_LIMIT_WS_MESSAGES_RPM" envDefault:"300"`
	RateLimitWSUpgradesRPM   int     `env:"PC_RATE_LIMIT_WS_UPGRADES_RPM" envDefault:"60"`
	RateLimitAuthRPM         int     `env:"PC_RATE_LIMIT_AUTH_RPM" envDefault:"20"`
	RateLimitBurstMultiplier float64 `env:"PC_RATE_LIMIT_BURST_MULTIPLIER" envDefault:"1.5"`
	RateLimitEnabled         bool    `env:"PC_RATE_LIMIT_ENABLED" envDefault:"true"`

	// WS policy (spec.md §6).
	MaxTilesPerIP         int           `env:"PC_MAX_TILES_PER_IP" envDefault:"64"`
	SubscriptionTTL       time.Duration `env:"PC_SUBSCRIPTION_TTL" envDefault:"120s"`
	HeartbeatRefresh      time.Duration `env:"PC_HEARTBEAT_REFRESH" envDefault:"30s"`
	MaxConnections        int           `env:"PC_MAX_CONNECTIONS" envDefault:"10000"`
	ConnectionBufferSize  int           `env:"PC_CONNECTION_BUFFER_SIZE" envDefault:"256"`
	DropNewestOnFull      bool          `env:"PC_DROP_NEWEST_ON_FULL" envDefault:"true"`
	BroadcastBufferSize   int           `env:"PC_BROADCAST_BUFFER_SIZE" envDefault:"1024"`

	// Credit ledger (spec.md §3, §4.K).
	CreditMaxCharges       int   `env:"PC_CREDIT_MAX_CHARGES" envDefault:"30"`
	CreditCooldownSeconds  int64 `env:"PC_CREDIT_COOLDOWN_SECONDS" envDefault:"60"`

	// Resource governance, grounded on the teacher's cgroup-aware model.
	CPULimit           float64       `env:"PC_CPU_LIMIT" envDefault:"1.0"`
	CPURejectThreshold float64       `env:"PC_CPU_REJECT_THRESHOLD" envDefault:"75.0"`
	CPUPauseThreshold  float64       `env:"PC_CPU_PAUSE_THRESHOLD" envDefault:"80.0"`
	MetricsInterval    time.Duration `env:"PC_METRICS_INTERVAL" envDefault:"15s"`

	EncodeTimeout time.Duration `env:"PC_ENCODE_TIMEOUT" envDefault:"3s"`
	QueryTimeout  time.Duration `env:"PC_QUERY_TIMEOUT" envDefault:"5s"`
	CacheAcquireTimeout time.Duration `env:"PC_CACHE_ACQUIRE_TIMEOUT" envDefault:"1s"`

	LogLevel  string `env:"PC_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"PC_LOG_FORMAT" envDefault:"json"`
}

// Load reads .env (optional) then environment variables, and validates the
// result. Priority: ENV vars > .env file > defaults, matching ws/config.go.
func Load(logger *zerolog.Logger) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		if logger != nil {
			logger.Info().Msg("no .env file found, using environment variables only")
		}
	} else if logger != nil {
		logger.Info().Msg("loaded configuration from .env file")
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// Validate enforces range/logical/enum checks, following ws/config.go's
// Validate().
func (c *Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("PC_ADDR is required")
	}
	if c.TileSize < 1 {
		return fmt.Errorf("PC_TILE_SIZE must be > 0, got %d", c.TileSize)
	}
	if c.MaxConnections < 1 {
		return fmt.Errorf("PC_MAX_CONNECTIONS must be > 0, got %d", c.MaxConnections)
	}
	if c.CPURejectThreshold < 0 || c.CPURejectThreshold > 100 {
		return fmt.Errorf("PC_CPU_REJECT_THRESHOLD must be 0-100, got %.1f", c.CPURejectThreshold)
	}
	if c.CPUPauseThreshold < 0 || c.CPUPauseThreshold > 100 {
		return fmt.Errorf("PC_CPU_PAUSE_THRESHOLD must be 0-100, got %.1f", c.CPUPauseThreshold)
	}
	if c.CPUPauseThreshold < c.CPURejectThreshold {
		return fmt.Errorf("PC_CPU_PAUSE_THRESHOLD (%.1f) must be >= PC_CPU_REJECT_THRESHOLD (%.1f)", c.CPUPauseThreshold, c.CPURejectThreshold)
	}
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("PC_LOG_LEVEL must be one of debug, info, warn, error (got %s)", c.LogLevel)
	}
	validFormats := map[string]bool{"json": true, "text": true, "pretty": true}
	if !validFormats[c.LogFormat] {
		return fmt.Errorf("PC_LOG_FORMAT must be one of json, text, pretty (got %s)", c.LogFormat)
	}
	return nil
}

// LogConfig emits one structured line summarizing the loaded config,
// following ws/config.go's LogConfig().
func (c *Config) LogConfig(logger zerolog.Logger) {
	logger.Info().
		Str("environment", c.Environment).
		Str("addr", c.Addr).
		Int32("tile_size", c.TileSize).
		Int("pixel_size", c.PixelSize).
		Int("max_connections", c.MaxConnections).
		Int("max_tiles_per_ip", c.MaxTilesPerIP).
		Dur("subscription_ttl", c.SubscriptionTTL).
		Float64("cpu_reject_threshold", c.CPURejectThreshold).
		Float64("cpu_pause_threshold", c.CPUPauseThreshold).
		Str("log_level", c.LogLevel).
		Str("log_format", c.LogFormat).
		Msg("configuration loaded and validated")
}
