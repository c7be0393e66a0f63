// Command canvasd is the pixel-canvas backend's process entrypoint:
// loads configuration, wires every adapter to the core, and serves the
// HTTP/WS surface until SIGINT/SIGTERM. Bootstrap shape (automaxprocs,
// signal handling, graceful shutdown) grounded on
// _examples/adred-codev-ws_poc/ws/main.go.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	_ "go.uber.org/automaxprocs"

	"github.com/adred-codev/pixelcanvas/domain"
	"github.com/adred-codev/pixelcanvas/internal/broadcast"
	"github.com/adred-codev/pixelcanvas/internal/cacheredis"
	"github.com/adred-codev/pixelcanvas/internal/codecwebp"
	"github.com/adred-codev/pixelcanvas/internal/config"
	"github.com/adred-codev/pixelcanvas/internal/connlimit"
	"github.com/adred-codev/pixelcanvas/internal/gateway"
	"github.com/adred-codev/pixelcanvas/internal/httpapi"
	"github.com/adred-codev/pixelcanvas/internal/logging"
	"github.com/adred-codev/pixelcanvas/internal/metrics"
	"github.com/adred-codev/pixelcanvas/internal/paint"
	"github.com/adred-codev/pixelcanvas/internal/ratelimit"
	"github.com/adred-codev/pixelcanvas/internal/storepg"
	"github.com/adred-codev/pixelcanvas/internal/subredis"
	"github.com/adred-codev/pixelcanvas/internal/wsconn"
)

func main() {
	bootLogger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	cfg, err := config.Load(&bootLogger)
	if err != nil {
		bootLogger.Fatal().Err(err).Msg("failed to load configuration")
	}

	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})
	cfg.LogConfig(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer redisClient.Close()

	pgPool, err := pgxpool.New(ctx, cfg.PostgresDSN)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create postgres pool")
	}
	defer pgPool.Close()

	keys := cacheredis.KeyBuilder{Root: cfg.RedisRoot, Env: cfg.RedisEnv}

	cache := &cacheredis.Adapter{
		Client: redisClient,
		Keys:   keys,
		TTL: cacheredis.TTLConfig{
			Current:      cfg.CacheTTLCurrent,
			Palette:      cfg.CacheTTLPalette,
			WebP:         cfg.CacheTTLWebP,
			Missing:      cfg.CacheTTLMissing,
			JitterMinPct: cfg.CacheJitterMinPct,
			JitterMaxPct: cfg.CacheJitterMaxPct,
		},
		AcquireTimeout: cfg.CacheAcquireTimeout,
		Logger:         logger,
	}

	subs := &subredis.Adapter{Client: redisClient, Keys: keys}

	store := &storepg.Adapter{Pool: pgPool, QueryTimeout: cfg.QueryTimeout, Logger: logger}
	credits := &storepg.CreditAdapter{Adapter: store}

	codec := codecwebp.Adapter{}

	pool := domain.NewPaletteBufferPool(cfg.TileSize, cfg.BufferPoolMaxSize)

	worlds := map[string]domain.World{
		"default": {
			ID:        "default",
			Size:      cfg.TileSize,
			PixelSize: cfg.PixelSize,
			Palette:   defaultPalette(),
		},
	}

	gw := &gateway.Gateway{
		Cache:         cache,
		Store:         store,
		Codec:         codec,
		Pool:          pool,
		Worlds:        worlds,
		EncodeTimeout: cfg.EncodeTimeout,
		Logger:        logger,
	}

	fabric := broadcast.New(cfg.BroadcastBufferSize, dropPolicy(cfg.DropNewestOnFull), logger)
	events := &broadcast.EventsAdapter{Fabric: fabric}

	paintSvc := &paint.Service{
		Gateway: gw,
		Credits: credits,
		Store:   store,
		Events:  events,
		CreditCfg: domain.CreditConfig{
			MaxCharges:      cfg.CreditMaxCharges,
			CooldownSeconds: cfg.CreditCooldownSeconds,
		},
		Logger: logger,
	}

	tileLimiter := ratelimit.New(ratelimit.Config{RPM: cfg.RateLimitTilesRPM, Multiplier: cfg.RateLimitBurstMultiplier, Enabled: cfg.RateLimitEnabled})
	paintLimiter := ratelimit.New(ratelimit.Config{RPM: cfg.RateLimitPaintRPM, Multiplier: cfg.RateLimitBurstMultiplier, Enabled: cfg.RateLimitEnabled})
	wsMsgLimiter := ratelimit.New(ratelimit.Config{RPM: cfg.RateLimitWSMessagesRPM, Multiplier: cfg.RateLimitBurstMultiplier, Enabled: cfg.RateLimitEnabled})
	defer tileLimiter.Stop()
	defer paintLimiter.Stop()
	defer wsMsgLimiter.Stop()

	connLimiter := connlimit.New(connlimit.Config{
		IPBurst:     cfg.RateLimitWSUpgradesRPM,
		IPRate:      float64(cfg.RateLimitWSUpgradesRPM) / 60,
		GlobalBurst: cfg.RateLimitGlobalRPM,
		GlobalRate:  float64(cfg.RateLimitGlobalRPM) / 60,
	}, logger)
	defer connLimiter.Stop()

	cpuGov := connlimit.NewCPUGovernor(cfg.CPURejectThreshold, cfg.CPUPauseThreshold, cfg.MetricsInterval, logger)
	defer cpuGov.Stop()

	reg, promReg := metrics.New()
	connLimiter.OnRejected = func(reason string) {
		reg.ConnectionsRejected.WithLabelValues(reason).Inc()
	}

	apiServer := &httpapi.Server{
		Gateway:      gw,
		Paint:        paintSvc,
		Subs:         subs,
		Fabric:       fabric,
		Metrics:      reg,
		TileLimiter:  tileLimiter,
		PaintLimiter: paintLimiter,
		WSMsgLimiter: wsMsgLimiter,
		ConnLimiter:  connLimiter,
		CPUGovernor:  cpuGov,
		WSConfig: wsconn.Config{
			World:            "default",
			MaxTilesPerIP:    cfg.MaxTilesPerIP,
			SubscriptionTTL:  cfg.SubscriptionTTL,
			HeartbeatRefresh: cfg.HeartbeatRefresh,
			SendBufferSize:   cfg.ConnectionBufferSize,
		},
		MaxConns: cfg.MaxConnections,
		Logger:   logger,
	}

	mux := apiServer.Mux()
	mux.Handle("/metrics", metrics.Handler(promReg))

	httpServer := &http.Server{Addr: cfg.Addr, Handler: mux}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Msg("server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
}

func dropPolicy(dropNewest bool) broadcast.DropPolicy {
	if dropNewest {
		return broadcast.DropNewest
	}
	return broadcast.DropOldest
}

func defaultPalette() []domain.RGBColor {
	return []domain.RGBColor{
		{R: 255, G: 255, B: 255},
		{R: 0, G: 0, B: 0},
		{R: 255, G: 0, B: 0},
		{R: 0, G: 255, B: 0},
		{R: 0, G: 0, B: 255},
		{R: 255, G: 255, B: 0},
		{R: 255, G: 0, B: 255},
		{R: 0, G: 255, B: 255},
	}
}
