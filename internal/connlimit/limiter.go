// Package connlimit is an ambient WS-connection admission control layer —
// distinct from the core's per-concern fixed-window rate limiter
// (internal/ratelimit): this one governs whether a new upgrade is accepted
// at all, using a token-bucket (burst + sustained) policy per IP and
// globally. Grounded on
// _examples/adred-codev-ws_poc/ws/internal/shared/limits/connection_rate_limiter.go,
// with its monitoring.IncrementConnectionRateLimit calls generalized to a
// pluggable counter so this package doesn't import the Kafka-era metrics
// package.
package connlimit

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config configures the per-IP and global connection admission limiter.
type Config struct {
	IPBurst     int
	IPRate      float64
	IPTTL       time.Duration
	GlobalBurst int
	GlobalRate  float64
}

type ipEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Limiter enforces connection-admission rate limits. It is independent of
// the active-connection counter (spec.md §5 "shared resources") which
// enforces max_connections directly.
type Limiter struct {
	ipLimiters map[string]*ipEntry
	ipMu       sync.RWMutex
	ipBurst    int
	ipRate     float64
	ipTTL      time.Duration

	globalLimiter *rate.Limiter
	globalBurst   int
	globalRate    float64

	// OnRejected is called (if non-nil) with "global" or "per_ip" whenever
	// a connection attempt is denied, so a metrics collector can count it
	// without this package depending on one.
	OnRejected func(reason string)

	logger        zerolog.Logger
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	stopOnce      sync.Once
}

// New builds a Limiter and starts its background IP-entry sweeper.
func New(cfg Config, logger zerolog.Logger) *Limiter {
	if cfg.IPBurst == 0 {
		cfg.IPBurst = 10
	}
	if cfg.IPRate == 0 {
		cfg.IPRate = 1.0
	}
	if cfg.IPTTL == 0 {
		cfg.IPTTL = 5 * time.Minute
	}
	if cfg.GlobalBurst == 0 {
		cfg.GlobalBurst = 300
	}
	if cfg.GlobalRate == 0 {
		cfg.GlobalRate = 50.0
	}

	l := &Limiter{
		ipLimiters:    make(map[string]*ipEntry),
		ipBurst:       cfg.IPBurst,
		ipRate:        cfg.IPRate,
		ipTTL:         cfg.IPTTL,
		globalLimiter: rate.NewLimiter(rate.Limit(cfg.GlobalRate), cfg.GlobalBurst),
		globalBurst:   cfg.GlobalBurst,
		globalRate:    cfg.GlobalRate,
		logger:        logger.With().Str("component", "connlimit").Logger(),
		stopCleanup:   make(chan struct{}),
	}
	l.cleanupTicker = time.NewTicker(time.Minute)
	go l.cleanupLoop()
	return l
}

// Allow reports whether a new connection from ip may proceed: global
// capacity is checked first (cheap, no map lookup), then the per-IP
// bucket.
func (l *Limiter) Allow(ip string) bool {
	if !l.globalLimiter.Allow() {
		if l.OnRejected != nil {
			l.OnRejected("global")
		}
		return false
	}
	if !l.ipLimiter(ip).Allow() {
		if l.OnRejected != nil {
			l.OnRejected("per_ip")
		}
		return false
	}
	return true
}

func (l *Limiter) ipLimiter(ip string) *rate.Limiter {
	l.ipMu.RLock()
	entry, ok := l.ipLimiters[ip]
	l.ipMu.RUnlock()
	if ok {
		l.ipMu.Lock()
		entry.lastAccess = time.Now()
		l.ipMu.Unlock()
		return entry.limiter
	}

	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	if entry, ok = l.ipLimiters[ip]; ok {
		entry.lastAccess = time.Now()
		return entry.limiter
	}
	limiter := rate.NewLimiter(rate.Limit(l.ipRate), l.ipBurst)
	l.ipLimiters[ip] = &ipEntry{limiter: limiter, lastAccess: time.Now()}
	return limiter
}

func (l *Limiter) cleanupLoop() {
	for {
		select {
		case <-l.cleanupTicker.C:
			l.cleanup()
		case <-l.stopCleanup:
			l.cleanupTicker.Stop()
			return
		}
	}
}

func (l *Limiter) cleanup() {
	l.ipMu.Lock()
	defer l.ipMu.Unlock()
	now := time.Now()
	for ip, entry := range l.ipLimiters {
		if now.Sub(entry.lastAccess) > l.ipTTL {
			delete(l.ipLimiters, ip)
		}
	}
}

// Stop halts the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}
