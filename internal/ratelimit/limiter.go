// Package ratelimit implements the fixed-window-per-IP rate limiter
// described in spec.md §4.J. The bookkeeping shape (map-of-key + RWMutex +
// periodic sweeper goroutine) is grounded on
// _examples/adred-codev-ws_poc/ws/internal/shared/limits/connection_rate_limiter.go,
// but the algorithm itself is a 60-second fixed window with a burst
// multiplier, not that file's golang.org/x/time/rate token bucket — the
// two are semantically different and spec.md is explicit about the
// window-reset behavior (see DESIGN.md).
package ratelimit

import (
	"sync"
	"time"
)

const windowDuration = 60 * time.Second

type entry struct {
	count       int
	windowStart time.Time
}

// Limiter is one fixed-window-per-IP instance. Independent instances exist
// per concern (paint / tiles / global / websocket-messages /
// websocket-upgrades / auth), per spec.md §4.J.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry

	rpm       int
	burst     int
	enabled   bool
	now       func() time.Time
	stopSweep chan struct{}
	sweepOnce sync.Once
}

// Config configures one Limiter instance.
type Config struct {
	RPM        int
	Multiplier float64
	Enabled    bool
}

// New builds a Limiter with its burst precomputed as rpm * multiplier and
// starts its background sweeper.
func New(cfg Config) *Limiter {
	burst := int(float64(cfg.RPM) * cfg.Multiplier)
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{
		entries:   make(map[string]*entry),
		rpm:       cfg.RPM,
		burst:     burst,
		enabled:   cfg.Enabled,
		now:       time.Now,
		stopSweep: make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Result reports the outcome of an Allow check.
type Result struct {
	Allowed    bool
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
}

// Allow checks and, if allowed, increments the fixed-window counter for
// key (spec.md §4.J: "if now - window_start >= 60s, reset to 0 and now; if
// count < burst, accept and increment").
func (l *Limiter) Allow(key string) Result {
	if !l.enabled {
		return Result{Allowed: true, Remaining: l.burst}
	}

	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[key]
	if !ok || now.Sub(e.windowStart) >= windowDuration {
		e = &entry{count: 0, windowStart: now}
		l.entries[key] = e
	}

	resetAt := e.windowStart.Add(windowDuration)
	if e.count < l.burst {
		e.count++
		return Result{Allowed: true, Remaining: l.burst - e.count, ResetAt: resetAt}
	}
	return Result{Allowed: false, Remaining: 0, ResetAt: resetAt, RetryAfter: resetAt.Sub(now)}
}

// sweepLoop evicts stale entries every 60s, the same cadence the window
// itself resets on (spec.md §4.J "A background sweeper evicts entries with
// window_start older than 60s every 60s").
func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(windowDuration)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopSweep:
			return
		}
	}
}

func (l *Limiter) sweep() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, e := range l.entries {
		if now.Sub(e.windowStart) >= windowDuration {
			delete(l.entries, k)
		}
	}
}

// Stop halts the background sweeper. Safe to call multiple times.
func (l *Limiter) Stop() {
	l.sweepOnce.Do(func() { close(l.stopSweep) })
}
