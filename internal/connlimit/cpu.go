package connlimit

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
)

// CPUGovernor thresholds gate new connection admission separately from the
// token-bucket limiter: above RejectThreshold ShouldReject reports true and
// the WebSocket upgrade handler refuses new upgrades; above PauseThreshold
// ShouldPause reports true, which nothing in this module consults.
type CPUGovernor struct {
	rejectThreshold float64
	pauseThreshold  float64
	interval        time.Duration

	current int64 // percent * 100, stored atomically
	stop    chan struct{}
	logger  zerolog.Logger
}

// NewCPUGovernor starts a background sampling loop over the process's CPU
// usage percentage, sampled every interval via gopsutil (cgroup-aware on
// Linux: gopsutil reads /proc and cgroup CPU accounting directly, so no
// separate cgroup-file parsing is needed here — the teacher's main.go
// cgroup.go did that by hand only because it targeted memory limits).
func NewCPUGovernor(rejectThreshold, pauseThreshold float64, interval time.Duration, logger zerolog.Logger) *CPUGovernor {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	g := &CPUGovernor{
		rejectThreshold: rejectThreshold,
		pauseThreshold:  pauseThreshold,
		interval:        interval,
		stop:            make(chan struct{}),
		logger:          logger.With().Str("component", "cpu_governor").Logger(),
	}
	go g.sampleLoop()
	return g
}

func (g *CPUGovernor) sampleLoop() {
	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			percents, err := cpu.Percent(0, false)
			if err != nil || len(percents) == 0 {
				continue
			}
			atomic.StoreInt64(&g.current, int64(percents[0]*100))
		case <-g.stop:
			return
		}
	}
}

// CurrentPercent returns the last sampled CPU usage percentage.
func (g *CPUGovernor) CurrentPercent() float64 {
	return float64(atomic.LoadInt64(&g.current)) / 100
}

// ShouldReject reports whether new connection upgrades should be refused.
func (g *CPUGovernor) ShouldReject() bool {
	return g.CurrentPercent() >= g.rejectThreshold
}

// ShouldPause reports whether existing write traffic should back off.
func (g *CPUGovernor) ShouldPause() bool {
	return g.CurrentPercent() >= g.pauseThreshold
}

// Stop halts the sampling loop.
func (g *CPUGovernor) Stop() {
	close(g.stop)
}
