// Package metrics defines the Prometheus collectors exposed by the
// service. Rewritten fresh against this domain's counters — the
// teacher's ws/metrics.go names (ws_connections_total,
// ws_dropped_broadcasts_total, ...) are Kafka-relay-specific — but the
// collector shapes (Counter, CounterVec, Gauge, HistogramVec) and the
// promhttp.Handler() wiring are grounded on that file.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry bundles every collector the service exports.
type Registry struct {
	TilesServed           *prometheus.CounterVec
	TileCacheHits         prometheus.Counter
	TileCacheMisses       prometheus.Counter
	PaintsApplied         *prometheus.CounterVec
	PaintRejected         *prometheus.CounterVec
	CreditsDenied         prometheus.Counter
	SubscriptionsActive   prometheus.Gauge
	SubscriptionEvictions prometheus.Counter
	BroadcastDropped      *prometheus.CounterVec
	BroadcastReceivers    prometheus.Gauge
	ConnectionsActive     prometheus.Gauge
	ConnectionsRejected   *prometheus.CounterVec
	EncodeLatency         prometheus.Histogram
	CPUUsagePercent       prometheus.Gauge
}

// New registers every collector against a fresh prometheus.Registry.
func New() (*Registry, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	r := &Registry{
		TilesServed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelcanvas_tiles_served_total",
			Help: "Tile image responses served, by source (cache/durable/empty).",
		}, []string{"source"}),
		TileCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelcanvas_tile_cache_hits_total",
			Help: "Tile image cache hits.",
		}),
		TileCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelcanvas_tile_cache_misses_total",
			Help: "Tile image cache misses.",
		}),
		PaintsApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelcanvas_paints_applied_total",
			Help: "Paint batches successfully applied, by world.",
		}, []string{"world"}),
		PaintRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelcanvas_paints_rejected_total",
			Help: "Paint batches rejected, by reason.",
		}, []string{"reason"}),
		CreditsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelcanvas_credits_denied_total",
			Help: "Paint attempts denied for insufficient credits.",
		}),
		SubscriptionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelcanvas_subscriptions_active",
			Help: "Currently held tile subscriptions across all IPs.",
		}),
		SubscriptionEvictions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pixelcanvas_subscription_evictions_total",
			Help: "Tile subscriptions evicted by the FIFO policy.",
		}),
		BroadcastDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelcanvas_broadcast_dropped_total",
			Help: "Broadcast events dropped by receiver policy.",
		}, []string{"policy"}),
		BroadcastReceivers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelcanvas_broadcast_receivers",
			Help: "Currently attached broadcast fabric receivers.",
		}),
		ConnectionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelcanvas_connections_active",
			Help: "Currently open WebSocket connections.",
		}),
		ConnectionsRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pixelcanvas_connections_rejected_total",
			Help: "Connection upgrades rejected, by reason.",
		}, []string{"reason"}),
		EncodeLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "pixelcanvas_encode_latency_seconds",
			Help:    "WebP encode latency.",
			Buckets: prometheus.DefBuckets,
		}),
		CPUUsagePercent: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pixelcanvas_cpu_usage_percent",
			Help: "Sampled process CPU usage percentage.",
		}),
	}

	reg.MustRegister(
		r.TilesServed, r.TileCacheHits, r.TileCacheMisses,
		r.PaintsApplied, r.PaintRejected, r.CreditsDenied,
		r.SubscriptionsActive, r.SubscriptionEvictions,
		r.BroadcastDropped, r.BroadcastReceivers,
		r.ConnectionsActive, r.ConnectionsRejected,
		r.EncodeLatency, r.CPUUsagePercent,
	)
	return r, reg
}

// Handler returns the HTTP handler Prometheus scrapes.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
