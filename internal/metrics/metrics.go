// Package metrics declares the Prometheus instruments exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedFetches counts upstream fetch attempts by result
	// ("success", "error", "invalid", "rejected").
	FeedFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warframe_feed_fetches_total",
			Help: "Upstream world-state fetch attempts by result",
		},
		[]string{"result"},
	)

	FeedCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warframe_feed_cache_hits_total",
			Help: "Snapshot requests served from the cache",
		},
	)

	// BreakerState is 0 closed, 1 half-open, 2 open.
	BreakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "warframe_feed_breaker_state",
			Help: "Upstream circuit breaker state (0 closed, 1 half-open, 2 open)",
		},
	)

	NotifyCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "warframe_notify_cycles_total",
			Help: "Notification cycles by outcome",
		},
		[]string{"outcome"},
	)

	NotifyCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "warframe_notify_cycle_duration_seconds",
			Help:    "Duration of a notification cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	NotificationsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warframe_notifications_sent_total",
			Help: "Fissure notifications delivered to the transport",
		},
	)

	NotificationsFailed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warframe_notifications_failed_total",
			Help: "Fissure notifications the transport rejected",
		},
	)

	SubscriberErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "warframe_subscriber_errors_total",
			Help: "Subscribers skipped in a cycle because processing failed",
		},
	)
)
