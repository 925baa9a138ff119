package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts personal notifications persisted, by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_notifications_created_total",
			Help: "Total number of personal notifications created",
		},
		[]string{"type"},
	)

	// NotificationsRead counts personal notifications transitioned to read, by source (single|all).
	NotificationsRead = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_notifications_read_total",
			Help: "Total number of personal notifications marked as read",
		},
		[]string{"source"},
	)

	// GlobalNotificationOps counts broadcast lifecycle operations (create|update|delete|expire).
	GlobalNotificationOps = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_global_notification_operations_total",
			Help: "Total number of global notification lifecycle operations",
		},
		[]string{"operation"},
	)

	// GlobalNotificationViews counts view records written, by action (view|dismiss|bulk) and result (recorded|rejected|error).
	GlobalNotificationViews = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_global_notification_views_total",
			Help: "Total number of global notification view upserts",
		},
		[]string{"action", "result"},
	)

	// RealtimeConnections tracks open websocket connections on this instance.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "estatevest_realtime_connections",
			Help: "Number of open realtime websocket connections",
		},
	)

	// EventsPublished counts outbound domain events by driver and result (success|failure).
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_events_published_total",
			Help: "Total number of domain events handed to the configured broker",
		},
		[]string{"driver", "result"},
	)

	// RoleChecks counts role gate decisions on admin routes.
	RoleChecks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "estatevest_role_checks_total",
			Help: "Total number of role gate evaluations",
		},
		[]string{"role", "result"},
	)

	// RateLimited counts requests rejected by the rate limiter.
	RateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "estatevest_rate_limited_requests_total",
			Help: "Total number of requests rejected with 429",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "estatevest_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
