package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pureharvest_notifications_created_total",
			Help: "Total number of notification records created",
		},
		[]string{"type"},
	)

	// ChannelDeliveries counts best-effort channel sends by channel (in_app|email|sms) and result (success|failure|skipped).
	ChannelDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pureharvest_notification_deliveries_total",
			Help: "Total number of channel delivery attempts",
		},
		[]string{"channel", "result"},
	)

	// FanoutRecipients observes how many records a single fan-out produced.
	FanoutRecipients = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pureharvest_notification_fanout_recipients",
			Help:    "Recipients notified per fan-out call",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 500, 1000},
		},
		[]string{"kind"},
	)

	// EventsConsumed counts marketplace events read from the broker by type and result.
	EventsConsumed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pureharvest_events_consumed_total",
			Help: "Total number of marketplace events consumed",
		},
		[]string{"type", "result"},
	)

	// NotificationsPurged counts read notifications removed by the retention job.
	NotificationsPurged = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pureharvest_notifications_purged_total",
			Help: "Total number of read notifications removed by retention",
		},
	)

	// RealtimeConnections tracks open websocket connections.
	RealtimeConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pureharvest_realtime_connections",
			Help: "Number of open realtime connections",
		},
	)

	// HTTPInFlight tracks requests currently being served.
	HTTPInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pureharvest_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pureharvest_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
