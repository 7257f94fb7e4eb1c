package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pprelay_webhook_requests_total",
		Help: "Inbound webhook requests, labelled by status (success, unauthorized, error).",
	}, []string{"status"})

	Deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pprelay_deliveries_total",
		Help: "Notification deliveries, labelled by sink and status.",
	}, []string{"sink", "status"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pprelay_token_refreshes_total",
		Help: "Vendor access token issuance attempts, labelled by status.",
	}, []string{"status"})

	GatewayCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pprelay_gateway_calls_total",
		Help: "Vendor read calls, labelled by endpoint and status.",
	}, []string{"endpoint", "status"})

	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pprelay_tick_duration_ms",
		Help:    "Duration of one periodic notification cycle in milliseconds.",
		Buckets: []float64{10, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
	})

	TickFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pprelay_tick_failures_total",
		Help: "Isolated failures inside a periodic cycle, labelled by stage.",
	}, []string{"stage"})

	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pprelay_subscribers",
		Help: "Current number of subscribed chats.",
	})
)
