package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_notifications_total",
			Help: "Pipeline outcomes by notification kind and result",
		},
		[]string{"kind", "result"},
	)

	GatewayRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_gateway_requests_total",
			Help: "Requests sent to the messaging gateway by result",
		},
		[]string{"result"},
	)

	GatewayRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "notifier_gateway_request_duration_seconds",
			Help:    "Duration of messaging gateway requests",
			Buckets: prometheus.DefBuckets,
		},
	)

	DiscoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_discovery_attempts_total",
			Help: "Gateway discovery attempts by result",
		},
		[]string{"result"},
	)

	InboundEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifier_inbound_events_total",
			Help: "Lifecycle events received by source and type",
		},
		[]string{"source", "type"},
	)
)

// Register registers all collectors with the default registry. Call once.
func Register() {
	prometheus.MustRegister(Notifications)
	prometheus.MustRegister(GatewayRequests)
	prometheus.MustRegister(GatewayRequestDuration)
	prometheus.MustRegister(DiscoveryAttempts)
	prometheus.MustRegister(InboundEvents)
}

func ObserveGatewayRequest(result string, d time.Duration) {
	GatewayRequests.WithLabelValues(result).Inc()
	GatewayRequestDuration.Observe(d.Seconds())
}
