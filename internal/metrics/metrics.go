package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	retries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "retries_total",
			Help:      "Retry attempts by operation.",
		},
		[]string{"op"},
	)

	breakerRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "breaker_rejected_total",
			Help:      "Calls rejected by an open circuit breaker.",
		},
		[]string{"op"},
	)

	remoteCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "remote_calls_total",
			Help:      "Gateway calls by account and outcome.",
		},
		[]string{"account", "outcome"},
	)

	gatewayTokens = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vendorsync",
			Name:      "gateway_tokens",
			Help:      "Current token bucket level per account.",
		},
		[]string{"account"},
	)

	gatewayQueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "vendorsync",
			Name:      "gateway_queue_depth",
			Help:      "Pending calls per account gateway.",
		},
		[]string{"account"},
	)

	jobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "jobs_total",
			Help:      "Jobs by kind and terminal status.",
		},
		[]string{"kind", "status"},
	)

	conflicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "vendorsync",
			Name:      "conflicts_total",
			Help:      "Conflict resolutions by recommended action.",
		},
		[]string{"action"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			httpRequests,
			retries,
			breakerRejected,
			remoteCalls,
			gatewayTokens,
			gatewayQueueDepth,
			jobs,
			conflicts,
		)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncRetry counts one backoff retry for an operation.
func IncRetry(op string) {
	retries.WithLabelValues(op).Inc()
}

// IncBreakerRejected counts a call rejected by an open breaker.
func IncBreakerRejected(op string) {
	breakerRejected.WithLabelValues(op).Inc()
}

// IncRemoteCall counts a gateway call outcome ("ok", "error" or
// "rate_limited").
func IncRemoteCall(account, outcome string) {
	remoteCalls.WithLabelValues(account, outcome).Inc()
}

// SetGatewayTokens records the current bucket level for an account.
func SetGatewayTokens(account string, tokens int) {
	gatewayTokens.WithLabelValues(account).Set(float64(tokens))
}

// SetGatewayQueueDepth records the pending queue length for an account.
func SetGatewayQueueDepth(account string, depth int) {
	gatewayQueueDepth.WithLabelValues(account).Set(float64(depth))
}

// IncJob counts a job reaching a terminal status.
func IncJob(kind, status string) {
	jobs.WithLabelValues(kind, status).Inc()
}

// IncConflict counts a reconciliation outcome by recommended action.
func IncConflict(action string) {
	conflicts.WithLabelValues(action).Inc()
}
