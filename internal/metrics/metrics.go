package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracks outbound calls to the routing API.
	RoutingAPIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "routing_api_requests_total",
			Help: "Total number of routing API requests (by chain and status).",
		},
		[]string{"chain_id", "status"},
	)

	// Measures duration of routing API requests.
	RoutingAPIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "routing_api_request_duration_seconds",
			Help:    "Duration of routing API requests in seconds.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms → ~16s
		},
		[]string{"chain_id"},
	)

	// Counts terminal acquisition outcomes.
	QuoteOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_outcomes_total",
			Help: "Quote acquisitions by terminal state and method.",
		},
		[]string{"state", "method"}, // method is empty for NOT_FOUND / ERROR
	)

	QuoteLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quote_latency_seconds",
			Help:    "End-to-end quote acquisition latency.",
			Buckets: prometheus.ExponentialBuckets(0.005, 2, 13), // 5ms → ~20s
		},
		[]string{"state"},
	)

	// Counts transitions into the local fallback, by the remote failure that caused them.
	QuoteFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_fallbacks_total",
			Help: "Number of acquisitions that fell back to the local engine.",
		},
		[]string{"reason"}, // transport | server | client | payload | panic
	)

	// Counts on-chain probe calls by protocol and result.
	OnchainProbes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "onchain_probe_total",
			Help: "On-chain quoter probes issued by the fallback engine.",
		},
		[]string{"protocol", "result"}, // result = ok | revert | error
	)

	// Tracks NATS messages published by subject and result.
	NATSMessageCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nats_messages_total",
			Help: "Total number of NATS messages published.",
		},
		[]string{"subject", "result"}, // result = "ok" | "error"
	)

	NATSMessageLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nats_message_latency_seconds",
			Help:    "Time taken to publish NATS messages",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"subject"},
	)

	// Tracks hits and misses on retained quote results.
	QuoteCacheAccess = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_cache_access_total",
			Help: "Number of hits/misses on the quote result store.",
		},
		[]string{"result"}, // hit | miss
	)

	// Tracks total errors (aggregated).
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "adapter_errors_total",
			Help: "Count of service-level errors by component.",
		},
		[]string{"component", "reason"},
	)

	// Gauges the last successful quote log prune (seconds since epoch).
	LastPruneTimestamp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "quote_log_last_prune_timestamp",
			Help: "Timestamp (unix seconds) of the last successful quote log prune.",
		},
	)
)

// ObserveDuration records the time taken for a function and updates the given histogram.
func ObserveDuration(v interface{}, start time.Time, labels ...string) {
	duration := time.Since(start).Seconds()

	switch metric := v.(type) {
	case *prometheus.HistogramVec:
		metric.WithLabelValues(labels...).Observe(duration)
	case *prometheus.SummaryVec:
		metric.WithLabelValues(labels...).Observe(duration)
	default:
		// silently ignore counters; they're not meant for duration tracking
	}
}

func IncRoutingAPIRequest(chainID, status string) {
	RoutingAPIRequestsTotal.WithLabelValues(chainID, status).Inc()
}

func IncQuoteOutcome(state, method string) {
	QuoteOutcomes.WithLabelValues(state, method).Inc()
}

func ObserveQuoteLatency(state string, ms float64) {
	QuoteLatency.WithLabelValues(state).Observe(ms / 1000)
}

func IncFallback(reason string) {
	QuoteFallbacks.WithLabelValues(reason).Inc()
}

func IncOnchainProbe(protocol, result string) {
	OnchainProbes.WithLabelValues(protocol, result).Inc()
}

func IncNATSMessage(subject, result string) {
	NATSMessageCount.WithLabelValues(subject, result).Inc()
}

func IncCacheAccess(result string) {
	QuoteCacheAccess.WithLabelValues(result).Inc()
}

func IncError(component, reason string) {
	ErrorsTotal.WithLabelValues(component, reason).Inc()
}

func SetLastPrune(t time.Time) {
	LastPruneTimestamp.Set(float64(t.Unix()))
}
