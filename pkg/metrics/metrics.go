// Package metrics holds the prometheus collectors of the reporting pipeline.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reportoor"

// Outcomes of a consumed message.
const (
	OutcomeAcked        = "acked"
	OutcomeRetried      = "retried"
	OutcomeDeadLettered = "dead_lettered"
)

var (
	publishedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "producer",
			Name:      "published_total",
			Help:      "Count of reporting messages published, by queue.",
		},
		[]string{"queue"},
	)
	rejectedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "producer",
			Name:      "rejected_total",
			Help:      "Count of reporting requests rejected before publishing, by queue and error type.",
		},
		[]string{"queue", "error_type"},
	)
	consumedCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "messages_total",
			Help:      "Count of consumed reporting messages, by queue and outcome.",
		},
		[]string{"queue", "outcome"},
	)
	handleDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "consumer",
			Name:      "handle_duration_seconds",
			Help:      "Time spent materializing one reporting message, by queue.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		},
		[]string{"queue"},
	)
	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Count of HTTP requests, by method and status code.",
		},
		[]string{"method", "code"},
	)
)

var registerMetrics sync.Once

// Register adds every collector to the default registry. Safe to call more
// than once.
func Register() {
	registerMetrics.Do(func() {
		prometheus.MustRegister(
			publishedCounter,
			rejectedCounter,
			consumedCounter,
			handleDuration,
			httpRequests,
		)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordPublished counts a message published to queue.
func RecordPublished(queue string) {
	publishedCounter.WithLabelValues(queue).Inc()
}

// RecordRejected counts a request for queue rejected with errorType.
func RecordRejected(queue, errorType string) {
	rejectedCounter.WithLabelValues(queue, errorType).Inc()
}

// RecordConsumed counts a consumed message and how long it took to handle.
func RecordConsumed(queue, outcome string, took time.Duration) {
	consumedCounter.WithLabelValues(queue, outcome).Inc()
	handleDuration.WithLabelValues(queue).Observe(took.Seconds())
}

// RecordHTTPRequest counts a served HTTP request.
func RecordHTTPRequest(method, code string) {
	httpRequests.WithLabelValues(method, code).Inc()
}
