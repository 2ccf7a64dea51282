// Package metrics holds the Prometheus collectors shared by all services.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "inkspira"

// HTTP metrics, labelled by service and chi route pattern.
//
//nolint:gochecknoglobals
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"service", "method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "route"},
	)
)

// Domain metrics.
//
//nolint:gochecknoglobals
var (
	// RepositoryOperationsTotal counts repository calls by entity, operation and
	// result variant ("success", "error").
	RepositoryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "repository_operations_total",
			Help:      "Repository operations by entity, operation and outcome",
		},
		[]string{"entity", "op", "result"},
	)

	// MediaUploadedBytes counts bytes of newly stored media.
	MediaUploadedBytes = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_uploaded_bytes_total",
			Help:      "Bytes of media stored",
		},
	)

	// MediaVariantsTotal counts resized variants by cache outcome ("hit", "miss").
	MediaVariantsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_variants_total",
			Help:      "Resized media variant requests by cache outcome",
		},
		[]string{"cache"},
	)

	// AuthEventsTotal counts auth events ("register", "login", "refresh", ...) by outcome.
	AuthEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_events_total",
			Help:      "Authentication events by kind and outcome",
		},
		[]string{"event", "result"},
	)
)

// Outcome returns the "result" label for err.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}

	return "success"
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
