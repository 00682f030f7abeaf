// Package metrics holds the Prometheus instruments of the upload service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Upload outcome labels.
const (
	OutcomeInitiated = "initiated"
	OutcomeUploaded  = "uploaded"
	OutcomeFailed    = "failed"
)

// Counter metrics
var (
	// UploadsTotal counts lifecycle transitions by outcome.
	UploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidphotos_uploads_total",
			Help: "Total number of upload lifecycle transitions",
		},
		[]string{"outcome"},
	)

	// VerificationFailuresTotal counts completions rejected after checking storage.
	VerificationFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidphotos_verification_failures_total",
			Help: "Total number of upload completions that failed verification",
		},
		[]string{"reason"},
	)

	// LimitRejectionsTotal counts requests refused by a global limit.
	LimitRejectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidphotos_limit_rejections_total",
			Help: "Total number of requests rejected by global limits",
		},
		[]string{"kind"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rapidphotos_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
)

// Histogram metrics
var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rapidphotos_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	// StorageOperationDuration tracks object storage round trips by operation.
	StorageOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "rapidphotos_storage_operation_duration_seconds",
			Help:    "Object storage operation latency in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"operation"},
	)

	// UploadSizeBytes is observed for every verified upload.
	UploadSizeBytes = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name: "rapidphotos_upload_size_bytes",
			Help: "Distribution of verified upload sizes in bytes",
			Buckets: []float64{
				102400,     // 100 KB
				1048576,    // 1 MB
				10485760,   // 10 MB
				104857600,  // 100 MB
				1073741824, // 1 GB
			},
		},
	)
)

// HealthStatus is 1 while every readiness probe passes and 0 otherwise.
var HealthStatus = promauto.NewGauge(
	prometheus.GaugeOpts{
		Name: "rapidphotos_health_status",
		Help: "Current readiness (0=not serving, 1=serving)",
	},
)
