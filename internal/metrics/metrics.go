package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Call outcomes recorded by ProviderCalls.
const (
	OutcomeSuccess = "success"
	OutcomeEmpty   = "empty"
	OutcomeError   = "error"
	OutcomeStale   = "stale"
)

type Metrics struct {
	ProviderCalls  *prometheus.CounterVec
	APIErrors      *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
	ResultsPerCall *prometheus.HistogramVec
	InFlight       prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		ProviderCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_provider_calls_total",
			Help: "Total number of geocoding provider calls by outcome.",
		}, []string{"provider", "method", "outcome"}),
		APIErrors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "geocoding_provider_api_errors_total",
			Help: "Total number of errors received from the geocoding provider API.",
		}, []string{"provider"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_request_duration_seconds",
			Help:    "Duration of requests to the geocoding provider API.",
			Buckets: prometheus.DefBuckets,
		}, []string{"provider", "method"}),
		ResultsPerCall: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "geocoding_provider_results",
			Help:    "Number of results returned per successful provider call.",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"provider", "method"}),
		InFlight: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "geocoding_requests_in_flight",
			Help: "Current number of provider calls waiting for a response.",
		}),
	}
}
