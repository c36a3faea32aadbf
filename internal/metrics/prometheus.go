package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusRecorder implements the Recorder interface using Prometheus metrics.
type PrometheusRecorder struct {
	recommendationsTotal   *prometheus.CounterVec
	recommendationDuration *prometheus.HistogramVec
	validationsTotal       *prometheus.CounterVec
	validationDuration     prometheus.Histogram
	scopeExtractions       prometheus.Counter
	progress               prometheus.Gauge
	launchesTotal          *prometheus.CounterVec
}

// NewPrometheusRecorder registers the wizard metrics with reg. A nil reg
// uses the default registerer.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &PrometheusRecorder{
		recommendationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_recommendation_requests_total",
				Help: "Total number of AI recommendation requests by endpoint and outcome",
			},
			[]string{"endpoint", "outcome"},
		),
		recommendationDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "wizard_recommendation_duration_seconds",
				Help:    "Duration of AI recommendation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		validationsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_validation_requests_total",
				Help: "Total number of challenge validation requests by outcome",
			},
			[]string{"outcome"},
		),
		validationDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "wizard_validation_duration_seconds",
				Help:    "Duration of challenge validation requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		scopeExtractions: f.NewCounter(
			prometheus.CounterOpts{
				Name: "wizard_scope_extractions_total",
				Help: "Total number of problem scopes extracted from the conversation",
			},
		),
		progress: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "wizard_progress_percent",
				Help: "Share of non-terminal steps completed",
			},
		),
		launchesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "wizard_launches_total",
				Help: "Total number of challenge launch deliveries by sink and outcome",
			},
			[]string{"sink", "outcome"},
		),
	}
}

// ObserveRecommendation records metrics for a completed recommendation request.
func (p *PrometheusRecorder) ObserveRecommendation(endpoint, outcome string, duration time.Duration) {
	p.recommendationsTotal.WithLabelValues(endpoint, outcome).Inc()
	p.recommendationDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// ObserveValidation records metrics for a completed validation request.
func (p *PrometheusRecorder) ObserveValidation(outcome string, duration time.Duration) {
	p.validationsTotal.WithLabelValues(outcome).Inc()
	p.validationDuration.Observe(duration.Seconds())
}

// IncScopeExtraction increments the scope extraction counter.
func (p *PrometheusRecorder) IncScopeExtraction() {
	p.scopeExtractions.Inc()
}

// SetProgress sets the progress gauge.
func (p *PrometheusRecorder) SetProgress(percent float64) {
	p.progress.Set(percent)
}

// IncLaunch increments the launch counter.
func (p *PrometheusRecorder) IncLaunch(sink, outcome string) {
	p.launchesTotal.WithLabelValues(sink, outcome).Inc()
}
