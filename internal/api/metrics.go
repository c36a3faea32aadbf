package api

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/version"
)

// monitorRegistry holds the metrics the monitor itself derives from the
// event stream and its clients.
func (s *Server) monitorRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name:        "wizard_uptime_seconds",
			Help:        "Number of seconds since the wizard process started",
			ConstLabels: prometheus.Labels{"version": version.Version},
		}, func() float64 { return time.Since(s.started).Seconds() }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Name: "wizard_events_total",
			Help: "Total number of events emitted since startup",
		}, func() float64 { return float64(events.TotalCount()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "wizard_monitor_ws_clients",
			Help: "Number of active monitor WebSocket connections",
		}, func() float64 { return float64(events.SubscriberCount()) }),
	)
	return reg
}

func (s *Server) metricsHandler() http.Handler {
	gatherers := append(prometheus.Gatherers{s.monitorRegistry()}, s.gatherers...)
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
