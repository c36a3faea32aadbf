// Package metrics records wizard activity for Prometheus.
package metrics

import "time"

// Outcome labels shared by the request metrics.
const (
	OutcomeSuccess   = "success"
	OutcomeError     = "error"
	OutcomeDiscarded = "discarded"
)

// Recorder defines the interface for recording wizard metrics.
type Recorder interface {
	// ObserveRecommendation records one recommendation request.
	ObserveRecommendation(endpoint, outcome string, duration time.Duration)

	// ObserveValidation records one validation round trip.
	ObserveValidation(outcome string, duration time.Duration)

	// IncScopeExtraction counts scopes extracted from the conversation.
	IncScopeExtraction()

	// SetProgress publishes the wizard completion percentage.
	SetProgress(percent float64)

	// IncLaunch counts launch attempts per sink.
	IncLaunch(sink, outcome string)
}

// NoopRecorder implements Recorder with no-op behavior for when metrics are disabled.
type NoopRecorder struct{}

// Nop returns a no-op metrics recorder that discards all metrics.
func Nop() Recorder {
	return NoopRecorder{}
}

func (NoopRecorder) ObserveRecommendation(_, _ string, _ time.Duration) {}
func (NoopRecorder) ObserveValidation(_ string, _ time.Duration) {}
func (NoopRecorder) IncScopeExtraction() {}
func (NoopRecorder) SetProgress(_ float64) {}
func (NoopRecorder) IncLaunch(_, _ string) {}
