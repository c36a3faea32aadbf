package wizard

import (
	"bytes"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
)

// snapshot is what the debouncer stabilises: the data as of one generation.
type snapshot struct {
	gen  uint64
	data steps.Data
}

type validationState struct {
	issues  []string
	last    []byte // body of the last validation request
	seq     uint64 // requests issued
	applied uint64 // newest request that has resolved
}

// ValidationIssues returns the warnings from the latest validation.
func (w *Wizard) ValidationIssues() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string{}, w.val.issues...)
}

// FlushValidation validates the pending snapshot now instead of waiting for
// the quiet window.
func (w *Wizard) FlushValidation() {
	w.validator.Flush()
}

// validate runs when the data has been stable for the quiet window. Empty
// data and data identical to the last request are skipped.
func (w *Wizard) validate(s snapshot) {
	if len(s.data) == 0 {
		return
	}
	body, err := json.Marshal(s.data)
	if err != nil {
		w.log.Error("failed to encode challenge data", zap.Error(err))
		return
	}

	w.mu.Lock()
	if w.closed || bytes.Equal(body, w.val.last) {
		w.mu.Unlock()
		return
	}
	w.val.last = body
	w.val.seq++
	seq := w.val.seq
	ctx := w.ctx
	w.wg.Add(1)
	w.mu.Unlock()

	w.emit("info", "validate.requested", map[string]interface{}{"generation": s.gen})
	go func() {
		defer w.wg.Done()
		start := time.Now()
		warnings, err := w.ai.Validate(ctx, json.RawMessage(body))
		elapsed := time.Since(start)

		w.mu.Lock()
		if w.closed || seq <= w.val.applied {
			w.mu.Unlock()
			w.rec.ObserveValidation(metrics.OutcomeDiscarded, elapsed)
			return
		}
		w.val.applied = seq
		if err != nil {
			// The same data must be retried once it settles again.
			if bytes.Equal(w.val.last, body) {
				w.val.last = nil
			}
			w.mu.Unlock()
			w.rec.ObserveValidation(metrics.OutcomeError, elapsed)
			w.log.Warn("validation failed", zap.Error(err))
			w.emit("warn", "validate.failed", map[string]interface{}{"error": err.Error()})
			return
		}
		w.val.issues = append([]string{}, warnings...)
		w.mu.Unlock()

		w.rec.ObserveValidation(metrics.OutcomeSuccess, elapsed)
		w.emit("info", "validate.completed", map[string]interface{}{"warnings": len(warnings)})
	}()
}
