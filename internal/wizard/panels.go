package wizard

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/recommend"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
)

// mount is one visit to a step. A fresh mount, with a fresh fetcher, is
// created every time the current index changes.
type mount struct {
	id       steps.ID
	panel    steps.Panel
	fetcher  *recommend.Fetcher
	consumed bool
}

func (w *Wizard) mountLocked() {
	if w.active != nil {
		w.retireLocked(w.active)
		w.active = nil
	}
	id := steps.Catalogue()[w.cur].ID
	if id == steps.ProblemScoping && w.session != nil {
		w.session.Remount()
	}
	panel, ok := steps.PanelFor(id)
	if !ok {
		return
	}
	m := &mount{id: id, panel: panel}
	if ep := panel.Endpoint(); ep != "" {
		m.fetcher = recommend.New(w.ai, ep,
			recommend.WithOnData(func(gen uint64, raw json.RawMessage) { w.onSuggestion(m, gen, raw) }),
			recommend.WithNotifier(w.notifier),
			recommend.WithRecorder(w.rec),
			recommend.WithLogger(w.log.Named("recommend")),
			recommend.WithFields(map[string]interface{}{"session_id": w.sessionID, "step_id": string(id)}))
	}
	w.active = m
	w.syncLocked()
}

// retireLocked unmounts m. Its fetcher drops any late result. Only fetchers
// with a request still running are kept for Close to wait on.
func (w *Wizard) retireLocked(m *mount) {
	live := w.retired[:0]
	for _, f := range w.retired {
		if f.Busy() {
			live = append(live, f)
		}
	}
	w.retired = live
	if m.fetcher == nil {
		return
	}
	m.fetcher.Close()
	if m.fetcher.Busy() {
		w.retired = append(w.retired, m.fetcher)
	}
}

// syncLocked re-evaluates the active fetcher's enablement. The fetcher's
// latch keeps repeated syncs from issuing more than one request.
func (w *Wizard) syncLocked() {
	m := w.active
	if m == nil || m.fetcher == nil {
		return
	}
	payload, enabled := m.panel.Request(steps.UpstreamOf(w.data))
	m.fetcher.Sync(w.ctx, enabled, payload)
}

// onSuggestion consumes the first suggestion a mount receives. The panel
// only produces a patch when the field it would fill is still empty, so
// manual edits are never overwritten. A result from before the latest
// refresh is dropped.
func (w *Wizard) onSuggestion(m *mount, gen uint64, raw json.RawMessage) {
	w.mu.Lock()
	defer w.unlock()
	if w.closed || w.active != m || m.consumed || gen != m.fetcher.Generation() {
		return
	}
	m.consumed = true
	p, ok := m.panel.Suggest(w.data[m.id], raw)
	if !ok {
		return
	}
	if err := w.applyLocked(p); err != nil {
		w.log.Warn("suggestion rejected", zap.String("step_id", string(m.id)), zap.Error(err))
		return
	}
	w.emitLocked("info", "recommend.applied", map[string]interface{}{"step_id": string(m.id), "explicit": false})
}

// Suggestion returns the fetch state for id. Only the current step has one.
func (w *Wizard) Suggestion(id steps.ID) recommend.State {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.active == nil || w.active.id != id || w.active.fetcher == nil {
		return recommend.State{}
	}
	return w.active.fetcher.State()
}

// AcceptSuggestion applies the current step's suggestion over whatever the
// user has entered.
func (w *Wizard) AcceptSuggestion() error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return ErrClosed
	}
	m := w.active
	if m == nil || m.fetcher == nil {
		return ErrNoSuggestion
	}
	raw := m.fetcher.State().Data
	p, ok := m.panel.Accept(raw)
	if !ok {
		return ErrNoSuggestion
	}
	if err := w.applyLocked(p); err != nil {
		return err
	}
	w.emitLocked("info", "recommend.applied", map[string]interface{}{"step_id": string(m.id), "explicit": true})
	return nil
}

// RefreshSuggestions clears the current step's suggestion and fetches it
// again, exactly once.
func (w *Wizard) RefreshSuggestions() error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return ErrClosed
	}
	m := w.active
	if m == nil || m.fetcher == nil {
		return ErrNoSuggestion
	}
	m.fetcher.Reset()
	m.consumed = false
	w.emitLocked("info", "recommend.reset", map[string]interface{}{"step_id": string(m.id), "endpoint": m.fetcher.Endpoint()})
	w.syncLocked()
	return nil
}

// SubmitFeedback reports a problem with the suggestion whose commentary is
// given.
func (w *Wizard) SubmitFeedback(commentary, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		w.notifier.Notify("warning", "Feedback Required", "Please enter your feedback before submitting.")
		return ErrEmptyFeedback
	}
	w.mu.Lock()
	id := steps.Catalogue()[w.cur].ID
	w.mu.Unlock()

	w.emit("info", "suggestion.feedback", map[string]interface{}{
		"step_id":    string(id),
		"suggestion": commentary,
		"feedback":   text,
	})
	w.notifier.Notify("success", "Feedback Submitted", "Thank you for helping us improve our AI suggestions.")
	return nil
}

// ImpactPreview returns how challenge type typeID would play out for the
// current problem statement. Results are cached per type; concurrent calls
// for the same type share one request. Failures are not cached.
func (w *Wizard) ImpactPreview(ctx context.Context, typeID string) (string, error) {
	info, ok := steps.LookupType(typeID)
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownType, typeID)
	}
	key := strings.ToLower(typeID)

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return "", ErrClosed
	}
	if p, ok := w.previews[key]; ok {
		w.mu.Unlock()
		return p, nil
	}
	problem := steps.UpstreamOf(w.data).ProblemStatement
	w.mu.Unlock()

	v, err, _ := w.impacts.Do(key, func() (interface{}, error) {
		w.mu.Lock()
		p, ok := w.previews[key]
		w.mu.Unlock()
		if ok {
			return p, nil
		}
		w.notifier.Notify("info", "Generating impact preview...", info.Name)
		w.emit("info", "impact.requested", map[string]interface{}{"challenge_type": key})
		preview, err := w.ai.ImpactPreview(ctx, problem, key)
		if err != nil {
			return "", err
		}
		w.mu.Lock()
		if !w.closed {
			w.previews[key] = preview
		}
		w.mu.Unlock()
		return preview, nil
	})
	if err != nil {
		w.log.Warn("impact preview failed", zap.String("challenge_type", key), zap.Error(err))
		w.emit("warn", "impact.failed", map[string]interface{}{"challenge_type": key, "error": err.Error()})
		w.notifier.Notify("error", "Error generating impact preview", err.Error())
		return "", err
	}
	return v.(string), nil
}
