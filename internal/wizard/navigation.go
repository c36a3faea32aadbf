package wizard

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/steps"
)

// UpdateStepData merges p into the record for its step, creating the record
// if needed.
func (w *Wizard) UpdateStepData(p steps.Patch) error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return ErrClosed
	}
	return w.applyLocked(p)
}

// EditStep applies a named edit to the current step's record.
func (w *Wizard) EditStep(verb string, args []string) error {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return ErrClosed
	}
	id := steps.Catalogue()[w.cur].ID
	panel, ok := steps.PanelFor(id)
	if !ok {
		return ErrUnknownStep
	}
	p, err := panel.Edit(w.data[id], verb, args)
	if err != nil {
		return fmt.Errorf("%s %s: %w", id, verb, err)
	}
	return w.applyLocked(p)
}

func (w *Wizard) applyLocked(p steps.Patch) error {
	id := p.Step()
	if steps.IndexOf(id) < 0 || steps.IsTerminal(id) {
		return ErrUnknownStep
	}
	rec, err := p.Merge(w.data[id])
	if err != nil {
		return fmt.Errorf("update %s: %w", id, err)
	}
	w.data[id] = rec
	w.emitLocked("info", "step.updated", map[string]interface{}{
		"step_id":   string(id),
		"completed": rec.IsCompleted(),
	})
	w.changedLocked()
	return nil
}

// changedLocked runs after every data change: the generation moves, the
// validation pipeline sees the new snapshot and the active panel re-syncs
// against the new upstream context.
func (w *Wizard) changedLocked() {
	w.gen++
	w.validator.Set(snapshot{gen: w.gen, data: w.data.Clone()})
	w.rec.SetProgress(w.progressLocked())
	w.syncLocked()
}

// Advance moves to the next step if the current one is completed. It is a
// no-op at the terminal step.
func (w *Wizard) Advance() bool {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return false
	}
	defs := steps.Catalogue()
	cur := defs[w.cur].ID
	if steps.IsTerminal(cur) || !w.data.Completed(cur) {
		return false
	}
	w.moveLocked(w.cur + 1)
	w.emitLocked("info", "wizard.advance", map[string]interface{}{"from": string(cur), "to": string(defs[w.cur].ID)})
	return true
}

// Retreat moves back one step. Every record from the new current step
// onward is discarded.
func (w *Wizard) Retreat() bool {
	w.mu.Lock()
	defer w.unlock()
	if w.closed || w.cur == 0 {
		return false
	}
	from := steps.Catalogue()[w.cur].ID
	target := w.cur - 1
	w.discardLocked(target)
	w.moveLocked(target)
	w.emitLocked("info", "wizard.retreat", map[string]interface{}{"from": string(from), "to": string(steps.Catalogue()[target].ID)})
	return true
}

// SelectStep jumps to step i. Staying put, going back, or moving one step
// forward from a completed step are allowed; anything else is ignored.
// Going back discards every record after i.
func (w *Wizard) SelectStep(i int) bool {
	w.mu.Lock()
	defer w.unlock()
	if w.closed {
		return false
	}
	defs := steps.Catalogue()
	switch {
	case i == w.cur:
		return true
	case i >= 0 && i < w.cur:
		w.discardLocked(i + 1)
	case i == w.cur+1 && w.data.Completed(defs[w.cur].ID):
	default:
		w.log.Debug("step selection ignored", zap.Int("index", i), zap.Int("current", w.cur))
		return false
	}
	from := defs[w.cur].ID
	w.moveLocked(i)
	w.emitLocked("info", "wizard.select", map[string]interface{}{"from": string(from), "to": string(defs[i].ID)})
	return true
}

// discardLocked drops every record at index >= from.
func (w *Wizard) discardLocked(from int) {
	defs := steps.Catalogue()
	changed := false
	for i := from; i < len(defs); i++ {
		id := defs[i].ID
		if _, ok := w.data[id]; !ok {
			continue
		}
		delete(w.data, id)
		changed = true
		w.emitLocked("info", "step.discarded", map[string]interface{}{"step_id": string(id)})
	}
	if changed {
		w.gen++
		w.validator.Set(snapshot{gen: w.gen, data: w.data.Clone()})
		w.rec.SetProgress(w.progressLocked())
	}
}

func (w *Wizard) moveLocked(i int) {
	w.cur = i
	if w.opened {
		w.mountLocked()
	}
}
