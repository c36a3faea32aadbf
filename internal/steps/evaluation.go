package steps

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

var ScoringModels = []Option{
	{ID: "weighted", Label: "Weighted Scoring", Description: "Score submissions on multiple criteria with different weights"},
	{ID: "checklist", Label: "Checklist Evaluation", Description: "Pass/fail criteria for each requirement"},
	{ID: "feedback", Label: "Open Feedback", Description: "Qualitative feedback without numerical scores"},
}

// Weight is a criterion weight. It decodes from a number or a numeric
// string; anything unparsable counts as zero.
type Weight float64

func (w *Weight) UnmarshalJSON(b []byte) error {
	var f float64
	if err := json.Unmarshal(b, &f); err == nil {
		*w = Weight(f)
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		f, _ = strconv.ParseFloat(strings.TrimSpace(s), 64)
		*w = Weight(f)
		return nil
	}
	*w = 0
	return nil
}

// Criterion is one judging dimension.
type Criterion struct {
	Name        string `json:"name"`
	Weight      Weight `json:"weight"`
	Description string `json:"description"`
}

// EvaluationRecord is the evaluation-criteria step.
type EvaluationRecord struct {
	Model     string      `json:"model"`
	Criteria  []Criterion `json:"criteria"`
	Completed bool        `json:"completed"`
}

func (r *EvaluationRecord) StepID() ID { return EvaluationCriteria }
func (r *EvaluationRecord) IsCompleted() bool { return r.Completed }

func (r *EvaluationRecord) Clone() Record {
	c := *r
	if r.Criteria != nil {
		c.Criteria = append([]Criterion{}, r.Criteria...)
	}
	return &c
}

// TotalWeight sums the criterion weights.
func (r *EvaluationRecord) TotalWeight() float64 {
	var sum float64
	for _, c := range r.Criteria {
		sum += float64(c.Weight)
	}
	return sum
}

// EvaluationPatch updates the evaluation record.
type EvaluationPatch struct {
	Model    *string
	Criteria []Criterion
}

func (p EvaluationPatch) Step() ID { return EvaluationCriteria }

func (p EvaluationPatch) Merge(prev Record) (Record, error) {
	r := &EvaluationRecord{Model: "weighted"}
	if prev != nil {
		old, ok := prev.(*EvaluationRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*EvaluationRecord)
	}
	if p.Model != nil {
		r.Model = *p.Model
	}
	if p.Criteria != nil {
		r.Criteria = append([]Criterion{}, p.Criteria...)
	}
	r.Completed = r.Model != "weighted" || r.TotalWeight() == 100
	return r, nil
}

type evaluationSuggestion struct {
	ScoringModel string      `json:"scoringModel"`
	Criteria     []Criterion `json:"criteria"`
}

type evaluationPanel struct{}

func (evaluationPanel) Step() ID { return EvaluationCriteria }
func (evaluationPanel) Endpoint() string { return "evaluation-recommendations" }
func (evaluationPanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p evaluationPanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if prev != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (evaluationPanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[evaluationSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := EvaluationPatch{Criteria: s.Criteria}
	if s.ScoringModel != "" {
		p.Model = &s.ScoringModel
	}
	if p.Criteria == nil {
		p.Criteria = []Criterion{}
	}
	return p, true
}

func (evaluationPanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*EvaluationRecord)
	if r == nil {
		r = &EvaluationRecord{Model: "weighted"}
	}
	switch verb {
	case "model":
		if len(args) != 1 || !validOption(ScoringModels, args[0]) {
			return nil, fmt.Errorf("model: want weighted, checklist or feedback")
		}
		return EvaluationPatch{Model: &args[0]}, nil
	case "add":
		return EvaluationPatch{Criteria: append(append([]Criterion{}, r.Criteria...), Criterion{})}, nil
	case "remove":
		if len(args) != 1 {
			return nil, fmt.Errorf("remove: want <index>")
		}
		i, err := parseIndex(args[0], len(r.Criteria))
		if err != nil {
			return nil, fmt.Errorf("remove: %w", err)
		}
		cs := append(append([]Criterion{}, r.Criteria[:i]...), r.Criteria[i+1:]...)
		return EvaluationPatch{Criteria: cs}, nil
	case "criterion":
		if len(args) < 3 {
			return nil, fmt.Errorf("criterion: want <index> name|weight|description <value>")
		}
		i, err := parseIndex(args[0], len(r.Criteria))
		if err != nil {
			return nil, fmt.Errorf("criterion: %w", err)
		}
		cs := append([]Criterion{}, r.Criteria...)
		v := strings.Join(args[2:], " ")
		switch args[1] {
		case "name":
			cs[i].Name = v
		case "weight":
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, fmt.Errorf("criterion weight: %w", err)
			}
			cs[i].Weight = Weight(f)
		case "description":
			cs[i].Description = v
		default:
			return nil, fmt.Errorf("criterion: unknown field %q", args[1])
		}
		return EvaluationPatch{Criteria: cs}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}
