package steps

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

var SubmissionOptions = []Option{
	{ID: "document", Label: "Written Document", Description: "Text-based proposals or reports"},
	{ID: "presentation", Label: "Pitch Deck", Description: "Slide presentation or pitch"},
	{ID: "video", Label: "Video Pitch", Description: "Video demonstration or explanation"},
	{ID: "prototype", Label: "Working Prototype", Description: "Functional demo or mockup"},
	{ID: "design", Label: "Visual Design", Description: "Images, mockups, or wireframes"},
	{ID: "concept", Label: "Concept Only", Description: "Brief idea description"},
}

// FieldSpec describes one field of the AI-generated submission form.
type FieldSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
}

// SubmissionRecord is the submission-requirements step. Values holds the
// answers to the fields described by Schema.
type SubmissionRecord struct {
	Types        []string             `json:"types"`
	Deliverables string               `json:"deliverables,omitempty"`
	Schema       map[string]FieldSpec `json:"schema,omitempty"`
	Values       map[string]string    `json:"values,omitempty"`
	Completed    bool                 `json:"completed"`
}

func (r *SubmissionRecord) StepID() ID { return SubmissionRequirements }
func (r *SubmissionRecord) IsCompleted() bool { return r.Completed }

func (r *SubmissionRecord) Clone() Record {
	c := *r
	c.Types = cloneStrings(r.Types)
	if r.Schema != nil {
		c.Schema = make(map[string]FieldSpec, len(r.Schema))
		for k, v := range r.Schema {
			c.Schema[k] = v
		}
	}
	if r.Values != nil {
		c.Values = make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			c.Values[k] = v
		}
	}
	return &c
}

// MissingFields lists required schema fields without a value, sorted.
func (r *SubmissionRecord) MissingFields() []string {
	var missing []string
	for name, f := range r.Schema {
		if f.Required && strings.TrimSpace(r.Values[name]) == "" {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

// SubmissionPatch updates the submission record. Values are merged key by
// key into the existing answers.
type SubmissionPatch struct {
	Types        []string
	Deliverables *string
	Schema       map[string]FieldSpec
	Values       map[string]string
}

func (p SubmissionPatch) Step() ID { return SubmissionRequirements }

func (p SubmissionPatch) Merge(prev Record) (Record, error) {
	r := &SubmissionRecord{}
	if prev != nil {
		old, ok := prev.(*SubmissionRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*SubmissionRecord)
	}
	if p.Types != nil {
		r.Types = cloneStrings(p.Types)
	}
	if p.Deliverables != nil {
		r.Deliverables = *p.Deliverables
	}
	if p.Schema != nil {
		r.Schema = make(map[string]FieldSpec, len(p.Schema))
		for k, v := range p.Schema {
			r.Schema[k] = v
		}
	}
	if len(p.Values) > 0 {
		if r.Values == nil {
			r.Values = make(map[string]string, len(p.Values))
		}
		for k, v := range p.Values {
			r.Values[k] = v
		}
	}
	r.Completed = len(r.Types) > 0
	return r, nil
}

type submissionSuggestion struct {
	Types        []string             `json:"types"`
	Instructions string               `json:"instructions"`
	Schema       map[string]FieldSpec `json:"schema"`
}

type submissionPanel struct{}

func (submissionPanel) Step() ID { return SubmissionRequirements }
func (submissionPanel) Endpoint() string { return "submission-recommendations" }
func (submissionPanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p submissionPanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if r, ok := prev.(*SubmissionRecord); ok && r.Types != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (submissionPanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[submissionSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := SubmissionPatch{Types: s.Types, Deliverables: &s.Instructions, Schema: s.Schema}
	if p.Types == nil {
		p.Types = []string{}
	}
	return p, true
}

func (submissionPanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*SubmissionRecord)
	if r == nil {
		r = &SubmissionRecord{}
	}
	switch verb {
	case "toggle":
		if len(args) != 1 || !validOption(SubmissionOptions, args[0]) {
			return nil, fmt.Errorf("toggle: unknown submission type")
		}
		return SubmissionPatch{Types: toggle(r.Types, args[0])}, nil
	case "deliverables":
		d := strings.Join(args, " ")
		return SubmissionPatch{Deliverables: &d}, nil
	case "set":
		if len(args) < 1 {
			return nil, fmt.Errorf("set: want <field> <value>")
		}
		if _, ok := r.Schema[args[0]]; !ok {
			return nil, fmt.Errorf("set: unknown form field %q", args[0])
		}
		return SubmissionPatch{Values: map[string]string{args[0]: strings.Join(args[1:], " ")}}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}
