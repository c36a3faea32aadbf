package steps

import (
	"encoding/json"
	"fmt"
	"strings"
)

var PrizeOptions = []Option{
	{ID: "monetary", Label: "Monetary Prizes", Description: "Cash rewards for winners"},
	{ID: "recognition", Label: "Recognition Only", Description: "Certificates and public recognition"},
	{ID: "mixed", Label: "Mixed Rewards", Description: "Combination of monetary and non-monetary"},
	{ID: "none", Label: "No Prizes", Description: "Participation-driven challenge"},
}

// Prize is one awarded position.
type Prize struct {
	Position    string     `json:"position"`
	Amount      FlexString `json:"amount"`
	Description string     `json:"description"`
}

// PrizeRecord is the prize-configuration step.
type PrizeRecord struct {
	PrizeType       string     `json:"prizeType"`
	TotalBudget     FlexString `json:"totalBudget"`
	Prizes          []Prize    `json:"prizes"`
	RecognitionPlan string     `json:"recognitionPlan"`
	Completed       bool       `json:"completed"`
}

func (r *PrizeRecord) StepID() ID { return PrizeConfiguration }
func (r *PrizeRecord) IsCompleted() bool { return r.Completed }

func (r *PrizeRecord) Clone() Record {
	c := *r
	if r.Prizes != nil {
		c.Prizes = append([]Prize{}, r.Prizes...)
	}
	return &c
}

// Monetary reports whether the prize type carries cash amounts.
func (r *PrizeRecord) Monetary() bool {
	return r.PrizeType == "monetary" || r.PrizeType == "mixed"
}

// PrizePatch updates the prize record. The step is complete as soon as it
// has been touched.
type PrizePatch struct {
	PrizeType       *string
	TotalBudget     *string
	Prizes          []Prize
	RecognitionPlan *string
}

func (p PrizePatch) Step() ID { return PrizeConfiguration }

func (p PrizePatch) Merge(prev Record) (Record, error) {
	r := &PrizeRecord{
		PrizeType: "recognition",
		Prizes:    []Prize{{Position: "1st Place"}},
	}
	if prev != nil {
		old, ok := prev.(*PrizeRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*PrizeRecord)
	}
	if p.PrizeType != nil {
		r.PrizeType = *p.PrizeType
	}
	if p.TotalBudget != nil {
		r.TotalBudget = FlexString(*p.TotalBudget)
	}
	if p.Prizes != nil {
		r.Prizes = append([]Prize{}, p.Prizes...)
	}
	if p.RecognitionPlan != nil {
		r.RecognitionPlan = *p.RecognitionPlan
	}
	r.Completed = true
	return r, nil
}

type prizeSuggestion struct {
	PrizeType       string     `json:"prizeType"`
	TotalBudget     FlexString `json:"totalBudget"`
	Prizes          []Prize    `json:"prizes"`
	RecognitionPlan string     `json:"recognitionPlan"`
}

type prizePanel struct{}

func (prizePanel) Step() ID { return PrizeConfiguration }
func (prizePanel) Endpoint() string { return "prize-recommendations" }
func (prizePanel) Request(up Upstream) (any, bool) { return requestBoth(up) }

func (p prizePanel) Suggest(prev Record, raw json.RawMessage) (Patch, bool) {
	if prev != nil {
		return nil, false
	}
	return p.Accept(raw)
}

func (prizePanel) Accept(raw json.RawMessage) (Patch, bool) {
	s, ok := decode[prizeSuggestion](raw)
	if !ok {
		return nil, false
	}
	p := PrizePatch{Prizes: s.Prizes}
	if s.PrizeType != "" {
		p.PrizeType = &s.PrizeType
	}
	budget := string(s.TotalBudget)
	p.TotalBudget = &budget
	p.RecognitionPlan = &s.RecognitionPlan
	return p, true
}

func (prizePanel) Edit(prev Record, verb string, args []string) (Patch, error) {
	r, _ := prev.(*PrizeRecord)
	if r == nil {
		r = (PrizePatch{}).mustCreate()
	}
	switch verb {
	case "type":
		if len(args) != 1 || !validOption(PrizeOptions, args[0]) {
			return nil, fmt.Errorf("type: want monetary, recognition, mixed or none")
		}
		return PrizePatch{PrizeType: &args[0]}, nil
	case "budget":
		if len(args) != 1 {
			return nil, fmt.Errorf("budget: want <amount>")
		}
		return PrizePatch{TotalBudget: &args[0]}, nil
	case "recognition":
		plan := strings.Join(args, " ")
		return PrizePatch{RecognitionPlan: &plan}, nil
	case "add":
		prizes := append(append([]Prize{}, r.Prizes...), Prize{})
		return PrizePatch{Prizes: prizes}, nil
	case "remove":
		if len(args) != 1 {
			return nil, fmt.Errorf("remove: want <index>")
		}
		i, err := parseIndex(args[0], len(r.Prizes))
		if err != nil {
			return nil, fmt.Errorf("remove: %w", err)
		}
		prizes := append(append([]Prize{}, r.Prizes[:i]...), r.Prizes[i+1:]...)
		return PrizePatch{Prizes: prizes}, nil
	case "prize":
		if len(args) < 3 {
			return nil, fmt.Errorf("prize: want <index> position|amount|description <value>")
		}
		i, err := parseIndex(args[0], len(r.Prizes))
		if err != nil {
			return nil, fmt.Errorf("prize: %w", err)
		}
		prizes := append([]Prize{}, r.Prizes...)
		v := strings.Join(args[2:], " ")
		switch args[1] {
		case "position":
			prizes[i].Position = v
		case "amount":
			prizes[i].Amount = FlexString(v)
		case "description":
			prizes[i].Description = v
		default:
			return nil, fmt.Errorf("prize: unknown field %q", args[1])
		}
		return PrizePatch{Prizes: prizes}, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedEdit, verb)
}

func (p PrizePatch) mustCreate() *PrizeRecord {
	r, _ := p.Merge(nil)
	return r.(*PrizeRecord)
}
