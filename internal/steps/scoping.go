package steps

import (
	"encoding/json"

	"github.com/AaronLay10/ChallengeWizard/internal/transcript"
)

// ScopingRecord is the outcome of the conversational problem-scoping step.
type ScopingRecord struct {
	Messages         []transcript.Message `json:"messages,omitempty"`
	RefinedStatement string               `json:"refinedStatement,omitempty"`
	ProblemStatement string               `json:"problemStatement,omitempty"`
	ChallengeType    string               `json:"challengeType,omitempty"`
	Completed        bool                 `json:"completed"`
}

func (r *ScopingRecord) StepID() ID { return ProblemScoping }
func (r *ScopingRecord) IsCompleted() bool { return r.Completed }

func (r *ScopingRecord) Clone() Record {
	c := *r
	c.Messages = append([]transcript.Message(nil), r.Messages...)
	return &c
}

// ScopingPatch updates the scoping record. Completion is set explicitly by
// the scoping session; nil fields are left unchanged.
type ScopingPatch struct {
	Messages         []transcript.Message
	RefinedStatement *string
	ProblemStatement *string
	ChallengeType    *string
	Completed        *bool
}

func (p ScopingPatch) Step() ID { return ProblemScoping }

func (p ScopingPatch) Merge(prev Record) (Record, error) {
	r := &ScopingRecord{}
	if prev != nil {
		old, ok := prev.(*ScopingRecord)
		if !ok {
			return nil, ErrStepMismatch
		}
		r = old.Clone().(*ScopingRecord)
	}
	if p.Messages != nil {
		r.Messages = append([]transcript.Message(nil), p.Messages...)
	}
	if p.RefinedStatement != nil {
		r.RefinedStatement = *p.RefinedStatement
	}
	if p.ProblemStatement != nil {
		r.ProblemStatement = *p.ProblemStatement
	}
	if p.ChallengeType != nil {
		r.ChallengeType = *p.ChallengeType
	}
	if p.Completed != nil {
		r.Completed = *p.Completed
	}
	return r, nil
}

// scopingPanel has no recommendation endpoint; its data arrives through the
// conversational session.
type scopingPanel struct{}

func (scopingPanel) Step() ID { return ProblemScoping }
func (scopingPanel) Endpoint() string { return "" }
func (scopingPanel) Request(Upstream) (any, bool) { return nil, false }
func (scopingPanel) Suggest(Record, json.RawMessage) (Patch, bool) { return nil, false }
func (scopingPanel) Accept(json.RawMessage) (Patch, bool) { return nil, false }

func (scopingPanel) Edit(Record, string, []string) (Patch, error) {
	return nil, ErrUnsupportedEdit
}
