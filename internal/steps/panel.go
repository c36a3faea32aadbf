package steps

import "encoding/json"

// SuggestionRequest is the body sent to the per-step recommendation
// endpoints.
type SuggestionRequest struct {
	ProblemStatement string `json:"problem_statement"`
	ChallengeType    string `json:"challenge_type,omitempty"`
}

// Panel is the logic behind one step's form. It knows which recommendation
// endpoint feeds it, how to turn a suggestion into a patch, and how to turn
// user edits into patches. Panels hold no state of their own.
type Panel interface {
	Step() ID
	// Endpoint is the recommendation endpoint, or "" when the step is not
	// fed by one.
	Endpoint() string
	// Request returns the request payload and whether fetching is enabled
	// for the given upstream context.
	Request(up Upstream) (payload any, enabled bool)
	// Suggest converts a suggestion into a patch, but only when the field
	// the suggestion would populate is still absent from prev.
	Suggest(prev Record, raw json.RawMessage) (Patch, bool)
	// Accept converts a suggestion into a patch unconditionally.
	Accept(raw json.RawMessage) (Patch, bool)
	// Edit applies a named user edit.
	Edit(prev Record, verb string, args []string) (Patch, error)
}

var panels = map[ID]Panel{
	ProblemScoping:           scopingPanel{},
	ChallengeType:            challengeTypePanel{},
	AudienceRegistration:     audiencePanel{},
	SubmissionRequirements:   submissionPanel{},
	PrizeConfiguration:       prizePanel{},
	TimelineMilestones:       timelinePanel{},
	EvaluationCriteria:       evaluationPanel{},
	CommunicationsMonitoring: communicationsPanel{},
}

// PanelFor returns the panel for a step. The terminal step has none.
func PanelFor(id ID) (Panel, bool) {
	p, ok := panels[id]
	return p, ok
}

// Commentary extracts the aiCommentary string carried by most suggestions.
func Commentary(raw json.RawMessage) string {
	var c struct {
		AICommentary string `json:"aiCommentary"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &c) != nil {
		return ""
	}
	return c.AICommentary
}

// requestBoth is the enablement shared by every panel after challenge-type:
// both the problem statement and the selected type must be known.
func requestBoth(up Upstream) (any, bool) {
	req := SuggestionRequest{ProblemStatement: up.ProblemStatement, ChallengeType: up.ChallengeType}
	return req, up.ProblemStatement != "" && up.ChallengeType != ""
}

func decode[T any](raw json.RawMessage) (T, bool) {
	var v T
	if len(raw) == 0 || string(raw) == "null" {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}
