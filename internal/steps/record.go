package steps

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrStepMismatch is returned when a patch targets a different step.
	ErrStepMismatch = errors.New("patch does not match step")
	// ErrUnsupportedEdit is returned for verbs a panel does not understand.
	ErrUnsupportedEdit = errors.New("unsupported edit")
)

// Record is the data collected for one step.
type Record interface {
	StepID() ID
	IsCompleted() bool
	Clone() Record
}

// Patch is a step-specific partial update. Merge combines it with the
// previous record (nil when the step has no data yet) and returns a new
// record with the completion flag recomputed.
type Patch interface {
	Step() ID
	Merge(prev Record) (Record, error)
}

// Data maps step ids to their records (the aggregate challenge data).
type Data map[ID]Record

// Clone returns a deep copy.
func (d Data) Clone() Data {
	out := make(Data, len(d))
	for id, r := range d {
		out[id] = r.Clone()
	}
	return out
}

// Completed reports whether the step has a completed record.
func (d Data) Completed(id ID) bool {
	r, ok := d[id]
	return ok && r.IsCompleted()
}

// Upstream is the read-only context later panels condition on.
type Upstream struct {
	ProblemStatement string
	ChallengeType    string
}

// UpstreamOf extracts the problem statement and selected challenge type.
func UpstreamOf(d Data) Upstream {
	var up Upstream
	if r, ok := d[ProblemScoping].(*ScopingRecord); ok {
		up.ProblemStatement = r.ProblemStatement
	}
	if r, ok := d[ChallengeType].(*ChallengeTypeRecord); ok {
		up.ChallengeType = r.SelectedType
	}
	return up
}

// DecodeData parses the JSON form of Data back into typed records.
func DecodeData(b []byte) (Data, error) {
	var raw map[ID]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("decode challenge data: %w", err)
	}
	out := make(Data, len(raw))
	for id, body := range raw {
		var rec Record
		switch id {
		case ProblemScoping:
			rec = &ScopingRecord{}
		case ChallengeType:
			rec = &ChallengeTypeRecord{}
		case AudienceRegistration:
			rec = &AudienceRecord{}
		case SubmissionRequirements:
			rec = &SubmissionRecord{}
		case PrizeConfiguration:
			rec = &PrizeRecord{}
		case TimelineMilestones:
			rec = &TimelineRecord{}
		case EvaluationCriteria:
			rec = &EvaluationRecord{}
		case CommunicationsMonitoring:
			rec = &CommunicationsRecord{}
		default:
			return nil, fmt.Errorf("decode challenge data: unknown step %q", id)
		}
		if err := json.Unmarshal(body, rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", id, err)
		}
		out[id] = rec
	}
	return out, nil
}

// FlexString accepts either a JSON string or number. AI suggestions are not
// consistent about budgets and amounts.
type FlexString string

func (f *FlexString) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*f = ""
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", string(b))
	}
	*f = FlexString(n.String())
	return nil
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	return append([]string{}, s...)
}

func toggle(list []string, id string) []string {
	out := make([]string, 0, len(list)+1)
	found := false
	for _, v := range list {
		if v == id {
			found = true
			continue
		}
		out = append(out, v)
	}
	if !found {
		out = append(out, id)
	}
	return out
}

func contains(list []string, id string) bool {
	for _, v := range list {
		if v == id {
			return true
		}
	}
	return false
}

func parseIndex(s string, n int) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid index %q: %w", s, err)
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("index %d out of range [0,%d)", i, n)
	}
	return i, nil
}
