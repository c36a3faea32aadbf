package steps

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strp(s string) *string { return &s }

func merge(t *testing.T, p Patch, prev Record) Record {
	t.Helper()
	r, err := p.Merge(prev)
	require.NoError(t, err)
	require.Equal(t, p.Step(), r.StepID())
	return r
}

func TestCatalogueOrder(t *testing.T) {
	defs := Catalogue()
	require.Len(t, defs, 9)
	assert.Equal(t, ProblemScoping, defs[0].ID)
	assert.Equal(t, ReviewLaunch, defs[8].ID)
	assert.True(t, IsTerminal(defs[8].ID))
	assert.False(t, IsTerminal(ProblemScoping))
	assert.Equal(t, 5, IndexOf(TimelineMilestones))
	assert.Equal(t, -1, IndexOf("nope"))

	defs[0].Title = "mutated"
	assert.Equal(t, "Problem Scoping", Catalogue()[0].Title)

	for _, d := range defs {
		_, ok := HelpFor(d.ID)
		assert.True(t, ok, "missing help for %s", d.ID)
	}
}

func TestMergeRejectsWrongVariant(t *testing.T) {
	_, err := AudiencePatch{}.Merge(&PrizeRecord{})
	assert.True(t, errors.Is(err, ErrStepMismatch))
}

func TestMergeDoesNotMutatePrevious(t *testing.T) {
	first := merge(t, AudiencePatch{Audiences: []string{"internal"}}, nil).(*AudienceRecord)
	second := merge(t, AudiencePatch{Audiences: []string{"internal", "global"}}, first).(*AudienceRecord)

	assert.Equal(t, []string{"internal"}, first.Audiences)
	assert.Equal(t, []string{"internal", "global"}, second.Audiences)
}

func TestCompletionRules(t *testing.T) {
	tests := []struct {
		name  string
		patch Patch
		want  bool
	}{
		{"type selected", SelectType("ideation"), true},
		{"no type", ChallengeTypePatch{Recommendations: []TypeRecommendation{}}, false},
		{"audience chosen", AudiencePatch{Audiences: []string{"global"}}, true},
		{"audience empty", AudiencePatch{Audiences: []string{}}, false},
		{"submission chosen", SubmissionPatch{Types: []string{"video"}}, true},
		{"submission empty", SubmissionPatch{Deliverables: strp("a pdf")}, false},
		{"prize touched", PrizePatch{}, true},
		{"timeline both dates", TimelinePatch{StartDate: strp("2025-01-01"), EndDate: strp("2025-02-01")}, true},
		{"timeline start only", TimelinePatch{StartDate: strp("2025-01-01")}, false},
		{"weighted at 100", EvaluationPatch{Criteria: []Criterion{{Name: "a", Weight: 60}, {Name: "b", Weight: 40}}}, true},
		{"weighted at 90", EvaluationPatch{Criteria: []Criterion{{Name: "a", Weight: 50}, {Name: "b", Weight: 40}}}, false},
		{"checklist", EvaluationPatch{Model: strp("checklist")}, true},
		{"comms defaults no channel", CommunicationsPatch{}, false},
		{"comms channel", CommunicationsPatch{Channels: []string{"email"}}, true},
		{"comms no metrics", CommunicationsPatch{Channels: []string{"email"}, Metrics: []string{}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := merge(t, tt.patch, nil)
			assert.Equal(t, tt.want, r.IsCompleted())
		})
	}
}

func TestDefaultsMaterialisedOnFirstWrite(t *testing.T) {
	a := merge(t, AudiencePatch{}, nil).(*AudienceRecord)
	assert.Equal(t, "individual", a.ParticipationType)

	p := merge(t, PrizePatch{}, nil).(*PrizeRecord)
	assert.Equal(t, "recognition", p.PrizeType)
	assert.Equal(t, []Prize{{Position: "1st Place"}}, p.Prizes)

	e := merge(t, EvaluationPatch{}, nil).(*EvaluationRecord)
	assert.Equal(t, "weighted", e.Model)

	c := merge(t, CommunicationsPatch{Channels: []string{"social"}}, nil).(*CommunicationsRecord)
	assert.Equal(t, []string{"participation", "engagement"}, c.Metrics)
	assert.Equal(t, "weekly", c.ReportingFrequency)
}

func TestScopingCompletionIsExplicit(t *testing.T) {
	done := true
	r := merge(t, ScopingPatch{ProblemStatement: strp("x"), Completed: &done}, nil)
	assert.True(t, r.IsCompleted())

	undone := false
	r = merge(t, ScopingPatch{Completed: &undone}, r)
	assert.False(t, r.IsCompleted())
	assert.Equal(t, "x", r.(*ScopingRecord).ProblemStatement)
}

func TestTimelineDuration(t *testing.T) {
	tests := []struct {
		start, end, want string
	}{
		{"2025-01-01", "2025-01-31", "30 days"},
		{"2025-01-01", "2025-01-01", "0 days"},
		{"2025-01-01T00:00:00Z", "2025-01-02T06:00:00Z", "2 days"},
		{"2025-02-01", "2025-01-01", ""},
		{"", "2025-01-01", ""},
		{"garbage", "2025-01-01", ""},
	}
	for _, tt := range tests {
		r := &TimelineRecord{StartDate: tt.start, EndDate: tt.end}
		assert.Equal(t, tt.want, r.Duration(), "%s..%s", tt.start, tt.end)
	}
}

func TestSubmissionMissingFields(t *testing.T) {
	r := merge(t, SubmissionPatch{
		Types: []string{"document"},
		Schema: map[string]FieldSpec{
			"summary":  {Type: "string", Description: "Summary", Required: true},
			"abstract": {Type: "string", Required: true},
			"links":    {Type: "text"},
		},
	}, nil).(*SubmissionRecord)
	assert.Equal(t, []string{"abstract", "summary"}, r.MissingFields())

	r = merge(t, SubmissionPatch{Values: map[string]string{"summary": "done"}}, r).(*SubmissionRecord)
	assert.Equal(t, []string{"abstract"}, r.MissingFields())
}

func TestDecodeDataRoundTrip(t *testing.T) {
	done := true
	d := Data{}
	d[ProblemScoping] = merge(t, ScopingPatch{ProblemStatement: strp("slow onboarding"), Completed: &done}, nil)
	d[ChallengeType] = merge(t, SelectType("rtp"), nil)
	d[PrizeConfiguration] = merge(t, PrizePatch{TotalBudget: strp("5000")}, nil)
	d[EvaluationCriteria] = merge(t, EvaluationPatch{Criteria: []Criterion{{Name: "impact", Weight: 100}}}, nil)

	b, err := json.Marshal(d)
	require.NoError(t, err)

	got, err := DecodeData(b)
	require.NoError(t, err)
	if diff := cmp.Diff(d, got); diff != "" {
		t.Fatalf("decoded data mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, Upstream{ProblemStatement: "slow onboarding", ChallengeType: "rtp"}, UpstreamOf(got))
}

func TestDecodeDataUnknownStep(t *testing.T) {
	_, err := DecodeData([]byte(`{"bogus":{}}`))
	assert.Error(t, err)
}

func TestFlexStringAndWeightDecode(t *testing.T) {
	var p Prize
	require.NoError(t, json.Unmarshal([]byte(`{"position":"1st","amount":2500}`), &p))
	assert.Equal(t, FlexString("2500"), p.Amount)

	var c Criterion
	require.NoError(t, json.Unmarshal([]byte(`{"name":"x","weight":"35"}`), &c))
	assert.Equal(t, Weight(35), c.Weight)
}
