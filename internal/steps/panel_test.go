package steps

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func panel(t *testing.T, id ID) Panel {
	t.Helper()
	p, ok := PanelFor(id)
	require.True(t, ok, "no panel for %s", id)
	return p
}

func TestPanelsCoverEveryNonTerminalStep(t *testing.T) {
	for _, d := range Catalogue() {
		_, ok := PanelFor(d.ID)
		assert.Equal(t, !IsTerminal(d.ID), ok, d.ID)
	}
}

func TestRequestEnablement(t *testing.T) {
	ct := panel(t, ChallengeType)
	_, enabled := ct.Request(Upstream{})
	assert.False(t, enabled)
	payload, enabled := ct.Request(Upstream{ProblemStatement: "p"})
	assert.True(t, enabled)
	assert.Equal(t, SuggestionRequest{ProblemStatement: "p"}, payload)

	aud := panel(t, AudienceRegistration)
	_, enabled = aud.Request(Upstream{ProblemStatement: "p"})
	assert.False(t, enabled)
	payload, enabled = aud.Request(Upstream{ProblemStatement: "p", ChallengeType: "ideation"})
	assert.True(t, enabled)

	b, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"problem_statement":"p","challenge_type":"ideation"}`, string(b))
}

func TestChallengeTypeSuggestionRanksAndSelects(t *testing.T) {
	raw := json.RawMessage(`{"recommendations":[
		{"id":"ideation","confidence":0.4},
		{"id":"unknown","confidence":0.99},
		{"id":"rtp","confidence":0.8,"aiCommentary":"build it"}
	],"aiCommentary":"two good fits"}`)

	p, ok := panel(t, ChallengeType).Suggest(nil, raw)
	require.True(t, ok)
	r := merge(t, p, nil).(*ChallengeTypeRecord)

	require.Len(t, r.Recommendations, 2)
	assert.Equal(t, "rtp", r.Recommendations[0].ID)
	assert.Equal(t, 0.8, r.Recommendations[0].Weight)
	assert.Equal(t, "rtp", r.SelectedType)
	require.NotNil(t, r.SelectedTypeDetails)
	assert.Equal(t, "The Prototype", r.SelectedTypeDetails.Name)
	assert.True(t, r.Completed)
	assert.Equal(t, "two good fits", Commentary(raw))

	_, ok = panel(t, ChallengeType).Suggest(r, raw)
	assert.False(t, ok, "suggestion must not overwrite existing recommendations")
}

func TestReweightResorts(t *testing.T) {
	r := merge(t, ChallengeTypePatch{Recommendations: []TypeRecommendation{
		{ID: "rtp", Confidence: 0.8, Weight: 0.8},
		{ID: "ideation", Confidence: 0.4, Weight: 0.4},
	}}, nil)

	p, err := panel(t, ChallengeType).Edit(r, "weight", []string{"ideation", "0.9"})
	require.NoError(t, err)
	got := merge(t, p, r).(*ChallengeTypeRecord)
	assert.Equal(t, "ideation", got.Recommendations[0].ID)
	assert.Equal(t, "", got.SelectedType)
}

func TestSuggestOnlyWhenFieldAbsent(t *testing.T) {
	raw := json.RawMessage(`{"audiences":["global"],"participationType":"team","aiCommentary":"go wide"}`)
	aud := panel(t, AudienceRegistration)

	p, ok := aud.Suggest(nil, raw)
	require.True(t, ok)
	r := merge(t, p, nil).(*AudienceRecord)
	assert.Equal(t, []string{"global"}, r.Audiences)
	assert.Equal(t, "team", r.ParticipationType)

	manual := merge(t, AudiencePatch{Audiences: []string{"internal"}}, nil)
	_, ok = aud.Suggest(manual, raw)
	assert.False(t, ok)

	p, ok = aud.Accept(raw)
	require.True(t, ok)
	assert.Equal(t, []string{"global"}, merge(t, p, manual).(*AudienceRecord).Audiences)
}

func TestSuggestIgnoresNullOrMalformed(t *testing.T) {
	for _, id := range []ID{ChallengeType, AudienceRegistration, SubmissionRequirements, PrizeConfiguration, TimelineMilestones, EvaluationCriteria, CommunicationsMonitoring} {
		p := panel(t, id)
		_, ok := p.Suggest(nil, json.RawMessage(`null`))
		assert.False(t, ok, id)
		_, ok = p.Suggest(nil, json.RawMessage(`[1,2`))
		assert.False(t, ok, id)
	}
}

func TestSubmissionSuggestion(t *testing.T) {
	raw := json.RawMessage(`{"types":["document","video"],"instructions":"Send a 2 page brief",
		"schema":{"brief":{"type":"string","description":"Brief","required":true}}}`)
	p, ok := panel(t, SubmissionRequirements).Suggest(nil, raw)
	require.True(t, ok)
	r := merge(t, p, nil).(*SubmissionRecord)
	assert.Equal(t, "Send a 2 page brief", r.Deliverables)
	assert.True(t, r.Completed)
	assert.Equal(t, []string{"brief"}, r.MissingFields())

	p, err := panel(t, SubmissionRequirements).Edit(r, "set", []string{"brief", "two", "pages"})
	require.NoError(t, err)
	r = merge(t, p, r).(*SubmissionRecord)
	assert.Equal(t, "two pages", r.Values["brief"])
	assert.Empty(t, r.MissingFields())
}

func TestPrizeSuggestionAcceptsNumericBudget(t *testing.T) {
	raw := json.RawMessage(`{"prizeType":"monetary","totalBudget":10000,
		"prizes":[{"position":"1st Place","amount":6000,"description":"Winner"}],"recognitionPlan":"Blog post"}`)
	p, ok := panel(t, PrizeConfiguration).Suggest(nil, raw)
	require.True(t, ok)
	r := merge(t, p, nil).(*PrizeRecord)
	assert.Equal(t, FlexString("10000"), r.TotalBudget)
	assert.Equal(t, FlexString("6000"), r.Prizes[0].Amount)
	assert.True(t, r.Monetary())

	_, ok = panel(t, PrizeConfiguration).Suggest(r, raw)
	assert.False(t, ok)
}

func TestEvaluationSuggestionUsesScoringModel(t *testing.T) {
	raw := json.RawMessage(`{"scoringModel":"weighted","criteria":[{"name":"Impact","weight":50},{"name":"Feasibility","weight":"50"}]}`)
	p, ok := panel(t, EvaluationCriteria).Suggest(nil, raw)
	require.True(t, ok)
	r := merge(t, p, nil).(*EvaluationRecord)
	assert.Equal(t, 100.0, r.TotalWeight())
	assert.True(t, r.Completed)
}

func TestEditVerbs(t *testing.T) {
	ev := panel(t, EvaluationCriteria)
	var r Record
	for _, step := range [][]string{
		{"add"}, {"add"},
		{"criterion", "0", "name", "Impact"},
		{"criterion", "0", "weight", "70"},
		{"criterion", "1", "weight", "30"},
	} {
		p, err := ev.Edit(r, step[0], step[1:])
		require.NoError(t, err, step)
		r = merge(t, p, r)
	}
	assert.True(t, r.IsCompleted())

	p, err := ev.Edit(r, "remove", []string{"1"})
	require.NoError(t, err)
	r = merge(t, p, r)
	assert.False(t, r.IsCompleted())

	_, err = ev.Edit(r, "remove", []string{"5"})
	assert.Error(t, err)

	_, err = ev.Edit(r, "explode", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedEdit))

	_, err = panel(t, ProblemScoping).Edit(nil, "anything", nil)
	assert.True(t, errors.Is(err, ErrUnsupportedEdit))
}

func TestCommunicationsToggleKeepsDefaults(t *testing.T) {
	cm := panel(t, CommunicationsMonitoring)
	p, err := cm.Edit(nil, "channel", []string{"email"})
	require.NoError(t, err)
	r := merge(t, p, nil).(*CommunicationsRecord)
	assert.True(t, r.Completed)

	p, err = cm.Edit(r, "metric", []string{"participation"})
	require.NoError(t, err)
	r = merge(t, p, r).(*CommunicationsRecord)
	assert.Equal(t, []string{"engagement"}, r.Metrics)

	_, err = cm.Edit(r, "frequency", []string{"hourly"})
	assert.Error(t, err)
}
