package scoping

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/transcript"
)

type fakeSender struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (f *fakeSender) Send(role, content string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, role+": "+content)
	return nil
}

// fakeSink merges patches the same way the wizard does.
type fakeSink struct {
	mu       sync.Mutex
	rec      steps.Record
	advances int
}

func (f *fakeSink) UpdateStepData(p steps.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, err := p.Merge(f.rec)
	if err != nil {
		return err
	}
	f.rec = r
	return nil
}

func (f *fakeSink) Advance() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.advances++
	return true
}

func (f *fakeSink) record(t *testing.T) *steps.ScopingRecord {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotNil(t, f.rec)
	return f.rec.(*steps.ScopingRecord)
}

func newSession() (*Session, *transcript.Log, *fakeSender, *fakeSink) {
	tr := transcript.New()
	snd := &fakeSender{}
	sink := &fakeSink{}
	return New(tr, snd, sink), tr, snd, sink
}

const scopeFrame = `{"message":"ok","work_scope":{"description":"Reduce Churn","type":"ideation"}}`

func TestSubmitSendsAndWaits(t *testing.T) {
	s, tr, snd, _ := newSession()
	s.SetInput("draft")

	require.NoError(t, s.Submit("  we lose customers  "))

	assert.Equal(t, AwaitingReply, s.State())
	assert.Equal(t, "", s.Input())
	assert.Equal(t, []string{"user: we lose customers"}, snd.sent)
	last, ok := tr.Last()
	require.True(t, ok)
	assert.Equal(t, transcript.RoleUser, last.Role)
	assert.Equal(t, "we lose customers", last.Content)
}

func TestSubmitRejectsBlank(t *testing.T) {
	s, tr, snd, _ := newSession()
	assert.ErrorIs(t, s.Submit("   "), ErrEmptyMessage)
	assert.Equal(t, 0, tr.Len())
	assert.Empty(t, snd.sent)
	assert.Equal(t, Idle, s.State())
}

func TestFrameWithoutScopeKeepsWaiting(t *testing.T) {
	s, tr, _, sink := newSession()
	require.NoError(t, s.Submit("hello"))

	s.HandleFrame([]byte(`{"message":"tell me more"}`))
	s.HandleFrame([]byte(`plain text reply`))

	assert.Equal(t, AwaitingReply, s.State())
	assert.Equal(t, 3, tr.Len())
	last, _ := tr.Last()
	assert.Equal(t, transcript.RoleAI, last.Role)
	assert.Equal(t, "plain text reply", last.Content)
	assert.Nil(t, sink.rec)
}

func TestWorkScopeCompletesImmediately(t *testing.T) {
	s, tr, _, sink := newSession()
	require.NoError(t, s.Submit("reduce churn"))

	s.HandleFrame([]byte(scopeFrame))

	assert.Equal(t, ReviewingScope, s.State())
	want := `How might we innovate on "reduce churn"? This challenge will focus on the area of ideation.`
	assert.Equal(t, want, s.RefinedStatement())

	rec := sink.record(t)
	assert.True(t, rec.Completed)
	assert.Equal(t, want, rec.RefinedStatement)
	assert.Equal(t, "Reduce Churn", rec.ProblemStatement)
	assert.Equal(t, "ideation", rec.ChallengeType)
	assert.Len(t, rec.Messages, tr.Len())
	assert.Equal(t, 0, sink.advances)
}

func TestSubmitWhileReviewing(t *testing.T) {
	s, _, _, _ := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))
	assert.ErrorIs(t, s.Submit("more"), ErrReviewPending)
}

func TestContinueFlushesAndAdvances(t *testing.T) {
	s, tr, _, sink := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))

	require.NoError(t, s.Continue())

	assert.Equal(t, Confirmed, s.State())
	assert.Equal(t, 1, sink.advances)
	rec := sink.record(t)
	assert.True(t, rec.Completed)
	assert.Len(t, rec.Messages, tr.Len())

	assert.ErrorIs(t, s.Continue(), ErrConfirmed)
	assert.ErrorIs(t, s.Submit("again"), ErrConfirmed)
}

func TestFramesAfterConfirmAreOnlyRecorded(t *testing.T) {
	s, tr, _, _ := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))
	require.NoError(t, s.Continue())

	s.HandleFrame([]byte(`{"message":"late","work_scope":{"description":"other"}}`))

	assert.Equal(t, Confirmed, s.State())
	assert.Equal(t, 4, tr.Len())
	assert.Contains(t, s.RefinedStatement(), "reduce churn")
}

func TestContinueWithoutScope(t *testing.T) {
	s, _, _, sink := newSession()
	assert.ErrorIs(t, s.Continue(), ErrNotReviewing)
	assert.Equal(t, 0, sink.advances)
}

func TestAdjustReopensConversation(t *testing.T) {
	s, tr, snd, sink := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))

	require.NoError(t, s.Adjust())

	assert.Equal(t, AwaitingReply, s.State())
	assert.False(t, sink.record(t).Completed)
	assert.Equal(t, "user: "+AdjustPrompt, snd.sent[len(snd.sent)-1])
	last, _ := tr.Last()
	assert.Equal(t, AdjustPrompt, last.Content)

	s.HandleFrame([]byte(`{"final_spec":{"scope":{"description":"Retain Users"}}}`))
	assert.Equal(t, ReviewingScope, s.State())
	assert.Equal(t, `How might we innovate on "retain users"? This challenge will focus on the area of general innovation.`, s.RefinedStatement())
	assert.True(t, sink.record(t).Completed)
}

func TestAdjustRequiresReview(t *testing.T) {
	s, _, _, _ := newSession()
	assert.ErrorIs(t, s.Adjust(), ErrNotReviewing)
}

func TestClosedChannel(t *testing.T) {
	s, tr, _, _ := newSession()
	s.ChannelClosed()

	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Submit("hi"), ErrChannelClosed)
	assert.Equal(t, 0, tr.Len())

	s.Remount()
	assert.Equal(t, Idle, s.State())
}

func TestContinueAfterChannelClosed(t *testing.T) {
	s, _, _, sink := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))
	s.ChannelClosed()

	assert.ErrorIs(t, s.Adjust(), ErrChannelClosed)
	require.NoError(t, s.Continue())
	assert.Equal(t, Confirmed, s.State())
	assert.Equal(t, 1, sink.advances)
	assert.True(t, sink.record(t).Completed)
}

func TestNilSenderStartsClosed(t *testing.T) {
	s := New(transcript.New(), nil, &fakeSink{})
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Submit("hi"), ErrChannelClosed)
}

func TestSendFailureClosesSession(t *testing.T) {
	s, tr, snd, _ := newSession()
	snd.err = errors.New("broken pipe")

	err := s.Submit("hi")
	assert.ErrorIs(t, err, ErrChannelClosed)
	assert.True(t, s.Closed())
	assert.Equal(t, 1, tr.Len(), "message is recorded before the send")
}

func TestRemountResetsReview(t *testing.T) {
	s, tr, _, _ := newSession()
	require.NoError(t, s.Submit("x"))
	s.HandleFrame([]byte(scopeFrame))

	s.Remount()

	assert.Equal(t, Idle, s.State())
	assert.Equal(t, "", s.RefinedStatement())
	_, ok := s.Scope()
	assert.False(t, ok)
	assert.Equal(t, 2, tr.Len())
}

func TestExtractScope(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
		want    Scope
		ok      bool
	}{
		{"nil payload", nil, Scope{}, false},
		{"work scope", map[string]any{"work_scope": map[string]any{"description": "a", "type": "b"}}, Scope{"a", "b"}, true},
		{"final spec", map[string]any{"final_spec": map[string]any{"scope": map[string]any{"description": "c"}}}, Scope{Description: "c"}, true},
		{"specification", map[string]any{"specification": map[string]any{"scope": map[string]any{"description": "d"}}}, Scope{Description: "d"}, true},
		{"work scope wins", map[string]any{
			"work_scope": map[string]any{"description": "first"},
			"final_spec": map[string]any{"scope": map[string]any{"description": "second"}},
		}, Scope{Description: "first"}, true},
		{"empty description", map[string]any{"work_scope": map[string]any{"description": ""}}, Scope{}, false},
		{"non-string description", map[string]any{"work_scope": map[string]any{"description": 7}}, Scope{}, false},
		{"no scope", map[string]any{"message": "hi"}, Scope{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractScope(tt.payload)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "reviewing_scope", ReviewingScope.String())
	assert.Equal(t, "state(9)", State(9).String())
}
