package launch

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
)

// MockMQTTClient records published messages.
type MockMQTTClient struct {
	mu           sync.Mutex
	connected    bool
	published    []PublishedMessage
	publishError error
}

type PublishedMessage struct {
	Topic    string
	Payload  []byte
	Retained bool
}

func NewMockMQTTClient() *MockMQTTClient {
	return &MockMQTTClient{connected: true}
}

func (m *MockMQTTClient) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

func (m *MockMQTTClient) Publish(topic string, payload []byte, retained bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.published = append(m.published, PublishedMessage{Topic: topic, Payload: payload, Retained: retained})
	return nil
}

func (m *MockMQTTClient) GetPublished() []PublishedMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]PublishedMessage{}, m.published...)
}

type mockStore struct {
	mu    sync.Mutex
	saved []string
	data  json.RawMessage
	at    time.Time
	err   error
}

func (s *mockStore) SaveChallenge(ctx context.Context, sessionID, title string, data json.RawMessage, launchedAt time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	s.saved = append(s.saved, sessionID+": "+title)
	s.data = data
	s.at = launchedAt
	return int64(len(s.saved)), nil
}

func sampleData() steps.Data {
	refined := `How might we innovate on "reduce churn"? This challenge will focus on the area of ideation.`
	problem := "Reduce churn"
	done := true
	scope, _ := steps.ScopingPatch{RefinedStatement: &refined, ProblemStatement: &problem, Completed: &done}.Merge(nil)
	ct, _ := steps.SelectType("ideation").Merge(nil)
	return steps.Data{steps.ProblemScoping: scope, steps.ChallengeType: ct}
}

type launchCounter struct {
	metrics.NoopRecorder
	mu     sync.Mutex
	counts map[string]int
}

func (c *launchCounter) IncLaunch(sink, outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.counts == nil {
		c.counts = map[string]int{}
	}
	c.counts[sink+"/"+outcome]++
}

var fixed = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestLaunchPublishesToAllSinks(t *testing.T) {
	events.Clear()
	store := &mockStore{}
	mq := NewMockMQTTClient()
	rec := &launchCounter{}

	l := New([]Sink{PostgresSink{Store: store}, MQTTSink{Client: mq}},
		WithRecorder(rec), WithClock(func() time.Time { return fixed }))
	require.NoError(t, l.Launch(context.Background(), "s-1", sampleData()))

	require.Len(t, store.saved, 1)
	assert.Contains(t, store.saved[0], `s-1: How might we innovate on "reduce churn"`)
	assert.Equal(t, fixed, store.at)
	decoded, err := steps.DecodeData(store.data)
	require.NoError(t, err)
	assert.True(t, decoded.Completed(steps.ChallengeType))

	pub := mq.GetPublished()
	require.Len(t, pub, 1)
	assert.Equal(t, "challenges/launched/s-1", pub[0].Topic)
	assert.True(t, pub[0].Retained)
	var ann map[string]any
	require.NoError(t, json.Unmarshal(pub[0].Payload, &ann))
	assert.Equal(t, "ideation", ann["challenge_type"])
	assert.EqualValues(t, 25, ann["progress"])
	assert.NotContains(t, ann, "data")

	assert.Equal(t, map[string]int{"mqtt/success": 1, "postgres/success": 1}, rec.counts)

	var names []string
	for _, e := range events.Snapshot() {
		names = append(names, e.Name)
	}
	assert.Contains(t, names, "challenge.launched")
}

func TestLaunchSinkFailure(t *testing.T) {
	store := &mockStore{}
	mq := NewMockMQTTClient()
	mq.connected = false
	rec := &launchCounter{}

	l := New([]Sink{PostgresSink{Store: store}, MQTTSink{Client: mq}}, WithRecorder(rec))
	err := l.Launch(context.Background(), "s-2", sampleData())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mqtt: MQTT client not connected")
	assert.Len(t, store.saved, 1, "other sinks still run")
	assert.Equal(t, 1, rec.counts["mqtt/error"])
}

func TestLaunchStoreError(t *testing.T) {
	store := &mockStore{err: errors.New("connection refused")}
	l := New([]Sink{PostgresSink{Store: store}})
	err := l.Launch(context.Background(), "s-3", sampleData())
	assert.ErrorContains(t, err, "postgres: save challenge: connection refused")
}

func TestLaunchNoData(t *testing.T) {
	l := New(nil)
	assert.ErrorIs(t, l.Launch(context.Background(), "s", steps.Data{}), ErrNoData)
}

func TestTitleFallback(t *testing.T) {
	problem := "Cut costs"
	rec, _ := steps.ScopingPatch{ProblemStatement: &problem}.Merge(nil)
	c, err := build("s", steps.Data{steps.ProblemScoping: rec}, fixed)
	require.NoError(t, err)
	assert.Equal(t, "Cut costs", c.Title)

	ct, _ := steps.SelectType("rtp").Merge(nil)
	c, err = build("s", steps.Data{steps.ChallengeType: ct}, fixed)
	require.NoError(t, err)
	assert.Equal(t, "Untitled challenge", c.Title)
	assert.Equal(t, "rtp", c.ChallengeType)
}

func TestMQTTSinkTopic(t *testing.T) {
	assert.Equal(t, "challenges/launched/x", MQTTSink{}.Topic("x"))
	assert.Equal(t, "org/announce/x", MQTTSink{Prefix: "org/announce/"}.Topic("x"))
}
