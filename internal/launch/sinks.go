package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ChallengeStore persists launched challenges. *postgres.Client implements it.
type ChallengeStore interface {
	SaveChallenge(ctx context.Context, sessionID, title string, data json.RawMessage, launchedAt time.Time) (int64, error)
}

// PostgresSink stores the challenge.
type PostgresSink struct {
	Store ChallengeStore
}

func (s PostgresSink) Name() string { return "postgres" }

func (s PostgresSink) Publish(ctx context.Context, c Challenge) error {
	if s.Store == nil {
		return errors.New("store not configured")
	}
	if _, err := s.Store.SaveChallenge(ctx, c.SessionID, c.Title, c.Data, c.LaunchedAt); err != nil {
		return fmt.Errorf("save challenge: %w", err)
	}
	return nil
}

// Publisher sends MQTT messages. *mqtt.Client implements it.
type Publisher interface {
	IsConnected() bool
	Publish(topic string, payload []byte, retained bool) error
}

// DefaultTopicPrefix is where launch announcements go.
const DefaultTopicPrefix = "challenges/launched"

// MQTTSink announces the challenge on {prefix}/{session id} as a retained
// message without the full data.
type MQTTSink struct {
	Client Publisher
	Prefix string
}

func (s MQTTSink) Name() string { return "mqtt" }

// Topic returns the announcement topic for a session.
func (s MQTTSink) Topic(sessionID string) string {
	prefix := s.Prefix
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	return strings.TrimRight(prefix, "/") + "/" + sessionID
}

type announcement struct {
	SessionID     string    `json:"session_id"`
	Title         string    `json:"title"`
	ChallengeType string    `json:"challenge_type,omitempty"`
	Progress      int       `json:"progress"`
	LaunchedAt    time.Time `json:"launched_at"`
}

func (s MQTTSink) Publish(ctx context.Context, c Challenge) error {
	if s.Client == nil || !s.Client.IsConnected() {
		return errors.New("MQTT client not connected")
	}
	payload, err := json.Marshal(announcement{
		SessionID:     c.SessionID,
		Title:         c.Title,
		ChallengeType: c.ChallengeType,
		Progress:      c.Progress,
		LaunchedAt:    c.LaunchedAt,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal announcement: %w", err)
	}
	topic := s.Topic(c.SessionID)
	if err := s.Client.Publish(topic, payload, true); err != nil {
		return fmt.Errorf("MQTT publish to %s failed: %w", topic, err)
	}
	return nil
}
