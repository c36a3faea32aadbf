package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dialEvents(t *testing.T) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(New().Handler())
	t.Cleanup(server.Close)

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/events"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var e events.Event
	require.NoError(t, json.Unmarshal(msg, &e))
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()
	for i := 0; i < 5; i++ {
		events.Emit("info", "step.updated", "", map[string]interface{}{"i": i})
	}

	conn := dialEvents(t)
	for i := 0; i < 5; i++ {
		e := readEvent(t, conn)
		assert.Equal(t, "step.updated", e.Name)
		assert.EqualValues(t, i, e.Fields["i"])
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	conn := dialEvents(t)
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")

	events.Emit("info", "scope.extracted", "", map[string]interface{}{"challenge_type": "rtp"})

	e := readEvent(t, conn)
	assert.Equal(t, "scope.extracted", e.Name)
	assert.Equal(t, "rtp", e.Fields["challenge_type"])
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	conn := dialEvents(t)
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")

	conn.Close()
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 0 }, "subscriber removed")
}

func TestWebSocketClosedOnShutdown(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	conn := dialEvents(t)
	waitFor(t, 2*time.Second, func() bool { return events.SubscriberCount() == 1 }, "subscriber registered")

	events.CloseAllSubscribers()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}
