// Package events is the wizard's structured event stream. Every emitted
// event is checked against an allow-list, kept in a ring buffer for the
// monitor, fanned out to live subscribers and optionally persisted.
package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

var buffer = NewRingBuffer(256)

// Sink persists events. The postgres store implements it.
type Sink interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error
}

var (
	sink          Sink
	sinkMu        sync.RWMutex
	sinkErrLogged bool
)

// SetSink sets the event persistence sink. Passing nil disables persistence.
func SetSink(s Sink) {
	sinkMu.Lock()
	sink = s
	sinkErrLogged = false
	sinkMu.Unlock()
}

type Event struct {
	Timestamp string                 `json:"ts"`
	Level     string                 `json:"level"`
	Name      string                 `json:"event"`
	Message   string                 `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

// Emit records an event and returns its JSON encoding.
func Emit(level, name, msg string, fields map[string]interface{}) ([]byte, error) {
	if err := Validate(name); err != nil {
		return nil, err
	}

	ts := time.Now().UTC()
	e := Event{
		Timestamp: ts.Format(time.RFC3339Nano),
		Level:     level,
		Name:      name,
		Message:   msg,
		Fields:    fields,
	}

	buffer.Add(e)
	broadcast(e)

	sinkMu.RLock()
	s := sink
	sinkMu.RUnlock()

	if s != nil {
		sessionID, _ := fields["session_id"].(string)
		if err := s.Append(ts, level, name, msg, fields, sessionID); err != nil {
			// Report the first failure only. The report goes straight to the
			// buffer so a failing sink cannot recurse.
			sinkMu.Lock()
			first := !sinkErrLogged
			sinkErrLogged = true
			sinkMu.Unlock()
			if first {
				errEvent := Event{
					Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
					Level:     "error",
					Name:      "system.error",
					Message:   "event sink append failed",
					Fields: map[string]interface{}{
						"error": err.Error(),
					},
				}
				buffer.Add(errEvent)
				broadcast(errEvent)
			}
		}
	}

	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal event: %w", err)
	}

	return b, nil
}

func Snapshot() []Event {
	return buffer.Snapshot()
}

// TotalCount returns the number of events emitted since start or the last Clear.
func TotalCount() uint64 {
	return buffer.Total()
}

// Clear resets the event buffer. Used for testing.
func Clear() {
	buffer.Clear()
}
