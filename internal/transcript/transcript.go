// Package transcript holds the conversation shared by the wizard and the
// scoping session. The log is append-only and Append is the only way in.
package transcript

import (
	"strconv"
	"sync"
	"time"
)

// Role identifies who produced a message.
type Role string

const (
	RoleUser     Role = "user"
	RoleAI       Role = "ai"
	RoleAnalysis Role = "analysis"
)

// Message is one transcript entry.
type Message struct {
	ID        string         `json:"id"`
	Seq       uint64         `json:"seq"`
	Role      Role           `json:"type"`
	Content   string         `json:"content"`
	Payload   map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Appender is the write capability handed to collaborators.
type Appender interface {
	Append(role Role, content string, payload map[string]any) Message
}

// Reader is the read-only view.
type Reader interface {
	Snapshot() []Message
	Len() int
	Last() (Message, bool)
}

// Log is the concrete transcript.
type Log struct {
	mu       sync.RWMutex
	messages []Message
	seq      uint64
	now      func() time.Time
}

// New creates an empty transcript.
func New() *Log {
	return &Log{now: time.Now}
}

// Append adds a message and returns it with its id and timestamp assigned.
// Ids are strictly increasing in append order.
func (l *Log) Append(role Role, content string, payload map[string]any) Message {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.seq++
	ts := l.now()
	m := Message{
		ID:        strconv.FormatInt(ts.UnixMilli(), 10) + "-" + strconv.FormatUint(l.seq, 10),
		Seq:       l.seq,
		Role:      role,
		Content:   content,
		Payload:   payload,
		Timestamp: ts,
	}
	l.messages = append(l.messages, m)
	return m
}

// Snapshot returns a copy of all messages in order.
func (l *Log) Snapshot() []Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of messages.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the most recent message.
func (l *Log) Last() (Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}
