// Package scoping runs the conversational problem-scoping step. The user
// and the AI exchange messages over the channel until the AI returns a
// structured scope; the session then holds that scope for review until the
// user confirms it or asks for an adjustment.
package scoping

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/channel"
	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/transcript"
)

// AdjustPrompt is sent when the user rejects an extracted scope.
const AdjustPrompt = "That's not quite right, can we adjust the scope description?"

var (
	ErrEmptyMessage  = errors.New("message is empty")
	ErrChannelClosed = errors.New("channel is closed")
	ErrReviewPending = errors.New("a scope is awaiting review")
	ErrConfirmed     = errors.New("scope already confirmed")
	ErrNotReviewing  = errors.New("no scope to review")
)

// State is the session's position in the conversation.
type State int

const (
	Idle State = iota
	AwaitingReply
	ReviewingScope
	Confirmed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingReply:
		return "awaiting_reply"
	case ReviewingScope:
		return "reviewing_scope"
	case Confirmed:
		return "confirmed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Sender transmits user messages. *channel.Conn implements it.
type Sender interface {
	Send(role, content string) error
}

// Sink receives the step data the session produces and the request to move
// on once the scope is confirmed. The wizard implements it.
type Sink interface {
	UpdateStepData(p steps.Patch) error
	Advance() bool
}

// Transcript is the shared conversation, written through Append only.
type Transcript interface {
	transcript.Appender
	transcript.Reader
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Session) { s.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Session) { s.rec = r }
}

// WithSessionID tags emitted events with the wizard session id.
func WithSessionID(id string) Option {
	return func(s *Session) { s.sessionID = id }
}

// Session is the scoping state machine.
type Session struct {
	tr        Transcript
	sink      Sink
	log       *zap.Logger
	rec       metrics.Recorder
	sessionID string

	mu      sync.Mutex
	sender  Sender
	state   State
	closed  bool
	input   string
	scope   *Scope
	refined string
}

// New creates a session. sender may be nil when the channel could not be
// opened; the session then starts closed.
func New(tr Transcript, sender Sender, sink Sink, opts ...Option) *Session {
	s := &Session{
		tr:     tr,
		sink:   sink,
		sender: sender,
		closed: sender == nil,
		log:    zap.NewNop(),
		rec:    metrics.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Closed reports whether the channel has gone away.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// RefinedStatement returns the statement built from the last extracted scope.
func (s *Session) RefinedStatement() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refined
}

// Scope returns the last extracted scope.
func (s *Session) Scope() (Scope, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope == nil {
		return Scope{}, false
	}
	return *s.scope, true
}

// SetInput stores the draft the user is typing.
func (s *Session) SetInput(text string) {
	s.mu.Lock()
	s.input = text
	s.mu.Unlock()
}

// Input returns the current draft.
func (s *Session) Input() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Submit sends a user message.
func (s *Session) Submit(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return ErrEmptyMessage
	}

	s.mu.Lock()
	if err := s.canSendLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	switch s.state {
	case ReviewingScope:
		s.mu.Unlock()
		return ErrReviewPending
	case Confirmed:
		s.mu.Unlock()
		return ErrConfirmed
	}
	s.tr.Append(transcript.RoleUser, text, nil)
	s.input = ""
	s.state = AwaitingReply
	sender := s.sender
	s.mu.Unlock()

	return s.send(sender, text)
}

// HandleFrame processes one inbound frame. Frames must be delivered in
// arrival order; the channel reader does that.
func (s *Session) HandleFrame(raw []byte) {
	content, payload := channel.Decode(raw)

	s.mu.Lock()
	s.tr.Append(transcript.RoleAI, content, payload)
	sc, ok := ExtractScope(payload)
	if !ok || s.state == Confirmed {
		s.mu.Unlock()
		s.emit("scope.message_received", nil)
		return
	}
	s.scope = &sc
	s.refined = sc.RefinedStatement()
	s.state = ReviewingScope
	patch := s.patchLocked(true)
	s.mu.Unlock()

	s.rec.IncScopeExtraction()
	s.emit("scope.message_received", nil)
	s.emit("scope.extracted", map[string]interface{}{
		"problem_statement": sc.Description,
		"challenge_type":    sc.Type,
	})
	s.log.Info("scope extracted", zap.String("challenge_type", sc.Type))
	s.push(patch)
}

// Continue confirms the reviewed scope, flushes the final step data and
// asks the wizard to advance.
func (s *Session) Continue() error {
	s.mu.Lock()
	if s.closed && s.state != ReviewingScope {
		s.mu.Unlock()
		return ErrChannelClosed
	}
	switch s.state {
	case Confirmed:
		s.mu.Unlock()
		return ErrConfirmed
	case ReviewingScope:
	default:
		s.mu.Unlock()
		return ErrNotReviewing
	}
	s.state = Confirmed
	patch := s.patchLocked(true)
	s.mu.Unlock()

	s.emit("scope.confirmed", nil)
	s.push(patch)
	s.sink.Advance()
	return nil
}

// Adjust rejects the reviewed scope: the step is marked incomplete and the
// AI is asked to revise it.
func (s *Session) Adjust() error {
	s.mu.Lock()
	if err := s.canSendLocked(); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.state != ReviewingScope {
		s.mu.Unlock()
		if s.state == Confirmed {
			return ErrConfirmed
		}
		return ErrNotReviewing
	}
	done := false
	patch := steps.ScopingPatch{Completed: &done}
	s.tr.Append(transcript.RoleUser, AdjustPrompt, nil)
	s.state = AwaitingReply
	sender := s.sender
	s.mu.Unlock()

	s.emit("scope.adjusted", nil)
	s.push(patch)
	return s.send(sender, AdjustPrompt)
}

// ChannelClosed records that the channel went away. Nothing more can be
// sent; a scope already under review can still be confirmed with Continue.
func (s *Session) ChannelClosed() {
	s.mu.Lock()
	s.closed = true
	s.sender = nil
	s.mu.Unlock()
}

// Remount resets the view state when the scoping step is entered again.
// The transcript is kept and earlier messages are not re-examined.
func (s *Session) Remount() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state = Idle
	s.scope = nil
	s.refined = ""
	s.input = ""
}

func (s *Session) canSendLocked() error {
	if s.closed || s.sender == nil {
		return ErrChannelClosed
	}
	return nil
}

func (s *Session) send(sender Sender, text string) error {
	if err := sender.Send("user", text); err != nil {
		s.ChannelClosed()
		s.log.Warn("send failed", zap.Error(err))
		return fmt.Errorf("%w: %v", ErrChannelClosed, err)
	}
	s.emit("scope.message_sent", nil)
	return nil
}

// patchLocked builds the full scoping record from the current scope.
func (s *Session) patchLocked(completed bool) steps.ScopingPatch {
	msgs := s.tr.Snapshot()
	refined := s.refined
	var problem, typ string
	if s.scope != nil {
		problem = s.scope.Description
		typ = s.scope.Type
	}
	return steps.ScopingPatch{
		Messages:         msgs,
		RefinedStatement: &refined,
		ProblemStatement: &problem,
		ChallengeType:    &typ,
		Completed:        &completed,
	}
}

func (s *Session) push(p steps.Patch) {
	if s.sink == nil {
		return
	}
	if err := s.sink.UpdateStepData(p); err != nil {
		s.log.Warn("scoping update rejected", zap.Error(err))
	}
}

func (s *Session) emit(name string, extra map[string]interface{}) {
	fields := map[string]interface{}{}
	if s.sessionID != "" {
		fields["session_id"] = s.sessionID
	}
	for k, v := range extra {
		fields[k] = v
	}
	events.Emit("info", name, "", fields)
}
