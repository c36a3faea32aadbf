// Package wizard is the orchestrator for the challenge configuration flow.
//
// A Wizard owns the step data, the current step index and the transcript.
// It mounts one recommendation fetcher per visited step, feeds every change
// to the debounced validation pipeline and hands the scoping conversation
// its channel. All state changes happen under a single mutex.
package wizard

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/AaronLay10/ChallengeWizard/internal/channel"
	"github.com/AaronLay10/ChallengeWizard/internal/debounce"
	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/recommend"
	"github.com/AaronLay10/ChallengeWizard/internal/scoping"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/transcript"
)

var (
	ErrUnknownStep     = errors.New("unknown or terminal step")
	ErrClosed          = errors.New("wizard is closed")
	ErrAlreadyOpen     = errors.New("wizard already opened")
	ErrNoSuggestion    = errors.New("no suggestion available")
	ErrEmptyFeedback   = errors.New("feedback is empty")
	ErrUnknownType     = errors.New("unknown challenge type")
	ErrNotTerminal     = errors.New("launch is only available on the review step")
	ErrNoLauncher      = errors.New("no launcher configured")
	ErrAlreadyLaunched = errors.New("challenge already launched")
)

// AI is the subset of the AI service the wizard uses.
type AI interface {
	recommend.Client
	Validate(ctx context.Context, data any) ([]string, error)
	ImpactPreview(ctx context.Context, problem, typeID string) (string, error)
}

// Notifier surfaces transient user-visible messages.
type Notifier interface {
	Notify(level, title, detail string)
}

// Launcher performs the launch side effects for a finished challenge.
type Launcher interface {
	Launch(ctx context.Context, sessionID string, data steps.Data) error
}

// Conn is the channel capability handed to the scoping session.
type Conn interface {
	scoping.Sender
	Close() error
}

// DialFunc opens the channel for a session. onFrame receives inbound frames
// in arrival order and onClose fires once when the channel ends.
type DialFunc func(ctx context.Context, sessionID string, onFrame channel.Handler, onClose func(error)) (Conn, error)

// ChannelDialer dials the websocket channel at base.
func ChannelDialer(base string, opts ...channel.Option) DialFunc {
	return func(ctx context.Context, sessionID string, onFrame channel.Handler, onClose func(error)) (Conn, error) {
		all := append([]channel.Option{channel.WithHandler(onFrame), channel.WithOnClose(onClose)}, opts...)
		c, err := channel.Dial(ctx, base, sessionID, all...)
		if err != nil {
			return nil, err
		}
		return c, nil
	}
}

// StepStatus is the sidebar view of one step.
type StepStatus struct {
	steps.Definition
	Completed bool `json:"completed"`
	Active    bool `json:"active"`
	Enabled   bool `json:"enabled"`
}

// Option configures a Wizard.
type Option func(*Wizard)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Wizard) { w.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(w *Wizard) { w.rec = r }
}

// WithNotifier sets where user-visible notifications go.
func WithNotifier(n Notifier) Option {
	return func(w *Wizard) { w.notifier = n }
}

// WithDialer sets how the scoping channel is opened. Without one the
// wizard runs with no channel.
func WithDialer(d DialFunc) Option {
	return func(w *Wizard) { w.dial = d }
}

// WithLauncher sets the launch side effects.
func WithLauncher(l Launcher) Option {
	return func(w *Wizard) { w.launcher = l }
}

// WithValidationDelay sets the validation quiet window.
func WithValidationDelay(d time.Duration) Option {
	return func(w *Wizard) { w.validationDelay = d }
}

// WithSessionID fixes the session id instead of minting one.
func WithSessionID(id string) Option {
	return func(w *Wizard) { w.sessionID = id }
}

// Wizard is the orchestrator.
type Wizard struct {
	ai              AI
	log             *zap.Logger
	rec             metrics.Recorder
	notifier        Notifier
	dial            DialFunc
	launcher        Launcher
	validationDelay time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	validator *debounce.Value[snapshot]
	impacts   singleflight.Group

	sessionID string

	mu        sync.Mutex
	opened    bool
	closed    bool
	launched  bool
	cur       int
	data      steps.Data
	gen       uint64
	tr        *transcript.Log
	session   *scoping.Session
	conn      Conn
	active    *mount
	retired   []*recommend.Fetcher
	val       validationState
	previews  map[string]string
	queued    []queuedEvent
}

// queuedEvent is an event raised while mu was held. It is emitted once mu
// is released so a slow event sink never stalls the wizard.
type queuedEvent struct {
	level, name string
	fields      map[string]interface{}
}

// New creates a wizard at the first step with no data and mints its
// session id.
func New(ai AI, opts ...Option) *Wizard {
	w := &Wizard{
		ai:       ai,
		log:      zap.NewNop(),
		rec:      metrics.Nop(),
		data:     steps.Data{},
		tr:       transcript.New(),
		previews: map[string]string{},
		val:      validationState{issues: []string{}},
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.sessionID == "" {
		w.sessionID = uuid.NewString()
	}
	if w.notifier == nil {
		w.notifier = logNotifier{w.log}
	}
	w.ctx, w.cancel = context.WithCancel(context.Background())
	w.validator = debounce.New(w.validationDelay, w.validate)
	return w
}

// Open dials the channel once, wires the scoping session and mounts the
// current step. A dial failure is not fatal: the wizard runs without a
// channel.
func (w *Wizard) Open(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrClosed
	}
	if w.opened {
		w.mu.Unlock()
		return ErrAlreadyOpen
	}
	w.opened = true
	id := w.sessionID
	w.mu.Unlock()

	ready := make(chan struct{})
	var conn Conn
	if w.dial != nil {
		c, err := w.dial(ctx, id,
			func(raw []byte) {
				<-ready
				w.session.HandleFrame(raw)
			},
			func(err error) {
				<-ready
				w.channelClosed(err)
			})
		if err != nil {
			w.log.Warn("channel unavailable", zap.Error(err))
			w.emit("error", "channel.error", map[string]interface{}{"error": err.Error()})
		} else {
			conn = c
			w.emit("info", "channel.connected", nil)
		}
	}

	var sender scoping.Sender
	if conn != nil {
		sender = conn
	}
	sess := scoping.New(w.tr, sender, w,
		scoping.WithLogger(w.log.Named("scoping")),
		scoping.WithRecorder(w.rec),
		scoping.WithSessionID(id))

	w.mu.Lock()
	w.session = sess
	w.conn = conn
	close(ready)
	if w.closed {
		w.mu.Unlock()
		if conn != nil {
			conn.Close()
		}
		return ErrClosed
	}
	w.mountLocked()
	w.rec.SetProgress(w.progressLocked())
	w.unlock()

	w.log.Info("wizard opened", zap.String("session_id", id), zap.Bool("channel", conn != nil))
	w.emit("info", "wizard.opened", map[string]interface{}{"channel": conn != nil})
	return nil
}

// Close tears the wizard down. In-flight work is cancelled and its results
// are dropped. Close is idempotent.
func (w *Wizard) Close() {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.closed = true
	conn := w.conn
	w.conn = nil
	if w.active != nil {
		w.retireLocked(w.active)
		w.active = nil
	}
	fetchers := w.retired
	w.retired = nil
	w.cancel()
	w.mu.Unlock()

	w.validator.Stop()
	if conn != nil {
		conn.Close()
	}
	for _, f := range fetchers {
		f.Wait()
	}
	w.wg.Wait()
	w.emit("info", "wizard.closed", nil)
}

func (w *Wizard) channelClosed(err error) {
	w.session.ChannelClosed()
	fields := map[string]interface{}{}
	if err != nil {
		fields["error"] = err.Error()
	}
	w.emit("info", "channel.disconnected", fields)
}

// SessionID returns the session id. It is fixed for the wizard's lifetime.
func (w *Wizard) SessionID() string {
	return w.sessionID
}

// Scoping returns the conversation session, nil before Open.
func (w *Wizard) Scoping() *scoping.Session {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.session
}

// Transcript returns a read-only view of the conversation.
func (w *Wizard) Transcript() transcript.Reader {
	return w.tr
}

// CurrentIndex returns the current step index.
func (w *Wizard) CurrentIndex() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.cur
}

// CurrentStep returns the current step definition.
func (w *Wizard) CurrentStep() steps.Definition {
	w.mu.Lock()
	defer w.mu.Unlock()
	return steps.Catalogue()[w.cur]
}

// Record returns a copy of the record for id.
func (w *Wizard) Record(id steps.ID) (steps.Record, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.data[id]
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Data returns a deep snapshot of the challenge data.
func (w *Wizard) Data() steps.Data {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.data.Clone()
}

// CompletedCount returns the number of completed non-terminal steps.
func (w *Wizard) CompletedCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.completedLocked()
}

// Progress returns the completion percentage over non-terminal steps.
func (w *Wizard) Progress() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.progressLocked()
}

// StepStatuses returns the sidebar view of every step.
func (w *Wizard) StepStatuses() []StepStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	done := w.completedLocked()
	defs := steps.Catalogue()
	out := make([]StepStatus, len(defs))
	for i, d := range defs {
		out[i] = StepStatus{
			Definition: d,
			Completed:  w.data.Completed(d.ID),
			Active:     i == w.cur,
			Enabled:    i <= done+1 || i == w.cur,
		}
	}
	return out
}

// Summary builds the review of the current data.
func (w *Wizard) Summary() steps.Summary {
	w.mu.Lock()
	defer w.mu.Unlock()
	return steps.Summarize(w.data, w.val.issues)
}

// Launch hands the finished challenge to the launcher. It is only valid on
// the terminal step.
func (w *Wizard) Launch(ctx context.Context) error {
	w.mu.Lock()
	switch {
	case w.closed:
		w.mu.Unlock()
		return ErrClosed
	case !steps.IsTerminal(steps.Catalogue()[w.cur].ID):
		w.mu.Unlock()
		return ErrNotTerminal
	case w.launcher == nil:
		w.mu.Unlock()
		return ErrNoLauncher
	case w.launched:
		w.mu.Unlock()
		return ErrAlreadyLaunched
	}
	data := w.data.Clone()
	id := w.sessionID
	w.mu.Unlock()

	if err := w.launcher.Launch(ctx, id, data); err != nil {
		w.notifier.Notify("error", "Launch Failed", err.Error())
		return err
	}

	w.mu.Lock()
	w.launched = true
	w.mu.Unlock()
	w.notifier.Notify("success", "Challenge Launched!", "Your challenge has been successfully launched.")
	return nil
}

func (w *Wizard) completedLocked() int {
	n := 0
	for _, d := range steps.Catalogue() {
		if !steps.IsTerminal(d.ID) && w.data.Completed(d.ID) {
			n++
		}
	}
	return n
}

func (w *Wizard) progressLocked() float64 {
	total := len(steps.Catalogue()) - 1
	return float64(w.completedLocked()) / float64(total) * 100
}

// emitLocked queues an event until the caller releases mu with unlock.
func (w *Wizard) emitLocked(level, name string, extra map[string]interface{}) {
	w.queued = append(w.queued, queuedEvent{level: level, name: name, fields: extra})
}

// unlock releases mu and then emits the events queued while it was held.
func (w *Wizard) unlock() {
	queued := w.queued
	w.queued = nil
	w.mu.Unlock()
	for _, e := range queued {
		w.emit(e.level, e.name, e.fields)
	}
}

func (w *Wizard) emit(level, name string, extra map[string]interface{}) {
	fields := map[string]interface{}{"session_id": w.sessionID}
	for k, v := range extra {
		fields[k] = v
	}
	events.Emit(level, name, "", fields)
}

type logNotifier struct {
	log *zap.Logger
}

func (n logNotifier) Notify(level, title, detail string) {
	switch level {
	case "error":
		n.log.Error(title, zap.String("detail", detail))
	case "warning":
		n.log.Warn(title, zap.String("detail", detail))
	default:
		n.log.Info(title, zap.String("detail", detail))
	}
}
