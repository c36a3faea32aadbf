// Package recommend fetches AI suggestions for a mounted step panel.
//
// A Fetcher belongs to exactly one panel mount. It issues at most one
// request per latch cycle: the first enabled Sync latches and fetches,
// later Syncs are no-ops until Reset. Closing the fetcher (unmounting the
// panel) drops any result still in flight.
package recommend

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
)

// Client performs the recommendation request.
type Client interface {
	Recommend(ctx context.Context, endpoint string, payload any) (json.RawMessage, error)
}

// Notifier surfaces user-visible notifications.
type Notifier interface {
	Notify(level, title, detail string)
}

// State is the observable fetch state.
type State struct {
	Data    json.RawMessage `json:"data,omitempty"`
	Loading bool            `json:"loading"`
	Err     string          `json:"error,omitempty"`
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithOnData registers a callback fired once per successful fetch. gen is
// the generation the request was issued under; compare it with Generation
// to tell whether a Reset happened since.
func WithOnData(fn func(gen uint64, raw json.RawMessage)) Option {
	return func(f *Fetcher) { f.onData = fn }
}

// WithNotifier sets where fetch failures are reported.
func WithNotifier(n Notifier) Option {
	return func(f *Fetcher) { f.notifier = n }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(f *Fetcher) { f.rec = r }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(f *Fetcher) { f.log = l }
}

// WithFields adds fields to every emitted event, typically the session id.
func WithFields(fields map[string]interface{}) Option {
	return func(f *Fetcher) { f.fields = fields }
}

// Fetcher is the fetch-once latch for one panel mount.
type Fetcher struct {
	client   Client
	endpoint string
	onData   func(uint64, json.RawMessage)
	notifier Notifier
	rec      metrics.Recorder
	log      *zap.Logger
	fields   map[string]interface{}

	mu       sync.Mutex
	latched  bool
	closed   bool
	gen      uint64
	pending  int
	state    State
	cancel   context.CancelFunc
	inflight sync.WaitGroup
}

// New creates a fetcher for endpoint.
func New(client Client, endpoint string, opts ...Option) *Fetcher {
	f := &Fetcher{
		client:   client,
		endpoint: endpoint,
		rec:      metrics.Nop(),
		log:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Endpoint returns the endpoint this fetcher serves.
func (f *Fetcher) Endpoint() string {
	return f.endpoint
}

// Sync issues the request if enabled and not yet latched. Payload changes
// after the latch are ignored.
func (f *Fetcher) Sync(ctx context.Context, enabled bool, payload any) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed || !enabled || f.latched {
		return
	}
	f.latched = true
	f.state = State{Loading: true}
	gen := f.gen

	reqCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.pending++
	f.inflight.Add(1)
	go f.fetch(reqCtx, cancel, gen, payload)
}

func (f *Fetcher) fetch(ctx context.Context, cancel context.CancelFunc, gen uint64, payload any) {
	defer f.inflight.Done()
	defer func() {
		f.mu.Lock()
		f.pending--
		f.mu.Unlock()
	}()
	defer cancel()

	f.emit("info", "recommend.requested", nil)
	start := time.Now()
	raw, err := f.client.Recommend(ctx, f.endpoint, payload)
	elapsed := time.Since(start)

	f.mu.Lock()
	if f.closed || gen != f.gen {
		f.mu.Unlock()
		f.rec.ObserveRecommendation(f.endpoint, metrics.OutcomeDiscarded, elapsed)
		f.log.Debug("recommendation discarded", zap.String("endpoint", f.endpoint))
		return
	}
	f.cancel = nil
	if err != nil {
		msg := fmt.Sprintf("failed to fetch AI recommendations from %s: %v", f.endpoint, err)
		f.state = State{Err: msg}
		f.mu.Unlock()

		f.rec.ObserveRecommendation(f.endpoint, metrics.OutcomeError, elapsed)
		f.log.Warn("recommendation failed", zap.String("endpoint", f.endpoint), zap.Error(err))
		f.emit("warn", "recommend.failed", map[string]interface{}{"error": err.Error()})
		if f.notifier != nil {
			f.notifier.Notify("error", "AI Assistant Error", msg)
		}
		return
	}
	f.state = State{Data: raw}
	onData := f.onData
	f.mu.Unlock()

	f.rec.ObserveRecommendation(f.endpoint, metrics.OutcomeSuccess, elapsed)
	f.emit("info", "recommend.received", map[string]interface{}{"duration_ms": elapsed.Milliseconds()})
	if onData != nil {
		onData(gen, raw)
	}
}

// Generation counts Resets and Close. A result delivered under an older
// generation is stale.
func (f *Fetcher) Generation() uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gen
}

// Busy reports whether a request goroutine is still running.
func (f *Fetcher) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pending > 0
}

// State returns a snapshot of the fetch state.
func (f *Fetcher) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.state
	if s.Data != nil {
		s.Data = append(json.RawMessage(nil), s.Data...)
	}
	return s
}

// Reset clears the latch and data so the next enabled Sync fetches again.
// A request still in flight is cancelled and its result dropped. Reset does
// not emit; callers holding their own locks report it once released.
func (f *Fetcher) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.gen++
	f.latched = false
	f.state = State{}
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Close unmounts the fetcher. In-flight results are dropped.
func (f *Fetcher) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.closed = true
	f.gen++
	if f.cancel != nil {
		f.cancel()
		f.cancel = nil
	}
}

// Wait blocks until no request is in flight.
func (f *Fetcher) Wait() {
	f.inflight.Wait()
}

func (f *Fetcher) emit(level, name string, extra map[string]interface{}) {
	fields := map[string]interface{}{"endpoint": f.endpoint}
	for k, v := range f.fields {
		fields[k] = v
	}
	for k, v := range extra {
		fields[k] = v
	}
	events.Emit(level, name, "", fields)
}
