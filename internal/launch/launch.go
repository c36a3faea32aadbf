// Package launch performs the side effects of launching a finished
// challenge: it is stored and announced through every configured sink.
package launch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/metrics"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
)

// ErrNoData is returned when there is nothing to launch.
var ErrNoData = errors.New("no challenge data to launch")

// Challenge is what sinks receive.
type Challenge struct {
	SessionID     string          `json:"session_id"`
	Title         string          `json:"title"`
	ChallengeType string          `json:"challenge_type,omitempty"`
	Progress      int             `json:"progress"`
	LaunchedAt    time.Time       `json:"launched_at"`
	Data          json.RawMessage `json:"data"`
}

// Sink is one launch destination.
type Sink interface {
	Name() string
	Publish(ctx context.Context, c Challenge) error
}

// Option configures a Launcher.
type Option func(*Launcher)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ln *Launcher) { ln.log = l }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(ln *Launcher) { ln.rec = r }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(ln *Launcher) { ln.now = now }
}

// Launcher fans a challenge out to its sinks concurrently.
type Launcher struct {
	sinks []Sink
	log   *zap.Logger
	rec   metrics.Recorder
	now   func() time.Time
}

// New creates a launcher for sinks.
func New(sinks []Sink, opts ...Option) *Launcher {
	l := &Launcher{
		sinks: sinks,
		log:   zap.NewNop(),
		rec:   metrics.Nop(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Launch builds the challenge from data and publishes it to every sink.
// All sinks are attempted; the first failure is returned.
func (l *Launcher) Launch(ctx context.Context, sessionID string, data steps.Data) error {
	if len(data) == 0 {
		return ErrNoData
	}
	c, err := build(sessionID, data, l.now().UTC())
	if err != nil {
		return err
	}

	var g errgroup.Group
	for _, s := range l.sinks {
		s := s
		g.Go(func() error {
			if err := s.Publish(ctx, c); err != nil {
				l.rec.IncLaunch(s.Name(), metrics.OutcomeError)
				l.log.Error("launch sink failed", zap.String("sink", s.Name()), zap.Error(err))
				return fmt.Errorf("%s: %w", s.Name(), err)
			}
			l.rec.IncLaunch(s.Name(), metrics.OutcomeSuccess)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		events.Emit("error", "challenge.launch_failed", err.Error(), map[string]interface{}{
			"session_id": sessionID,
			"error":      err.Error(),
		})
		return fmt.Errorf("launch %s: %w", sessionID, err)
	}

	l.log.Info("challenge launched", zap.String("session_id", sessionID), zap.String("title", c.Title))
	events.Emit("info", "challenge.launched", "", map[string]interface{}{
		"session_id":     sessionID,
		"title":          c.Title,
		"challenge_type": c.ChallengeType,
		"sinks":          len(l.sinks),
	})
	return nil
}

func build(sessionID string, data steps.Data, now time.Time) (Challenge, error) {
	body, err := json.Marshal(data)
	if err != nil {
		return Challenge{}, fmt.Errorf("encode challenge: %w", err)
	}
	up := steps.UpstreamOf(data)
	title := up.ProblemStatement
	if r, ok := data[steps.ProblemScoping].(*steps.ScopingRecord); ok && r.RefinedStatement != "" {
		title = r.RefinedStatement
	}
	if title == "" {
		title = "Untitled challenge"
	}
	return Challenge{
		SessionID:     sessionID,
		Title:         title,
		ChallengeType: up.ChallengeType,
		Progress:      steps.Summarize(data, nil).Percentage,
		LaunchedAt:    now,
		Data:          body,
	}, nil
}
