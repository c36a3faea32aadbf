// Package api serves the wizard's read-only monitor: health, the recent
// event log, a live event stream, the current wizard state, launched
// challenges and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/AaronLay10/ChallengeWizard/internal/events"
	"github.com/AaronLay10/ChallengeWizard/internal/steps"
	"github.com/AaronLay10/ChallengeWizard/internal/storage/postgres"
	"github.com/AaronLay10/ChallengeWizard/internal/version"
	"github.com/AaronLay10/ChallengeWizard/internal/wizard"
)

// StateSource is the wizard as seen by the monitor. *wizard.Wizard
// implements it.
type StateSource interface {
	SessionID() string
	CurrentIndex() int
	CurrentStep() steps.Definition
	Progress() float64
	StepStatuses() []wizard.StepStatus
	Summary() steps.Summary
}

// ChallengeLister lists launched challenges. *postgres.Client implements it.
type ChallengeLister interface {
	Challenges(ctx context.Context, limit int) ([]postgres.ChallengeRow, error)
}

// Check reports whether a dependency is usable.
type Check func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithState exposes the wizard at /state.
func WithState(src StateSource) Option {
	return func(s *Server) { s.state = src }
}

// WithChallenges exposes launched challenges at /challenges.
func WithChallenges(l ChallengeLister) Option {
	return func(s *Server) { s.challenges = l }
}

// WithCheck adds a named readiness check to /health.
func WithCheck(name string, c Check) Option {
	return func(s *Server) { s.checks[name] = c }
}

// WithGatherer serves metrics from g alongside the monitor's own.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) { s.gatherers = append(s.gatherers, g) }
}

// WithBasicAuth protects every endpoint except /health and /metrics.
// Empty credentials leave the monitor open.
func WithBasicAuth(user, pass string) Option {
	return func(s *Server) { s.auth = credentials{user: user, pass: pass} }
}

// Server is the monitor HTTP server.
type Server struct {
	log        *zap.Logger
	state      StateSource
	challenges ChallengeLister
	checks     map[string]Check
	auth       credentials
	gatherers  prometheus.Gatherers
	started    time.Time
	mux        *http.ServeMux
}

// New builds the server and its routes.
func New(opts ...Option) *Server {
	s := &Server{
		log:     zap.NewNop(),
		checks:  map[string]Check{},
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mux = http.NewServeMux()
	s.mux.HandleFunc("/health", s.healthHandler)
	s.mux.Handle("/metrics", s.metricsHandler())
	s.mux.HandleFunc("/events", s.requireAuth(s.eventsHandler))
	s.mux.HandleFunc("/ws/events", s.requireAuth(s.wsEventsHandler))
	s.mux.HandleFunc("/state", s.requireAuth(s.stateHandler))
	s.mux.HandleFunc("/challenges", s.requireAuth(s.challengesHandler))
	return s
}

// Handler returns the routed handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.Serve(ln) }()
	s.log.Info("monitor listening", zap.String("addr", ln.Addr().String()))
	events.Emit("info", "system.monitor_started", "", map[string]interface{}{
		"addr": ln.Addr().String(),
	})

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	// Hijacked websocket connections are not tracked by Shutdown.
	events.CloseAllSubscribers()
	err := srv.Shutdown(shutdownCtx)
	if serr := <-errc; serr != nil && !errors.Is(serr, http.ErrServerClosed) && err == nil {
		err = serr
	}
	return err
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Service   string            `json:"service"`
	Version   string            `json:"version"`
	Hostname  string            `json:"hostname"`
	Uptime    float64           `json:"uptime_seconds"`
	Checks    map[string]string `json:"checks,omitempty"`
	Timestamp string            `json:"ts"`
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	host, _ := os.Hostname()
	resp := HealthResponse{
		Status:    "ok",
		Service:   "challenge-wizard",
		Version:   version.Version,
		Hostname:  host,
		Uptime:    time.Since(s.started).Seconds(),
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
	}

	code := http.StatusOK
	if len(s.checks) > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		resp.Checks = make(map[string]string, len(s.checks))
		for name, check := range s.checks {
			if err := check(ctx); err != nil {
				resp.Checks[name] = err.Error()
				resp.Status = "degraded"
				code = http.StatusServiceUnavailable
				continue
			}
			resp.Checks[name] = "ok"
		}
	}
	writeJSON(w, code, resp)
}

func (s *Server) eventsHandler(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, events.RecentEvents(limit))
}

// StateResponse is the /state payload.
type StateResponse struct {
	SessionID    string              `json:"session_id"`
	CurrentIndex int                 `json:"current_index"`
	CurrentStep  steps.Definition    `json:"current_step"`
	Progress     float64             `json:"progress"`
	Steps        []wizard.StepStatus `json:"steps"`
	Summary      steps.Summary       `json:"summary"`
}

func (s *Server) stateHandler(w http.ResponseWriter, r *http.Request) {
	if s.state == nil {
		writeError(w, http.StatusServiceUnavailable, "no active wizard")
		return
	}
	writeJSON(w, http.StatusOK, StateResponse{
		SessionID:    s.state.SessionID(),
		CurrentIndex: s.state.CurrentIndex(),
		CurrentStep:  s.state.CurrentStep(),
		Progress:     s.state.Progress(),
		Steps:        s.state.StepStatuses(),
		Summary:      s.state.Summary(),
	})
}

func (s *Server) challengesHandler(w http.ResponseWriter, r *http.Request) {
	if s.challenges == nil {
		writeError(w, http.StatusServiceUnavailable, "challenge store not configured")
		return
	}
	limit, err := queryLimit(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if limit == 0 {
		limit = 50
	}
	rows, err := s.challenges.Challenges(r.Context(), limit)
	if err != nil {
		s.log.Warn("list challenges failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list challenges")
		return
	}
	if rows == nil {
		rows = []postgres.ChallengeRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}

func queryLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, errors.New("limit must be a non-negative integer")
	}
	return n, nil
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
