// Package postgres stores the wizard's event log and launched challenges.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Config holds connection settings. Empty fields fall back to the PG*
// environment variables and then to local defaults.
type Config struct {
	Host      string `yaml:"host"`
	Port      string `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"-"`
	Database  string `yaml:"database"`
	SSLMode   string `yaml:"sslmode"`
	Workspace string `yaml:"workspace"`
}

// DSN builds the lib/pq connection string.
func (c Config) DSN() string {
	parts := []string{
		"host=" + firstNonEmpty(c.Host, getEnv("PGHOST", "127.0.0.1")),
		"port=" + firstNonEmpty(c.Port, getEnv("PGPORT", "5432")),
		"user=" + firstNonEmpty(c.User, getEnv("PGUSER", "wizard")),
	}
	if pw := firstNonEmpty(c.Password, os.Getenv("PGPASSWORD")); pw != "" {
		parts = append(parts, "password="+pw)
	}
	parts = append(parts,
		"dbname="+firstNonEmpty(c.Database, getEnv("PGDATABASE", "wizard")),
		"sslmode="+firstNonEmpty(c.SSLMode, "disable"),
	)
	return strings.Join(parts, " ")
}

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID   int64                  `json:"event_id"`
	Timestamp time.Time              `json:"ts"`
	Level     string                 `json:"level"`
	Event     string                 `json:"event"`
	Message   *string                `json:"msg,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Workspace string                 `json:"workspace"`
	SessionID *string                `json:"session_id,omitempty"`
}

// ChallengeRow is a launched challenge.
type ChallengeRow struct {
	ChallengeID int64           `json:"challenge_id"`
	SessionID   string          `json:"session_id"`
	Title       string          `json:"title"`
	Data        json.RawMessage `json:"data"`
	LaunchedAt  time.Time       `json:"launched_at"`
}

// AppendTimeout bounds a single event insert.
const AppendTimeout = 2 * time.Second

// Client manages the Postgres connection.
type Client struct {
	db            *sql.DB
	workspace     string
	appendTimeout time.Duration
}

// New connects, pings and creates the tables if needed.
func New(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:            db,
		workspace:     firstNonEmpty(cfg.Workspace, "default"),
		appendTimeout: AppendTimeout,
	}

	if err := client.createTables(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Client) createTables(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS events (
			event_id   BIGSERIAL PRIMARY KEY,
			ts         TIMESTAMPTZ NOT NULL,
			level      TEXT NOT NULL,
			event      TEXT NOT NULL,
			msg        TEXT,
			fields     JSONB,
			workspace  TEXT NOT NULL,
			session_id TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_events_ts ON events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_events_workspace ON events(workspace);

		CREATE TABLE IF NOT EXISTS challenges (
			challenge_id BIGSERIAL PRIMARY KEY,
			session_id   TEXT NOT NULL,
			workspace    TEXT NOT NULL,
			title        TEXT NOT NULL,
			data         JSONB NOT NULL,
			launched_at  TIMESTAMPTZ NOT NULL
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_challenges_session ON challenges(session_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts an event into the database. Events are emitted from
// callers without a context, so the insert carries its own deadline.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, sessionID string) error {
	var fieldsJSON []byte
	var err error
	if fields != nil {
		fieldsJSON, err = json.Marshal(fields)
		if err != nil {
			return fmt.Errorf("failed to marshal fields: %w", err)
		}
	}

	var msgPtr *string
	if msg != "" {
		msgPtr = &msg
	}

	var sessionPtr *string
	if sessionID != "" {
		sessionPtr = &sessionID
	}

	query := `
		INSERT INTO events (ts, level, event, msg, fields, workspace, session_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	timeout := c.appendTimeout
	if timeout <= 0 {
		timeout = AppendTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if _, err := c.db.ExecContext(ctx, query, ts, level, event, msgPtr, fieldsJSON, c.workspace, sessionPtr); err != nil {
		return fmt.Errorf("append %s: %w", event, err)
	}
	return nil
}

// Query returns the last N events from the database in descending order by timestamp.
func (c *Client) Query(ctx context.Context, limit int) ([]EventRow, error) {
	limit = clampLimit(limit)

	query := `
		SELECT event_id, ts, level, event, msg, fields, workspace, session_id
		FROM events
		WHERE workspace = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, c.workspace, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, sessionID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.Workspace, &sessionID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if sessionID.Valid {
			e.SessionID = &sessionID.String
		}
		if len(fieldsJSON) > 0 {
			if err := json.Unmarshal(fieldsJSON, &e.Fields); err != nil {
				return nil, fmt.Errorf("failed to unmarshal fields: %w", err)
			}
		}

		events = append(events, e)
	}

	return events, rows.Err()
}

// SaveChallenge stores a launched challenge. Launching the same session
// twice replaces the stored data.
func (c *Client) SaveChallenge(ctx context.Context, sessionID, title string, data json.RawMessage, launchedAt time.Time) (int64, error) {
	query := `
		INSERT INTO challenges (session_id, workspace, title, data, launched_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
			SET title = EXCLUDED.title, data = EXCLUDED.data, launched_at = EXCLUDED.launched_at
		RETURNING challenge_id
	`
	var id int64
	if err := c.db.QueryRowContext(ctx, query, sessionID, c.workspace, title, []byte(data), launchedAt).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to save challenge: %w", err)
	}
	return id, nil
}

// Challenges lists launched challenges, newest first.
func (c *Client) Challenges(ctx context.Context, limit int) ([]ChallengeRow, error) {
	query := `
		SELECT challenge_id, session_id, title, data, launched_at
		FROM challenges
		WHERE workspace = $1
		ORDER BY launched_at DESC
		LIMIT $2
	`
	rows, err := c.db.QueryContext(ctx, query, c.workspace, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChallengeRow
	for rows.Next() {
		var r ChallengeRow
		var data []byte
		if err := rows.Scan(&r.ChallengeID, &r.SessionID, &r.Title, &data, &r.LaunchedAt); err != nil {
			return nil, err
		}
		r.Data = json.RawMessage(data)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return 200
	}
	if limit > 10000 {
		return 10000
	}
	return limit
}
