package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/felixgeelhaar/fortify/circuitbreaker"
	"github.com/felixgeelhaar/fortify/retry"
	_ "github.com/lib/pq"
)

// EventRow represents an event stored in Postgres.
type EventRow struct {
	EventID    int64                  `json:"event_id"`
	Timestamp  time.Time              `json:"ts"`
	Level      string                 `json:"level"`
	Event      string                 `json:"event"`
	Message    *string                `json:"msg,omitempty"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
	ScenarioID string                 `json:"scenario_id"`
	RunID      *string                `json:"run_id,omitempty"`
}

// Config holds connection parameters.
type Config struct {
	Host       string
	Port       string
	User       string
	Database   string
	Password   string
	ScenarioID string

	ConnectAttempts int
	ConnectDelay    time.Duration
}

// ConfigFromEnv reads PGHOST, PGPORT, PGUSER and PGDATABASE. The password
// is resolved by the caller so *_FILE secrets are honoured.
func ConfigFromEnv(scenarioID, password string) Config {
	return Config{
		Host:            getEnv("PGHOST", "127.0.0.1"),
		Port:            getEnv("PGPORT", "5432"),
		User:            getEnv("PGUSER", "gridrunner"),
		Database:        getEnv("PGDATABASE", "gridrunner"),
		Password:        password,
		ScenarioID:      scenarioID,
		ConnectAttempts: 5,
		ConnectDelay:    500 * time.Millisecond,
	}
}

// DSN renders the lib/pq connection string.
func (c Config) DSN() string {
	if c.Password != "" {
		return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
			c.Host, c.Port, c.User, c.Password, c.Database)
	}
	return fmt.Sprintf("host=%s port=%s user=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Database)
}

// Client manages the Postgres connection for the run event log.
type Client struct {
	db         *sql.DB
	scenarioID string
	breaker    circuitbreaker.CircuitBreaker[struct{}]
}

// New opens the database, retrying the initial ping with exponential
// backoff, and ensures the run_events table exists.
func New(ctx context.Context, cfg Config) (*Client, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	attempts := cfg.ConnectAttempts
	if attempts <= 0 {
		attempts = 1
	}
	r := retry.New[struct{}](retry.Config{
		MaxAttempts:   attempts,
		InitialDelay:  cfg.ConnectDelay,
		BackoffPolicy: retry.BackoffExponential,
		Multiplier:    2.0,
	})
	if _, err := r.Do(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, db.PingContext(ctx)
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	client := &Client{
		db:         db,
		scenarioID: cfg.ScenarioID,
		breaker: circuitbreaker.New[struct{}](circuitbreaker.Config{
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     10 * time.Second,
			ReadyToTrip: func(counts circuitbreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}

	if err := client.createTable(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create run_events table: %w", err)
	}

	return client, nil
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func (c *Client) createTable(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS run_events (
			event_id    BIGSERIAL PRIMARY KEY,
			ts          TIMESTAMPTZ NOT NULL,
			level       TEXT NOT NULL,
			event       TEXT NOT NULL,
			msg         TEXT,
			fields      JSONB,
			scenario_id TEXT NOT NULL,
			run_id      TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_run_events_ts ON run_events(ts DESC);
		CREATE INDEX IF NOT EXISTS idx_run_events_run_id ON run_events(run_id, event_id);
	`
	_, err := c.db.ExecContext(ctx, query)
	return err
}

// Append inserts an event. After repeated failures the breaker opens and
// Append fails fast until the database recovers.
func (c *Client) Append(ts time.Time, level, event, msg string, fields map[string]interface{}, runID string) error {
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

	var runPtr *string
	if runID != "" {
		runPtr = &runID
	}

	query := `
		INSERT INTO run_events (ts, level, event, msg, fields, scenario_id, run_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err = c.breaker.Execute(ctx, func(ctx context.Context) (struct{}, error) {
		_, err := c.db.ExecContext(ctx, query, ts, level, event, msgPtr, fieldsJSON, c.scenarioID, runPtr)
		return struct{}{}, err
	})
	return err
}

// Query returns the last N events for the scenario, newest first.
func (c *Client) Query(limit int) ([]EventRow, error) {
	if limit <= 0 {
		limit = 200
	}
	if limit > 10000 {
		limit = 10000
	}

	query := `
		SELECT event_id, ts, level, event, msg, fields, scenario_id, run_id
		FROM run_events
		WHERE scenario_id = $1
		ORDER BY ts DESC
		LIMIT $2
	`
	rows, err := c.db.Query(query, c.scenarioID, limit)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// QueryRun returns every event of one run in insertion order.
func (c *Client) QueryRun(ctx context.Context, runID string) ([]EventRow, error) {
	query := `
		SELECT event_id, ts, level, event, msg, fields, scenario_id, run_id
		FROM run_events
		WHERE run_id = $1
		ORDER BY event_id ASC
	`
	rows, err := c.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, err
	}
	return scanRows(rows)
}

// LatestRunID returns the run id of the most recent run.started event for
// the scenario, or "" when there is none.
func (c *Client) LatestRunID(ctx context.Context) (string, error) {
	query := `
		SELECT run_id FROM run_events
		WHERE scenario_id = $1 AND event = 'run.started' AND run_id IS NOT NULL
		ORDER BY event_id DESC
		LIMIT 1
	`
	var runID string
	err := c.db.QueryRowContext(ctx, query, c.scenarioID).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return runID, err
}

func scanRows(rows *sql.Rows) ([]EventRow, error) {
	defer rows.Close()

	var events []EventRow
	for rows.Next() {
		var e EventRow
		var fieldsJSON []byte
		var msg, runID sql.NullString

		if err := rows.Scan(&e.EventID, &e.Timestamp, &e.Level, &e.Event, &msg, &fieldsJSON, &e.ScenarioID, &runID); err != nil {
			return nil, err
		}

		if msg.Valid {
			e.Message = &msg.String
		}
		if runID.Valid {
			e.RunID = &runID.String
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

// Ping reports whether the database is reachable.
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
