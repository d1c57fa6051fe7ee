// Package audit is a best-effort sink for operational events —
// quarantined stashes, poison messages, process restarts — written to a
// Postgres table so an operator can query what went wrong after the
// fact without grepping logs across every replica.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// EventType is the closed set of events worth auditing.
type EventType string

const (
	EventQuarantine EventType = "quarantine"
	EventPoison     EventType = "poison"
	EventRestart    EventType = "restart"
)

// Event is one row of the audit_log table.
type Event struct {
	Type      EventType              `json:"type"`
	Source    string                 `json:"source"`
	Message   string                 `json:"message"`
	Detail    map[string]interface{} `json:"detail,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

const insertEventSQL = `
INSERT INTO audit_log (event_type, source, message, detail, created_at)
VALUES ($1, $2, $3, $4, $5)`

// Sink writes Events to Postgres. A write failure is logged, never
// returned to the caller — the pipeline that triggered the event must
// keep running even when the audit trail itself is unavailable.
type Sink struct {
	db      *sqlx.DB
	timeout time.Duration
}

// Open connects to dsn and returns a Sink. A blank dsn disables
// auditing: Record becomes a no-op logged at debug level, so callers
// never need to nil-check the Sink.
func Open(dsn string, timeout time.Duration) (*Sink, error) {
	if dsn == "" {
		return &Sink{}, nil
	}

	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("audit: opening connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("audit: ping: %w", err)
	}

	return &Sink{db: db, timeout: timeout}, nil
}

func newWithDB(db *sqlx.DB, timeout time.Duration) *Sink {
	return &Sink{db: db, timeout: timeout}
}

func (s *Sink) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Record inserts an Event. now is the caller-supplied timestamp so
// tests can assert on it; production callers pass time.Now().
func (s *Sink) Record(ctx context.Context, event Event, now time.Time) {
	if s.db == nil {
		log.Debug().Str("type", string(event.Type)).Str("message", event.Message).
			Msg("audit: sink disabled, dropping event")
		return
	}

	event.CreatedAt = now

	detailJSON, err := json.Marshal(event.Detail)
	if err != nil {
		log.Error().Err(err).Msg("audit: marshaling detail failed")
		return
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.db.ExecContext(ctx, insertEventSQL,
		event.Type, event.Source, event.Message, detailJSON, event.CreatedAt); err != nil {
		log.Error().Err(err).Str("type", string(event.Type)).Msg("audit: insert failed, dropping event")
	}
}
