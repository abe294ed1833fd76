// Package database persists payment handoffs, provisioned demo accounts,
// and audit events in PostgreSQL. The onboarding flows run without it;
// the store adds durability and idempotent payment callbacks.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	_ "github.com/lib/pq"

	"github.com/BitFund-Trading/onboarding_layer/internal/payment"
)

// Store implements payment.CheckoutStore and the audit log backed by
// PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ payment.CheckoutStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return New(db), nil
}

// Close releases the underlying handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the schema when it does not exist yet.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS payment_handoffs (
	session_id  TEXT PRIMARY KEY,
	user_id     INTEGER NOT NULL,
	customer_id INTEGER NOT NULL,
	plan_id     TEXT NOT NULL,
	status      TEXT NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS demo_accounts (
	login          TEXT PRIMARY KEY,
	user_id        INTEGER NOT NULL,
	prop_trader_id INTEGER NOT NULL,
	server         TEXT NOT NULL,
	balance        DOUBLE PRECISION NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_events (
	id         BIGSERIAL PRIMARY KEY,
	trace_id   TEXT NOT NULL,
	event      TEXT NOT NULL,
	user_id    INTEGER,
	details    JSONB,
	created_at TIMESTAMPTZ NOT NULL
);
`

// --- payment.CheckoutStore --------------------------------------------------

func (s *Store) SaveHandoff(ctx context.Context, h *payment.Handoff) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payment_handoffs (session_id, user_id, customer_id, plan_id, status, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (session_id) DO UPDATE
		SET status = EXCLUDED.status, updated_at = EXCLUDED.updated_at
	`, h.SessionID, h.UserID, h.CustomerID, h.PlanID, string(h.Status), h.UpdatedAt)
	return err
}

func (s *Store) GetHandoff(ctx context.Context, sessionID string) (*payment.Handoff, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, customer_id, plan_id, status, updated_at
		FROM payment_handoffs
		WHERE session_id = $1
	`, sessionID)

	var (
		h      payment.Handoff
		status string
	)
	if err := row.Scan(&h.SessionID, &h.UserID, &h.CustomerID, &h.PlanID, &status, &h.UpdatedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	h.Status = payment.Status(status)
	return &h, nil
}

func (s *Store) UpdateStatus(ctx context.Context, sessionID string, status payment.Status) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE payment_handoffs
		SET status = $2, updated_at = NOW()
		WHERE session_id = $1
	`, sessionID, string(status))
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// --- demo accounts ----------------------------------------------------------

// SaveDemoAccount records a provisioned demo account. Credentials other
// than the login stay out of the database.
func (s *Store) SaveDemoAccount(ctx context.Context, userID, propTraderID int, demo *payment.DemoAccount) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO demo_accounts (login, user_id, prop_trader_id, server, balance, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
	`, demo.Login, userID, propTraderID, demo.Server, demo.Balance)
	return err
}

// --- audit log --------------------------------------------------------------

// AuditEvent is one onboarding action worth keeping.
type AuditEvent struct {
	TraceID string
	Event   string
	UserID  int
	Details map[string]interface{}
}

// RecordAudit appends an audit event.
func (s *Store) RecordAudit(ctx context.Context, ev AuditEvent) error {
	detailsJSON, err := json.Marshal(ev.Details)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_events (trace_id, event, user_id, details, created_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, ev.TraceID, ev.Event, ev.UserID, detailsJSON)
	return err
}
