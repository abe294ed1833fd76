package database

import (
	"context"
	"database/sql"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/BitFund-Trading/onboarding_layer/internal/payment"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db), mock
}

func TestSaveHandoff_UpsertsBySessionID(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Unix(1700000000, 0)
	mock.ExpectExec("INSERT INTO payment_handoffs").
		WithArgs("cs_test_1", 42, 11, "elite", "payment_pending", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := store.SaveHandoff(context.Background(), &payment.Handoff{
		SessionID:  "cs_test_1",
		UserID:     42,
		CustomerID: 11,
		PlanID:     "elite",
		Status:     payment.StatusPaymentPending,
		UpdatedAt:  now,
	})
	if err != nil {
		t.Fatalf("SaveHandoff: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetHandoff_ReturnsNilWhenAbsent(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery("SELECT session_id, user_id").
		WithArgs("cs_missing").
		WillReturnError(sql.ErrNoRows)

	h, err := store.GetHandoff(context.Background(), "cs_missing")
	if err != nil {
		t.Fatalf("GetHandoff: %v", err)
	}
	if h != nil {
		t.Errorf("handoff = %+v, want nil", h)
	}
}

func TestGetHandoff_ScansStatus(t *testing.T) {
	store, mock := newMockStore(t)

	now := time.Unix(1700000000, 0)
	rows := sqlmock.NewRows([]string{"session_id", "user_id", "customer_id", "plan_id", "status", "updated_at"}).
		AddRow("cs_test_1", 42, 11, "pro", "payment_verified", now)
	mock.ExpectQuery("SELECT session_id, user_id").
		WithArgs("cs_test_1").
		WillReturnRows(rows)

	h, err := store.GetHandoff(context.Background(), "cs_test_1")
	if err != nil {
		t.Fatalf("GetHandoff: %v", err)
	}
	if h.Status != payment.StatusPaymentVerified {
		t.Errorf("status = %s", h.Status)
	}
	if h.PlanID != "pro" || h.UserID != 42 {
		t.Errorf("handoff = %+v", h)
	}
}

func TestUpdateStatus_UnknownSession(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("UPDATE payment_handoffs").
		WithArgs("cs_missing", "payment_verified").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.UpdateStatus(context.Background(), "cs_missing", payment.StatusPaymentVerified)
	if err != sql.ErrNoRows {
		t.Errorf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestRecordAudit_MarshalsDetails(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO audit_events").
		WithArgs("trace-1", "signup.completed", 42, []byte(`{"flow":"trader"}`)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.RecordAudit(context.Background(), AuditEvent{
		TraceID: "trace-1",
		Event:   "signup.completed",
		UserID:  42,
		Details: map[string]interface{}{"flow": "trader"},
	})
	if err != nil {
		t.Fatalf("RecordAudit: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveDemoAccount(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO demo_accounts").
		WithArgs("12345678", 42, 33, "BitFund-Demo01", 100000.0).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := store.SaveDemoAccount(context.Background(), 42, 33, &payment.DemoAccount{
		Login:   "12345678",
		Server:  "BitFund-Demo01",
		Balance: 100000,
	})
	if err != nil {
		t.Fatalf("SaveDemoAccount: %v", err)
	}
}
