package repo

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLedger(t *testing.T) (*MySQLOrderLedger, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewMySQLOrderLedger(db), mock
}

var ledgerCols = []string{"reference", "payment_status", "notification_status", "message_id", "notification_error",
	"amount_cents", "currency", "draft_json", "attachment_json", "confirmed_at"}

func TestRecordConfirmation_UpsertKeepsPaymentStatus(t *testing.T) {
	l, mock := newLedger(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO orders (")).
		WithArgs("ORDER-1", "PENDING", usecase.NotificationSent, "msg-1", "", int64(10010500), "COP", `{"reference":"ORDER-1"}`, "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := l.RecordConfirmation(context.Background(), &usecase.OrderRecord{
		Reference: "ORDER-1", PaymentStatus: "PENDING", NotificationStatus: usecase.NotificationSent,
		MessageID: "msg-1", AmountCents: 10010500, Currency: "COP",
		DraftJSON: `{"reference":"ORDER-1"}`, ConfirmedAt: at,
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByReference(t *testing.T) {
	l, mock := newLedger(t)
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT .* FROM orders WHERE reference=\\?").
		WithArgs("ORDER-1").
		WillReturnRows(sqlmock.NewRows(ledgerCols).
			AddRow("ORDER-1", "PAID", "FAILED", nil, "timeout", int64(500), "COP", `{}`, nil, at))

	rec, err := l.GetByReference(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, "PAID", rec.PaymentStatus)
	assert.Equal(t, "FAILED", rec.NotificationStatus)
	assert.Equal(t, "", rec.MessageID)
	assert.Equal(t, "timeout", rec.NotificationError)
	assert.Equal(t, "", rec.AttachmentJSON)
	assert.True(t, rec.ConfirmedAt.Equal(at))
}

func TestGetByReference_NotFound(t *testing.T) {
	l, mock := newLedger(t)
	mock.ExpectQuery("SELECT .* FROM orders").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := l.GetByReference(context.Background(), "missing")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestListFailedNotifications(t *testing.T) {
	l, mock := newLedger(t)
	mock.ExpectQuery("WHERE notification_status = \\?").
		WithArgs(usecase.NotificationFailed, 50).
		WillReturnRows(sqlmock.NewRows(ledgerCols).
			AddRow("ORDER-1", "PENDING", "FAILED", nil, "smtp", int64(100), "COP", `{}`, nil, nil).
			AddRow("ORDER-2", "PAID", "FAILED", nil, "smtp", int64(200), "COP", `{}`, `{}`, nil))

	recs, err := l.ListFailedNotifications(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "ORDER-2", recs[1].Reference)
	assert.True(t, recs[0].ConfirmedAt.IsZero())
}

func TestUpdatePaymentStatusIf(t *testing.T) {
	l, mock := newLedger(t)
	mock.ExpectExec("UPDATE orders\\s+SET payment_status").
		WithArgs("PAID", "ORDER-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE orders\\s+SET payment_status").
		WithArgs("PAID", "ORDER-1", "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := l.UpdatePaymentStatusIf(context.Background(), "ORDER-1", "PENDING", "PAID")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = l.UpdatePaymentStatusIf(context.Background(), "ORDER-1", "PENDING", "PAID")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUpdateNotification_NotFound(t *testing.T) {
	l, mock := newLedger(t)
	mock.ExpectExec("SET notification_status").
		WithArgs("SENT", "m-1", "", "ORDER-9").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := l.UpdateNotification(context.Background(), "ORDER-9", "SENT", "m-1", "")
	assert.ErrorIs(t, err, usecase.ErrNotFound)
}

func TestInsertPaymentStatus_IgnoresExisting(t *testing.T) {
	l, mock := newLedger(t)
	mock.ExpectExec("INSERT IGNORE INTO orders").
		WithArgs("ORDER-1", "PAID", usecase.NotificationPending, int64(500), "COP").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, l.InsertPaymentStatus(context.Background(), "ORDER-1", "PAID", 500, "COP"))
	require.NoError(t, mock.ExpectationsWereMet())
}
