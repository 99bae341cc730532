package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Wilyos/sistemas-box/internal/usecase"
)

// MySQLOrderLedger is the durable record of confirmed orders and their notification outcome.
type MySQLOrderLedger struct{ db *sql.DB }

func NewMySQLOrderLedger(db *sql.DB) *MySQLOrderLedger { return &MySQLOrderLedger{db: db} }

const ledgerColumns = `reference,payment_status,notification_status,message_id,notification_error,
amount_cents,currency,draft_json,attachment_json,confirmed_at`

// RecordConfirmation upserts the row. A payment status already written by a
// webhook event is kept.
func (r *MySQLOrderLedger) RecordConfirmation(ctx context.Context, rec *usecase.OrderRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO orders (`+ledgerColumns+`,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?,NOW(),NOW())
ON DUPLICATE KEY UPDATE
  notification_status = VALUES(notification_status),
  message_id = VALUES(message_id),
  notification_error = VALUES(notification_error),
  amount_cents = VALUES(amount_cents),
  currency = VALUES(currency),
  draft_json = VALUES(draft_json),
  attachment_json = VALUES(attachment_json),
  confirmed_at = VALUES(confirmed_at),
  updated_at = NOW()`,
		rec.Reference, rec.PaymentStatus, rec.NotificationStatus, rec.MessageID, rec.NotificationError,
		rec.AmountCents, rec.Currency, rec.DraftJSON, rec.AttachmentJSON, nullTime(rec.ConfirmedAt),
	)
	return err
}

func (r *MySQLOrderLedger) GetByReference(ctx context.Context, reference string) (*usecase.OrderRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+ledgerColumns+` FROM orders WHERE reference=?`, reference)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, usecase.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListFailedNotifications returns the oldest failures first.
func (r *MySQLOrderLedger) ListFailedNotifications(ctx context.Context, limit int) ([]usecase.OrderRecord, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT `+ledgerColumns+` FROM orders
WHERE notification_status = ?
ORDER BY confirmed_at ASC
LIMIT ?`, usecase.NotificationFailed, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []usecase.OrderRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (r *MySQLOrderLedger) UpdateNotification(ctx context.Context, reference, status, messageID, errMsg string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET notification_status = ?, message_id = ?, notification_error = ?, updated_at = NOW()
WHERE reference = ?`,
		status, messageID, errMsg, reference,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return usecase.ErrNotFound
	}
	return nil
}

func (r *MySQLOrderLedger) UpdatePaymentStatusIf(ctx context.Context, reference, fromStatus, toStatus string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
UPDATE orders
SET payment_status = ?, updated_at = NOW()
WHERE reference = ? AND payment_status = ?`,
		toStatus, reference, fromStatus,
	)
	if err != nil {
		return false, err
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	// rows == 0 → not found or status already moved on
	return rows > 0, nil
}

// InsertPaymentStatus creates a bare row for a payment event that arrived
// before the confirmation. An existing row is left alone.
func (r *MySQLOrderLedger) InsertPaymentStatus(ctx context.Context, reference, status string, amountCents int64, currency string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT IGNORE INTO orders (reference,payment_status,notification_status,amount_cents,currency,created_at,updated_at)
VALUES (?,?,?,?,?,NOW(),NOW())`,
		reference, status, usecase.NotificationPending, amountCents, currency,
	)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*usecase.OrderRecord, error) {
	var (
		rec         usecase.OrderRecord
		msgID       sql.NullString
		notifErr    sql.NullString
		draftJSON   sql.NullString
		attachJSON  sql.NullString
		confirmedAt sql.NullTime
	)
	if err := s.Scan(&rec.Reference, &rec.PaymentStatus, &rec.NotificationStatus, &msgID, &notifErr,
		&rec.AmountCents, &rec.Currency, &draftJSON, &attachJSON, &confirmedAt); err != nil {
		return nil, err
	}
	rec.MessageID = msgID.String
	rec.NotificationError = notifErr.String
	rec.DraftJSON = draftJSON.String
	rec.AttachmentJSON = attachJSON.String
	if confirmedAt.Valid {
		rec.ConfirmedAt = confirmedAt.Time
	}
	return &rec, nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

var _ usecase.OrderLedger = (*MySQLOrderLedger)(nil)
