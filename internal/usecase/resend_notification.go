package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
)

// ResendNotification lets operators retry a failed order notification out of band.
// Request enqueues a command; Handle is the worker side.
type ResendNotification struct {
	ledger    OrderLedger
	uploads   *UploadAttachment
	notifier  Notifier
	publisher NotificationCommandPublisher
	now       func() time.Time
}

func NewResendNotification(ledger OrderLedger, uploads *UploadAttachment, notifier Notifier,
	publisher NotificationCommandPublisher) *ResendNotification {
	return &ResendNotification{ledger: ledger, uploads: uploads, notifier: notifier, publisher: publisher, now: time.Now}
}

func (uc *ResendNotification) Request(ctx context.Context, reference, requestedBy string) error {
	rec, err := uc.ledger.GetByReference(ctx, reference)
	if err != nil {
		return err
	}
	if rec.NotificationStatus == NotificationSent {
		return ErrDuplicate
	}
	if rec.DraftJSON == "" {
		return domain.NewValidationError("reference", "no order details recorded")
	}
	return uc.publisher.PublishResend(ctx, NotificationResendMsg{
		Reference:   reference,
		RequestedBy: requestedBy,
		RequestedAt: uc.now().UTC(),
	})
}

func (uc *ResendNotification) ListFailed(ctx context.Context, limit int) ([]OrderRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return uc.ledger.ListFailedNotifications(ctx, limit)
}

// Handle sends the notification again from the ledger snapshot. Already-sent rows are skipped.
func (uc *ResendNotification) Handle(ctx context.Context, msg NotificationResendMsg) error {
	l := logging.FromCtx(ctx).With("reference", msg.Reference, "requested_by", msg.RequestedBy)

	rec, err := uc.ledger.GetByReference(ctx, msg.Reference)
	if err != nil {
		return err
	}
	if rec.NotificationStatus == NotificationSent {
		l.Info("notification already sent, skipping resend")
		return nil
	}

	var draft domain.OrderDraft
	if err := json.Unmarshal([]byte(rec.DraftJSON), &draft); err != nil {
		// not retryable
		l.Error("ledger draft unreadable", "err", err)
		return nil
	}

	att, err := uc.uploads.Load(ctx, msg.Reference)
	if att == nil && err == nil && rec.AttachmentJSON != "" {
		// the index entry expires with the draft; the ledger still knows the blob
		var stored domain.Attachment
		if err = json.Unmarshal([]byte(rec.AttachmentJSON), &stored); err == nil {
			att, err = uc.uploads.Read(ctx, stored)
		}
	}
	if err != nil {
		l.Warn("attachment unavailable for resend", "err", err)
		att = nil
	}

	res := uc.notifier.Notify(ctx, draft, att)
	status := NotificationFailed
	if res.Success {
		status = NotificationSent
	}
	if err := uc.ledger.UpdateNotification(ctx, msg.Reference, status, res.MessageID, res.Error); err != nil {
		return fmt.Errorf("update notification: %w", err)
	}
	if !res.Success {
		l.Error("notification resend failed", "err", res.Error)
		return nil
	}
	if att != nil {
		uc.uploads.Release(ctx, att.Attachment)
	}
	l.Info("notification resent", "message_id", res.MessageID)
	return nil
}
