package usecase

import (
	"context"
	"errors"
	"io"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/shopspring/decimal"
)

var (
	ErrDuplicate = errors.New("duplicate idempotency key")
	ErrNotFound  = errors.New("not found")
)

// Persistence shape of a confirmed order (kept out of domain).
type OrderRecord struct {
	Reference          string
	PaymentStatus      string
	NotificationStatus string
	MessageID          string
	NotificationError  string
	AmountCents        int64
	Currency           string
	DraftJSON          string
	AttachmentJSON     string
	ConfirmedAt        time.Time
}

const (
	NotificationSent    = "SENT"
	NotificationFailed  = "FAILED"
	NotificationPending = "NONE"
)

// DraftStore holds pending order drafts keyed by reference, each with an expiry.
type DraftStore interface {
	Save(ctx context.Context, d domain.OrderDraft) error
	Get(ctx context.Context, reference string) (domain.OrderDraft, bool, error)
	// Take reads and deletes in one step; only one caller ever gets the draft.
	Take(ctx context.Context, reference string) (domain.OrderDraft, bool, error)
	Delete(ctx context.Context, reference string) error
}

type SessionStore interface {
	Get(ctx context.Context, reference string) (domain.CheckoutSession, bool, error)
	Put(ctx context.Context, s domain.CheckoutSession) error
}

type IdempotencyStore interface {
	TryLock(ctx context.Context, scope, key string) (bool, error)
	Remember(ctx context.Context, scope, key, value string) error
	Recall(ctx context.Context, scope, key string) (string, bool, error)
	// Unlock releases a lock taken by TryLock so the key can be used again.
	Unlock(ctx context.Context, scope, key string) error
}

type PaymentGateway interface {
	RequestPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error)
}

type AttachmentContent struct {
	domain.Attachment
	Data []byte
}

type NotifyResult struct {
	Success   bool
	MessageID string
	Error     string
}

type Notifier interface {
	Notify(ctx context.Context, d domain.OrderDraft, att *AttachmentContent) NotifyResult
}

type BlobStore interface {
	Put(ctx context.Context, key, contentType string, r io.Reader) (string, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Delete(ctx context.Context, path string) error
}

type AttachmentIndex interface {
	Put(ctx context.Context, a domain.Attachment) error
	Get(ctx context.Context, reference string) (domain.Attachment, bool, error)
	Delete(ctx context.Context, reference string) error
}

type OrderLedger interface {
	RecordConfirmation(ctx context.Context, rec *OrderRecord) error
	GetByReference(ctx context.Context, reference string) (*OrderRecord, error)
	ListFailedNotifications(ctx context.Context, limit int) ([]OrderRecord, error)
	UpdateNotification(ctx context.Context, reference, status, messageID, errMsg string) error
	UpdatePaymentStatusIf(ctx context.Context, reference, fromStatus, toStatus string) (bool, error)
	InsertPaymentStatus(ctx context.Context, reference, status string, amountCents int64, currency string) error
}

// Catalog returns the authoritative unit price of a product variant.
type Catalog interface {
	UnitPrice(ctx context.Context, productID, inkType string) (decimal.Decimal, bool, error)
}

// OutcomeBroadcaster fans an outcome out to every listener of the same reference.
type OutcomeBroadcaster interface {
	Publish(ctx context.Context, o domain.Outcome) error
	Subscribe(ctx context.Context, reference string) (<-chan domain.Outcome, func(), error)
}

type PaymentEventPublisher interface {
	PublishPaymentEvent(ctx context.Context, msg PaymentStatusChangedMsg) error
}

type NotificationCommandPublisher interface {
	PublishResend(ctx context.Context, msg NotificationResendMsg) error
}
