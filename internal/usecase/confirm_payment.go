package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
)

// ConfirmScope is the idempotency scope of confirmation locks, keyed by reference.
const ConfirmScope = "confirm"

// finalizeTimeout bounds notification and ledger work once a confirmation is committed.
const finalizeTimeout = 30 * time.Second

func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
}

type ConfirmInput struct {
	Reference string
	Draft     *domain.OrderDraft
}

type ConfirmOutput struct {
	Reference    string
	EmailSent    bool
	LogoAttached bool
	WhatsAppURL  string
	Message      string
}

// ConfirmPayment notifies the shop about a paid order, records the outcome in the
// ledger and applies the attachment retention rule.
type ConfirmPayment struct {
	drafts   DraftStore
	idem     IdempotencyStore
	uploads  *UploadAttachment
	notifier Notifier
	ledger   OrderLedger

	currency string
	exponent int32
	whatsApp string
	now      func() time.Time
}

func NewConfirmPayment(drafts DraftStore, idem IdempotencyStore, uploads *UploadAttachment, notifier Notifier,
	ledger OrderLedger, currency string, exponent int32, whatsAppNumber string) *ConfirmPayment {
	return &ConfirmPayment{
		drafts:   drafts,
		idem:     idem,
		uploads:  uploads,
		notifier: notifier,
		ledger:   ledger,
		currency: currency,
		exponent: exponent,
		whatsApp: whatsAppNumber,
		now:      time.Now,
	}
}

// Execute confirms an order whose details are supplied by the caller. The total is
// recomputed from the items; a reference is confirmed at most once.
func (uc *ConfirmPayment) Execute(ctx context.Context, in ConfirmInput) (ConfirmOutput, error) {
	ref := strings.TrimSpace(in.Reference)
	if ref == "" {
		return ConfirmOutput{}, domain.NewValidationError("reference", "required")
	}
	if in.Draft == nil {
		return ConfirmOutput{}, domain.NewValidationError("orderData", "required")
	}
	draft := *in.Draft
	if draft.Reference == "" {
		draft.Reference = ref
	}
	if draft.Reference != ref {
		return ConfirmOutput{}, domain.NewValidationError("orderData.reference", "does not match reference")
	}
	if len(draft.Items) == 0 {
		return ConfirmOutput{}, domain.NewValidationError("orderData.items", "required")
	}
	draft.Items = append([]domain.CartLine(nil), in.Draft.Items...)
	for i := range draft.Items {
		draft.Items[i] = draft.Items[i].Normalize()
	}
	draft.Total = domain.ComputeTotal(draft.Items)
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = uc.now().UTC()
	}

	ok, err := uc.idem.TryLock(ctx, ConfirmScope, ref)
	if err != nil {
		return ConfirmOutput{}, err
	}
	if !ok {
		return ConfirmOutput{}, ErrDuplicate
	}
	ctx, cancel := detach(ctx)
	defer cancel()
	// a server-side copy, if any, must not be confirmed a second time
	if err := uc.drafts.Delete(ctx, ref); err != nil {
		logging.FromCtx(ctx).Warn("draft delete failed", "reference", ref, "err", err)
	}

	return uc.finalize(ctx, draft), nil
}

// finalize runs once per reference; the caller holds the confirm lock.
func (uc *ConfirmPayment) finalize(ctx context.Context, draft domain.OrderDraft) ConfirmOutput {
	l := logging.FromCtx(ctx).With("reference", draft.Reference)

	att, err := uc.uploads.Load(ctx, draft.Reference)
	if err != nil {
		l.Warn("attachment unavailable, notifying without it", "err", err)
		att = nil
	}

	res := uc.notifier.Notify(ctx, draft, att)
	if res.Success {
		l.Info("order notification sent", "message_id", res.MessageID)
	} else {
		l.Error("order notification failed", "err", res.Error)
	}

	rec := &OrderRecord{
		Reference:          draft.Reference,
		PaymentStatus:      string(domain.PaymentPending),
		NotificationStatus: NotificationFailed,
		MessageID:          res.MessageID,
		NotificationError:  res.Error,
		AmountCents:        domain.ToMinorUnits(draft.Total, uc.exponent),
		Currency:           uc.currency,
		ConfirmedAt:        uc.now().UTC(),
	}
	if res.Success {
		rec.NotificationStatus = NotificationSent
	}
	if b, err := json.Marshal(draft); err == nil {
		rec.DraftJSON = string(b)
	}
	if att != nil {
		if b, err := json.Marshal(att.Attachment); err == nil {
			rec.AttachmentJSON = string(b)
		}
	}
	if err := uc.ledger.RecordConfirmation(ctx, rec); err != nil {
		l.Error("ledger record failed", "err", err)
	}

	// keep the blob after a failed notification so a resend can attach it
	if res.Success && att != nil {
		_ = uc.uploads.Discard(ctx, draft.Reference)
	}

	out := ConfirmOutput{
		Reference:    draft.Reference,
		EmailSent:    res.Success,
		LogoAttached: att != nil,
		WhatsAppURL:  WhatsAppLink(uc.whatsApp, draft, uc.currency),
	}
	if res.Success {
		out.Message = fmt.Sprintf("Payment confirmed. Order %s has been registered.", draft.Reference)
	} else {
		out.Message = fmt.Sprintf("Payment confirmed for order %s, but the notification could not be sent. "+
			"We will follow up manually; keep this reference.", draft.Reference)
	}
	return out
}
