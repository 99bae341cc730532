package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/shopspring/decimal"
)

const (
	submitScope = "checkout"

	OpenInPopup          = "popup"
	FallbackSameTab      = "same_tab_confirm"
	ReturnParamSuccess   = "payment_success"
	ReturnParamReference = "reference"
)

type CheckoutConfig struct {
	LotSize           int64
	RequireAttachment bool
	Currency          string
	MinorUnitExponent int32
	TotalTolerance    int64
}

type SubmitInput struct {
	Items    []domain.CartLine
	Customer domain.Customer
	// ClientTotal is what the browser displayed; it is checked, never charged.
	ClientTotal    *decimal.Decimal
	Attachment     *UploadFile
	IdempotencyKey string
}

type SubmitOutput struct {
	Reference     string               `json:"reference"`
	State         domain.CheckoutState `json:"state"`
	CheckoutURL   string               `json:"checkout_url"`
	PaymentLinkID string               `json:"payment_link_id"`
	AmountInCents int64                `json:"amount_in_cents"`
	OpenIn        string               `json:"open_in"`
	Fallback      string               `json:"fallback"`
}

// ReturnParams are the query parameters the payment page redirects back with.
type ReturnParams struct {
	Query url.Values
	// URL is the full return URL; the clean URL is derived from it.
	URL string
}

// CheckoutSession drives one checkout attempt from submission to confirmation.
// Its state is a persisted record keyed by reference, so any request (or tab)
// can resume it.
type CheckoutSession struct {
	drafts      DraftStore
	sessions    SessionStore
	idem        IdempotencyStore
	gateway     PaymentGateway
	uploads     *UploadAttachment
	confirm     *ConfirmPayment
	catalog     Catalog
	broadcaster OutcomeBroadcaster
	refs        *domain.ReferenceGenerator

	cfg CheckoutConfig
	now func() time.Time
}

func NewCheckoutSession(drafts DraftStore, sessions SessionStore, idem IdempotencyStore, gw PaymentGateway,
	uploads *UploadAttachment, confirm *ConfirmPayment, catalog Catalog, broadcaster OutcomeBroadcaster,
	refs *domain.ReferenceGenerator, cfg CheckoutConfig) *CheckoutSession {
	if cfg.LotSize <= 0 {
		cfg.LotSize = 1
	}
	if refs == nil {
		refs = domain.NewReferenceGenerator(nil)
	}
	return &CheckoutSession{
		drafts:      drafts,
		sessions:    sessions,
		idem:        idem,
		gateway:     gw,
		uploads:     uploads,
		confirm:     confirm,
		catalog:     catalog,
		broadcaster: broadcaster,
		refs:        refs,
		cfg:         cfg,
		now:         time.Now,
	}
}

// Submit validates the cart, persists the draft, stores the attachment and asks the
// gateway for a checkout URL, in that order.
func (uc *CheckoutSession) Submit(ctx context.Context, in SubmitInput) (SubmitOutput, error) {
	lines, err := uc.validate(in)
	if err != nil {
		return SubmitOutput{}, err
	}
	if lines, err = uc.reprice(ctx, lines); err != nil {
		return SubmitOutput{}, err
	}

	total := domain.ComputeTotal(lines)
	if in.ClientTotal != nil {
		got := domain.ToMinorUnits(*in.ClientTotal, uc.cfg.MinorUnitExponent)
		want := domain.ToMinorUnits(total, uc.cfg.MinorUnitExponent)
		if !domain.WithinTolerance(got, want, uc.cfg.TotalTolerance) {
			return SubmitOutput{}, domain.NewValidationError("total", "does not match the cart lines")
		}
	}

	remembered := false
	if in.IdempotencyKey != "" {
		if ref, ok, _ := uc.idem.Recall(ctx, submitScope, in.IdempotencyKey); ok {
			return uc.replay(ctx, ref)
		}
		ok, err := uc.idem.TryLock(ctx, submitScope, in.IdempotencyKey)
		if err != nil {
			return SubmitOutput{}, err
		}
		if !ok {
			return SubmitOutput{}, ErrDuplicate
		}
		// a failed attempt frees the key so the shopper can retry with it
		defer func() {
			if remembered {
				return
			}
			if err := uc.idem.Unlock(context.WithoutCancel(ctx), submitScope, in.IdempotencyKey); err != nil {
				logging.FromCtx(ctx).Warn("idempotency unlock failed", "key", in.IdempotencyKey, "err", err)
			}
		}()
	}

	ref := uc.refs.Next()
	l := logging.FromCtx(ctx).With("reference", ref)
	draft := domain.NewOrderDraft(ref, lines, in.Customer, uc.now())

	sess := domain.CheckoutSession{Reference: ref, State: domain.StateIdle}
	if err := sess.Advance(domain.StateSubmitting, uc.now()); err != nil {
		return SubmitOutput{}, err
	}
	if err := uc.sessions.Put(ctx, sess); err != nil {
		return SubmitOutput{}, fmt.Errorf("persist session: %w", err)
	}

	if err := uc.drafts.Save(ctx, draft); err != nil {
		uc.fail(ctx, &sess, domain.FailureInternal, err)
		return SubmitOutput{}, fmt.Errorf("order %s: persist draft: %w", ref, err)
	}

	if in.Attachment != nil {
		if _, err := uc.uploads.Upload(ctx, ref, in.Attachment); err != nil {
			uc.discard(ctx, ref)
			uc.fail(ctx, &sess, domain.FailureUpload, err)
			return SubmitOutput{}, fmt.Errorf("order %s: %w", ref, err)
		}
	}

	req := domain.NewPaymentRequest(draft, uc.cfg.Currency, uc.cfg.MinorUnitExponent)
	res, err := uc.gateway.RequestPayment(ctx, req)
	if err == nil && !res.Success {
		err = domain.NewGatewayRejected(0, res.ErrorMessage, res.ProviderPayload)
	}
	if err != nil {
		kind := domain.FailureGatewayRejected
		if errors.Is(err, domain.ErrGatewayUnreachable) {
			kind = domain.FailureGatewayUnreachable
		}
		uc.discard(ctx, ref)
		uc.fail(ctx, &sess, kind, err)
		l.Warn("payment request failed", "err", err)
		return SubmitOutput{}, fmt.Errorf("order %s: %w", ref, err)
	}

	if err := sess.Advance(domain.StateAwaitingExternalPayment, uc.now()); err != nil {
		return SubmitOutput{}, err
	}
	sess.CheckoutURL = res.CheckoutURL
	sess.PaymentLinkID = res.PaymentLinkID
	if err := uc.sessions.Put(ctx, sess); err != nil {
		l.Error("session persist failed", "err", err)
	}
	if in.IdempotencyKey != "" {
		if err := uc.idem.Remember(ctx, submitScope, in.IdempotencyKey, ref); err != nil {
			l.Warn("idempotency remember failed", "err", err)
		} else {
			remembered = true
		}
	}
	l.Info("awaiting external payment", "amount_in_cents", req.AmountInCents)

	return SubmitOutput{
		Reference:     ref,
		State:         sess.State,
		CheckoutURL:   res.CheckoutURL,
		PaymentLinkID: res.PaymentLinkID,
		AmountInCents: req.AmountInCents,
		OpenIn:        OpenInPopup,
		Fallback:      FallbackSameTab,
	}, nil
}

func (uc *CheckoutSession) validate(in SubmitInput) ([]domain.CartLine, error) {
	if err := in.Customer.Validate(); err != nil {
		return nil, err
	}
	if len(in.Items) == 0 {
		return nil, domain.NewValidationError("items", "cart is empty")
	}
	lines := make([]domain.CartLine, len(in.Items))
	for i, l := range in.Items {
		lines[i] = l.Normalize()
		if err := lines[i].Validate(uc.cfg.LotSize); err != nil {
			return nil, err
		}
	}
	if in.Attachment == nil {
		if uc.cfg.RequireAttachment {
			return nil, &domain.UploadRejected{Reason: domain.UploadMissingFile}
		}
		return lines, nil
	}
	if err := uc.uploads.ValidateFile(in.Attachment); err != nil {
		return nil, err
	}
	return lines, nil
}

// reprice replaces client prices with catalog prices when a catalog is configured.
func (uc *CheckoutSession) reprice(ctx context.Context, lines []domain.CartLine) ([]domain.CartLine, error) {
	if uc.catalog == nil {
		return lines, nil
	}
	for i, l := range lines {
		if l.ProductID == "" {
			continue
		}
		price, ok, err := uc.catalog.UnitPrice(ctx, l.ProductID, l.InkType)
		if err != nil {
			return nil, fmt.Errorf("catalog price %s: %w", l.ProductID, err)
		}
		if !ok {
			return nil, domain.NewValidationError("items", "unknown product "+l.ProductID)
		}
		lines[i].UnitPrice = price
	}
	return lines, nil
}

func (uc *CheckoutSession) replay(ctx context.Context, ref string) (SubmitOutput, error) {
	sess, ok, err := uc.sessions.Get(ctx, ref)
	if err != nil {
		return SubmitOutput{}, err
	}
	if !ok || sess.State != domain.StateAwaitingExternalPayment {
		return SubmitOutput{}, ErrDuplicate
	}
	return SubmitOutput{
		Reference:     sess.Reference,
		State:         sess.State,
		CheckoutURL:   sess.CheckoutURL,
		PaymentLinkID: sess.PaymentLinkID,
		OpenIn:        OpenInPopup,
		Fallback:      FallbackSameTab,
	}, nil
}

// Resume inspects the return parameters. Without both the success marker and a
// reference it is a normal visit and the session stays idle.
func (uc *CheckoutSession) Resume(ctx context.Context, p ReturnParams) (domain.Outcome, error) {
	clean := CleanReturnURL(p.URL)
	ref := strings.TrimSpace(p.Query.Get(ReturnParamReference))
	if p.Query.Get(ReturnParamSuccess) != "true" || ref == "" {
		return domain.Outcome{Reference: ref, State: domain.StateIdle, CleanURL: clean}, nil
	}
	out, err := uc.Confirm(ctx, ref)
	out.CleanURL = clean
	return out, err
}

// Confirm takes the draft for reference and notifies at most once. A missing draft
// ends the attempt with DraftLost.
func (uc *CheckoutSession) Confirm(ctx context.Context, ref string) (domain.Outcome, error) {
	l := logging.FromCtx(ctx).With("reference", ref)

	sess, ok, err := uc.sessions.Get(ctx, ref)
	if err != nil {
		return domain.Outcome{}, err
	}
	if !ok {
		sess = domain.CheckoutSession{Reference: ref, State: domain.StateIdle}
	}
	live := !sess.State.IsTerminal()
	if live {
		if err := uc.toConfirming(&sess); err != nil {
			return domain.Outcome{}, err
		}
		if err := uc.sessions.Put(ctx, sess); err != nil {
			return domain.Outcome{}, fmt.Errorf("persist session: %w", err)
		}
	}

	draft, found, err := uc.drafts.Take(ctx, ref)
	if err != nil {
		return domain.Outcome{}, fmt.Errorf("order %s: read draft: %w", ref, err)
	}
	if found {
		// the draft is gone from the store now; finish even if the caller goes away
		var cancel context.CancelFunc
		ctx, cancel = detach(ctx)
		defer cancel()
		locked, err := uc.idem.TryLock(ctx, ConfirmScope, ref)
		if err != nil {
			l.Warn("confirm lock unavailable", "err", err)
		} else if !locked {
			found = false
		}
	}

	if !found {
		lost := &domain.DraftLost{Reference: ref}
		out := domain.Outcome{
			Reference: ref,
			State:     domain.StateFailed,
			Message:   lost.Error(),
			Failure:   domain.FailureDraftLost,
		}
		if live {
			sess.Fail(domain.FailureDraftLost, lost.Error(), uc.now())
			_ = uc.sessions.Put(ctx, sess)
			uc.publish(ctx, out)
		}
		l.Warn("confirmation without draft")
		return out, lost
	}

	res := uc.confirm.finalize(ctx, draft)

	if live {
		if err := sess.Advance(domain.StateCompleted, uc.now()); err != nil {
			return domain.Outcome{}, err
		}
	}
	sess.NotificationSent = res.EmailSent
	sess.WhatsAppURL = res.WhatsAppURL
	sess.Message = res.Message
	if err := uc.sessions.Put(ctx, sess); err != nil {
		l.Error("session persist failed", "err", err)
	}

	out := domain.Outcome{
		Reference:        ref,
		State:            domain.StateCompleted,
		Message:          res.Message,
		NotificationSent: res.EmailSent,
		AttachmentSent:   res.LogoAttached,
		WhatsAppURL:      res.WhatsAppURL,
	}
	uc.publish(ctx, out)
	return out, nil
}

func (uc *CheckoutSession) toConfirming(sess *domain.CheckoutSession) error {
	if sess.State != domain.StateResuming {
		if err := sess.Advance(domain.StateResuming, uc.now()); err != nil {
			return err
		}
	}
	return sess.Advance(domain.StateConfirming, uc.now())
}

// Abandon discards the draft and attachment of an attempt that will not be paid.
func (uc *CheckoutSession) Abandon(ctx context.Context, ref string) error {
	sess, ok, err := uc.sessions.Get(ctx, ref)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSessionNotFound
	}
	if !domain.CanTransitionTo(sess.State, domain.StateFailed) {
		return domain.ErrIllegalTransition
	}
	uc.discard(ctx, ref)
	sess.Fail(domain.FailureAbandoned, fmt.Sprintf("Checkout %s was abandoned.", ref), uc.now())
	if err := uc.sessions.Put(ctx, sess); err != nil {
		return err
	}
	uc.publish(ctx, domain.Outcome{Reference: ref, State: sess.State, Message: sess.Message, Failure: sess.Failure})
	return nil
}

func (uc *CheckoutSession) Status(ctx context.Context, ref string) (domain.CheckoutSession, error) {
	sess, ok, err := uc.sessions.Get(ctx, ref)
	if err != nil {
		return domain.CheckoutSession{}, err
	}
	if !ok {
		return domain.CheckoutSession{}, domain.ErrSessionNotFound
	}
	return sess, nil
}

// Subscribe streams outcomes for reference until ctx ends or the returned cancel is called.
func (uc *CheckoutSession) Subscribe(ctx context.Context, ref string) (<-chan domain.Outcome, func(), error) {
	return uc.broadcaster.Subscribe(ctx, ref)
}

func (uc *CheckoutSession) discard(ctx context.Context, ref string) {
	if err := uc.drafts.Delete(ctx, ref); err != nil {
		logging.FromCtx(ctx).Warn("draft discard failed", "reference", ref, "err", err)
	}
	_ = uc.uploads.Discard(ctx, ref)
}

func (uc *CheckoutSession) fail(ctx context.Context, sess *domain.CheckoutSession, kind domain.FailureKind, cause error) {
	sess.Fail(kind, fmt.Sprintf("Order %s could not be completed: %v", sess.Reference, cause), uc.now())
	if err := uc.sessions.Put(ctx, *sess); err != nil {
		logging.FromCtx(ctx).Error("session persist failed", "reference", sess.Reference, "err", err)
	}
	uc.publish(ctx, domain.Outcome{Reference: sess.Reference, State: sess.State, Message: sess.Message, Failure: kind})
}

func (uc *CheckoutSession) publish(ctx context.Context, o domain.Outcome) {
	if uc.broadcaster == nil {
		return
	}
	if err := uc.broadcaster.Publish(ctx, o); err != nil {
		logging.FromCtx(ctx).Warn("outcome broadcast failed", "reference", o.Reference, "err", err)
	}
}

// CleanReturnURL strips the return markers so a reload does not confirm again.
func CleanReturnURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	q := u.Query()
	q.Del(ReturnParamSuccess)
	q.Del(ReturnParamReference)
	u.RawQuery = q.Encode()
	return u.String()
}
