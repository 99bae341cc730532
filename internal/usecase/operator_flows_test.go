package usecase

import (
	"context"
	"testing"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyPaymentEvent_GuardedTransition(t *testing.T) {
	ledger := newMemLedger()
	ctx := context.Background()
	require.NoError(t, ledger.RecordConfirmation(ctx, &OrderRecord{Reference: "ORDER-1", PaymentStatus: string(domain.PaymentPending)}))
	uc := NewApplyPaymentEvent(ledger)

	require.NoError(t, uc.Handle(ctx, PaymentStatusChangedMsg{Reference: "ORDER-1", Status: "APPROVED"}))
	rec, _ := ledger.GetByReference(ctx, "ORDER-1")
	assert.Equal(t, string(domain.PaymentPaid), rec.PaymentStatus)

	// a late DECLINED must not overwrite a final status
	require.NoError(t, uc.Handle(ctx, PaymentStatusChangedMsg{Reference: "ORDER-1", Status: "DECLINED"}))
	rec, _ = ledger.GetByReference(ctx, "ORDER-1")
	assert.Equal(t, string(domain.PaymentPaid), rec.PaymentStatus)
}

func TestApplyPaymentEvent_BeforeConfirmationInsertsRow(t *testing.T) {
	ledger := newMemLedger()
	uc := NewApplyPaymentEvent(ledger)
	ctx := context.Background()

	require.NoError(t, uc.Handle(ctx, PaymentStatusChangedMsg{Reference: "ORDER-2", Status: "DECLINED", Cents: 500, Currency: "COP"}))

	rec, err := ledger.GetByReference(ctx, "ORDER-2")
	require.NoError(t, err)
	assert.Equal(t, string(domain.PaymentFailed), rec.PaymentStatus)
	assert.Equal(t, int64(500), rec.AmountCents)
}

func TestApplyPaymentEvent_IgnoresPending(t *testing.T) {
	ledger := newMemLedger()
	uc := NewApplyPaymentEvent(ledger)

	require.NoError(t, uc.Handle(context.Background(), PaymentStatusChangedMsg{Reference: "ORDER-3", Status: "PENDING"}))
	assert.Empty(t, ledger.rows)
}

func TestResendNotification_RequestAndHandle(t *testing.T) {
	h := newHarness(defaultCfg(), nil)
	ctx := context.Background()
	h.notifier.fail = true

	sub, err := h.uc.Submit(ctx, SubmitInput{Items: cajaA(), Customer: ana()})
	require.NoError(t, err)
	_, err = h.uc.Confirm(ctx, sub.Reference)
	require.NoError(t, err)

	cmds := &fakeCommands{}
	resend := NewResendNotification(h.ledger, h.uploads, h.notifier, cmds)

	failed, err := resend.ListFailed(ctx, 0)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, sub.Reference, failed[0].Reference)

	require.NoError(t, resend.Request(ctx, sub.Reference, "backoffice"))
	require.Len(t, cmds.sent, 1)

	h.notifier.fail = false
	require.NoError(t, resend.Handle(ctx, cmds.sent[0]))

	rec, _ := h.ledger.GetByReference(ctx, sub.Reference)
	assert.Equal(t, NotificationSent, rec.NotificationStatus)
	require.Len(t, h.notifier.calls, 2)
	assert.Equal(t, sub.Reference, h.notifier.calls[1].Reference)

	// once sent, further requests are refused and redelivery is a no-op
	assert.ErrorIs(t, resend.Request(ctx, sub.Reference, "backoffice"), ErrDuplicate)
	require.NoError(t, resend.Handle(ctx, cmds.sent[0]))
	assert.Len(t, h.notifier.calls, 2)
}

func TestResendNotification_UnknownReference(t *testing.T) {
	resend := NewResendNotification(newMemLedger(), NewUploadAttachment(newMemBlobs(), newMemIndex(), 0), &fakeNotifier{}, &fakeCommands{})

	assert.ErrorIs(t, resend.Request(context.Background(), "ORDER-x", "ops"), ErrNotFound)
}
