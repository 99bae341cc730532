package usecase

import (
	"context"
	"errors"
	"strings"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
)

// ApplyPaymentEvent moves the ledger payment status out of PENDING when the gateway
// reports a final transaction status. Redelivered events are no-ops.
type ApplyPaymentEvent struct {
	ledger OrderLedger
}

func NewApplyPaymentEvent(ledger OrderLedger) *ApplyPaymentEvent {
	return &ApplyPaymentEvent{ledger: ledger}
}

func (uc *ApplyPaymentEvent) Handle(ctx context.Context, ev PaymentStatusChangedMsg) error {
	ref := strings.TrimSpace(ev.Reference)
	if ref == "" {
		return nil
	}
	to := domain.MapGatewayStatus(ev.Status)
	if to == domain.PaymentPending {
		return nil
	}

	updated, err := uc.ledger.UpdatePaymentStatusIf(ctx, ref, string(domain.PaymentPending), string(to))
	if err != nil {
		return err
	}
	if updated {
		logging.FromCtx(ctx).Info("payment status applied", "reference", ref, "status", to)
		return nil
	}

	// nothing matched: either already final, or the event beat the browser's confirmation
	if _, err := uc.ledger.GetByReference(ctx, ref); err != nil {
		if errors.Is(err, ErrNotFound) {
			return uc.ledger.InsertPaymentStatus(ctx, ref, string(to), ev.Cents, ev.Currency)
		}
		return err
	}
	return nil
}
