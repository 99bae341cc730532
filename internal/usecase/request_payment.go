package usecase

import (
	"context"
	"strings"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
)

type RequestPaymentInput struct {
	AmountInCents int64
	Reference     string
	CustomerEmail string
	FullName      string
	PhoneNumber   string
	// Items, when present, are the cart lines the amount must match.
	Items []domain.CartLine
}

// RequestPayment creates a hosted payment link for an amount the caller computed.
type RequestPayment struct {
	gateway   PaymentGateway
	currency  string
	exponent  int32
	tolerance int64
}

func NewRequestPayment(gw PaymentGateway, currency string, exponent int32, tolerance int64) *RequestPayment {
	return &RequestPayment{gateway: gw, currency: currency, exponent: exponent, tolerance: tolerance}
}

func (uc *RequestPayment) Execute(ctx context.Context, in RequestPaymentInput) (domain.PaymentResult, error) {
	switch {
	case in.AmountInCents <= 0:
		return domain.PaymentResult{}, domain.NewValidationError("amount_in_cents", "required")
	case strings.TrimSpace(in.Reference) == "":
		return domain.PaymentResult{}, domain.NewValidationError("reference", "required")
	case strings.TrimSpace(in.CustomerEmail) == "":
		return domain.PaymentResult{}, domain.NewValidationError("customer_email", "required")
	}

	if len(in.Items) > 0 {
		lines := make([]domain.CartLine, len(in.Items))
		for i, l := range in.Items {
			lines[i] = l.Normalize()
		}
		want := domain.ToMinorUnits(domain.ComputeTotal(lines), uc.exponent)
		if !domain.WithinTolerance(in.AmountInCents, want, uc.tolerance) {
			return domain.PaymentResult{}, domain.NewValidationError("amount_in_cents", "does not match the total of metadata.items")
		}
	}

	name := in.FullName
	if strings.TrimSpace(name) == "" {
		name = "Cliente"
	}
	return uc.gateway.RequestPayment(ctx, domain.PaymentRequest{
		AmountInCents: in.AmountInCents,
		Currency:      uc.currency,
		Reference:     in.Reference,
		CustomerEmail: in.CustomerEmail,
		CustomerName:  name,
		CustomerPhone: in.PhoneNumber,
	})
}
