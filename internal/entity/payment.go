package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

type PaymentRequest struct {
	AmountInCents int64
	Currency      string
	Reference     string
	CustomerEmail string
	CustomerName  string
	CustomerPhone string
}

type PaymentResult struct {
	Success         bool
	CheckoutURL     string
	PaymentLinkID   string
	ErrorCode       string
	ErrorMessage    string
	ProviderPayload json.RawMessage
}

// ToMinorUnits converts an amount to integer minor units, rounding half-up.
// Amounts handled here are never negative, so Round (half away from zero) is half-up.
func ToMinorUnits(amount decimal.Decimal, exponent int32) int64 {
	return amount.Shift(exponent).Round(0).IntPart()
}

// FromMinorUnits is the inverse of ToMinorUnits.
func FromMinorUnits(minor int64, exponent int32) decimal.Decimal {
	return decimal.New(minor, -exponent)
}

// NewPaymentRequest derives the charge from the draft's recomputed total.
func NewPaymentRequest(d OrderDraft, currency string, exponent int32) PaymentRequest {
	return PaymentRequest{
		AmountInCents: ToMinorUnits(d.Total, exponent),
		Currency:      currency,
		Reference:     d.Reference,
		CustomerEmail: d.Customer.Email,
		CustomerName:  d.Customer.FullName,
		CustomerPhone: d.Customer.Phone,
	}
}

// WithinTolerance compares two minor-unit amounts.
func WithinTolerance(a, b, tolerance int64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff <= tolerance
}

// PaymentStatus is the ledger's view of the gateway transaction.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "PAYMENT_FAILED"
)

// MapGatewayStatus maps a gateway transaction status to the ledger's payment status.
func MapGatewayStatus(s string) PaymentStatus {
	switch s {
	case "APPROVED":
		return PaymentPaid
	case "DECLINED", "VOIDED", "ERROR":
		return PaymentFailed
	default:
		return PaymentPending
	}
}
