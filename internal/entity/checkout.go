package domain

import "time"

type CheckoutState string

const (
	StateIdle                    CheckoutState = "IDLE"
	StateSubmitting              CheckoutState = "SUBMITTING"
	StateAwaitingExternalPayment CheckoutState = "AWAITING_EXTERNAL_PAYMENT"
	StateResuming                CheckoutState = "RESUMING"
	StateConfirming              CheckoutState = "CONFIRMING"
	StateCompleted               CheckoutState = "COMPLETED"
	StateFailed                  CheckoutState = "FAILED"
)

var transitions = map[CheckoutState][]CheckoutState{
	StateIdle:                    {StateSubmitting, StateResuming},
	StateSubmitting:              {StateAwaitingExternalPayment, StateFailed},
	StateAwaitingExternalPayment: {StateResuming, StateFailed},
	StateResuming:                {StateConfirming, StateIdle, StateFailed},
	StateConfirming:              {StateCompleted, StateFailed},
}

func (s CheckoutState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed
}

func (s CheckoutState) String() string {
	return string(s)
}

func CanTransitionTo(from, to CheckoutState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type FailureKind string

const (
	FailureGatewayRejected    FailureKind = "gateway_rejected"
	FailureGatewayUnreachable FailureKind = "gateway_unreachable"
	FailureUpload             FailureKind = "upload_failed"
	FailureDraftLost          FailureKind = "draft_lost"
	FailureAbandoned          FailureKind = "abandoned"
	FailureInternal           FailureKind = "internal"
)

// CheckoutSession is the persisted {state, reference} record of one attempt.
type CheckoutSession struct {
	Reference        string        `json:"reference"`
	State            CheckoutState `json:"state"`
	CheckoutURL      string        `json:"checkout_url,omitempty"`
	PaymentLinkID    string        `json:"payment_link_id,omitempty"`
	Failure          FailureKind   `json:"failure,omitempty"`
	Message          string        `json:"message,omitempty"`
	NotificationSent bool          `json:"notification_sent"`
	WhatsAppURL      string        `json:"whatsapp_url,omitempty"`
	UpdatedAt        time.Time     `json:"updated_at"`
}

// Advance moves the session to next, refusing transitions outside the table.
func (s *CheckoutSession) Advance(next CheckoutState, now time.Time) error {
	if !CanTransitionTo(s.State, next) {
		return ErrIllegalTransition
	}
	s.State = next
	s.UpdatedAt = now.UTC()
	return nil
}

func (s *CheckoutSession) Fail(kind FailureKind, msg string, now time.Time) {
	s.State = StateFailed
	s.Failure = kind
	s.Message = msg
	s.UpdatedAt = now.UTC()
}

// Outcome is the human-readable result of a resume or confirmation.
type Outcome struct {
	Reference        string        `json:"reference"`
	State            CheckoutState `json:"state"`
	Message          string        `json:"message"`
	NotificationSent bool          `json:"email_sent"`
	AttachmentSent   bool          `json:"logo_attached"`
	WhatsAppURL      string        `json:"whatsapp_url,omitempty"`
	Failure          FailureKind   `json:"failure,omitempty"`
	CleanURL         string        `json:"clean_url,omitempty"`
}
