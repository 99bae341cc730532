package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation         = errors.New("validation failed")
	ErrUploadRejected     = errors.New("upload rejected")
	ErrGatewayRejected    = errors.New("payment gateway rejected the request")
	ErrGatewayUnreachable = errors.New("payment gateway unreachable")
	ErrNotificationFailed = errors.New("order notification failed")
	ErrDraftLost          = errors.New("order draft not found")
	ErrIllegalTransition  = errors.New("illegal checkout state transition")
	ErrSessionNotFound    = errors.New("checkout session not found")
)

// ValidationError is a field-level rejection raised before any I/O.
type ValidationError struct {
	Field  string
	Reason string
}

func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

type UploadReason string

const (
	UploadInvalidType      UploadReason = "InvalidType"
	UploadTooLarge         UploadReason = "TooLarge"
	UploadMissingReference UploadReason = "MissingReference"
	UploadMissingFile      UploadReason = "MissingFile"
)

type UploadRejected struct {
	Reason UploadReason
	Detail string
}

func (e *UploadRejected) Error() string {
	if e.Detail == "" {
		return "upload rejected: " + string(e.Reason)
	}
	return fmt.Sprintf("upload rejected: %s (%s)", e.Reason, e.Detail)
}

func (e *UploadRejected) Is(target error) bool { return target == ErrUploadRejected }

// GatewayRejected keeps the provider payload untouched for display. Payload
// holds valid JSON only; any other body (an HTML error page) lands in Body.
type GatewayRejected struct {
	Status  int
	Message string
	Payload json.RawMessage
	Body    string
}

// NewGatewayRejected sorts the raw provider body into Payload or Body.
func NewGatewayRejected(status int, msg string, raw []byte) *GatewayRejected {
	e := &GatewayRejected{Status: status, Message: msg}
	switch {
	case len(raw) == 0:
	case json.Valid(raw):
		e.Payload = json.RawMessage(raw)
	default:
		const maxBody = 512
		if len(raw) > maxBody {
			raw = raw[:maxBody]
		}
		e.Body = strings.ToValidUTF8(string(raw), "")
	}
	return e
}

// Details is what a response may carry about the rejection. It is always
// safe to marshal.
func (e *GatewayRejected) Details() any {
	if len(e.Payload) > 0 && json.Valid(e.Payload) {
		return e.Payload
	}
	if e.Body != "" {
		return e.Body
	}
	return e.Message
}

func (e *GatewayRejected) Error() string {
	return fmt.Sprintf("gateway rejected (status %d): %s", e.Status, e.Message)
}

func (e *GatewayRejected) Is(target error) bool { return target == ErrGatewayRejected }

type GatewayUnreachable struct {
	Cause error
}

func (e *GatewayUnreachable) Error() string {
	return "gateway unreachable: " + e.Cause.Error()
}

func (e *GatewayUnreachable) Is(target error) bool { return target == ErrGatewayUnreachable }

func (e *GatewayUnreachable) Unwrap() error { return e.Cause }

type DraftLost struct {
	Reference string
}

func (e *DraftLost) Error() string {
	return fmt.Sprintf("payment confirmed but order details for %s were lost; contact support with this reference", e.Reference)
}

func (e *DraftLost) Is(target error) bool { return target == ErrDraftLost }

// Retryable reports whether the user may resubmit (with a new reference).
func Retryable(err error) bool {
	return errors.Is(err, ErrGatewayRejected) || errors.Is(err, ErrGatewayUnreachable)
}
