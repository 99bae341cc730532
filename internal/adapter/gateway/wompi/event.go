package wompi

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Wilyos/sistemas-box/internal/usecase"
)

const EventTransactionUpdated = "transaction.updated"

var (
	ErrBadSignature = errors.New("wompi event checksum mismatch")
	ErrNoSecret     = errors.New("wompi events secret not configured")
)

// Event is the envelope Wompi posts to the events URL.
type Event struct {
	Event       string                     `json:"event"`
	Data        map[string]json.RawMessage `json:"data"`
	Environment string                     `json:"environment"`
	Signature   struct {
		Properties []string `json:"properties"`
		Checksum   string   `json:"checksum"`
	} `json:"signature"`
	Timestamp int64  `json:"timestamp"`
	SentAt    string `json:"sent_at"`
}

type Transaction struct {
	ID            string `json:"id"`
	Reference     string `json:"reference"`
	Status        string `json:"status"`
	AmountInCents int64  `json:"amount_in_cents"`
	Currency      string `json:"currency"`
}

func ParseEvent(body []byte) (Event, error) {
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("decode event: %w", err)
	}
	return ev, nil
}

// Transaction decodes data.transaction, if present.
func (e Event) Transaction() (Transaction, bool) {
	raw, ok := e.Data["transaction"]
	if !ok {
		return Transaction{}, false
	}
	var tx Transaction
	if err := json.Unmarshal(raw, &tx); err != nil {
		return Transaction{}, false
	}
	return tx, true
}

// Verify recomputes SHA256(values of signature.properties + timestamp + secret)
// and compares it with the announced checksum.
func (e Event) Verify(secret string) error {
	if secret == "" {
		return ErrNoSecret
	}
	var sb strings.Builder
	for _, p := range e.Signature.Properties {
		v, err := e.lookup(p)
		if err != nil {
			return err
		}
		sb.WriteString(v)
	}
	sb.WriteString(fmt.Sprint(e.Timestamp))
	sb.WriteString(secret)

	sum := sha256.Sum256([]byte(sb.String()))
	want := hex.EncodeToString(sum[:])
	got := strings.ToLower(strings.TrimSpace(e.Signature.Checksum))
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) != 1 {
		return ErrBadSignature
	}
	return nil
}

// lookup resolves a dotted path such as "transaction.amount_in_cents" under data.
func (e Event) lookup(path string) (string, error) {
	parts := strings.Split(path, ".")
	raw, ok := e.Data[parts[0]]
	if !ok {
		return "", fmt.Errorf("signature property %q missing", path)
	}
	for _, p := range parts[1:] {
		var obj map[string]json.RawMessage
		if err := json.Unmarshal(raw, &obj); err != nil {
			return "", fmt.Errorf("signature property %q: %w", path, err)
		}
		if raw, ok = obj[p]; !ok {
			return "", fmt.Errorf("signature property %q missing", path)
		}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return strings.TrimSpace(string(raw)), nil
}

// PaymentMessage converts a transaction event into the internal message.
func (e Event) PaymentMessage() (usecase.PaymentStatusChangedMsg, bool) {
	if e.Event != EventTransactionUpdated {
		return usecase.PaymentStatusChangedMsg{}, false
	}
	tx, ok := e.Transaction()
	if !ok || tx.Reference == "" {
		return usecase.PaymentStatusChangedMsg{}, false
	}
	at := time.Unix(e.Timestamp, 0).UTC()
	if e.Timestamp == 0 {
		at = time.Now().UTC()
	}
	return usecase.PaymentStatusChangedMsg{
		Reference:     tx.Reference,
		TransactionID: tx.ID,
		Status:        tx.Status,
		Cents:         tx.AmountInCents,
		Currency:      tx.Currency,
		OccurredAt:    at,
	}, true
}
