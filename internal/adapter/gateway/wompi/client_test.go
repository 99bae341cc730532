package wompi

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRequest() domain.PaymentRequest {
	return domain.PaymentRequest{
		AmountInCents: 10010500,
		Currency:      "COP",
		Reference:     "ORDER-1700000000000-a1b2c3",
		CustomerEmail: "ana@x.co",
		CustomerPhone: "+573000000000",
	}
}

func newTestClient(srvURL string) *Client {
	return NewClient(Config{
		BaseURL:         srvURL,
		CheckoutBaseURL: "https://checkout.wompi.co/",
		PrivateKey:      "prv_test_123",
		RedirectBaseURL: "http://shop.local",
		Timeout:         2 * time.Second,
	}, nil)
}

func TestRequestPayment_Success(t *testing.T) {
	var got paymentLinkRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payment_links", r.URL.Path)
		assert.Equal(t, "Bearer prv_test_123", r.Header.Get("Authorization"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":{"id":"test_abc123"}}`))
	}))
	defer srv.Close()

	res, err := newTestClient(srv.URL).RequestPayment(context.Background(), testRequest())
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "https://checkout.wompi.co/l/test_abc123", res.CheckoutURL)
	assert.Equal(t, "test_abc123", res.PaymentLinkID)

	assert.Equal(t, int64(10010500), got.AmountInCents)
	assert.Equal(t, "COP", got.Currency)
	assert.False(t, got.SingleUse)
	assert.Equal(t, "Cliente", got.CustomerData.FullName)
	assert.Equal(t, "http://shop.local/?payment_success=true&reference=ORDER-1700000000000-a1b2c3", got.RedirectURL)
}

func TestRequestPayment_Rejected422(t *testing.T) {
	payload := `{"error":{"type":"INPUT_VALIDATION_ERROR","messages":{"amount_in_cents":["must be greater than 150000"]}}}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(payload))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RequestPayment(context.Background(), testRequest())
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrGatewayRejected))

	var rej *domain.GatewayRejected
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 422, rej.Status)
	assert.Contains(t, rej.Message, "amount_in_cents")
	assert.JSONEq(t, payload, string(rej.Payload))
	assert.True(t, domain.Retryable(err))
}

func TestRequestPayment_HTMLErrorPageKeptAsText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>502 Bad Gateway</html>"))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RequestPayment(context.Background(), testRequest())
	var rej *domain.GatewayRejected
	require.True(t, errors.As(err, &rej))
	assert.Equal(t, 502, rej.Status)
	assert.Equal(t, "Bad Gateway", rej.Message)
	assert.Nil(t, rej.Payload)
	assert.Equal(t, "<html>502 Bad Gateway</html>", rej.Body)

	_, err = json.Marshal(map[string]any{"details": rej.Details()})
	assert.NoError(t, err)
}

func TestRequestPayment_MissingIDIsRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RequestPayment(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrGatewayRejected)
}

func TestRequestPayment_TransportFailureIsUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url).RequestPayment(context.Background(), testRequest())
	assert.ErrorIs(t, err, domain.ErrGatewayUnreachable)
	assert.True(t, domain.Retryable(err))
}

func TestRequestPayment_BreakerOpensAfterFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := NewClient(Config{BaseURL: url, CheckoutBaseURL: "https://checkout.wompi.co", BreakerFailures: 2, BreakerOpenDelay: time.Minute}, nil)
	for i := 0; i < 2; i++ {
		_, _ = c.RequestPayment(context.Background(), testRequest())
	}

	_, err := c.RequestPayment(context.Background(), testRequest())
	var un *domain.GatewayUnreachable
	require.True(t, errors.As(err, &un))
	assert.Contains(t, un.Cause.Error(), "circuit breaker is open")
}

func TestErrorMessage(t *testing.T) {
	assert.Equal(t, "amount_in_cents: too low, not integer; currency: unsupported",
		ErrorMessage([]byte(`{"error":{"messages":{"currency":["unsupported"],"amount_in_cents":["too low","not integer"]}}}`)))
	assert.Equal(t, "bad key", ErrorMessage([]byte(`{"error":{"type":"AUTH","description":"bad key"}}`)))
	assert.Equal(t, "boom", ErrorMessage([]byte(`{"message":"boom"}`)))
	assert.Equal(t, "", ErrorMessage([]byte(`<html>`)))
}

func signedEvent(t *testing.T, secret string) []byte {
	t.Helper()
	sum := sha256.Sum256([]byte("tx-1" + "APPROVED" + "10010500" + "1530291411" + secret))
	ev := map[string]any{
		"event": "transaction.updated",
		"data": map[string]any{"transaction": map[string]any{
			"id": "tx-1", "reference": "ORDER-1", "status": "APPROVED", "amount_in_cents": 10010500, "currency": "COP",
		}},
		"signature": map[string]any{
			"properties": []string{"transaction.id", "transaction.status", "transaction.amount_in_cents"},
			"checksum":   hex.EncodeToString(sum[:]),
		},
		"timestamp": 1530291411,
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestEvent_VerifyAndConvert(t *testing.T) {
	ev, err := ParseEvent(signedEvent(t, "events_secret"))
	require.NoError(t, err)

	require.NoError(t, ev.Verify("events_secret"))
	assert.ErrorIs(t, ev.Verify("other"), ErrBadSignature)
	assert.ErrorIs(t, ev.Verify(""), ErrNoSecret)

	msg, ok := ev.PaymentMessage()
	require.True(t, ok)
	assert.Equal(t, "ORDER-1", msg.Reference)
	assert.Equal(t, "APPROVED", msg.Status)
	assert.Equal(t, int64(10010500), msg.Cents)
	assert.Equal(t, time.Unix(1530291411, 0).UTC(), msg.OccurredAt)
}

func TestEvent_OtherEventsIgnored(t *testing.T) {
	ev, err := ParseEvent([]byte(`{"event":"nequi_token.updated","data":{}}`))
	require.NoError(t, err)
	_, ok := ev.PaymentMessage()
	assert.False(t, ok)
}
