package wompi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/Wilyos/sistemas-box/internal/adapter/observ"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/sony/gobreaker/v2"
)

const defaultCustomerName = "Cliente"

type Config struct {
	BaseURL          string
	CheckoutBaseURL  string
	PrivateKey       string
	RedirectBaseURL  string
	Timeout          time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

// Client creates Wompi payment links. It never retries; a tripped breaker
// short-circuits calls while the provider keeps failing at transport level.
type Client struct {
	http    *http.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[*http.Response]
}

func NewClient(cfg Config, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerOpenDelay <= 0 {
		cfg.BreakerOpenDelay = 30 * time.Second
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.CheckoutBaseURL = strings.TrimRight(cfg.CheckoutBaseURL, "/")
	cfg.RedirectBaseURL = strings.TrimRight(cfg.RedirectBaseURL, "/")

	failures := cfg.BreakerFailures
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        "wompi",
		MaxRequests: 1,
		Timeout:     cfg.BreakerOpenDelay,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Base().Warn("circuit breaker state change", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	return &Client{http: hc, cfg: cfg, breaker: cb}
}

type customerData struct {
	Email       string `json:"email"`
	FullName    string `json:"full_name"`
	PhoneNumber string `json:"phone_number"`
}

type paymentLinkRequest struct {
	Name            string       `json:"name"`
	Description     string       `json:"description"`
	SingleUse       bool         `json:"single_use"`
	CollectShipping bool         `json:"collect_shipping"`
	Currency        string       `json:"currency"`
	AmountInCents   int64        `json:"amount_in_cents"`
	RedirectURL     string       `json:"redirect_url"`
	CustomerData    customerData `json:"customer_data"`
}

type paymentLinkResponse struct {
	Data struct {
		ID string `json:"id"`
	} `json:"data"`
}

// RedirectURL is where the gateway sends the shopper back after paying.
func RedirectURL(frontendBase, reference string) string {
	q := url.Values{}
	q.Set(usecase.ReturnParamSuccess, "true")
	q.Set(usecase.ReturnParamReference, reference)
	return frontendBase + "/?" + q.Encode()
}

// CheckoutURL builds the hosted checkout address for a payment link id.
func (c *Client) CheckoutURL(linkID string) string {
	return c.cfg.CheckoutBaseURL + "/l/" + linkID
}

func (c *Client) RequestPayment(ctx context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	l := logging.FromCtx(ctx).With("reference", req.Reference, "gateway", "wompi")

	name := req.CustomerName
	if strings.TrimSpace(name) == "" {
		name = defaultCustomerName
	}
	body, err := json.Marshal(paymentLinkRequest{
		Name:          "Pedido " + req.Reference,
		Description:   "Compra de productos - " + req.Reference,
		Currency:      req.Currency,
		AmountInCents: req.AmountInCents,
		RedirectURL:   RedirectURL(c.cfg.RedirectBaseURL, req.Reference),
		CustomerData: customerData{
			Email:       req.CustomerEmail,
			FullName:    name,
			PhoneNumber: req.CustomerPhone,
		},
	})
	if err != nil {
		return domain.PaymentResult{}, err
	}

	start := time.Now()
	// only transport failures count against the breaker; a 4xx is a valid answer
	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/payment_links", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		httpReq.Header.Set("Authorization", "Bearer "+c.cfg.PrivateKey)
		httpReq.Header.Set("Content-Type", "application/json")
		return c.http.Do(httpReq)
	})
	elapsed := float64(time.Since(start).Milliseconds())
	if err != nil {
		observ.GatewayLatency.WithLabelValues("wompi", "unreachable").Observe(elapsed)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			l.Warn("gateway call short-circuited", "err", err)
		} else {
			l.Error("gateway transport failure", "err", err)
		}
		return domain.PaymentResult{}, &domain.GatewayUnreachable{Cause: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observ.GatewayLatency.WithLabelValues("wompi", "unreachable").Observe(elapsed)
		return domain.PaymentResult{}, &domain.GatewayUnreachable{Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		observ.GatewayLatency.WithLabelValues("wompi", "rejected").Observe(elapsed)
		msg := ErrorMessage(raw)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		l.Warn("gateway rejected payment link", "status", resp.StatusCode, "message", msg)
		return domain.PaymentResult{}, domain.NewGatewayRejected(resp.StatusCode, msg, raw)
	}

	var out paymentLinkResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Data.ID == "" {
		observ.GatewayLatency.WithLabelValues("wompi", "rejected").Observe(elapsed)
		return domain.PaymentResult{}, domain.NewGatewayRejected(resp.StatusCode, "invalid gateway response", raw)
	}

	observ.GatewayLatency.WithLabelValues("wompi", "ok").Observe(elapsed)
	l.Info("payment link created", "payment_link_id", out.Data.ID)
	return domain.PaymentResult{
		Success:         true,
		CheckoutURL:     c.CheckoutURL(out.Data.ID),
		PaymentLinkID:   out.Data.ID,
		ProviderPayload: json.RawMessage(raw),
	}, nil
}

type errorEnvelope struct {
	Error *struct {
		Type        string              `json:"type"`
		Description string              `json:"description"`
		Messages    map[string][]string `json:"messages"`
	} `json:"error"`
	Message string `json:"message"`
}

// ErrorMessage renders a provider error body as "field: m1, m2; field2: m3".
// It falls back to error.description, then message. Fields are sorted.
func ErrorMessage(raw []byte) string {
	var env errorEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return ""
	}
	if env.Error != nil {
		if len(env.Error.Messages) > 0 {
			fields := make([]string, 0, len(env.Error.Messages))
			for f := range env.Error.Messages {
				fields = append(fields, f)
			}
			sort.Strings(fields)
			parts := make([]string, 0, len(fields))
			for _, f := range fields {
				parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(env.Error.Messages[f], ", ")))
			}
			return strings.Join(parts, "; ")
		}
		if env.Error.Description != "" {
			return env.Error.Description
		}
	}
	return env.Message
}

var _ usecase.PaymentGateway = (*Client)(nil)
