package http

import (
	"io"
	"net/http"

	"github.com/Wilyos/sistemas-box/internal/adapter/gateway/wompi"
	"github.com/Wilyos/sistemas-box/internal/adapter/observ"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/gin-gonic/gin"
)

const webhookBodyLimit = 1 << 20

// WebhookHandler receives gateway events. It always answers 200 so the gateway
// never retries because of our own failures.
type WebhookHandler struct {
	secret    string
	publisher usecase.PaymentEventPublisher
}

func NewWebhookHandler(eventsSecret string, publisher usecase.PaymentEventPublisher) *WebhookHandler {
	return &WebhookHandler{secret: eventsSecret, publisher: publisher}
}

func (h *WebhookHandler) Receive(c *gin.Context) {
	defer c.JSON(http.StatusOK, gin.H{"received": true})

	gateway := c.Param("gateway")
	l := logging.From(c).With("gateway", gateway)
	if gateway != "wompi" {
		l.Warn("webhook for unknown gateway ignored")
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, webhookBodyLimit))
	if err != nil {
		l.Error("webhook body unreadable", "err", err)
		return
	}
	ev, err := wompi.ParseEvent(body)
	if err != nil {
		l.Warn("webhook body is not an event", "err", err)
		return
	}
	l = l.With("event", ev.Event)

	if err := ev.Verify(h.secret); err != nil {
		observ.WebhookEvents.WithLabelValues(gateway, ev.Event, "false").Inc()
		l.Warn("webhook signature rejected", "err", err)
		return
	}
	observ.WebhookEvents.WithLabelValues(gateway, ev.Event, "true").Inc()

	msg, ok := ev.PaymentMessage()
	if !ok {
		l.Info("webhook event ignored")
		return
	}
	l = l.With("reference", msg.Reference, "status", msg.Status, "transaction_id", msg.TransactionID)
	if err := h.publisher.PublishPaymentEvent(c.Request.Context(), msg); err != nil {
		l.Error("payment event publish failed", "err", err)
		return
	}
	l.Info("payment event accepted")
}
