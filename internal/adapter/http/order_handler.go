package http

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/Wilyos/sistemas-box/internal/adapter/http/middleware"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/gin-gonic/gin"
)

// OrderHandler is the operator surface over the order ledger.
type OrderHandler struct {
	ledger usecase.OrderLedger
	resend *usecase.ResendNotification
}

func NewOrderHandler(ledger usecase.OrderLedger, resend *usecase.ResendNotification) *OrderHandler {
	return &OrderHandler{ledger: ledger, resend: resend}
}

type orderResp struct {
	Reference          string          `json:"reference"`
	PaymentStatus      string          `json:"payment_status"`
	NotificationStatus string          `json:"notification_status"`
	MessageID          string          `json:"message_id,omitempty"`
	NotificationError  string          `json:"notification_error,omitempty"`
	AmountCents        int64           `json:"amount_in_cents"`
	Currency           string          `json:"currency"`
	ConfirmedAt        *time.Time      `json:"confirmed_at,omitempty"`
	Order              json.RawMessage `json:"order,omitempty"`
	Attachment         json.RawMessage `json:"attachment,omitempty"`
}

func toOrderResp(rec usecase.OrderRecord) orderResp {
	out := orderResp{
		Reference:          rec.Reference,
		PaymentStatus:      rec.PaymentStatus,
		NotificationStatus: rec.NotificationStatus,
		MessageID:          rec.MessageID,
		NotificationError:  rec.NotificationError,
		AmountCents:        rec.AmountCents,
		Currency:           rec.Currency,
	}
	if !rec.ConfirmedAt.IsZero() {
		t := rec.ConfirmedAt
		out.ConfirmedAt = &t
	}
	if json.Valid([]byte(rec.DraftJSON)) {
		out.Order = json.RawMessage(rec.DraftJSON)
	}
	if json.Valid([]byte(rec.AttachmentJSON)) {
		out.Attachment = json.RawMessage(rec.AttachmentJSON)
	}
	return out
}

// GetOrder: GET /v1/orders/:reference
func (h *OrderHandler) GetOrder(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	rec, err := h.ledger.GetByReference(ctx, c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResp(*rec))
}

// ListOrders: GET /v1/orders?notification=failed&limit=N
func (h *OrderHandler) ListOrders(c *gin.Context) {
	if c.DefaultQuery("notification", "failed") != "failed" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only notification=failed is supported"})
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	recs, err := h.resend.ListFailed(ctx, limit)
	if err != nil {
		writeError(c, err)
		return
	}
	out := make([]orderResp, 0, len(recs))
	for _, r := range recs {
		out = append(out, toOrderResp(r))
	}
	c.JSON(http.StatusOK, gin.H{"orders": out, "count": len(out)})
}

// RetryNotification: POST /v1/orders/:reference/notification-retries
func (h *OrderHandler) RetryNotification(c *gin.Context) {
	ref := c.Param("reference")

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if err := h.resend.Request(ctx, ref, c.GetString(middleware.ClientIDKey)); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"reference": ref, "status": "queued"})
}
