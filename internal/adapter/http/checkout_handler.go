package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Wilyos/sistemas-box/internal/adapter/observ"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

const (
	sseKeepAlive = 25 * time.Second

	// same in-memory threshold gin uses by default
	multipartMemory = 32 << 20
)

type CheckoutHandler struct {
	checkout *usecase.CheckoutSession
	timeout  time.Duration
	// maxUpload caps the multipart body; the attachment rules run afterwards.
	maxUpload int64
}

func NewCheckoutHandler(checkout *usecase.CheckoutSession, timeout time.Duration, maxUpload int64) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, timeout: timeout, maxUpload: maxUpload}
}

type submitReq struct {
	Items    []domain.CartLine `json:"items"`
	Customer domain.Customer   `json:"customer"`
	Total    *decimal.Decimal  `json:"total"`
}

// Submit accepts either a JSON body or multipart with an "order" JSON field and a "logo" file.
func (h *CheckoutHandler) Submit(c *gin.Context) {
	var (
		req submitReq
		att *usecase.UploadFile
	)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload+(1<<20))
		if err := c.Request.ParseMultipartForm(multipartMemory); err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				writeError(c, &domain.UploadRejected{Reason: domain.UploadTooLarge})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
			return
		}
		if err := json.Unmarshal([]byte(c.PostForm("order")), &req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "order field must be a JSON object"})
			return
		}
		if fh, err := c.FormFile("logo"); err == nil {
			f, err := fh.Open()
			if err != nil {
				writeError(c, err)
				return
			}
			defer f.Close()
			att = &usecase.UploadFile{
				Filename:    fh.Filename,
				ContentType: fh.Header.Get("Content-Type"),
				Size:        fh.Size,
				Content:     f,
			}
		} else if !errors.Is(err, http.ErrMissingFile) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid multipart body"})
			return
		}
	} else if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.checkout.Submit(ctx, usecase.SubmitInput{
		Items:          req.Items,
		Customer:       req.Customer,
		ClientTotal:    req.Total,
		Attachment:     att,
		IdempotencyKey: c.GetHeader("Idempotency-Key"),
	})
	if err != nil {
		if domain.Retryable(err) {
			observ.CheckoutOutcomes.WithLabelValues(string(domain.StateFailed), "gateway").Inc()
		}
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, out)
}

// Return handles the browser coming back from the payment page.
func (h *CheckoutHandler) Return(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.checkout.Resume(ctx, usecase.ReturnParams{
		Query: c.Request.URL.Query(),
		URL:   c.Request.URL.RequestURI(),
	})
	if err != nil && !errors.Is(err, domain.ErrDraftLost) {
		writeError(c, err)
		return
	}
	if out.State.IsTerminal() {
		observ.CheckoutOutcomes.WithLabelValues(string(out.State), string(out.Failure)).Inc()
	}
	// DraftLost is a final answer for the shopper, not a request error
	c.JSON(http.StatusOK, out)
}

// Confirm is the same-tab fallback when the payment page could not open in a popup.
func (h *CheckoutHandler) Confirm(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.checkout.Confirm(ctx, c.Param("reference"))
	if err != nil && !errors.Is(err, domain.ErrDraftLost) {
		writeError(c, err)
		return
	}
	observ.CheckoutOutcomes.WithLabelValues(string(out.State), string(out.Failure)).Inc()
	c.JSON(http.StatusOK, out)
}

func (h *CheckoutHandler) Status(c *gin.Context) {
	sess, err := h.checkout.Status(c.Request.Context(), c.Param("reference"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

func (h *CheckoutHandler) Abandon(c *gin.Context) {
	ref := c.Param("reference")
	if err := h.checkout.Abandon(c.Request.Context(), ref); err != nil {
		writeError(c, err)
		return
	}
	observ.CheckoutOutcomes.WithLabelValues(string(domain.StateFailed), string(domain.FailureAbandoned)).Inc()
	c.Status(http.StatusNoContent)
}

// Events streams outcomes of one reference as server-sent events, so every open
// tab learns about a confirmation made elsewhere.
func (h *CheckoutHandler) Events(c *gin.Context) {
	ref := c.Param("reference")
	ctx := c.Request.Context()
	l := logging.From(c).With("reference", ref)

	ch, stop, err := h.checkout.Subscribe(ctx, ref)
	if err != nil {
		writeError(c, err)
		return
	}
	defer stop()

	c.Header("Cache-Control", "no-cache")
	c.Header("X-Accel-Buffering", "no")

	if sess, err := h.checkout.Status(ctx, ref); err == nil {
		c.SSEvent("status", sess)
		c.Writer.Flush()
	}

	ticker := time.NewTicker(sseKeepAlive)
	defer ticker.Stop()

	c.Stream(func(w io.Writer) bool {
		select {
		case o, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("outcome", o)
			return !o.State.IsTerminal()
		case <-ticker.C:
			c.SSEvent("ping", time.Now().Unix())
			return true
		case <-ctx.Done():
			l.Debug("event stream closed by client")
			return false
		}
	})
}
