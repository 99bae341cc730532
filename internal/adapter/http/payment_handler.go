package http

import (
	"context"
	"errors"
	"net/http"
	"path"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/gin-gonic/gin"
)

// PaymentHandler serves the storefront's direct endpoints: payment link,
// confirmation and logo upload, each called by the browser on its own.
type PaymentHandler struct {
	request *usecase.RequestPayment
	confirm *usecase.ConfirmPayment
	uploads *usecase.UploadAttachment
	timeout time.Duration
	maxBody int64
}

func NewPaymentHandler(request *usecase.RequestPayment, confirm *usecase.ConfirmPayment,
	uploads *usecase.UploadAttachment, timeout time.Duration, maxUpload int64) *PaymentHandler {
	return &PaymentHandler{request: request, confirm: confirm, uploads: uploads, timeout: timeout, maxBody: maxUpload + (1 << 20)}
}

type transactionReq struct {
	AmountInCents int64  `json:"amount_in_cents"`
	Reference     string `json:"reference"`
	CustomerEmail string `json:"customer_email"`
	CustomerData  struct {
		FullName    string `json:"full_name"`
		PhoneNumber string `json:"phone_number"`
	} `json:"customer_data"`
	Metadata struct {
		Items []domain.CartLine `json:"items"`
	} `json:"metadata"`
}

// CreateTransaction: POST /api/transactions
func (h *PaymentHandler) CreateTransaction(c *gin.Context) {
	var req transactionReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required fields: amount_in_cents, reference, customer_email"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	res, err := h.request.Execute(ctx, usecase.RequestPaymentInput{
		AmountInCents: req.AmountInCents,
		Reference:     req.Reference,
		CustomerEmail: req.CustomerEmail,
		FullName:      req.CustomerData.FullName,
		PhoneNumber:   req.CustomerData.PhoneNumber,
		Items:         req.Metadata.Items,
	})
	if err != nil {
		var (
			verr *domain.ValidationError
			gerr *domain.GatewayRejected
		)
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": verr.Field})
		case errors.As(err, &gerr):
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":     "Could not create the payment link",
				"reference": req.Reference,
				"details":   gerr.Message,
				"payload":   gerr.Details(),
			})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Could not create the payment link", "details": err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"checkout_url":    res.CheckoutURL,
		"payment_link_id": res.PaymentLinkID,
	})
}

type confirmReq struct {
	Reference string             `json:"reference"`
	OrderData *domain.OrderDraft `json:"orderData"`
}

// ConfirmPayment: POST /api/confirm-payment
func (h *PaymentHandler) ConfirmPayment(c *gin.Context) {
	var req confirmReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required data"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	out, err := h.confirm.Execute(ctx, usecase.ConfirmInput{Reference: req.Reference, Draft: req.OrderData})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      out.Message,
		"reference":    out.Reference,
		"emailSent":    out.EmailSent,
		"logoAttached": out.LogoAttached,
		"whatsappUrl":  out.WhatsAppURL,
	})
}

// UploadLogo: POST /api/upload-logo (multipart: reference, logo)
func (h *PaymentHandler) UploadLogo(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBody)

	ref := c.PostForm("reference")
	var file *usecase.UploadFile
	if fh, err := c.FormFile("logo"); err == nil {
		f, err := fh.Open()
		if err != nil {
			writeError(c, err)
			return
		}
		defer f.Close()
		file = &usecase.UploadFile{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Size:        fh.Size,
			Content:     f,
		}
	} else {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(c, &domain.UploadRejected{Reason: domain.UploadTooLarge})
			return
		}
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	att, err := h.uploads.Upload(ctx, ref, file)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"reference": att.Reference,
		"filename":  path.Base(att.StoredPath),
	})
}
