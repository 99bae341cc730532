package http

import (
	"errors"
	"net/http"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/gin-gonic/gin"
)

// writeError maps use case errors to HTTP responses. Unknown errors become 500
// without leaking their text.
func writeError(c *gin.Context, err error) {
	var (
		verr *domain.ValidationError
		uerr *domain.UploadRejected
		gerr *domain.GatewayRejected
	)
	switch {
	case errors.As(err, &verr):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": verr.Field})
	case errors.As(err, &uerr):
		status := http.StatusBadRequest
		if uerr.Reason == domain.UploadTooLarge {
			status = http.StatusRequestEntityTooLarge
		}
		c.JSON(status, gin.H{"error": err.Error(), "reason": uerr.Reason})
	case errors.As(err, &gerr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error(), "details": gerr.Details(), "retryable": true})
	case errors.Is(err, domain.ErrGatewayUnreachable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error(), "retryable": true})
	case errors.Is(err, usecase.ErrDuplicate), errors.Is(err, domain.ErrIllegalTransition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, usecase.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
	default:
		logging.From(c).Error("request failed", "err", err)
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
