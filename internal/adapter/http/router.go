package http

import (
	"log/slog"
	"net/http"

	"github.com/Wilyos/sistemas-box/internal/adapter/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Handlers struct {
	Checkout *CheckoutHandler
	Payment  *PaymentHandler
	Webhook  *WebhookHandler
	Orders   *OrderHandler
	Token    *TokenHandler
}

func NewRouter(h Handlers, authz *middleware.Authz, l *slog.Logger, allowedOrigins ...string) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.MetricsMiddleware(), middleware.Logging(l), middleware.CORS(allowedOrigins...))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api")
	{
		api.POST("/transactions", h.Payment.CreateTransaction)
		api.POST("/confirm-payment", h.Payment.ConfirmPayment)
		api.POST("/upload-logo", h.Payment.UploadLogo)
		api.POST("/webhooks/:gateway", h.Webhook.Receive)

		co := api.Group("/checkout")
		co.POST("", h.Checkout.Submit)
		co.GET("/return", h.Checkout.Return)
		co.GET("/:reference", h.Checkout.Status)
		co.GET("/:reference/events", h.Checkout.Events)
		co.POST("/:reference/confirm", h.Checkout.Confirm)
		co.DELETE("/:reference", h.Checkout.Abandon)
	}

	r.POST("/v1/token", h.Token.IssueToken)
	v1 := r.Group("/v1")
	{
		v1.GET("/orders", authz.Require("orders.read"), h.Orders.ListOrders)
		v1.GET("/orders/:reference", authz.Require("orders.read"), h.Orders.GetOrder)
		v1.POST("/orders/:reference/notification-retries", authz.Require("orders.write"), h.Orders.RetryNotification)
	}

	return r
}
