package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CheckoutOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_outcomes_total",
			Help: "Checkout sessions reaching a terminal state",
		},
		[]string{"state", "reason"},
	)

	GatewayLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_gateway_request_duration_ms",
			Help:    "Duration of payment gateway calls in ms",
			Buckets: []float64{25, 50, 100, 200, 400, 800, 1600, 3200, 6400},
		},
		[]string{"gateway", "result"},
	)

	Notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_notifications_total",
			Help: "Order notification attempts by result",
		},
		[]string{"channel", "result"},
	)

	WebhookEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_events_total",
			Help: "Inbound payment gateway events",
		},
		[]string{"gateway", "event", "verified"},
	)
)
