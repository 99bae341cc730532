package queue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/Wilyos/sistemas-box/internal/logging"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Router manages multiple consumers (one per registered queue) on a single AMQP channel.
type Router struct {
	ch            *amqp.Channel
	prefetch      int
	callTimeout   time.Duration
	requeueOnErr  bool
	registrations []registration
	log           *slog.Logger
}

type registration struct {
	queueName   string
	handler     Handler
	consumerTag string
}

// --- Options ---

type RouterOption func(*Router)

func WithPrefetch(n int) RouterOption          { return func(r *Router) { r.prefetch = n } }
func WithTimeout(d time.Duration) RouterOption { return func(r *Router) { r.callTimeout = d } }
func WithRequeue(b bool) RouterOption          { return func(r *Router) { r.requeueOnErr = b } }

// NewRouter constructs a Router. Defaults: prefetch=10, timeout=30s, requeueOnErr=true.
func NewRouter(ch *amqp.Channel, opts ...RouterOption) *Router {
	r := &Router{
		ch:           ch,
		prefetch:     10,
		callTimeout:  30 * time.Second,
		requeueOnErr: true,
		log:          logging.New("rmq-router"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register associates a queue with a handler. Call multiple times for multiple queues.
func (r *Router) Register(queueName string, h Handler) {
	r.registrations = append(r.registrations, registration{
		queueName:   queueName,
		handler:     h,
		consumerTag: "c_" + queueName,
	})
}

// Start begins consuming; non-blocking (spawns one goroutine per queue).
// Handler contexts derive from ctx.
func (r *Router) Start(ctx context.Context) error {
	if err := r.ch.Qos(r.prefetch, 0, false); err != nil {
		return err
	}

	for _, reg := range r.registrations {
		deliveries, err := r.ch.Consume(
			reg.queueName,
			reg.consumerTag,
			false, // manual ack
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return err
		}

		go func(reg registration, msgs <-chan amqp.Delivery) {
			for d := range msgs {
				r.dispatch(ctx, reg, d)
			}
			r.log.Info("consumer stopped", "queue", reg.queueName, "tag", reg.consumerTag)
		}(reg, deliveries)
	}

	return nil
}

// dispatch runs one delivery and acks or nacks it. Poison messages are never requeued.
func (r *Router) dispatch(ctx context.Context, reg registration, d amqp.Delivery) {
	l := r.log.With("queue", reg.queueName, "message_id", d.MessageId)
	hctx, cancel := context.WithTimeout(logging.WithCtx(ctx, l), r.callTimeout)
	err := reg.handler.Handle(hctx, d)
	cancel()

	if err != nil {
		requeue := r.requeueOnErr && !errors.Is(err, ErrPoison) && !d.Redelivered
		l.Error("handler error", "rk", d.RoutingKey, "err", err, "requeue", requeue)
		_ = d.Nack(false, requeue)
		return
	}
	_ = d.Ack(false)
}
