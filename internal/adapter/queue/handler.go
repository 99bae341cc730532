package queue

import (
	"context"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Handler processes a single delivery and must tolerate redelivery.
// nil acks; an error nacks, and wrapping ErrPoison drops the message.
type Handler interface {
	Handle(ctx context.Context, d amqp.Delivery) error
}
