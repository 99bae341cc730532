package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Topology names the exchange, routing key and queue of the notification commands.
type Topology struct {
	Exchange   string
	RoutingKey string
	Queue      string
}

// Declare sets up the exchange, queue, and binding. Safe to call on every start.
func (t Topology) Declare(ch *amqp.Channel) error {
	if err := ch.ExchangeDeclare(
		t.Exchange,
		"topic",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	q, err := ch.QueueDeclare(
		t.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := ch.QueueBind(q.Name, t.RoutingKey, t.Exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	return nil
}

// RabbitProducer implements usecase.NotificationCommandPublisher.
type RabbitProducer struct {
	ch   *amqp.Channel
	topo Topology
}

// NewRabbitProducer declares the topology and puts the channel in confirm mode.
func NewRabbitProducer(ch *amqp.Channel, topo Topology) (*RabbitProducer, error) {
	if err := topo.Declare(ch); err != nil {
		return nil, err
	}
	if err := ch.Confirm(false); err != nil {
		return nil, fmt.Errorf("enable confirm mode: %w", err)
	}
	return &RabbitProducer{ch: ch, topo: topo}, nil
}

// PublishResend enqueues a notification resend and waits for the broker confirm.
func (p *RabbitProducer) PublishResend(ctx context.Context, msg usecase.NotificationResendMsg) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // survive broker restarts
		MessageId:    uuid.NewString(),
		Timestamp:    time.Now().UTC(),
		Type:         "notification.resend",
		Body:         body,
	}

	dc, err := p.ch.PublishWithDeferredConfirmWithContext(ctx, p.topo.Exchange, p.topo.RoutingKey, false, false, pub)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	ok, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("publish confirm: %w", err)
	}
	if !ok {
		return fmt.Errorf("publish nacked by broker")
	}
	return nil
}

var _ usecase.NotificationCommandPublisher = (*RabbitProducer)(nil)
