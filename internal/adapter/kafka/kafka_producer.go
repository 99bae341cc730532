package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/IBM/sarama"
	"github.com/Wilyos/sistemas-box/internal/usecase"
)

// Producer publishes payment events keyed by order reference, so every event
// for one order lands on the same partition.
type Producer struct {
	sp    sarama.SyncProducer
	topic string
}

func NewProducer(sp sarama.SyncProducer, topic string) *Producer {
	return &Producer{sp: sp, topic: topic}
}

func (p *Producer) PublishPaymentEvent(ctx context.Context, ev usecase.PaymentStatusChangedMsg) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	_, _, err = p.sp.SendMessage(&sarama.ProducerMessage{
		Topic: p.topic,
		Key:   sarama.StringEncoder(ev.Reference),
		Value: sarama.ByteEncoder(body),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event"), Value: []byte("payment.status_changed")},
		},
	})
	if err != nil {
		return fmt.Errorf("publish payment event %s: %w", ev.Reference, err)
	}
	return nil
}

func (p *Producer) Close() error { return p.sp.Close() }

var _ usecase.PaymentEventPublisher = (*Producer)(nil)
