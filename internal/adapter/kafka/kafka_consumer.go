package kafka

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/IBM/sarama"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
)

// HandlerFunc processes a decoded payment event.
type HandlerFunc func(ctx context.Context, ev usecase.PaymentStatusChangedMsg) error

// Consumer consumes the payment events topic with a single handler.
type Consumer struct {
	Group  sarama.ConsumerGroup
	Topics []string
	Handle HandlerFunc
	Logger *slog.Logger
}

func NewConsumer(group sarama.ConsumerGroup, topics []string, h HandlerFunc) *Consumer {
	return &Consumer{
		Group:  group,
		Topics: topics,
		Handle: h,
		Logger: logging.New("kafka-consumer"),
	}
}

func (c *Consumer) Start(ctx context.Context) error {
	handler := &cgHandler{handle: c.Handle, logger: c.Logger}
	for {
		if err := c.Group.Consume(ctx, c.Topics, handler); err != nil {
			return err
		}
		// Consume returns on rebalance or when ctx is cancelled
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

type cgHandler struct {
	handle HandlerFunc
	logger *slog.Logger
}

func (h *cgHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *cgHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *cgHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for msg := range claim.Messages() {
		h.process(sess.Context(), msg, func(meta string) { sess.MarkMessage(msg, meta) })
	}
	return nil
}

// process decodes and handles one record. mark is called unless the handler failed.
func (h *cgHandler) process(ctx context.Context, msg *sarama.ConsumerMessage, mark func(meta string)) {
	l := h.logger.With("topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset)

	var ev usecase.PaymentStatusChangedMsg
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		l.Error("kafka decode error", "err", err)
		// poison message
		mark("decode-error")
		return
	}
	ctx = logging.WithCtx(ctx, l.With("reference", ev.Reference))
	if err := h.handle(ctx, ev); err != nil {
		l.Error("payment event handler failed", "err", err, "key", string(msg.Key))
		// left unmarked; redelivered after the next rebalance
		return
	}
	mark("")
}
