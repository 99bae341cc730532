package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
)

type ackRecorder struct {
	acks    int
	nacks   int
	requeue []bool
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acks++; return nil }
func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = append(a.requeue, requeue)
	return nil
}
func (a *ackRecorder) Reject(_ uint64, requeue bool) error { return a.Nack(0, false, requeue) }

func testRouter() *Router {
	return &Router{callTimeout: time.Second, requeueOnErr: true, log: logging.Base()}
}

func TestDispatch_AcksHandledCommand(t *testing.T) {
	var got usecase.NotificationResendMsg
	reg := registration{queueName: "q", handler: JSONHandler[usecase.NotificationResendMsg]{
		HandleFunc: func(_ context.Context, m usecase.NotificationResendMsg) error { got = m; return nil },
	}}
	ack := &ackRecorder{}

	testRouter().dispatch(context.Background(), reg, amqp.Delivery{
		Acknowledger: ack,
		Body:         []byte(`{"reference":"ORDER-1","requestedBy":"backoffice"}`),
	})

	assert.Equal(t, 1, ack.acks)
	assert.Equal(t, "ORDER-1", got.Reference)
	assert.Equal(t, "backoffice", got.RequestedBy)
}

func TestDispatch_PoisonIsDropped(t *testing.T) {
	reg := registration{queueName: "q", handler: JSONHandler[usecase.NotificationResendMsg]{
		HandleFunc: func(context.Context, usecase.NotificationResendMsg) error { return nil },
	}}
	ack := &ackRecorder{}

	testRouter().dispatch(context.Background(), reg, amqp.Delivery{Acknowledger: ack, Body: []byte("nope")})

	assert.Equal(t, 1, ack.nacks)
	assert.Equal(t, []bool{false}, ack.requeue)
}

func TestDispatch_FailureRequeuedOnce(t *testing.T) {
	reg := registration{queueName: "q", handler: JSONHandler[usecase.NotificationResendMsg]{
		HandleFunc: func(context.Context, usecase.NotificationResendMsg) error { return errors.New("db down") },
	}}
	ack := &ackRecorder{}
	body := []byte(`{"reference":"ORDER-1"}`)

	r := testRouter()
	r.dispatch(context.Background(), reg, amqp.Delivery{Acknowledger: ack, Body: body})
	r.dispatch(context.Background(), reg, amqp.Delivery{Acknowledger: ack, Body: body, Redelivered: true})

	assert.Equal(t, []bool{true, false}, ack.requeue)
}
