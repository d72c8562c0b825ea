package events

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeChannel struct {
	key  string
	msgs []amqp.Publishing
	err  error
}

func (f *fakeChannel) PublishWithContext(_ context.Context, _, key string, _, _ bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.key = key
	f.msgs = append(f.msgs, msg)
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func newTestPublisher(ch channel) *AMQPPublisher {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &AMQPPublisher{ch: ch, queueName: "order_events", logger: logger}
}

func TestPublishOrderCompleted(t *testing.T) {
	ch := &fakeChannel{}
	p := newTestPublisher(ch)
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	err := p.PublishOrderCompleted(context.Background(), OrderCompleted{
		OrderID:       12,
		OwnerID:       "7",
		TotalAmount:   decimal.New(1300, -2),
		Currency:      "RUB",
		TransactionID: "tx-1",
		CompletedAt:   at,
	})

	require.NoError(t, err)
	require.Len(t, ch.msgs, 1)
	assert.Equal(t, "order_events", ch.key)
	msg := ch.msgs[0]
	assert.Equal(t, amqp.Persistent, msg.DeliveryMode)
	assert.Equal(t, "order-12", msg.MessageId)

	var got map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &got))
	assert.Equal(t, "order.completed", got["eventType"])
	assert.Equal(t, float64(12), got["orderId"])
	assert.Equal(t, "tx-1", got["transactionId"])
}

func TestPublishOrderCompleted_Error(t *testing.T) {
	p := newTestPublisher(&fakeChannel{err: errors.New("channel closed")})

	err := p.PublishOrderCompleted(context.Background(), OrderCompleted{OrderID: 1})

	assert.ErrorContains(t, err, "channel closed")
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.PublishOrderCompleted(context.Background(), OrderCompleted{}))
	assert.NoError(t, p.Close())
}
