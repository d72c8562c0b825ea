package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPPublisher struct {
	conn      *amqp.Connection
	mu        sync.Mutex // amqp channels are not safe for concurrent publishes
	ch        channel
	queueName string
	logger    logrus.FieldLogger
}

func NewAMQPPublisher(url, queueName string, logger logrus.FieldLogger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queueName, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}
	return &AMQPPublisher{conn: conn, ch: ch, queueName: queueName, logger: logger}, nil
}

func (p *AMQPPublisher) PublishOrderCompleted(ctx context.Context, ev OrderCompleted) error {
	ev.EventType = EventTypeOrderCompleted
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", ev.EventType, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.PublishWithContext(ctx, "", p.queueName, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         ev.EventType,
		MessageId:    fmt.Sprintf("order-%d", ev.OrderID),
		Timestamp:    ev.CompletedAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s: %w", ev.EventType, err)
	}

	p.logger.WithField("order_id", ev.OrderID).Info("published order.completed")
	return nil
}

func (p *AMQPPublisher) Close() error {
	if err := p.ch.Close(); err != nil {
		p.logger.WithError(err).Warn("close amqp channel")
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
