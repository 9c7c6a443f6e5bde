package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/streadway/amqp"
)

// ReadyEvent is the message body published when an order becomes READY.
type ReadyEvent struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id"`
	ReadyAt    time.Time `json:"ready_at"`
}

// Publisher is the subset of *amqp.Channel used for publishing.
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPNotifier publishes ready events to a durable queue.
type AMQPNotifier struct {
	mu    sync.Mutex
	conn  *amqp.Connection
	ch    Publisher
	queue string
	now   func() time.Time
}

// DialAMQP connects to the broker at url and declares queue.
func DialAMQP(url, queue string) (*AMQPNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// durable, not auto-deleted, not exclusive
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	log.Info().Str("queue", queue).Msg("RabbitMQ notifier connected")

	n := NewAMQPNotifier(ch, queue)
	n.conn = conn
	return n, nil
}

// NewAMQPNotifier publishes on an already-open channel.
func NewAMQPNotifier(ch Publisher, queue string) *AMQPNotifier {
	return &AMQPNotifier{ch: ch, queue: queue, now: time.Now}
}

// ReadyMessageID is the message id of an order's ready event. It is stable
// per order so consumers can drop redelivered events.
func ReadyMessageID(orderRef string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("kiosk:ready:"+orderRef)).String()
}

// NotifyReady publishes a persistent ReadyEvent for the order.
func (n *AMQPNotifier) NotifyReady(ctx context.Context, orderRef, customerRef string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	readyAt := n.now()
	body, err := json.Marshal(ReadyEvent{OrderID: orderRef, CustomerID: customerRef, ReadyAt: readyAt})
	if err != nil {
		return fmt.Errorf("marshal ready event: %w", err)
	}

	// amqp channels are not safe for concurrent publishing
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.Publish("", n.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		MessageId:    ReadyMessageID(orderRef),
		DeliveryMode: amqp.Persistent,
		Timestamp:    readyAt,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish ready event for %s: %w", orderRef, err)
	}

	log.Debug().Str("order_id", orderRef).Str("queue", n.queue).Msg("ready event published")
	return nil
}

// Close closes the broker connection opened by DialAMQP.
func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}
