// Package notify delivers member notifications over RabbitMQ or the process log.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/kikoba/kikoba/pkg/notify"
	"github.com/rabbitmq/amqp091-go"
)

// publisher is the part of *amqp091.Channel the notifier uses.
type publisher interface {
	PublishWithContext(
		ctx context.Context,
		exchange, key string,
		mandatory, immediate bool,
		msg amqp091.Publishing,
	) error
}

// AMQPNotifier publishes notifications as persistent JSON messages on a direct
// exchange. A downstream consumer fans them out to email, SMS or push.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  publisher
	exchange string
	queue    string
	timeout  time.Duration
	logger   *slog.Logger
}

// NewAMQPNotifier dials url and declares the exchange, the queue and their binding.
func NewAMQPNotifier(url, exchange, queue string, timeout time.Duration, logger *slog.Logger) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := setup(ch, exchange, queue); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	n := newAMQPNotifier(ch, exchange, queue, timeout, logger)
	n.conn = conn
	return n, nil
}

func newAMQPNotifier(ch publisher, exchange, queue string, timeout time.Duration, logger *slog.Logger) *AMQPNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AMQPNotifier{
		channel:  ch,
		exchange: exchange,
		queue:    queue,
		timeout:  timeout,
		logger:   logger.With("component", "amqp-notifier"),
	}
}

func setup(ch *amqp091.Channel, exchange, queue string) error {
	if err := ch.ExchangeDeclare(
		exchange, // name
		"direct", // type
		true,     // durable
		false,    // auto-deleted
		false,    // internal
		false,    // no-wait
		nil,      // arguments
	); err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	if _, err := ch.QueueDeclare(
		queue, // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// routing key is the queue name on a direct exchange
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}
	return nil
}

// Notify implements notify.Notifier.
func (n *AMQPNotifier) Notify(ctx context.Context, msg notify.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()

	err = n.channel.PublishWithContext(
		ctx,
		n.exchange, // exchange
		n.queue,    // routing key
		false,      // mandatory
		false,      // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Type:         string(msg.Kind),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}

	n.logger.DebugContext(ctx, "notification published",
		"kind", msg.Kind,
		"recipients", len(msg.Recipients),
		"exchange", n.exchange)
	return nil
}

// Close closes the channel and the connection.
func (n *AMQPNotifier) Close() error {
	if n.conn == nil {
		return nil
	}
	return n.conn.Close()
}

var _ notify.Notifier = (*AMQPNotifier)(nil)
