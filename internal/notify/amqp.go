package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"budgetbuddy/internal/logger"
)

// publisher is the subset of *amqp091.Channel used for delivery.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// AMQPNotifier publishes reports as JSON messages for a downstream mailer.
type AMQPNotifier struct {
	conn     *amqp091.Connection
	channel  publisher
	exchange string
	queue    string
}

// NewAMQPNotifier dials url and declares a durable direct exchange with a
// queue bound under its own name.
func NewAMQPNotifier(url, exchange, queue string) (*AMQPNotifier, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "direct", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	if err := ch.QueueBind(queue, queue, exchange, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("bind queue: %w", err)
	}

	return &AMQPNotifier{conn: conn, channel: ch, exchange: exchange, queue: queue}, nil
}

// SendMonthlyReport publishes report as a persistent message.
func (n *AMQPNotifier) SendMonthlyReport(ctx context.Context, report MonthlyReport) error {
	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = n.channel.PublishWithContext(ctx, n.exchange, n.queue, false, false, amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
		Type:         "monthly_report",
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish report: %w", err)
	}

	logger.Named("notify").Infow("monthly report published",
		"user_id", report.UserID,
		"period", report.Period(),
		"exchange", n.exchange,
	)
	return nil
}

// Close closes the broker connection.
func (n *AMQPNotifier) Close() error {
	if n.conn != nil {
		return n.conn.Close()
	}
	return nil
}
