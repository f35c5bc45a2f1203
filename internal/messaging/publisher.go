package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/Doogleyarae/Doogleonline-sub000/internal/models"
)

// Publisher pushes order lifecycle events to an AMQP exchange for downstream
// consumers (reporting, reconciliation). Publishing is best-effort: the order
// workflow never fails because the broker is down.
type Publisher struct {
	connection *amqp.Connection
	channel    *amqp.Channel
	exchange   string
}

type OrderEvent struct {
	ID            string    `json:"id"`
	Type          string    `json:"type"`
	OrderID       string    `json:"order_id"`
	Status        string    `json:"status"`
	SendMethod    string    `json:"send_method"`
	ReceiveMethod string    `json:"receive_method"`
	SendAmount    string    `json:"send_amount"`
	ReceiveAmount string    `json:"receive_amount"`
	Timestamp     time.Time `json:"timestamp"`
}

func NewPublisher(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	return &Publisher{
		connection: conn,
		channel:    ch,
		exchange:   exchange,
	}, nil
}

// PublishOrderEvent sends one lifecycle event with routing key
// "order.<event type>".
func (p *Publisher) PublishOrderEvent(ctx context.Context, eventType string, order *models.Order) error {
	event := OrderEvent{
		ID:            uuid.New().String(),
		Type:          eventType,
		OrderID:       order.OrderID,
		Status:        string(order.Status),
		SendMethod:    order.SendMethod,
		ReceiveMethod: order.ReceiveMethod,
		SendAmount:    order.SendAmount.String(),
		ReceiveAmount: order.ReceiveAmount.String(),
		Timestamp:     time.Now(),
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	return p.channel.Publish(
		p.exchange,
		"order."+eventType,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.Timestamp,
			Body:         body,
		},
	)
}

func (p *Publisher) Close() {
	if p.channel != nil {
		p.channel.Close()
	}
	if p.connection != nil {
		p.connection.Close()
	}
}
