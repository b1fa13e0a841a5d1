package relay

import (
	"Solvextra/internal/lib/sl"
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

const routingKeyPrefix = "support.event."

// Relay mirrors hub events onto a durable topic exchange so external
// consumers can filter by interest; the in-process hub still delivers
// everything to every console.
type Relay struct {
	conn     *amqp091.Connection
	exchange string
	log      *slog.Logger
}

func New(url, exchange string, logger *slog.Logger) (*Relay, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}
	defer ch.Close()
	if err := ch.ExchangeDeclare(
		exchange, "topic", true, false, false, false, nil,
	); err != nil {
		conn.Close()
		return nil, err
	}

	return &Relay{
		conn:     conn,
		exchange: exchange,
		log:      logger.With(sl.Module("relay")),
	}, nil
}

// Publish pushes one serialized event with routing key support.event.<type>.
func (r *Relay) Publish(eventType string, body []byte) error {
	ch, err := r.conn.Channel()
	if err != nil {
		return err
	}
	defer ch.Close()

	key := routingKeyPrefix + eventType
	err = ch.PublishWithContext(
		context.Background(), r.exchange, key, false, false,
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err == nil {
		r.log.Debug("event relayed", slog.String("key", key))
	}
	return err
}

func (r *Relay) Close() error {
	return r.conn.Close()
}
