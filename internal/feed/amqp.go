package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// AMQPFeed публикует события в topic exchange и раздаёт события других экземпляров.
type AMQPFeed struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	exchange string
	source   string
	logger   *log.Logger
	mu       sync.Mutex
}

// NewAMQPFeed подключается к брокеру и объявляет exchange.
func NewAMQPFeed(url, exchange, source string, logger *log.Logger) (*AMQPFeed, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		exchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &AMQPFeed{
		conn:     conn,
		channel:  ch,
		exchange: exchange,
		source:   source,
		logger:   logger,
	}, nil
}

// Publish отправляет событие с ключом маршрутизации события.
func (f *AMQPFeed) Publish(ctx context.Context, event Event) error {
	if event.Source == "" {
		event.Source = f.source
	}
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel.PublishWithContext(ctx,
		f.exchange,
		event.RoutingKey(),
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    event.ID,
			Timestamp:    event.OccurredAt,
			Body:         body,
		})
}

// Consume подписывается на ключи маршрутизации через временную очередь и передаёт
// события других экземпляров в handler до отмены ctx.
func (f *AMQPFeed) Consume(ctx context.Context, handler func(context.Context, Event), keys ...string) error {
	f.mu.Lock()
	q, err := f.channel.QueueDeclare(
		"",
		false,
		true,
		true,
		false,
		nil,
	)
	if err != nil {
		f.mu.Unlock()
		return fmt.Errorf("declare queue: %w", err)
	}

	for _, key := range keys {
		if err = f.channel.QueueBind(q.Name, key, f.exchange, false, nil); err != nil {
			f.mu.Unlock()
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}

	msgs, err := f.channel.ConsumeWithContext(ctx, q.Name, "", true, true, false, false, nil)
	f.mu.Unlock()
	if err != nil {
		return fmt.Errorf("consume %s: %w", q.Name, err)
	}

	go func() {
		for msg := range msgs {
			var event Event
			if err := json.Unmarshal(msg.Body, &event); err != nil {
				f.logger.Printf("feed: skipping malformed event %s: %v", msg.MessageId, err)
				continue
			}
			if event.Source == f.source {
				continue
			}
			handler(ctx, event)
		}
	}()

	f.logger.Printf("feed: consuming %v from %s", keys, f.exchange)
	return nil
}

// Close закрывает канал и соединение.
func (f *AMQPFeed) Close() {
	if f.channel != nil {
		f.channel.Close()
	}
	if f.conn != nil {
		f.conn.Close()
	}
}
