package mq

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/hostel-tracker/apiserver/config"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Each channel maps to a durable topic exchange. Events are routed by
// kind, so a consumer binds its queue to just the kinds it handles.
const exchangeKind = "topic"

// RabbitMQClient publishes events to per-channel topic exchanges and
// consumes them through one queue per consumer group.
type RabbitMQClient struct {
	conn            *amqp.Connection
	channel         *amqp.Channel
	queueDurable    bool
	queueAutoDelete bool

	mu        sync.Mutex
	exchanges map[string]bool
}

// NewRabbitMQClient constructs a RabbitMQ client from config.
func NewRabbitMQClient(cfg config.RabbitMQConfig) (*RabbitMQClient, error) {
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, errors.New("rabbitmq url is required")
	}

	conn, err := amqp.Dial(cfg.URL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	if cfg.PrefetchCount > 0 {
		if err := ch.Qos(cfg.PrefetchCount, 0, false); err != nil {
			_ = ch.Close()
			_ = conn.Close()
			return nil, err
		}
	}

	return &RabbitMQClient{
		conn:            conn,
		channel:         ch,
		queueDurable:    cfg.QueueDurable,
		queueAutoDelete: cfg.QueueAutoDelete,
		exchanges:       make(map[string]bool),
	}, nil
}

// Publish sends an event to the channel's exchange, routed by its kind.
func (r *RabbitMQClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("rabbitmq channel is required")
	}
	if err := r.declareExchange(channel); err != nil {
		return "", err
	}

	headers := amqp.Table{}
	for key, value := range attrs {
		headers[key] = value
	}

	messageID := uuid.NewString()
	err := r.channel.PublishWithContext(ctx, channel, routingKey(attrs), false, false, amqp.Publishing{
		ContentType:  contentType(attrs),
		DeliveryMode: amqp.Persistent,
		MessageId:    messageID,
		Type:         attrs[AttrEventKind],
		Headers:      headers,
		Body:         data,
	})
	if err != nil {
		return "", err
	}
	return messageID, nil
}

// Subscribe binds the group's queue to the requested kinds and consumes
// until ctx is done. Handler errors requeue the delivery.
func (r *RabbitMQClient) Subscribe(ctx context.Context, sub Subscription, handler Handler) error {
	if err := r.declareExchange(sub.Channel); err != nil {
		return err
	}

	queue, err := r.channel.QueueDeclare(queueName(sub), r.queueDurable, r.queueAutoDelete, false, false, nil)
	if err != nil {
		return err
	}
	for _, key := range bindingKeys(sub.Kinds) {
		if err := r.channel.QueueBind(queue.Name, key, sub.Channel, false, nil); err != nil {
			return fmt.Errorf("bind %s to %s: %w", queue.Name, key, err)
		}
	}

	consumerTag := fmt.Sprintf("%s-%s", sub.group(), uuid.NewString())
	deliveries, err := r.channel.Consume(queue.Name, consumerTag, false, false, false, false, nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = r.channel.Cancel(consumerTag, false)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("rabbitmq delivery channel closed")
			}
			message := Message{
				ID:         delivery.MessageId,
				Data:       delivery.Body,
				Attributes: headersToAttributes(delivery.Headers),
			}
			if err := handler(ctx, message); err != nil {
				_ = delivery.Nack(false, true)
				continue
			}
			_ = delivery.Ack(false)
		}
	}
}

// Close closes the underlying channel and connection.
func (r *RabbitMQClient) Close() error {
	if r.channel != nil {
		_ = r.channel.Close()
	}
	if r.conn != nil {
		return r.conn.Close()
	}
	return nil
}

func (r *RabbitMQClient) declareExchange(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.exchanges[name] {
		return nil
	}
	if err := r.channel.ExchangeDeclare(name, exchangeKind, true, false, false, false, nil); err != nil {
		return fmt.Errorf("declare exchange %s: %w", name, err)
	}
	r.exchanges[name] = true
	return nil
}

// routingKey is the event kind, e.g. "claim.decided". Untyped messages
// go out with an empty key and only reach catch-all bindings.
func routingKey(attrs map[string]string) string {
	return attrs[AttrEventKind]
}

// bindingKeys binds one key per kind, or "#" for every kind.
func bindingKeys(kinds []string) []string {
	if len(kinds) == 0 {
		return []string{"#"}
	}
	return kinds
}

func queueName(sub Subscription) string {
	return sub.Channel + "." + sub.group()
}

func contentType(attrs map[string]string) string {
	if value := attrs[AttrContentType]; value != "" {
		return value
	}
	return "application/octet-stream"
}

func headersToAttributes(headers amqp.Table) map[string]string {
	if len(headers) == 0 {
		return nil
	}
	attrs := make(map[string]string, len(headers))
	for key, value := range headers {
		switch typed := value.(type) {
		case string:
			attrs[key] = typed
		case []byte:
			attrs[key] = string(typed)
		default:
			attrs[key] = fmt.Sprint(value)
		}
	}
	return attrs
}
