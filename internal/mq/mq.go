package mq

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/hostel-tracker/apiserver/config"
)

// Well-known message attributes. Keys use underscores so they are valid
// in Pub/Sub subscription filters.
const (
	AttrContentType = "content_type"
	AttrEventKind   = "event_kind"
	AttrResourceID  = "resource_id"
)

// Message represents a broker-agnostic payload delivered to subscribers.
type Message struct {
	ID         string
	Data       []byte
	Attributes map[string]string
}

// Kind returns the event kind the message was published with.
func (m Message) Kind() string {
	return m.Attributes[AttrEventKind]
}

// Handler processes a message. Return an error to signal a retry/nack.
type Handler func(ctx context.Context, msg Message) error

// Subscription selects what a consumer receives from a channel.
type Subscription struct {
	Channel string
	// Group names the durable consumer. Consumers sharing a group split
	// the stream between them.
	Group string
	// Kinds limits delivery to these event kinds. Empty means every kind.
	Kinds []string
}

// Accepts reports whether a message with attrs matches the subscription.
func (s Subscription) Accepts(attrs map[string]string) bool {
	return len(s.Kinds) == 0 || slices.Contains(s.Kinds, attrs[AttrEventKind])
}

func (s Subscription) group() string {
	if g := strings.TrimSpace(s.Group); g != "" {
		return g
	}
	return "default"
}

// Backend defines the broker-agnostic operations used by the app.
type Backend interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
	Subscribe(ctx context.Context, sub Subscription, handler Handler) error
	Close() error
}

// MQ wraps a backend with a stable API.
type MQ struct {
	backend Backend
}

// New constructs an MQ wrapper for the provided backend.
func New(backend Backend) *MQ {
	return &MQ{backend: backend}
}

// Open connects the backend named in cfg. It returns nil, nil when the
// backend is "none".
func Open(ctx context.Context, cfg config.MQConfig) (*MQ, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "none":
		return nil, nil
	case "", "rabbitmq":
		client, err := NewRabbitMQClient(cfg.RabbitMQ)
		if err != nil {
			return nil, fmt.Errorf("connect rabbitmq: %w", err)
		}
		return New(client), nil
	case "pubsub":
		client, err := NewPubSubClient(ctx, cfg.PubSub)
		if err != nil {
			return nil, fmt.Errorf("connect pubsub: %w", err)
		}
		return New(client), nil
	default:
		return nil, fmt.Errorf("unknown mq backend %q", cfg.Backend)
	}
}

// Publish sends a message to the named channel.
func (m *MQ) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	return m.backend.Publish(ctx, channel, data, attrs)
}

// Subscribe consumes the messages selected by sub. Brokers filter by kind
// themselves; messages that still slip through, for example from a
// subscription created before its filter changed, are acknowledged and
// skipped.
func (m *MQ) Subscribe(ctx context.Context, sub Subscription, handler Handler) error {
	if strings.TrimSpace(sub.Channel) == "" {
		return fmt.Errorf("subscription channel is required")
	}
	return m.backend.Subscribe(ctx, sub, func(ctx context.Context, msg Message) error {
		if !sub.Accepts(msg.Attributes) {
			return nil
		}
		return handler(ctx, msg)
	})
}

// Close closes the underlying backend.
func (m *MQ) Close() error {
	return m.backend.Close()
}
