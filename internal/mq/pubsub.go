package mq

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cloud.google.com/go/pubsub"
	"github.com/hostel-tracker/apiserver/config"
	"google.golang.org/api/option"
)

// PubSubClient publishes events to one topic per channel. Events about the
// same resource share an ordering key, and each consumer group gets a
// subscription filtered to the kinds it handles.
type PubSubClient struct {
	client             *pubsub.Client
	subscriptionSuffix string

	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

// NewPubSubClient constructs a Pub/Sub client from config.
func NewPubSubClient(ctx context.Context, cfg config.PubSubConfig) (*PubSubClient, error) {
	if strings.TrimSpace(cfg.ProjectID) == "" {
		return nil, errors.New("pubsub project id is required")
	}

	var opts []option.ClientOption
	if strings.TrimSpace(cfg.CredentialsFile) != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, err
	}

	return &PubSubClient{
		client:             client,
		subscriptionSuffix: cfg.SubscriptionSuffix,
		topics:             make(map[string]*pubsub.Topic),
	}, nil
}

// Publish sends an event to the channel's topic. The resource id becomes
// the ordering key so a subscriber sees one issue's or item's events in
// the order they happened.
func (p *PubSubClient) Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error) {
	if strings.TrimSpace(channel) == "" {
		return "", errors.New("pubsub channel is required")
	}

	topic, err := p.topic(ctx, channel)
	if err != nil {
		return "", err
	}
	orderingKey := attrs[AttrResourceID]
	id, err := topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		Attributes:  attrs,
		OrderingKey: orderingKey,
	}).Get(ctx)
	if err != nil && orderingKey != "" {
		// A failed ordered publish pauses the key until resumed.
		topic.ResumePublish(orderingKey)
	}
	return id, err
}

// Subscribe receives the group's messages until ctx is done. Handler
// errors nack the message for redelivery.
func (p *PubSubClient) Subscribe(ctx context.Context, sub Subscription, handler Handler) error {
	topic, err := p.topic(ctx, sub.Channel)
	if err != nil {
		return err
	}
	subscription, err := p.ensureSubscription(ctx, sub, topic)
	if err != nil {
		return err
	}

	return subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		message := Message{
			ID:         msg.ID,
			Data:       msg.Data,
			Attributes: msg.Attributes,
		}
		if err := handler(ctx, message); err != nil {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

// Close flushes pending publishes and closes the client.
func (p *PubSubClient) Close() error {
	p.mu.Lock()
	for _, topic := range p.topics {
		topic.Stop()
	}
	p.topics = make(map[string]*pubsub.Topic)
	p.mu.Unlock()
	return p.client.Close()
}

func (p *PubSubClient) topic(ctx context.Context, name string) (*pubsub.Topic, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if topic, ok := p.topics[name]; ok {
		return topic, nil
	}

	topic := p.client.Topic(name)
	exists, err := topic.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		if topic, err = p.client.CreateTopic(ctx, name); err != nil {
			return nil, err
		}
	}
	topic.EnableMessageOrdering = true
	p.topics[name] = topic
	return topic, nil
}

// ensureSubscription creates the group's subscription with its kind
// filter. Pub/Sub filters are immutable, so an existing subscription with
// a different filter is reported instead of silently reused.
func (p *PubSubClient) ensureSubscription(ctx context.Context, sub Subscription, topic *pubsub.Topic) (*pubsub.Subscription, error) {
	name := p.subscriptionName(sub)
	filter := kindFilter(sub.Kinds)

	subscription := p.client.Subscription(name)
	exists, err := subscription.Exists(ctx)
	if err != nil {
		return nil, err
	}
	if !exists {
		return p.client.CreateSubscription(ctx, name, pubsub.SubscriptionConfig{
			Topic:                 topic,
			Filter:                filter,
			EnableMessageOrdering: true,
		})
	}

	cfg, err := subscription.Config(ctx)
	if err != nil {
		return nil, err
	}
	if cfg.Filter != filter {
		return nil, fmt.Errorf("subscription %s has filter %q, want %q", name, cfg.Filter, filter)
	}
	return subscription, nil
}

func (p *PubSubClient) subscriptionName(sub Subscription) string {
	return sub.Channel + "." + sub.group() + p.subscriptionSuffix
}

// kindFilter builds a Pub/Sub filter expression matching any of kinds.
// An empty list yields no filter.
func kindFilter(kinds []string) string {
	clauses := make([]string, 0, len(kinds))
	for _, kind := range kinds {
		clauses = append(clauses, "attributes."+AttrEventKind+" = "+strconv.Quote(kind))
	}
	return strings.Join(clauses, " OR ")
}
