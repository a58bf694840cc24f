package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"

	"github.com/hostel-tracker/apiserver/internal/mq"
	"github.com/hostel-tracker/apiserver/types"
)

// Publisher is the part of the message bus the services publish through.
type Publisher interface {
	Publish(ctx context.Context, channel string, data []byte, attrs map[string]string) (string, error)
}

// EventPublisher publishes lifecycle events after a mutation has committed.
// A nil *EventPublisher, or one without a bus, drops events.
type EventPublisher struct {
	bus     Publisher
	channel string
	logger  *slog.Logger
}

func NewEventPublisher(bus Publisher, channel string, logger *slog.Logger) *EventPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &EventPublisher{
		bus:     bus,
		channel: channel,
		logger:  logger,
	}
}

// Publish sends event on the configured channel. Failures are logged and
// never returned: the mutation that produced the event already committed.
func (p *EventPublisher) Publish(ctx context.Context, event types.Event) {
	if p == nil || p.bus == nil {
		return
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.logger.ErrorContext(ctx, "encode event failed", "kind", event.Kind, "resource_id", event.ResourceID, "error", err)
		return
	}

	attrs := map[string]string{
		mq.AttrContentType: "application/json",
		mq.AttrEventKind:   string(event.Kind),
		mq.AttrResourceID:  event.ResourceID,
	}
	id, err := p.bus.Publish(ctx, p.channel, data, attrs)
	if err != nil {
		p.logger.WarnContext(ctx, "publish event failed", "kind", event.Kind, "resource_id", event.ResourceID, "error", err)
		return
	}
	p.logger.DebugContext(ctx, "event published", "kind", event.Kind, "resource_id", event.ResourceID, "message_id", id)
}

// DecodeEvent parses an event published by EventPublisher.
func DecodeEvent(data []byte) (types.Event, error) {
	var event types.Event
	if err := json.Unmarshal(data, &event); err != nil {
		return types.Event{}, err
	}
	return event, nil
}

// recipients returns the distinct non-empty ids other than actorID.
func recipients(actorID string, ids ...string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || id == actorID || slices.Contains(out, id) {
			continue
		}
		out = append(out, id)
	}
	return out
}
