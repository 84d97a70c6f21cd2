package mqtt

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/gigshield/reviewcore/internal/errors"
	"github.com/gigshield/reviewcore/internal/events"
)

// EventConsumer forwards bus events to the broker as JSON. Each event kind
// maps to its own topic under the prefix, e.g. reviewcore/review/decision.
type EventConsumer struct {
	client Client
	prefix string
}

// NewEventConsumer creates a consumer publishing through client.
func NewEventConsumer(client Client, topicPrefix string) *EventConsumer {
	return &EventConsumer{client: client, prefix: strings.TrimSuffix(topicPrefix, "/")}
}

// Name implements events.Consumer.
func (c *EventConsumer) Name() string { return "mqtt" }

// Topic returns the topic an event kind is published on.
func (c *EventConsumer) Topic(kind events.Kind) string {
	t := strings.ReplaceAll(string(kind), ".", "/")
	if c.prefix == "" {
		return t
	}
	return c.prefix + "/" + t
}

// Consume implements events.Consumer.
func (c *EventConsumer) Consume(ctx context.Context, event events.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return errors.New(err).
			Component(componentName).
			Category(errors.CategoryMQTTPublish).
			Context("kind", string(event.Kind())).
			Build()
	}
	return c.client.Publish(ctx, c.Topic(event.Kind()), payload)
}
