package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/pubsub"

	"github.com/oakmart/checkout/internal/services"
)

// PubSubSessionEventPublisher publishes checkout session lifecycle events to a Pub/Sub topic.
type PubSubSessionEventPublisher struct {
	topic   *pubsub.Topic
	marshal func(any) ([]byte, error)
}

// NewPubSubSessionEventPublisher constructs a Pub/Sub backed session event publisher.
func NewPubSubSessionEventPublisher(topic *pubsub.Topic) (*PubSubSessionEventPublisher, error) {
	if topic == nil {
		return nil, errors.New("pubsub session event publisher: topic is required")
	}
	return &PubSubSessionEventPublisher{
		topic:   topic,
		marshal: json.Marshal,
	}, nil
}

// PublishSessionEvent enqueues a session event message on the configured topic.
func (p *PubSubSessionEventPublisher) PublishSessionEvent(ctx context.Context, message services.SessionEventMessage) (string, error) {
	if p == nil || p.topic == nil {
		return "", errors.New("pubsub session event publisher: not initialised")
	}

	data, err := p.marshal(message)
	if err != nil {
		return "", fmt.Errorf("marshal session event: %w", err)
	}

	attrs := make(map[string]string)
	setAttr(attrs, "sessionId", message.SessionID)
	setAttr(attrs, "type", message.Type)
	setAttr(attrs, "cartId", message.CartID)
	setAttr(attrs, "orderNumber", message.OrderNumber)

	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: attrs,
	})

	id, err := result.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish session event: %w", err)
	}
	return id, nil
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
