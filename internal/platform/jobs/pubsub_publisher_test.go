package jobs

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/oakmart/checkout/internal/services"
)

func TestPubSubSessionEventPublisherPublishesMessage(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	client, err := pubsub.NewClient(ctx, "test-project",
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	)
	if err != nil {
		t.Fatalf("pubsub.NewClient: %v", err)
	}
	defer func() {
		_ = client.Close()
	}()

	topic, err := client.CreateTopic(ctx, "checkout-session-events")
	if err != nil {
		t.Fatalf("CreateTopic: %v", err)
	}

	publisher, err := NewPubSubSessionEventPublisher(topic)
	if err != nil {
		t.Fatalf("NewPubSubSessionEventPublisher: %v", err)
	}

	occurredAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	msg := services.SessionEventMessage{
		SessionID:   "01SESSION",
		Type:        services.SessionEventOrderCompleted,
		CartID:      "cart-1",
		OrderNumber: "000000101",
		OccurredAt:  occurredAt,
	}

	if _, err := publisher.PublishSessionEvent(ctx, msg); err != nil {
		t.Fatalf("PublishSessionEvent: %v", err)
	}

	messages := srv.Messages()
	if len(messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(messages))
	}

	var payload services.SessionEventMessage
	if err := json.Unmarshal(messages[0].Data, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if payload.SessionID != msg.SessionID || payload.Type != msg.Type {
		t.Fatalf("unexpected payload %#v", payload)
	}
	if attr := messages[0].Attributes["orderNumber"]; attr != "000000101" {
		t.Fatalf("expected order number attribute, got %q", attr)
	}
	if attr := messages[0].Attributes["type"]; attr != services.SessionEventOrderCompleted {
		t.Fatalf("expected type attribute, got %q", attr)
	}
}
