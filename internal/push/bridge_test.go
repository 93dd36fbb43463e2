package push_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/hub"
	"github.com/strayhub/chat-core/internal/push"
)

type fakeSubscriber struct {
	messages chan *domain.WireMessage
	err      error
}

func (f *fakeSubscriber) SubscribeAllRooms(ctx context.Context) (<-chan *domain.WireMessage, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.messages, nil
}

func TestBridgeForwardsToSubscribedClients(t *testing.T) {
	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	client := &hub.Client{ID: "c-1", Send: make(chan []byte, 8)}
	h.Register(client)
	h.Subscribe(client, "7")

	subscriber := &fakeSubscriber{messages: make(chan *domain.WireMessage, 1)}
	bridge := push.NewBridge(subscriber, h)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	wire := &domain.WireMessage{
		SchemaVersion: domain.WireSchemaVersion,
		MessageID:     "m-1",
		RoomID:        "7",
		SenderID:      "uA",
		SenderName:    "Alice",
		Content:       "hello",
		Timestamp:     time.Now().UTC(),
	}
	subscriber.messages <- wire

	select {
	case payload := <-client.Send:
		var got domain.WireMessage
		if err := json.Unmarshal(payload, &got); err != nil {
			t.Fatalf("payload is not valid JSON: %v", err)
		}
		if got.MessageID != "m-1" || got.RoomID != "7" || got.Content != "hello" {
			t.Fatalf("payload mismatch: %+v", got)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for bridged payload")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on cancellation: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop on cancellation")
	}
}

func TestBridgeStopsWhenSourceCloses(t *testing.T) {
	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	subscriber := &fakeSubscriber{messages: make(chan *domain.WireMessage)}
	bridge := push.NewBridge(subscriber, h)

	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()

	close(subscriber.messages)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error on source close: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("bridge did not stop when the source closed")
	}
}
