package hub_test

import (
	"context"
	"testing"
	"time"

	"github.com/strayhub/chat-core/internal/hub"
)

func startHub(t *testing.T) *hub.Hub {
	t.Helper()

	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go h.Run(ctx)
	return h
}

func newClient(id string) *hub.Client {
	return &hub.Client{ID: id, Send: make(chan []byte, 8)}
}

func waitForPayload(t *testing.T, client *hub.Client) []byte {
	t.Helper()

	select {
	case payload := <-client.Send:
		return payload
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for payload")
		return nil
	}
}

func TestBroadcastReachesSubscribedClients(t *testing.T) {
	h := startHub(t)

	alice := newClient("c-alice")
	bob := newClient("c-bob")
	h.Register(alice)
	h.Register(bob)
	h.Subscribe(alice, "7")
	h.Subscribe(bob, "7")

	h.BroadcastToRoom("7", []byte("hello"))

	if got := string(waitForPayload(t, alice)); got != "hello" {
		t.Fatalf("alice received %q", got)
	}
	if got := string(waitForPayload(t, bob)); got != "hello" {
		t.Fatalf("bob received %q", got)
	}
}

func TestBroadcastScopedToRoom(t *testing.T) {
	h := startHub(t)

	inRoom := newClient("c-in")
	outside := newClient("c-out")
	h.Register(inRoom)
	h.Register(outside)
	h.Subscribe(inRoom, "7")
	h.Subscribe(outside, "8")

	h.BroadcastToRoom("7", []byte("hello"))

	waitForPayload(t, inRoom)
	select {
	case payload := <-outside.Send:
		t.Fatalf("client outside the room received %q", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	h := startHub(t)

	client := newClient("c-1")
	h.Register(client)
	h.Subscribe(client, "7")
	h.Unsubscribe(client, "7")

	if n := h.RoomClientCount("7"); n != 0 {
		t.Fatalf("expected empty room after unsubscribe, got %d", n)
	}

	h.BroadcastToRoom("7", []byte("hello"))
	select {
	case payload := <-client.Send:
		t.Fatalf("unsubscribed client received %q", payload)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestUnregisterRemovesAllSubscriptions(t *testing.T) {
	h := startHub(t)

	client := newClient("c-1")
	h.Register(client)
	h.Subscribe(client, "7")
	h.Subscribe(client, "8")

	h.Unregister(client)

	// Send closes on unregister; draining it confirms completion.
	for range client.Send {
	}
	if h.RoomClientCount("7") != 0 || h.RoomClientCount("8") != 0 {
		t.Fatal("unregister must drop all room subscriptions")
	}
}
