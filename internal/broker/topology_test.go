package broker_test

import (
	"context"
	"errors"
	"testing"

	"github.com/strayhub/chat-core/internal/broker"
)

type fakeDeclarer struct {
	exchanges []broker.Exchange
	queues    []broker.Queue
	bindings  []broker.Binding
	deleted   []string
	err       error
}

func (f *fakeDeclarer) DeclareExchange(e broker.Exchange) error {
	if f.err != nil {
		return f.err
	}
	f.exchanges = append(f.exchanges, e)
	return nil
}

func (f *fakeDeclarer) DeclareQueue(q broker.Queue) error {
	if f.err != nil {
		return f.err
	}
	f.queues = append(f.queues, q)
	return nil
}

func (f *fakeDeclarer) BindQueue(b broker.Binding) error {
	if f.err != nil {
		return f.err
	}
	f.bindings = append(f.bindings, b)
	return nil
}

func (f *fakeDeclarer) DeleteQueue(name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}

func (f *fakeDeclarer) DeleteExchange(name string) error {
	f.deleted = append(f.deleted, name)
	return f.err
}

func TestDeterministicNaming(t *testing.T) {
	exchange := broker.RoomExchange("7")
	if exchange.Name != "room.7.exchange" {
		t.Fatalf("unexpected exchange name: %s", exchange.Name)
	}
	if exchange.Kind != "fanout" || !exchange.Durable {
		t.Fatalf("room exchange must be a durable fanout, got %+v", exchange)
	}

	queue := broker.UserQueue("u1", "7")
	if queue.Name != "user.u1.room.7" {
		t.Fatalf("unexpected queue name: %s", queue.Name)
	}
	if !queue.Durable {
		t.Fatal("user queue must be durable")
	}

	binding := broker.UserBinding("u1", "7")
	if binding.Exchange != exchange.Name || binding.Queue != queue.Name {
		t.Fatalf("binding does not connect queue to room exchange: %+v", binding)
	}
	if binding.RoutingKey != "" {
		t.Fatalf("fanout binding must be unconditional, got routing key %q", binding.RoutingKey)
	}

	if broker.ListenerID("u1", "7") != broker.ListenerID("u1", "7") {
		t.Fatal("listener id must be deterministic")
	}
	if broker.ListenerID("u1", "7") == broker.ListenerID("u2", "7") {
		t.Fatal("listener ids must differ per user")
	}
}

func TestEnsureRoomExchangeIdempotent(t *testing.T) {
	declarer := &fakeDeclarer{}
	manager := broker.NewTopologyManager(declarer)
	ctx := context.Background()

	if err := manager.EnsureRoomExchange(ctx, "7"); err != nil {
		t.Fatalf("EnsureRoomExchange failed: %v", err)
	}
	if err := manager.EnsureRoomExchange(ctx, "7"); err != nil {
		t.Fatalf("second EnsureRoomExchange failed: %v", err)
	}

	if len(declarer.exchanges) != 1 {
		t.Fatalf("expected exactly one exchange declare, got %d", len(declarer.exchanges))
	}
}

func TestEnsureUserQueueDeclaresExchangeQueueAndBinding(t *testing.T) {
	declarer := &fakeDeclarer{}
	manager := broker.NewTopologyManager(declarer)
	ctx := context.Background()

	if err := manager.EnsureUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("EnsureUserQueue failed: %v", err)
	}

	if len(declarer.exchanges) != 1 || len(declarer.queues) != 1 || len(declarer.bindings) != 1 {
		t.Fatalf("expected 1 exchange, 1 queue, 1 binding; got %d/%d/%d",
			len(declarer.exchanges), len(declarer.queues), len(declarer.bindings))
	}

	// Re-ensuring is a no-op for all three primitives.
	if err := manager.EnsureUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("second EnsureUserQueue failed: %v", err)
	}
	if len(declarer.queues) != 1 || len(declarer.bindings) != 1 {
		t.Fatalf("re-ensure must not redeclare, got %d queues %d bindings", len(declarer.queues), len(declarer.bindings))
	}

	// A second user in the same room shares the exchange.
	if err := manager.EnsureUserQueue(ctx, "u2", "7"); err != nil {
		t.Fatalf("EnsureUserQueue for second user failed: %v", err)
	}
	if len(declarer.exchanges) != 1 {
		t.Fatalf("room exchange must be shared, got %d declares", len(declarer.exchanges))
	}
	if len(declarer.queues) != 2 {
		t.Fatalf("expected a queue per (user, room), got %d", len(declarer.queues))
	}
}

func TestEnsureReportsBrokerFailure(t *testing.T) {
	declarer := &fakeDeclarer{err: broker.ErrBrokerUnavailable}
	manager := broker.NewTopologyManager(declarer)
	ctx := context.Background()

	err := manager.EnsureUserQueue(ctx, "u1", "7")
	if !errors.Is(err, broker.ErrBrokerUnavailable) {
		t.Fatalf("expected ErrBrokerUnavailable, got %v", err)
	}

	// A failed ensure must not be cached; the next attempt hits the
	// broker again.
	declarer.err = nil
	if err := manager.EnsureUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("retry after failure should succeed: %v", err)
	}
	if len(declarer.queues) != 1 {
		t.Fatalf("expected queue declared on retry, got %d", len(declarer.queues))
	}
}

func TestRemoveClearsEnsuredState(t *testing.T) {
	declarer := &fakeDeclarer{}
	manager := broker.NewTopologyManager(declarer)
	ctx := context.Background()

	if err := manager.EnsureUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("EnsureUserQueue failed: %v", err)
	}
	if err := manager.RemoveUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("RemoveUserQueue failed: %v", err)
	}
	if err := manager.RemoveRoomExchange(ctx, "7"); err != nil {
		t.Fatalf("RemoveRoomExchange failed: %v", err)
	}

	// After removal the topology can be provisioned again.
	if err := manager.EnsureUserQueue(ctx, "u1", "7"); err != nil {
		t.Fatalf("re-ensure after removal failed: %v", err)
	}
	if len(declarer.queues) != 2 || len(declarer.exchanges) != 2 {
		t.Fatalf("expected redeclare after removal, got %d queues %d exchanges",
			len(declarer.queues), len(declarer.exchanges))
	}
}
