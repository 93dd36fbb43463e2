package broker_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/strayhub/chat-core/internal/broker"
	"github.com/strayhub/chat-core/internal/domain"
)

type nopHandler struct{}

func (nopHandler) HandleMessage(ctx context.Context, msg *domain.WireMessage) error {
	return nil
}

type fakeConsumer struct {
	queue   string
	tag     string
	stopped bool
}

type fakeConsumerSource struct {
	mu        sync.Mutex
	consumers []*fakeConsumer
	startErr  error
}

func (f *fakeConsumerSource) StartConsumer(queue, consumerTag string, handler broker.MessageHandler) (func() error, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.startErr != nil {
		return nil, f.startErr
	}

	consumer := &fakeConsumer{queue: queue, tag: consumerTag}
	f.consumers = append(f.consumers, consumer)

	return func() error {
		f.mu.Lock()
		defer f.mu.Unlock()
		consumer.stopped = true
		return nil
	}, nil
}

func (f *fakeConsumerSource) running() []*fakeConsumer {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*fakeConsumer
	for _, c := range f.consumers {
		if !c.stopped {
			out = append(out, c)
		}
	}
	return out
}

func TestRegisterStartsConsumerOnUserQueue(t *testing.T) {
	source := &fakeConsumerSource{}
	registry := broker.NewRegistry(source)
	ctx := context.Background()

	if err := registry.Register(ctx, "u1", "7", nopHandler{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	running := source.running()
	if len(running) != 1 {
		t.Fatalf("expected one running consumer, got %d", len(running))
	}
	if running[0].queue != broker.UserQueue("u1", "7").Name {
		t.Fatalf("consumer bound to wrong queue: %s", running[0].queue)
	}
	if running[0].tag != broker.ListenerID("u1", "7") {
		t.Fatalf("consumer tagged with wrong listener id: %s", running[0].tag)
	}
	if !registry.Active("u1", "7") {
		t.Fatal("listener should be active after Register")
	}
}

func TestReRegisterReplacesWithoutOrphan(t *testing.T) {
	source := &fakeConsumerSource{}
	registry := broker.NewRegistry(source)
	ctx := context.Background()

	if err := registry.Register(ctx, "u1", "7", nopHandler{}); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if err := registry.Register(ctx, "u1", "7", nopHandler{}); err != nil {
		t.Fatalf("second Register failed: %v", err)
	}

	if running := source.running(); len(running) != 1 {
		t.Fatalf("expected exactly one running consumer after re-register, got %d", len(running))
	}
	if !source.consumers[0].stopped {
		t.Fatal("previous consumer must be stopped on re-register")
	}
}

func TestUnregisterAbsentIsNotAnError(t *testing.T) {
	registry := broker.NewRegistry(&fakeConsumerSource{})

	if err := registry.Unregister(context.Background(), "ghost", "7"); err != nil {
		t.Fatalf("unregistering an absent listener must be a no-op, got %v", err)
	}
}

func TestUnregisterThenRegisterYieldsSingleListener(t *testing.T) {
	source := &fakeConsumerSource{}
	registry := broker.NewRegistry(source)
	ctx := context.Background()

	if err := registry.Register(ctx, "uB", "7", nopHandler{}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := registry.Unregister(ctx, "uB", "7"); err != nil {
		t.Fatalf("Unregister failed: %v", err)
	}
	if registry.Active("uB", "7") {
		t.Fatal("listener should be inactive after Unregister")
	}
	if err := registry.Register(ctx, "uB", "7", nopHandler{}); err != nil {
		t.Fatalf("re-register failed: %v", err)
	}

	if running := source.running(); len(running) != 1 {
		t.Fatalf("expected exactly one active listener, got %d", len(running))
	}
}

func TestRegisterPropagatesStartFailure(t *testing.T) {
	wantErr := errors.New("channel gone")
	source := &fakeConsumerSource{startErr: wantErr}
	registry := broker.NewRegistry(source)

	err := registry.Register(context.Background(), "u1", "7", nopHandler{})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected start error to propagate, got %v", err)
	}
	if registry.Active("u1", "7") {
		t.Fatal("failed registration must not leave an active entry")
	}
}

func TestCloseStopsAllListeners(t *testing.T) {
	source := &fakeConsumerSource{}
	registry := broker.NewRegistry(source)
	ctx := context.Background()

	for _, userID := range []string{"u1", "u2", "u3"} {
		if err := registry.Register(ctx, userID, "7", nopHandler{}); err != nil {
			t.Fatalf("Register %s failed: %v", userID, err)
		}
	}

	if err := registry.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if running := source.running(); len(running) != 0 {
		t.Fatalf("expected no running consumers after Close, got %d", len(running))
	}
}
