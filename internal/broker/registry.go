package broker

import (
	"context"
	"fmt"
	"sync"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// MessageHandler processes one delivered message copy. Handlers are
// registered as values keyed by listener id, never as inline closures,
// so teardown and replacement stay well-defined.
type MessageHandler interface {
	HandleMessage(ctx context.Context, msg *domain.WireMessage) error
}

// ConsumerSource starts a consumer on a queue. The returned stop
// function cancels the consumer; it is safe to call while a delivery is
// in flight.
type ConsumerSource interface {
	StartConsumer(queue, consumerTag string, handler MessageHandler) (stop func() error, err error)
}

// Registry tracks which listener is bound to which queue. It is the one
// piece of process-wide mutable state in the broker layer, so all access
// goes through its lock: registration and unregistration can race with
// teardown of the owning room.
type Registry struct {
	source ConsumerSource

	mu        sync.Mutex
	listeners map[string]func() error
}

// NewRegistry creates an empty subscription registry.
func NewRegistry(source ConsumerSource) *Registry {
	return &Registry{
		source:    source,
		listeners: make(map[string]func() error),
	}
}

// Register binds a handler to the (user, room) queue and starts
// consuming immediately. An existing registration under the same
// listener id is stopped first, so re-subscribing never leaves an
// orphaned consumer.
func (r *Registry) Register(ctx context.Context, userID, roomID string, handler MessageHandler) error {
	id := ListenerID(userID, roomID)
	queue := UserQueue(userID, roomID).Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if stop, ok := r.listeners[id]; ok {
		if err := stop(); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str(log.FieldListenerID, id).Msg("failed to stop previous listener")
		}
		delete(r.listeners, id)
	}

	stop, err := r.source.StartConsumer(queue, id, handler)
	if err != nil {
		return fmt.Errorf("start consumer %s: %w", id, err)
	}
	r.listeners[id] = stop

	log.Ctx(ctx).Debug().
		Str(log.FieldListenerID, id).
		Str(log.FieldQueue, queue).
		Msg("listener registered")
	return nil
}

// Unregister tears down the (user, room) listener. Absence of a
// registration is not an error.
func (r *Registry) Unregister(ctx context.Context, userID, roomID string) error {
	id := ListenerID(userID, roomID)

	r.mu.Lock()
	defer r.mu.Unlock()

	stop, ok := r.listeners[id]
	if !ok {
		return nil
	}
	delete(r.listeners, id)

	if err := stop(); err != nil {
		return fmt.Errorf("stop consumer %s: %w", id, err)
	}

	log.Ctx(ctx).Debug().Str(log.FieldListenerID, id).Msg("listener unregistered")
	return nil
}

// Active reports whether a listener is currently registered for the
// (user, room) pair.
func (r *Registry) Active(userID, roomID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.listeners[ListenerID(userID, roomID)]
	return ok
}

// Close stops every registered listener.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, stop := range r.listeners {
		if err := stop(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stop consumer %s: %w", id, err)
		}
		delete(r.listeners, id)
	}
	return firstErr
}
