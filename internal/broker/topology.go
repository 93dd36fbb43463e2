package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/strayhub/chat-core/pkg/log"
)

// ErrBrokerUnavailable wraps failures to reach the message broker.
// Callers decide retry policy; nothing in this package retries.
var ErrBrokerUnavailable = errors.New("message broker unavailable")

// Exchange describes a broker exchange as data.
type Exchange struct {
	Name    string
	Kind    string
	Durable bool
}

// Queue describes a broker queue as data.
type Queue struct {
	Name    string
	Durable bool
}

// Binding routes messages from an exchange to a queue.
type Binding struct {
	Exchange   string
	Queue      string
	RoutingKey string
}

// RoomExchange returns the durable fan-out exchange for a room.
// Every message published to it reaches every bound user queue.
func RoomExchange(roomID string) Exchange {
	return Exchange{
		Name:    fmt.Sprintf("room.%s.exchange", roomID),
		Kind:    "fanout",
		Durable: true,
	}
}

// UserQueue returns the durable queue for a user in a room.
func UserQueue(userID, roomID string) Queue {
	return Queue{
		Name:    fmt.Sprintf("user.%s.room.%s", userID, roomID),
		Durable: true,
	}
}

// UserBinding returns the unconditional binding from a room's exchange
// to a user's queue. Fan-out exchanges ignore routing keys.
func UserBinding(userID, roomID string) Binding {
	return Binding{
		Exchange: RoomExchange(roomID).Name,
		Queue:    UserQueue(userID, roomID).Name,
	}
}

// ListenerID returns the deterministic consumer identity for a (user,
// room) pair. Re-registration under the same id replaces the previous
// consumer instead of duplicating it.
func ListenerID(userID, roomID string) string {
	return fmt.Sprintf("listener.%s.room.%s", userID, roomID)
}

// Declarer creates and destroys broker routing primitives. Implemented
// over AMQP in production and by fakes in tests.
type Declarer interface {
	DeclareExchange(exchange Exchange) error
	DeclareQueue(queue Queue) error
	BindQueue(binding Binding) error
	DeleteQueue(name string) error
	DeleteExchange(name string) error
}

// TopologyManager reconciles desired room/user topology against the
// broker. Entries already ensured in this process are skipped, so
// repeated registration is a no-op; declares themselves are idempotent
// on the broker side when parameters match.
type TopologyManager struct {
	declarer Declarer

	mu      sync.Mutex
	ensured map[string]struct{}
}

// NewTopologyManager creates a topology manager on top of a declarer.
func NewTopologyManager(declarer Declarer) *TopologyManager {
	return &TopologyManager{
		declarer: declarer,
		ensured:  make(map[string]struct{}),
	}
}

// EnsureRoomExchange idempotently creates the room's fan-out exchange.
func (m *TopologyManager) EnsureRoomExchange(ctx context.Context, roomID string) error {
	exchange := RoomExchange(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ensured[exchange.Name]; ok {
		return nil
	}

	if err := m.declarer.DeclareExchange(exchange); err != nil {
		return fmt.Errorf("declare exchange %s: %w", exchange.Name, err)
	}
	m.ensured[exchange.Name] = struct{}{}

	log.Ctx(ctx).Debug().Str(log.FieldExchange, exchange.Name).Msg("room exchange ensured")
	return nil
}

// EnsureUserQueue idempotently creates the user's durable queue in a
// room and binds it to the room exchange. The exchange is ensured first
// so a queue never exists unbound.
func (m *TopologyManager) EnsureUserQueue(ctx context.Context, userID, roomID string) error {
	if err := m.EnsureRoomExchange(ctx, roomID); err != nil {
		return err
	}

	queue := UserQueue(userID, roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.ensured[queue.Name]; ok {
		return nil
	}

	if err := m.declarer.DeclareQueue(queue); err != nil {
		return fmt.Errorf("declare queue %s: %w", queue.Name, err)
	}
	if err := m.declarer.BindQueue(UserBinding(userID, roomID)); err != nil {
		return fmt.Errorf("bind queue %s: %w", queue.Name, err)
	}
	m.ensured[queue.Name] = struct{}{}

	log.Ctx(ctx).Debug().
		Str(log.FieldQueue, queue.Name).
		Str(log.FieldExchange, RoomExchange(roomID).Name).
		Msg("user queue ensured")
	return nil
}

// RemoveUserQueue deletes the user's queue in a room.
func (m *TopologyManager) RemoveUserQueue(ctx context.Context, userID, roomID string) error {
	queue := UserQueue(userID, roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.declarer.DeleteQueue(queue.Name); err != nil {
		return fmt.Errorf("delete queue %s: %w", queue.Name, err)
	}
	delete(m.ensured, queue.Name)

	log.Ctx(ctx).Debug().Str(log.FieldQueue, queue.Name).Msg("user queue removed")
	return nil
}

// RemoveRoomExchange deletes the room's exchange. Call after all member
// queues are gone, when the room itself is being deleted.
func (m *TopologyManager) RemoveRoomExchange(ctx context.Context, roomID string) error {
	exchange := RoomExchange(roomID)

	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.declarer.DeleteExchange(exchange.Name); err != nil {
		return fmt.Errorf("delete exchange %s: %w", exchange.Name, err)
	}
	delete(m.ensured, exchange.Name)

	log.Ctx(ctx).Debug().Str(log.FieldExchange, exchange.Name).Msg("room exchange removed")
	return nil
}
