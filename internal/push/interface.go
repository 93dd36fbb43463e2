package push

import (
	"context"

	"github.com/strayhub/chat-core/internal/domain"
)

// Publisher mirrors a message to the live push channel of its room.
// Delivery is best-effort: no replay, no backlog. Clients recover missed
// messages through the message listing API.
type Publisher interface {
	Publish(ctx context.Context, msg *domain.WireMessage) error
}

// Subscriber receives live messages for all rooms, typically to feed a
// local websocket hub.
type Subscriber interface {
	SubscribeAllRooms(ctx context.Context) (<-chan *domain.WireMessage, error)
}
