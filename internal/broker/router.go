package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/repository"
	"github.com/strayhub/chat-core/pkg/log"
)

// WirePublisher publishes a serialized payload to an exchange.
type WirePublisher interface {
	Publish(ctx context.Context, exchange string, body []byte) error
}

// Router moves chat messages between the application and the broker:
// outbound it serializes and publishes to the room exchange, inbound it
// persists each delivered copy into the durable store.
type Router struct {
	publisher WirePublisher
	messages  repository.MessageRepository
}

// NewRouter creates a message router.
func NewRouter(publisher WirePublisher, messages repository.MessageRepository) *Router {
	return &Router{
		publisher: publisher,
		messages:  messages,
	}
}

// Publish sends a message to its room's fan-out exchange. No routing key
// is used; every bound user queue receives a copy.
func (r *Router) Publish(ctx context.Context, msg *domain.Message) error {
	body, err := json.Marshal(msg.ToWire())
	if err != nil {
		return fmt.Errorf("marshal message %s: %w", msg.ID, err)
	}

	exchange := RoomExchange(msg.RoomID).Name
	if err := r.publisher.Publish(ctx, exchange, body); err != nil {
		return fmt.Errorf("publish to %s: %w", exchange, err)
	}

	log.Ctx(ctx).Debug().
		Str(log.FieldMessageID, msg.ID).
		Str(log.FieldExchange, exchange).
		Msg("message published")
	return nil
}

// HandleMessage persists one delivered copy. Delivery is at-least-once
// and arrival order is not the persist order, so duplicates by message
// identity are expected and collapsed silently: the first insert wins
// and the store already holds the authoritative copy from the send path.
func (r *Router) HandleMessage(ctx context.Context, wire *domain.WireMessage) error {
	err := r.messages.Save(ctx, wire.ToMessage())
	if errors.Is(err, repository.ErrDuplicateMessage) {
		log.Ctx(ctx).Debug().
			Str(log.FieldMessageID, wire.MessageID).
			Msg("duplicate delivery collapsed")
		return nil
	}
	return err
}
