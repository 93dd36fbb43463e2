package push

import (
	"context"
	"encoding/json"

	"github.com/strayhub/chat-core/internal/hub"
	"github.com/strayhub/chat-core/pkg/log"
)

// Bridge forwards live messages from the push transport to the local
// websocket hub, so every process delivers to its own connected
// clients regardless of which process accepted the send.
type Bridge struct {
	subscriber Subscriber
	hub        *hub.Hub
}

// NewBridge creates a push-to-hub bridge.
func NewBridge(subscriber Subscriber, h *hub.Hub) *Bridge {
	return &Bridge{subscriber: subscriber, hub: h}
}

// Run pumps messages into the hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context) error {
	messages, err := b.subscriber.SubscribeAllRooms(ctx)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			payload, err := json.Marshal(msg)
			if err != nil {
				log.L().Warn().Err(err).Str(log.FieldMessageID, msg.MessageID).Msg("failed to encode push payload")
				continue
			}
			b.hub.BroadcastToRoom(msg.RoomID, payload)
		}
	}
}
