package service

import (
	"context"
	"errors"

	"github.com/strayhub/chat-core/internal/broker"
	"github.com/strayhub/chat-core/internal/domain"
)

var (
	ErrRoomNotFound    = errors.New("room not found")
	ErrMessageNotFound = errors.New("message not found")

	// ErrNotRoomMember is an authorization failure: the caller holds no
	// active membership for the room. Deliberately distinct from
	// ErrRoomNotFound.
	ErrNotRoomMember = errors.New("caller is not a member of this room")

	// ErrDeliveryDegraded reports that a message was persisted but could
	// not be fanned out to the broker. The message stays readable
	// through the listing API; only live delivery is degraded.
	ErrDeliveryDegraded = errors.New("message persisted but live delivery degraded")
)

// ChatService is the inbound command surface of the chat core, consumed
// by the transport layer.
type ChatService interface {
	CreateRoom(ctx context.Context, name string) (*domain.Room, error)
	DeleteRoom(ctx context.Context, roomID string) error
	JoinRoom(ctx context.Context, userID, roomID string) error
	LeaveRoom(ctx context.Context, userID, roomID string) error
	SendMessage(ctx context.Context, userID, senderName, roomID, content string) (string, error)
	ListRooms(ctx context.Context, userID string) ([]domain.RoomSummary, error)
	ListMessages(ctx context.Context, userID, roomID string, page int) ([]domain.MessageView, error)
	MarkRead(ctx context.Context, userID, roomID, messageID string) error
}

// Topology provisions and removes broker routing primitives.
type Topology interface {
	EnsureRoomExchange(ctx context.Context, roomID string) error
	EnsureUserQueue(ctx context.Context, userID, roomID string) error
	RemoveUserQueue(ctx context.Context, userID, roomID string) error
	RemoveRoomExchange(ctx context.Context, roomID string) error
}

// Subscriptions manages per-(user, room) consumers.
type Subscriptions interface {
	Register(ctx context.Context, userID, roomID string, handler broker.MessageHandler) error
	Unregister(ctx context.Context, userID, roomID string) error
}

// Router publishes messages to the broker for fan-out.
type Router interface {
	Publish(ctx context.Context, msg *domain.Message) error
}
