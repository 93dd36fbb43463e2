package repository

import (
	"context"
	"errors"

	"github.com/strayhub/chat-core/internal/domain"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrMessageNotFound    = errors.New("message not found")
	ErrAlreadyMember      = errors.New("user is already a member of this room")

	// ErrDuplicateMessage signals an insert of an already-persisted
	// message identity. Broker redelivery makes this an expected
	// condition, not a failure.
	ErrDuplicateMessage = errors.New("message already persisted")
)

// RoomRepository persists chat rooms.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	GetByID(ctx context.Context, id string) (*domain.Room, error)
	Delete(ctx context.Context, id string) error
}

// MembershipRepository persists (user, room) memberships and their
// last-read pointers.
type MembershipRepository interface {
	Create(ctx context.Context, userID, roomID string) (*domain.Membership, error)
	Get(ctx context.Context, userID, roomID string) (*domain.Membership, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Membership, error)
	ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error)
	ListAll(ctx context.Context) ([]domain.Membership, error)
	Delete(ctx context.Context, userID, roomID string) error
	DeleteByRoom(ctx context.Context, roomID string) error

	// AdvanceLastRead moves the last-read pointer forward to the given
	// message. It is a no-op if the pointer already points at a newer
	// message (monotonic, forward-only).
	AdvanceLastRead(ctx context.Context, userID, roomID, messageID string, messageSeq uint64) error

	// SetLastRead sets the last-read pointer unconditionally, including
	// backwards. Serves the explicit mark-read operation only.
	SetLastRead(ctx context.Context, userID, roomID, messageID string, messageSeq uint64) error
}

// MessageRepository is the durable message store: append-only, ordered
// by insertion, idempotent on message identity.
type MessageRepository interface {
	// Save appends a message and assigns its Seq. Returns
	// ErrDuplicateMessage if the message identity is already stored.
	Save(ctx context.Context, msg *domain.Message) error
	GetByID(ctx context.Context, messageID string) (*domain.Message, error)
	// PageByRoom returns one page of a room's messages, newest first.
	PageByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, error)
	// Latest returns the most recent message in a room, or
	// ErrMessageNotFound for an empty room.
	Latest(ctx context.Context, roomID string) (*domain.Message, error)
}
