package domain

import (
	"time"
)

// Room represents a chat room. Rooms are created when a group enables
// chat and are immutable afterwards except for deletion.
type Room struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// Membership represents a user's membership in a chat room. It owns the
// user's last-read pointer for that room. LastReadSeq mirrors the store
// insertion order of LastReadID so forward-only advancement can be
// decided without a lookup.
type Membership struct {
	UserID      string    `json:"user_id"`
	RoomID      string    `json:"room_id"`
	LastReadID  string    `json:"last_read_id,omitempty"`
	LastReadSeq uint64    `json:"-"`
	JoinedAt    time.Time `json:"joined_at"`
}

// Message is a chat message. Immutable once persisted; Seq is the store
// insertion order and is the authoritative ordering within a room.
type Message struct {
	ID         string    `json:"id"`
	Seq        uint64    `json:"-"`
	RoomID     string    `json:"room_id"`
	SenderID   string    `json:"sender_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
}

// SendMessageRequest is the inbound payload for sending a message.
type SendMessageRequest struct {
	Content string `json:"content" binding:"required,min=1,max=4096"`
}

// CreateRoomRequest is the inbound payload for creating a room.
type CreateRoomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// MarkReadRequest is the inbound payload for the explicit mark-read operation.
type MarkReadRequest struct {
	MessageID string `json:"message_id" binding:"required"`
}

// RoomSummary is one entry of the room listing: the room plus the most
// recent message and the caller's unread state.
type RoomSummary struct {
	RoomID          string     `json:"room_id"`
	Name            string     `json:"name"`
	LastMessage     string     `json:"last_message,omitempty"`
	LastMessageTime *time.Time `json:"last_message_time,omitempty"`
	Unread          bool       `json:"unread"`
}

// MessageView is one entry of a message page, shaped for the caller.
type MessageView struct {
	MessageID  string    `json:"message_id"`
	SenderName string    `json:"sender_name"`
	Content    string    `json:"content"`
	Time       time.Time `json:"time"`
	IsMine     bool      `json:"is_mine"`
}
