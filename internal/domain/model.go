package domain

import (
	"time"
)

// RoomModel is the GORM model for the chat_rooms table.
type RoomModel struct {
	ID        string    `gorm:"type:varchar(36);primaryKey"`
	Name      string    `gorm:"type:varchar(100);not null"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for RoomModel.
func (RoomModel) TableName() string {
	return "chat_rooms"
}

// ToDomain converts RoomModel to domain Room.
func (m *RoomModel) ToDomain() *Room {
	return &Room{
		ID:        m.ID,
		Name:      m.Name,
		CreatedAt: m.CreatedAt,
	}
}

// MembershipModel is the GORM model for the chat_memberships table.
// One row per (user, room); the unique index makes double-join a
// constraint violation rather than a silent duplicate.
type MembershipModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	UserID      string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_user_room;index"`
	RoomID      string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_user_room;index"`
	LastReadID  string    `gorm:"type:varchar(36)"`
	LastReadSeq uint64    `gorm:"default:0"`
	JoinedAt    time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for MembershipModel.
func (MembershipModel) TableName() string {
	return "chat_memberships"
}

// ToDomain converts MembershipModel to domain Membership.
func (m *MembershipModel) ToDomain() *Membership {
	return &Membership{
		UserID:      m.UserID,
		RoomID:      m.RoomID,
		LastReadID:  m.LastReadID,
		LastReadSeq: m.LastReadSeq,
		JoinedAt:    m.JoinedAt,
	}
}

// MessageModel is the GORM model for the chat_messages table. Seq is the
// insertion order; the unique index on MessageID is what collapses broker
// redeliveries into a single persisted row.
type MessageModel struct {
	Seq        uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID  string    `gorm:"type:varchar(36);not null;uniqueIndex:uk_message_id"`
	RoomID     string    `gorm:"type:varchar(36);not null;index:idx_room_seq"`
	SenderID   string    `gorm:"type:varchar(36);not null"`
	SenderName string    `gorm:"type:varchar(50);not null"`
	Content    string    `gorm:"type:varchar(4096);not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

// TableName specifies the table name for MessageModel.
func (MessageModel) TableName() string {
	return "chat_messages"
}

// ToDomain converts MessageModel to domain Message.
func (m *MessageModel) ToDomain() *Message {
	return &Message{
		ID:         m.MessageID,
		Seq:        m.Seq,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		CreatedAt:  m.CreatedAt,
	}
}

// MessageToModel converts domain Message to MessageModel.
func MessageToModel(msg *Message) *MessageModel {
	return &MessageModel{
		Seq:        msg.Seq,
		MessageID:  msg.ID,
		RoomID:     msg.RoomID,
		SenderID:   msg.SenderID,
		SenderName: msg.SenderName,
		Content:    msg.Content,
		CreatedAt:  msg.CreatedAt,
	}
}
