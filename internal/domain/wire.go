package domain

import "time"

// WireSchemaVersion is the current broker payload schema version.
// Consumers must tolerate unknown fields so the schema can grow without
// breaking older readers; fields are never removed or renamed.
const WireSchemaVersion = 1

// WireMessage is the broker and live-push payload for a chat message.
type WireMessage struct {
	SchemaVersion int       `json:"schema_version"`
	MessageID     string    `json:"message_id"`
	RoomID        string    `json:"room_id"`
	SenderID      string    `json:"sender_id"`
	SenderName    string    `json:"sender_name"`
	Content       string    `json:"content"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToWire converts a Message to its wire payload.
func (m *Message) ToWire() *WireMessage {
	return &WireMessage{
		SchemaVersion: WireSchemaVersion,
		MessageID:     m.ID,
		RoomID:        m.RoomID,
		SenderID:      m.SenderID,
		SenderName:    m.SenderName,
		Content:       m.Content,
		Timestamp:     m.CreatedAt,
	}
}

// ToMessage converts a wire payload back to a domain Message.
// Seq is unknown on the wire; the store assigns it on insert.
func (w *WireMessage) ToMessage() *Message {
	return &Message{
		ID:         w.MessageID,
		RoomID:     w.RoomID,
		SenderID:   w.SenderID,
		SenderName: w.SenderName,
		Content:    w.Content,
		CreatedAt:  w.Timestamp,
	}
}
