package hub

import (
	"context"
	"sync"

	"github.com/strayhub/chat-core/pkg/log"
)

// Hub tracks connected websocket clients and the room topics they are
// subscribed to, and fans broadcast payloads out to them. Delivery is
// best-effort: a client with a full send buffer is dropped, and clients
// recover backlog through the message listing API.
type Hub struct {
	clients    map[string]*Client            // clientID -> client
	rooms      map[string]map[string]*Client // roomID -> clientID -> client
	register   chan *Client
	unregister chan *Client
	broadcast  chan *RoomMessage
	mu         sync.RWMutex
}

// RoomMessage is a payload addressed to every client subscribed to a room.
type RoomMessage struct {
	RoomID  string
	Payload []byte
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		rooms:      make(map[string]map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *RoomMessage, 256),
	}
}

// Run processes register/unregister/broadcast events until the context
// is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.ID] = client
			h.mu.Unlock()
			log.L().Debug().Str("client_id", client.ID).Msg("client registered")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ID]; ok {
				for roomID, members := range h.rooms {
					delete(members, client.ID)
					if len(members) == 0 {
						delete(h.rooms, roomID)
					}
				}
				delete(h.clients, client.ID)
				close(client.Send)
			}
			h.mu.Unlock()
			log.L().Debug().Str("client_id", client.ID).Msg("client unregistered")

		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.rooms[msg.RoomID] {
				select {
				case client.Send <- msg.Payload:
				default:
					go h.Unregister(client)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds a connected client to the hub.
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client and all its room subscriptions.
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a room topic.
func (h *Hub) Subscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][client.ID] = client
	log.L().Debug().Str("client_id", client.ID).Str(log.FieldRoomID, roomID).Msg("client subscribed to room")
}

// Unsubscribe removes a client from a room topic.
func (h *Hub) Unsubscribe(client *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if members, ok := h.rooms[roomID]; ok {
		delete(members, client.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// BroadcastToRoom queues a payload for every client subscribed to the room.
func (h *Hub) BroadcastToRoom(roomID string, payload []byte) {
	h.broadcast <- &RoomMessage{RoomID: roomID, Payload: payload}
}

// RoomClientCount returns the number of clients subscribed to a room.
func (h *Hub) RoomClientCount(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.rooms[roomID])
}
