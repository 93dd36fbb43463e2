package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/strayhub/chat-core/internal/hub"
	"github.com/strayhub/chat-core/pkg/log"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsCommand is the inbound frame of the live push channel: clients
// subscribe to and unsubscribe from room topics. Messages only flow
// server-to-client; sending goes through the HTTP API.
type wsCommand struct {
	Type   string `json:"type"` // "subscribe" | "unsubscribe"
	RoomID string `json:"room_id"`
}

// WSHandler serves the live push websocket endpoint.
type WSHandler struct {
	hub      *hub.Hub
	identity *Identity
	opts     hub.Options
}

// NewWSHandler creates a websocket handler.
func NewWSHandler(h *hub.Hub, identity *Identity, opts hub.Options) *WSHandler {
	return &WSHandler{
		hub:      h,
		identity: identity,
		opts:     opts,
	}
}

// RegisterRoutes registers the websocket route.
func (h *WSHandler) RegisterRoutes(r *gin.Engine) {
	r.GET("/ws", h.HandleWebSocket)
}

// HandleWebSocket authenticates the session via a token query parameter
// (browsers cannot set headers on websocket upgrades) and attaches the
// client to the hub.
func (h *WSHandler) HandleWebSocket(c *gin.Context) {
	claims, err := h.identity.Parse(c.Query("token"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Ctx(c.Request.Context()).Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), claims.UserID, h.hub, conn, h.opts)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.handleCommand)
}

func (h *WSHandler) handleCommand(client *hub.Client, frame []byte) {
	var cmd wsCommand
	if err := json.Unmarshal(frame, &cmd); err != nil || cmd.RoomID == "" {
		client.SendJSON(gin.H{"error": "invalid command"})
		return
	}

	switch cmd.Type {
	case "subscribe":
		h.hub.Subscribe(client, cmd.RoomID)
	case "unsubscribe":
		h.hub.Unsubscribe(client, cmd.RoomID)
	default:
		client.SendJSON(gin.H{"error": "unknown command type"})
	}
}
