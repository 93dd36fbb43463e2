package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/service"
	"github.com/strayhub/chat-core/pkg/log"
	"github.com/strayhub/chat-core/pkg/response"
)

// Handler exposes the chat core over HTTP.
type Handler struct {
	chatService service.ChatService
	identity    *Identity
}

// NewHandler creates a new HTTP handler.
func NewHandler(chatService service.ChatService, identity *Identity) *Handler {
	return &Handler{
		chatService: chatService,
		identity:    identity,
	}
}

// RegisterRoutes registers all routes.
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1", h.identity.RequireIdentity())
	{
		rooms := api.Group("/rooms")
		{
			rooms.POST("", h.CreateRoom)
			rooms.GET("", h.ListRooms)
			rooms.DELETE("/:id", h.DeleteRoom)
			rooms.POST("/:id/join", h.JoinRoom)
			rooms.POST("/:id/leave", h.LeaveRoom)
			rooms.POST("/:id/messages", h.SendMessage)
			rooms.GET("/:id/messages", h.ListMessages)
			rooms.POST("/:id/read", h.MarkRead)
		}
	}
}

// CreateRoom creates a chat room and its broker exchange.
func (h *Handler) CreateRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	var req domain.CreateRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	room, err := h.chatService.CreateRoom(ctx, req.Name)
	if err != nil {
		l.Error().Err(err).Msg("failed to create room")
		response.InternalError(c, "failed to create room")
		return
	}

	response.Created(c, room)
}

// DeleteRoom removes a room, its memberships, and its topology.
func (h *Handler) DeleteRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	if err := h.chatService.DeleteRoom(ctx, roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to delete room")
		response.InternalError(c, "failed to delete room")
		return
	}

	response.Success(c, gin.H{"room_id": roomID})
}

// JoinRoom adds the caller to a room.
func (h *Handler) JoinRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	userID := GetUserID(c)

	if err := h.chatService.JoinRoom(ctx, userID, roomID); err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			response.NotFound(c, "room not found")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to join room")
		response.InternalError(c, "failed to join room")
		return
	}

	response.Success(c, gin.H{"room_id": roomID})
}

// LeaveRoom removes the caller from a room.
func (h *Handler) LeaveRoom(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	userID := GetUserID(c)

	if err := h.chatService.LeaveRoom(ctx, userID, roomID); err != nil {
		if errors.Is(err, service.ErrNotRoomMember) {
			response.Forbidden(c, "not a member of this room")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to leave room")
		response.InternalError(c, "failed to leave room")
		return
	}

	response.Success(c, gin.H{"room_id": roomID})
}

// SendMessage sends a message to a room. A degraded fan-out still
// returns the persisted message id, with a warning.
func (h *Handler) SendMessage(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	userID := GetUserID(c)
	senderName := GetUsername(c)

	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	messageID, err := h.chatService.SendMessage(ctx, userID, senderName, roomID, req.Content)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotRoomMember):
			response.Forbidden(c, "not a member of this room")
		case errors.Is(err, service.ErrDeliveryDegraded):
			response.Accepted(c, gin.H{"message_id": messageID}, "message stored; live delivery degraded")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to send message")
			response.InternalError(c, "failed to send message")
		}
		return
	}

	response.Created(c, gin.H{"message_id": messageID})
}

// ListRooms lists the caller's rooms with last message and unread state.
func (h *Handler) ListRooms(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	summaries, err := h.chatService.ListRooms(ctx, GetUserID(c))
	if err != nil {
		l.Error().Err(err).Msg("failed to list rooms")
		response.InternalError(c, "failed to list rooms")
		return
	}

	response.Success(c, gin.H{"rooms": summaries})
}

// ListMessages returns one page of a room's messages, newest first.
func (h *Handler) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	userID := GetUserID(c)

	page, err := strconv.Atoi(c.DefaultQuery("page", "0"))
	if err != nil || page < 0 {
		response.BadRequest(c, "invalid page")
		return
	}

	messages, err := h.chatService.ListMessages(ctx, userID, roomID, page)
	if err != nil {
		if errors.Is(err, service.ErrNotRoomMember) {
			response.Forbidden(c, "not a member of this room")
			return
		}
		l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to list messages")
		response.InternalError(c, "failed to list messages")
		return
	}

	response.Success(c, gin.H{"messages": messages})
}

// MarkRead sets the caller's last-read pointer to a specific message.
func (h *Handler) MarkRead(c *gin.Context) {
	ctx := c.Request.Context()
	l := log.Ctx(ctx)

	roomID := c.Param("id")
	userID := GetUserID(c)

	var req domain.MarkReadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.chatService.MarkRead(ctx, userID, roomID, req.MessageID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotRoomMember):
			response.Forbidden(c, "not a member of this room")
		case errors.Is(err, service.ErrMessageNotFound):
			response.NotFound(c, "message not found")
		default:
			l.Error().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to mark read")
			response.InternalError(c, "failed to mark read")
		}
		return
	}

	response.Success(c, gin.H{"message_id": req.MessageID})
}
