package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/strayhub/chat-core/internal/broker"
	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/internal/push"
	"github.com/strayhub/chat-core/internal/repository"
	"github.com/strayhub/chat-core/pkg/log"
)

type chatService struct {
	rooms         repository.RoomRepository
	memberships   repository.MembershipRepository
	messages      repository.MessageRepository
	topology      Topology
	subscriptions Subscriptions
	router        Router
	pusher        push.Publisher
	handler       broker.MessageHandler
	pageSize      int
}

// NewChatService creates the chat session service. handler is the value
// registered for every listener; in production it is the message router's
// persist handler.
func NewChatService(
	rooms repository.RoomRepository,
	memberships repository.MembershipRepository,
	messages repository.MessageRepository,
	topology Topology,
	subscriptions Subscriptions,
	router Router,
	pusher push.Publisher,
	handler broker.MessageHandler,
	pageSize int,
) ChatService {
	if pageSize < 1 {
		pageSize = 10
	}
	return &chatService{
		rooms:         rooms,
		memberships:   memberships,
		messages:      messages,
		topology:      topology,
		subscriptions: subscriptions,
		router:        router,
		pusher:        pusher,
		handler:       handler,
		pageSize:      pageSize,
	}
}

// CreateRoom persists a room and provisions its fan-out exchange. The
// room row is rolled back if the exchange cannot be created, so a room
// never exists without a live exchange.
func (s *chatService) CreateRoom(ctx context.Context, name string) (*domain.Room, error) {
	room := &domain.Room{Name: name}
	if err := s.rooms.Create(ctx, room); err != nil {
		return nil, err
	}

	if err := s.topology.EnsureRoomExchange(ctx, room.ID); err != nil {
		if delErr := s.rooms.Delete(ctx, room.ID); delErr != nil {
			log.Ctx(ctx).Error().Err(delErr).Str(log.FieldRoomID, room.ID).Msg("failed to roll back room after exchange failure")
		}
		return nil, err
	}

	return room, nil
}

// DeleteRoom tears the room down entirely: listeners, memberships, the
// room row, and finally the broker topology. Broker failures during
// teardown are logged and skipped; the durable state is already gone
// and stale topology is harmless.
func (s *chatService) DeleteRoom(ctx context.Context, roomID string) error {
	l := log.Ctx(ctx)

	members, err := s.memberships.ListByRoom(ctx, roomID)
	if err != nil {
		return err
	}

	for _, member := range members {
		if err := s.subscriptions.Unregister(ctx, member.UserID, roomID); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, member.UserID).Str(log.FieldRoomID, roomID).Msg("failed to unregister listener during room deletion")
		}
	}

	if err := s.memberships.DeleteByRoom(ctx, roomID); err != nil {
		return err
	}
	if err := s.rooms.Delete(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	for _, member := range members {
		if err := s.topology.RemoveUserQueue(ctx, member.UserID, roomID); err != nil {
			l.Warn().Err(err).Str(log.FieldUserID, member.UserID).Str(log.FieldRoomID, roomID).Msg("failed to remove user queue during room deletion")
		}
	}
	if err := s.topology.RemoveRoomExchange(ctx, roomID); err != nil {
		l.Warn().Err(err).Str(log.FieldRoomID, roomID).Msg("failed to remove room exchange during room deletion")
	}

	return nil
}

// JoinRoom creates the membership and provisions queue, binding, and
// listener. The steps either all succeed or the new membership is rolled
// back; a membership must never exist without a live queue. Joining a
// room the user is already in re-ensures topology and listener, which
// are both idempotent, and succeeds.
func (s *chatService) JoinRoom(ctx context.Context, userID, roomID string) error {
	if _, err := s.rooms.GetByID(ctx, roomID); err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return ErrRoomNotFound
		}
		return err
	}

	created := true
	if _, err := s.memberships.Create(ctx, userID, roomID); err != nil {
		if !errors.Is(err, repository.ErrAlreadyMember) {
			return err
		}
		created = false
	}

	if err := s.provision(ctx, userID, roomID); err != nil {
		if created {
			s.rollbackJoin(ctx, userID, roomID)
		}
		return err
	}

	return nil
}

func (s *chatService) provision(ctx context.Context, userID, roomID string) error {
	if err := s.topology.EnsureUserQueue(ctx, userID, roomID); err != nil {
		return err
	}
	return s.subscriptions.Register(ctx, userID, roomID, s.handler)
}

func (s *chatService) rollbackJoin(ctx context.Context, userID, roomID string) {
	l := log.Ctx(ctx)

	if err := s.subscriptions.Unregister(ctx, userID, roomID); err != nil {
		l.Warn().Err(err).Str(log.FieldUserID, userID).Str(log.FieldRoomID, roomID).Msg("failed to unregister listener during join rollback")
	}
	if err := s.memberships.Delete(ctx, userID, roomID); err != nil && !errors.Is(err, repository.ErrMembershipNotFound) {
		l.Error().Err(err).Str(log.FieldUserID, userID).Str(log.FieldRoomID, roomID).Msg("failed to remove membership during join rollback")
	}
}

// LeaveRoom removes the membership and stops the listener. Queue and
// binding are left in place for a fast rejoin; they are only removed
// when the room itself is deleted.
func (s *chatService) LeaveRoom(ctx context.Context, userID, roomID string) error {
	if err := s.memberships.Delete(ctx, userID, roomID); err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return ErrNotRoomMember
		}
		return err
	}

	return s.subscriptions.Unregister(ctx, userID, roomID)
}

// SendMessage persists the message and then fans it out. Persist comes
// first so a fan-out failure can always be recovered by re-reading the
// store; a publish failure therefore never rolls the message back, it
// is reported as degraded delivery instead.
func (s *chatService) SendMessage(ctx context.Context, userID, senderName, roomID, content string) (string, error) {
	if _, err := s.authorize(ctx, userID, roomID); err != nil {
		return "", err
	}

	msg := &domain.Message{
		ID:         uuid.New().String(),
		RoomID:     roomID,
		SenderID:   userID,
		SenderName: senderName,
		Content:    content,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.messages.Save(ctx, msg); err != nil {
		return "", err
	}

	if err := s.router.Publish(ctx, msg); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldMessageID, msg.ID).
			Str(log.FieldRoomID, roomID).
			Msg("message persisted but broker publish failed")
		return msg.ID, fmt.Errorf("%w: %v", ErrDeliveryDegraded, err)
	}

	if err := s.pusher.Publish(ctx, msg.ToWire()); err != nil {
		log.Ctx(ctx).Warn().Err(err).
			Str(log.FieldMessageID, msg.ID).
			Str(log.FieldRoomID, roomID).
			Msg("live push failed")
	}

	return msg.ID, nil
}

// ListRooms returns one summary per membership of the caller: room name,
// most recent message, and whether the caller has unread messages.
func (s *chatService) ListRooms(ctx context.Context, userID string) ([]domain.RoomSummary, error) {
	members, err := s.memberships.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	summaries := make([]domain.RoomSummary, 0, len(members))
	for _, member := range members {
		room, err := s.rooms.GetByID(ctx, member.RoomID)
		if err != nil {
			if errors.Is(err, repository.ErrRoomNotFound) {
				continue
			}
			return nil, err
		}

		summary := domain.RoomSummary{
			RoomID: room.ID,
			Name:   room.Name,
		}

		latest, err := s.messages.Latest(ctx, room.ID)
		switch {
		case err == nil:
			summary.LastMessage = latest.Content
			summary.LastMessageTime = &latest.CreatedAt
			summary.Unread = latest.Seq > member.LastReadSeq
		case errors.Is(err, repository.ErrMessageNotFound):
			// Empty room, nothing unread.
		default:
			return nil, err
		}

		summaries = append(summaries, summary)
	}

	return summaries, nil
}

// ListMessages returns one page of a room's messages, newest first, and
// advances the caller's last-read pointer to the newest message in the
// page. The advance is forward-only: fetching an older page never moves
// the pointer backward.
func (s *chatService) ListMessages(ctx context.Context, userID, roomID string, page int) ([]domain.MessageView, error) {
	if _, err := s.authorize(ctx, userID, roomID); err != nil {
		return nil, err
	}

	messages, err := s.messages.PageByRoom(ctx, roomID, page, s.pageSize)
	if err != nil {
		return nil, err
	}

	if len(messages) > 0 {
		newest := messages[0]
		if err := s.memberships.AdvanceLastRead(ctx, userID, roomID, newest.ID, newest.Seq); err != nil {
			log.Ctx(ctx).Error().Err(err).
				Str(log.FieldUserID, userID).
				Str(log.FieldRoomID, roomID).
				Msg("failed to advance last-read pointer")
		}
	}

	views := make([]domain.MessageView, len(messages))
	for i, msg := range messages {
		views[i] = domain.MessageView{
			MessageID:  msg.ID,
			SenderName: msg.SenderName,
			Content:    msg.Content,
			Time:       msg.CreatedAt,
			IsMine:     msg.SenderID == userID,
		}
	}

	return views, nil
}

// MarkRead sets the caller's last-read pointer to the given message
// unconditionally, including backwards. The asymmetry with the
// forward-only page-read path is intentional: an explicit mark is a
// user action, not a side effect of fetching.
func (s *chatService) MarkRead(ctx context.Context, userID, roomID, messageID string) error {
	if _, err := s.authorize(ctx, userID, roomID); err != nil {
		return err
	}

	msg, err := s.messages.GetByID(ctx, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMessageNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	if msg.RoomID != roomID {
		return ErrMessageNotFound
	}

	return s.memberships.SetLastRead(ctx, userID, roomID, msg.ID, msg.Seq)
}

// authorize resolves the caller's membership; its absence is an
// authorization failure, not a not-found.
func (s *chatService) authorize(ctx context.Context, userID, roomID string) (*domain.Membership, error) {
	member, err := s.memberships.Get(ctx, userID, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrMembershipNotFound) {
			return nil, ErrNotRoomMember
		}
		return nil, err
	}
	return member, nil
}
