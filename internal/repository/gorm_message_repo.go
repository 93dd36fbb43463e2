package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// GormMessageRepository implements MessageRepository using GORM.
type GormMessageRepository struct {
	db *gorm.DB
}

// NewGormMessageRepository creates a new GORM-based message repository.
func NewGormMessageRepository(db *gorm.DB) *GormMessageRepository {
	return &GormMessageRepository{db: db}
}

// Save appends a message to the store. The unique index on the message
// identity turns broker redelivery into ErrDuplicateMessage instead of a
// second row, which is what collapses at-least-once delivery into
// exactly-once persisted state.
func (r *GormMessageRepository) Save(ctx context.Context, msg *domain.Message) error {
	l := log.Ctx(ctx)

	model := domain.MessageToModel(msg)
	model.Seq = 0
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicateMessage
		}
		l.Error().Err(result.Error).
			Str(log.FieldMessageID, msg.ID).
			Str(log.FieldRoomID, msg.RoomID).
			Msg("failed to save message in db")
		return result.Error
	}

	msg.Seq = model.Seq
	msg.CreatedAt = model.CreatedAt
	return nil
}

// GetByID retrieves a message by its identity.
func (r *GormMessageRepository) GetByID(ctx context.Context, messageID string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).First(&model, "message_id = ?", messageID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// PageByRoom returns one page of a room's messages ordered newest first.
// Page numbering starts at 0.
func (r *GormMessageRepository) PageByRoom(ctx context.Context, roomID string, page, pageSize int) ([]domain.Message, error) {
	l := log.Ctx(ctx)

	if page < 0 {
		page = 0
	}
	if pageSize < 1 {
		pageSize = 10
	}

	var models []domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		Offset(page * pageSize).
		Limit(pageSize).
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to page messages from db")
		return nil, result.Error
	}

	messages := make([]domain.Message, len(models))
	for i, model := range models {
		messages[i] = *model.ToDomain()
	}
	return messages, nil
}

// Latest returns the most recent message in a room.
func (r *GormMessageRepository) Latest(ctx context.Context, roomID string) (*domain.Message, error) {
	var model domain.MessageModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Order("seq DESC").
		First(&model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}
