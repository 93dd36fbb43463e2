package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// GormRoomRepository implements RoomRepository using GORM.
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository creates a new GORM-based room repository.
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	return &GormRoomRepository{db: db}
}

// Create creates a new chat room.
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	l := log.Ctx(ctx)

	if room.ID == "" {
		room.ID = uuid.New().String()
	}

	model := &domain.RoomModel{ID: room.ID, Name: room.Name}
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		l.Error().Err(result.Error).Msg("failed to create room in db")
		return result.Error
	}

	room.CreatedAt = model.CreatedAt
	l.Debug().Str(log.FieldRoomID, room.ID).Msg("room created in db")
	return nil
}

// GetByID retrieves a room by ID.
func (r *GormRoomRepository) GetByID(ctx context.Context, id string) (*domain.Room, error) {
	l := log.Ctx(ctx)

	var model domain.RoomModel
	result := r.db.WithContext(ctx).First(&model, "id = ?", id)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to get room by id")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Delete removes a room row. Memberships are removed separately so the
// caller controls teardown ordering.
func (r *GormRoomRepository) Delete(ctx context.Context, id string) error {
	l := log.Ctx(ctx)

	result := r.db.WithContext(ctx).Delete(&domain.RoomModel{}, "id = ?", id)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, id).Msg("failed to delete room in db")
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRoomNotFound
	}
	l.Debug().Str(log.FieldRoomID, id).Msg("room deleted in db")
	return nil
}
