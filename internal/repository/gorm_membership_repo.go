package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/strayhub/chat-core/internal/domain"
	"github.com/strayhub/chat-core/pkg/log"
)

// GormMembershipRepository implements MembershipRepository using GORM.
type GormMembershipRepository struct {
	db *gorm.DB
}

// NewGormMembershipRepository creates a new GORM-based membership repository.
func NewGormMembershipRepository(db *gorm.DB) *GormMembershipRepository {
	return &GormMembershipRepository{db: db}
}

// Create inserts a membership row for (user, room). The unique index on
// the pair turns a double-join into ErrAlreadyMember.
func (r *GormMembershipRepository) Create(ctx context.Context, userID, roomID string) (*domain.Membership, error) {
	l := log.Ctx(ctx)

	model := &domain.MembershipModel{UserID: userID, RoomID: roomID}
	result := r.db.WithContext(ctx).Create(model)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrDuplicatedKey) {
			return nil, ErrAlreadyMember
		}
		l.Error().Err(result.Error).
			Str(log.FieldUserID, userID).
			Str(log.FieldRoomID, roomID).
			Msg("failed to create membership in db")
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// Get retrieves the membership for (user, room).
func (r *GormMembershipRepository) Get(ctx context.Context, userID, roomID string) (*domain.Membership, error) {
	var model domain.MembershipModel
	result := r.db.WithContext(ctx).
		First(&model, "user_id = ? AND room_id = ?", userID, roomID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, ErrMembershipNotFound
		}
		return nil, result.Error
	}
	return model.ToDomain(), nil
}

// ListByUser retrieves all memberships of a user, oldest first.
func (r *GormMembershipRepository) ListByUser(ctx context.Context, userID string) ([]domain.Membership, error) {
	l := log.Ctx(ctx)

	var models []domain.MembershipModel
	result := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("joined_at ASC").
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldUserID, userID).Msg("failed to list memberships by user")
		return nil, result.Error
	}

	memberships := make([]domain.Membership, len(models))
	for i, model := range models {
		memberships[i] = *model.ToDomain()
	}
	return memberships, nil
}

// ListByRoom retrieves all memberships of a room.
func (r *GormMembershipRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.Membership, error) {
	l := log.Ctx(ctx)

	var models []domain.MembershipModel
	result := r.db.WithContext(ctx).
		Where("room_id = ?", roomID).
		Find(&models)
	if result.Error != nil {
		l.Error().Err(result.Error).Str(log.FieldRoomID, roomID).Msg("failed to list memberships by room")
		return nil, result.Error
	}

	memberships := make([]domain.Membership, len(models))
	for i, model := range models {
		memberships[i] = *model.ToDomain()
	}
	return memberships, nil
}

// ListAll retrieves every membership. Used at startup to re-establish
// listeners for queues provisioned by a previous process.
func (r *GormMembershipRepository) ListAll(ctx context.Context) ([]domain.Membership, error) {
	var models []domain.MembershipModel
	result := r.db.WithContext(ctx).Find(&models)
	if result.Error != nil {
		return nil, result.Error
	}

	memberships := make([]domain.Membership, len(models))
	for i, model := range models {
		memberships[i] = *model.ToDomain()
	}
	return memberships, nil
}

// Delete removes the membership for (user, room).
func (r *GormMembershipRepository) Delete(ctx context.Context, userID, roomID string) error {
	result := r.db.WithContext(ctx).
		Delete(&domain.MembershipModel{}, "user_id = ? AND room_id = ?", userID, roomID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}

// DeleteByRoom removes every membership of a room (room deletion cascade).
func (r *GormMembershipRepository) DeleteByRoom(ctx context.Context, roomID string) error {
	return r.db.WithContext(ctx).
		Delete(&domain.MembershipModel{}, "room_id = ?", roomID).Error
}

// AdvanceLastRead moves the last-read pointer forward only. The seq
// guard in the WHERE clause makes the update atomic under concurrent
// page reads; re-fetching an older page leaves the pointer untouched.
func (r *GormMembershipRepository) AdvanceLastRead(ctx context.Context, userID, roomID, messageID string, messageSeq uint64) error {
	result := r.db.WithContext(ctx).Model(&domain.MembershipModel{}).
		Where("user_id = ? AND room_id = ? AND last_read_seq < ?", userID, roomID, messageSeq).
		Updates(map[string]interface{}{
			"last_read_id":  messageID,
			"last_read_seq": messageSeq,
		})
	return result.Error
}

// SetLastRead sets the last-read pointer unconditionally.
func (r *GormMembershipRepository) SetLastRead(ctx context.Context, userID, roomID, messageID string, messageSeq uint64) error {
	result := r.db.WithContext(ctx).Model(&domain.MembershipModel{}).
		Where("user_id = ? AND room_id = ?", userID, roomID).
		Updates(map[string]interface{}{
			"last_read_id":  messageID,
			"last_read_seq": messageSeq,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrMembershipNotFound
	}
	return nil
}
