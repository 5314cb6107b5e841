package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/clippy-oss/homie/callchat/internal/domain"
)

type gormConversationRepository struct {
	db *gorm.DB
}

func NewConversationRepository(db *gorm.DB) ConversationRepository {
	return &gormConversationRepository{db: db}
}

func (r *gormConversationRepository) Get(ctx context.Context, callID string) (*domain.Conversation, error) {
	var model ConversationModel
	if err := r.db.WithContext(ctx).First(&model, "call_id = ?", callID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return ConversationModelToDomain(&model)
}

func (r *gormConversationRepository) Save(ctx context.Context, conv *domain.Conversation) error {
	model, err := ConversationDomainToModel(conv)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"messages", "last_read_at", "unread_count", "updated_at"}),
	}).Create(model).Error
}

func (r *gormConversationRepository) Delete(ctx context.Context, callID string) error {
	return r.db.WithContext(ctx).
		Where("call_id = ?", callID).
		Delete(&ConversationModel{}).Error
}
