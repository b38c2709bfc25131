package repository

import (
	"context"
	"time"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/storage"
)

type ConversationRepository interface {
	Create(ctx context.Context, conversation *models.Conversation) error
	FindByID(ctx context.Context, id uint) (*models.Conversation, error)
	FindByParticipant(ctx context.Context, userID uint) ([]models.Conversation, error)
	TouchLastMessage(ctx context.Context, id uint, at time.Time) error
}

type conversationRepository struct {
	db *storage.PostgresDB
}

func NewConversationRepository(db *storage.PostgresDB) ConversationRepository {
	return &conversationRepository{db: db}
}

func (r *conversationRepository) Create(ctx context.Context, conversation *models.Conversation) error {
	return r.db.WithContext(ctx).Create(conversation).Error
}

func (r *conversationRepository) FindByID(ctx context.Context, id uint) (*models.Conversation, error) {
	var conversation models.Conversation
	err := r.db.WithContext(ctx).First(&conversation, id).Error
	if err != nil {
		return nil, err
	}
	return &conversation, nil
}

// FindByParticipant 查詢用戶參與的所有對話，最近活動的排前面
func (r *conversationRepository) FindByParticipant(ctx context.Context, userID uint) ([]models.Conversation, error) {
	var conversations []models.Conversation
	err := r.db.WithContext(ctx).
		Where("patient_id = ? OR provider_id = ?", userID, userID).
		Order("last_message_at DESC").
		Find(&conversations).Error
	return conversations, err
}

// TouchLastMessage 更新對話的最後活動時間
func (r *conversationRepository) TouchLastMessage(ctx context.Context, id uint, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.Conversation{}).
		Where("id = ?", id).
		Update("last_message_at", at).Error
}
