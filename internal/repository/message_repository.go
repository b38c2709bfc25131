package repository

import (
	"context"
	"time"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/storage"
)

type MessageRepository interface {
	Create(ctx context.Context, message *models.Message) error
	FindRecentByConversation(ctx context.Context, conversationID uint, limit int) ([]models.Message, error)
	MarkRead(ctx context.Context, conversationID uint, messageID *uint, readerID uint) error
}

type messageRepository struct {
	db *storage.PostgresDB
}

func NewMessageRepository(db *storage.PostgresDB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *models.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

// FindRecentByConversation 取出對話最近的 limit 條訊息，回傳時按時間正序，
// 供加入房間時的歷史快照使用
func (r *messageRepository) FindRecentByConversation(ctx context.Context, conversationID uint, limit int) ([]models.Message, error) {
	var messages []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}

	// 反轉成時間正序
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// MarkRead 將別人發送且尚未讀的訊息補上已讀時間；
// messageID 為 nil 時標記整個對話
func (r *messageRepository) MarkRead(ctx context.Context, conversationID uint, messageID *uint, readerID uint) error {
	query := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND read_at IS NULL", conversationID, readerID)
	if messageID != nil {
		query = query.Where("id = ?", *messageID)
	}
	return query.Update("read_at", time.Now()).Error
}
