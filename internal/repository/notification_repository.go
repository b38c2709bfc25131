package repository

import (
	"context"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/storage"
)

type NotificationRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
	FindByUser(ctx context.Context, userID uint) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID uint, notificationID *uint) error
}

type notificationRepository struct {
	db *storage.PostgresDB
}

func NewNotificationRepository(db *storage.PostgresDB) NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	return r.db.WithContext(ctx).Create(notification).Error
}

func (r *notificationRepository) FindByUser(ctx context.Context, userID uint) ([]models.Notification, error) {
	var notifications []models.Notification
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&notifications).Error
	return notifications, err
}

// MarkRead 標記通知為已讀；notificationID 為 nil 時標記該用戶的全部通知
func (r *notificationRepository) MarkRead(ctx context.Context, userID uint, notificationID *uint) error {
	query := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Where("user_id = ? AND read = false", userID)
	if notificationID != nil {
		query = query.Where("id = ?", *notificationID)
	}
	return query.Update("read", true).Error
}
