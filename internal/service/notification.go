package service

import (
	"context"
	"fmt"
	"time"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/repository"
)

// NotificationService 負責個人與角色頻道的通知推送和已讀管理
type NotificationService struct {
	hub  *Hub
	repo repository.NotificationRepository
}

func NewNotificationService(hub *Hub, repo repository.NotificationRepository) *NotificationService {
	return &NotificationService{hub: hub, repo: repo}
}

// Notify 建立一則個人通知並推送到該用戶的通知頻道；
// 先落庫再推送，離線用戶之後仍能從列表讀到
func (s *NotificationService) Notify(ctx context.Context, userID uint, notificationType, title, body string) error {
	notification := &models.Notification{
		UserID: userID,
		Type:   notificationType,
		Title:  title,
		Body:   body,
	}
	if err := s.repo.Create(ctx, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}

	s.hub.Broadcast(NotificationTopic(userID), EventNotificationNew, notification)
	return nil
}

// NotifyRole 向整個角色頻道廣播；角色廣播是即時信號，不落庫
func (s *NotificationService) NotifyRole(role, notificationType, title, body string) {
	notification := models.Notification{
		Type:  notificationType,
		Title: title,
		Body:  body,
	}
	notification.CreatedAt = time.Now()
	s.hub.Broadcast(RoleNotificationTopic(role), EventNotificationNew, notification)
}

// Subscribe 讓連接加入額外的通知頻道，只允許自己的個人頻道與自己角色的頻道；
// 未指定頻道時訂閱角色頻道
func (s *NotificationService) Subscribe(client *Client, channels []string) error {
	if len(channels) == 0 {
		channels = []string{RoleNotificationTopic(client.Role)}
	}

	for _, channel := range channels {
		if channel != NotificationTopic(client.UserID) && channel != RoleNotificationTopic(client.Role) {
			return ErrChannelForbidden
		}
	}
	for _, channel := range channels {
		s.hub.Join(client, channel)
	}
	return nil
}

// MarkRead 標記單則或全部通知為已讀
func (s *NotificationService) MarkRead(ctx context.Context, client *Client, notificationID *uint, markAll bool) error {
	if notificationID == nil && !markAll {
		return ErrMalformedPayload
	}
	if markAll {
		notificationID = nil
	}
	if err := s.repo.MarkRead(ctx, client.UserID, notificationID); err != nil {
		return fmt.Errorf("mark notifications read: %w", err)
	}
	return nil
}

// List 回傳用戶的通知列表，供 REST 查詢使用
func (s *NotificationService) List(ctx context.Context, userID uint) ([]models.Notification, error) {
	return s.repo.FindByUser(ctx, userID)
}
