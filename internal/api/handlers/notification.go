package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"telecare_rtc/internal/service"
)

// NotificationHandler 處理通知列表查詢
type NotificationHandler struct {
	notificationService *service.NotificationService
}

// NewNotificationHandler 創建一個新的 NotificationHandler 實例
func NewNotificationHandler(notificationService *service.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// ListNotifications 列出當前用戶的通知，最新的排前面
func (h *NotificationHandler) ListNotifications(c *gin.Context) {
	userID, _ := c.Get("userID")

	notifications, err := h.notificationService.List(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢通知"})
		return
	}

	c.JSON(http.StatusOK, notifications)
}
