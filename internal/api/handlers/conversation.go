package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/service"
)

// ConversationHandler 處理與對話相關的請求
type ConversationHandler struct {
	chatService *service.ChatService
}

// NewConversationHandler 創建一個新的 ConversationHandler 實例
func NewConversationHandler(chatService *service.ChatService) *ConversationHandler {
	return &ConversationHandler{chatService: chatService}
}

// CreateConversation 處理建立對話的請求
func (h *ConversationHandler) CreateConversation(c *gin.Context) {
	var input struct {
		PatientID  uint   `json:"patient_id" binding:"required"`
		ProviderID uint   `json:"provider_id" binding:"required"`
		Kind       string `json:"kind" binding:"required,oneof=care support"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conversation, err := h.chatService.CreateConversation(c.Request.Context(),
		input.PatientID, input.ProviderID, models.ConversationKind(input.Kind))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "建立對話失敗"})
		return
	}

	c.JSON(http.StatusCreated, conversation)
}

// ListConversations 列出當前用戶參與的對話
func (h *ConversationHandler) ListConversations(c *gin.Context) {
	userID, _ := c.Get("userID")

	conversations, err := h.chatService.ListConversations(c.Request.Context(), userID.(uint))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢對話列表"})
		return
	}

	c.JSON(http.StatusOK, conversations)
}

// GetMessages 查詢對話的最近訊息
func (h *ConversationHandler) GetMessages(c *gin.Context) {
	conversationID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "無效的對話 ID"})
		return
	}

	userID, _ := c.Get("userID")
	messages, err := h.chatService.RecentMessages(c.Request.Context(), userID.(uint), uint(conversationID))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrConversationNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		case errors.Is(err, service.ErrNotParticipant):
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "無法查詢訊息"})
		}
		return
	}

	c.JSON(http.StatusOK, messages)
}
