package models

import (
	"time"

	"gorm.io/gorm"
)

// Message 代表對話中的一條訊息，建立後內容不再變動，
// 只有已讀時間會被補寫
type Message struct {
	gorm.Model
	ConversationID uint       `json:"conversation_id"`
	SenderID       uint       `json:"sender_id"`
	SenderRole     string     `gorm:"type:varchar(20)" json:"sender_role"`
	Content        string     `gorm:"type:text" json:"content"`
	Type           string     `gorm:"type:varchar(50)" json:"type"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}

// NewChatMessage 創建一條新的對話訊息，未指定類型時視為純文字
func NewChatMessage(conversationID, senderID uint, senderRole, content, messageType string) Message {
	if messageType == "" {
		messageType = "text"
	}
	return Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderRole:     senderRole,
		Content:        content,
		Type:           messageType,
	}
}
