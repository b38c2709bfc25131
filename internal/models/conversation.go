package models

import (
	"time"

	"gorm.io/gorm"
)

// Conversation 表示一個固定兩人的對話，成員在建立時就確定，
// 之後的房間加入授權都以這兩個參與者 ID 為準
type Conversation struct {
	gorm.Model
	PatientID     uint             `json:"patient_id"`
	ProviderID    uint             `json:"provider_id"` // 醫師或客服人員的用戶 ID
	Kind          ConversationKind `gorm:"type:varchar(20)" json:"kind"`
	LastMessageAt time.Time        `json:"last_message_at"`
}

// ConversationKind 定義對話的類型
type ConversationKind string

const (
	ConversationKindCare    ConversationKind = "care"    // 病患與醫師
	ConversationKindSupport ConversationKind = "support" // 病患與客服
)

// HasParticipant 檢查指定用戶是否為對話參與者
func (c *Conversation) HasParticipant(userID uint) bool {
	return userID == c.PatientID || userID == c.ProviderID
}
