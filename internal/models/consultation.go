package models

import (
	"time"

	"gorm.io/gorm"
)

// ConsultationSession 表示一場視訊諮詢，包含場次本身的狀態
// 與即時房間的成員旗標；房間與場次一對一，因此合併為同一筆記錄
type ConsultationSession struct {
	gorm.Model
	PatientID       uint          `json:"patient_id"`
	PhysicianID     uint          `json:"physician_id"`
	Status          SessionStatus `gorm:"type:varchar(20)" json:"status"`
	ScheduledAt     time.Time     `json:"scheduled_at"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	EndedAt         *time.Time    `json:"ended_at,omitempty"`
	DurationMinutes int           `json:"duration_minutes"`
	FeeCents        int64         `json:"fee_cents"`
	Settled         bool          `json:"settled"` // 結算完成後為 true，失敗時留待補償重試

	// 房間即時狀態：旗標反映當下的成員，離開時會被清除
	PatientJoined   bool       `json:"patient_joined"`
	PhysicianJoined bool       `json:"physician_joined"`
	RoomStatus      RoomStatus `gorm:"type:varchar(20)" json:"room_status"`
}

// SessionStatus 定義諮詢場次狀態的類型
type SessionStatus string

const (
	SessionStatusScheduled  SessionStatus = "scheduled"
	SessionStatusInProgress SessionStatus = "in_progress"
	SessionStatusCompleted  SessionStatus = "completed"
)

// RoomStatus 定義諮詢房間狀態的類型
type RoomStatus string

const (
	RoomStatusPending   RoomStatus = "pending"
	RoomStatusActive    RoomStatus = "active"
	RoomStatusCompleted RoomStatus = "completed"
)

// HasParticipant 檢查指定用戶是否為場次參與者
func (s *ConsultationSession) HasParticipant(userID uint) bool {
	return userID == s.PatientID || userID == s.PhysicianID
}
