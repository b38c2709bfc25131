package service

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"telecare_rtc/internal/models"
)

// 客戶端送入的事件
const (
	EventConversationJoin  = "conversation:join"
	EventConversationLeave = "conversation:leave"
	EventMessageSend       = "message:send"
	EventTypingStart       = "typing:start"
	EventTypingStop        = "typing:stop"
	EventMessageMarkRead   = "message:mark_read"

	EventConsultationJoin  = "consultation:join"
	EventConsultationLeave = "consultation:leave"
	EventOffer             = "consultation:offer"
	EventAnswer            = "consultation:answer"
	EventIceCandidate      = "consultation:ice_candidate"
	EventSessionStart      = "consultation:start"
	EventSessionEnd        = "consultation:end"

	EventPresenceStatus        = "presence:status"
	EventNotificationSubscribe = "notifications:subscribe"
	EventNotificationMarkRead  = "notifications:mark_read"
)

// 伺服器推送的事件
const (
	EventError = "error"

	EventConversationUserJoined = "conversation:user_joined"
	EventConversationUserLeft   = "conversation:user_left"
	EventChatMessages           = "chat:messages"
	EventMessageNew             = "message:new"
	EventMessageRead            = "message:read"

	EventConsultationUserJoined = "consultation:user_joined"
	EventConsultationUserLeft   = "consultation:user_left"
	EventRoomState              = "consultation:room_state"
	EventSessionStarted         = "consultation:session_started"
	EventSessionEnded           = "consultation:session_ended"

	EventPresenceUpdate  = "presence:update"
	EventNotificationNew = "notification:new"
)

// Envelope 是連線上所有訊息的外層結構
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ConversationRef 只帶對話 ID 的請求
type ConversationRef struct {
	ConversationID uint `json:"conversation_id"`
}

// SendMessagePayload 發送訊息的請求
type SendMessagePayload struct {
	ConversationID uint   `json:"conversation_id"`
	Content        string `json:"content"`
	MessageType    string `json:"message_type,omitempty"`
}

// MarkReadPayload 標記已讀的請求，MessageID 為空時標記整個對話
type MarkReadPayload struct {
	ConversationID uint  `json:"conversation_id"`
	MessageID      *uint `json:"message_id,omitempty"`
}

// SessionRef 只帶場次 ID 的請求
type SessionRef struct {
	SessionID uint `json:"session_id"`
}

// SignalPayload 是 WebRTC 協商訊息的請求；Payload 原樣轉發，伺服器不解讀內容
type SignalPayload struct {
	SessionID    uint            `json:"session_id"`
	TargetUserID uint            `json:"target_user_id"`
	Payload      json.RawMessage `json:"payload"`
}

// StatusPayload 客戶端主動更新在線狀態
type StatusPayload struct {
	Status string `json:"status"`
}

// SubscribePayload 訂閱額外通知頻道的請求
type SubscribePayload struct {
	Channels []string `json:"channels,omitempty"`
}

// NotificationMarkReadPayload 標記通知已讀的請求
type NotificationMarkReadPayload struct {
	NotificationID *uint `json:"notification_id,omitempty"`
	MarkAllAsRead  bool  `json:"mark_all_as_read,omitempty"`
}

// ConversationEventPayload 對話房間的成員進出通知
type ConversationEventPayload struct {
	ConversationID uint   `json:"conversation_id"`
	UserID         uint   `json:"user_id"`
	Role           string `json:"role"`
}

// ConsultationEventPayload 諮詢房間的成員進出通知
type ConsultationEventPayload struct {
	SessionID uint   `json:"session_id"`
	UserID    uint   `json:"user_id"`
	Role      string `json:"role"`
}

// BacklogPayload 加入對話時推送的歷史訊息快照
type BacklogPayload struct {
	ConversationID uint             `json:"conversation_id"`
	Messages       []models.Message `json:"messages"`
}

// TypingPayload 輸入中指示
type TypingPayload struct {
	ConversationID uint `json:"conversation_id"`
	UserID         uint `json:"user_id"`
}

// MessageReadPayload 已讀通知
type MessageReadPayload struct {
	ConversationID uint  `json:"conversation_id"`
	MessageID      *uint `json:"message_id,omitempty"`
	ReaderID       uint  `json:"reader_id"`
}

// SignalRelayPayload 轉發給目標用戶的協商訊息，附上發送方身份
type SignalRelayPayload struct {
	SessionID  uint            `json:"session_id"`
	FromUserID uint            `json:"from_user_id"`
	FromRole   string          `json:"from_role"`
	Payload    json.RawMessage `json:"payload"`
}

// RoomStatePayload 加入諮詢房間時回傳的完整房間狀態
type RoomStatePayload struct {
	SessionID       uint              `json:"session_id"`
	PatientJoined   bool              `json:"patient_joined"`
	PhysicianJoined bool              `json:"physician_joined"`
	RoomStatus      models.RoomStatus `json:"room_status"`
}

// SessionStartedPayload 場次開始通知
type SessionStartedPayload struct {
	SessionID uint      `json:"session_id"`
	StartedAt time.Time `json:"started_at"`
}

// SessionEndedPayload 場次結束通知
type SessionEndedPayload struct {
	SessionID       uint      `json:"session_id"`
	EndedAt         time.Time `json:"ended_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// PresenceUpdate 在線狀態更新，Origin 用於跨節點轉發時避免迴圈
type PresenceUpdate struct {
	Origin   string    `json:"origin,omitempty"`
	UserID   uint      `json:"user_id"`
	Status   string    `json:"status"`
	LastSeen time.Time `json:"last_seen"`
}

// ErrorPayload 回給請求方的錯誤事件內容
type ErrorPayload struct {
	Message string `json:"message"`
}

// PresenceTopic 是所有連線都會加入的全域在線狀態頻道
const PresenceTopic = "presence"

func UserTopic(userID uint) string {
	return fmt.Sprintf("user:%d", userID)
}

func ConversationTopic(conversationID uint) string {
	return fmt.Sprintf("conversation:%d", conversationID)
}

func ConsultationTopic(sessionID uint) string {
	return fmt.Sprintf("consultation:%d", sessionID)
}

func NotificationTopic(userID uint) string {
	return fmt.Sprintf("notifications:%d", userID)
}

func RoleNotificationTopic(role string) string {
	return "notifications:role:" + role
}

// parseConversationTopic 從主題名稱解析對話 ID
func parseConversationTopic(topic string) (uint, bool) {
	return parseTopicID(topic, "conversation:")
}

// parseConsultationTopic 從主題名稱解析場次 ID
func parseConsultationTopic(topic string) (uint, bool) {
	return parseTopicID(topic, "consultation:")
}

func parseTopicID(topic, prefix string) (uint, bool) {
	if !strings.HasPrefix(topic, prefix) {
		return 0, false
	}
	id, err := strconv.ParseUint(strings.TrimPrefix(topic, prefix), 10, 32)
	if err != nil {
		return 0, false
	}
	return uint(id), true
}
