package service

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"telecare_rtc/internal/models"
)

// 測試用的記憶體版 repository，行為對齊真實實作：
// FindByID 回傳複本，查無資料回傳 gorm.ErrRecordNotFound

type fakeConversationRepo struct {
	mu            sync.Mutex
	nextID        uint
	conversations map[uint]models.Conversation
	findErr       error
}

func newFakeConversationRepo() *fakeConversationRepo {
	return &fakeConversationRepo{conversations: make(map[uint]models.Conversation)}
}

func (r *fakeConversationRepo) Create(_ context.Context, conversation *models.Conversation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	conversation.ID = r.nextID
	conversation.CreatedAt = time.Now()
	r.conversations[conversation.ID] = *conversation
	return nil
}

func (r *fakeConversationRepo) FindByID(_ context.Context, id uint) (*models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	conversation, ok := r.conversations[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &conversation, nil
}

func (r *fakeConversationRepo) FindByParticipant(_ context.Context, userID uint) ([]models.Conversation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Conversation
	for _, conversation := range r.conversations {
		if conversation.HasParticipant(userID) {
			result = append(result, conversation)
		}
	}
	return result, nil
}

func (r *fakeConversationRepo) TouchLastMessage(_ context.Context, id uint, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	conversation, ok := r.conversations[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	conversation.LastMessageAt = at
	r.conversations[id] = conversation
	return nil
}

// set 直接改寫儲存的對話，模擬參與者中途被移除等外部變化
func (r *fakeConversationRepo) set(conversation models.Conversation) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.conversations[conversation.ID] = conversation
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	nextID   uint
	messages []models.Message
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{}
}

func (r *fakeMessageRepo) Create(_ context.Context, message *models.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	message.ID = r.nextID
	message.CreatedAt = time.Now()
	r.messages = append(r.messages, *message)
	return nil
}

func (r *fakeMessageRepo) FindRecentByConversation(_ context.Context, conversationID uint, limit int) ([]models.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var matched []models.Message
	for _, message := range r.messages {
		if message.ConversationID == conversationID {
			matched = append(matched, message)
		}
	}
	if len(matched) > limit {
		matched = matched[len(matched)-limit:]
	}
	return matched, nil
}

func (r *fakeMessageRepo) MarkRead(_ context.Context, conversationID uint, messageID *uint, readerID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	for i := range r.messages {
		message := &r.messages[i]
		if message.ConversationID != conversationID || message.SenderID == readerID || message.ReadAt != nil {
			continue
		}
		if messageID != nil && message.ID != *messageID {
			continue
		}
		message.ReadAt = &now
	}
	return nil
}

type fakeConsultationRepo struct {
	mu        sync.Mutex
	nextID    uint
	sessions  map[uint]models.ConsultationSession
	updateErr error
}

func newFakeConsultationRepo() *fakeConsultationRepo {
	return &fakeConsultationRepo{sessions: make(map[uint]models.ConsultationSession)}
}

func (r *fakeConsultationRepo) Create(_ context.Context, session *models.ConsultationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	session.ID = r.nextID
	session.CreatedAt = time.Now()
	r.sessions[session.ID] = *session
	return nil
}

func (r *fakeConsultationRepo) FindByID(_ context.Context, id uint) (*models.ConsultationSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &session, nil
}

func (r *fakeConsultationRepo) Update(_ context.Context, session *models.ConsultationSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	r.sessions[session.ID] = *session
	return nil
}

func (r *fakeConsultationRepo) MarkSettled(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	session, ok := r.sessions[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	session.Settled = true
	r.sessions[id] = session
	return nil
}

func (r *fakeConsultationRepo) get(id uint) models.ConsultationSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions[id]
}

func (r *fakeConsultationRepo) set(session models.ConsultationSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if session.ID == 0 {
		r.nextID++
		session.ID = r.nextID
	}
	r.sessions[session.ID] = session
}

type fakeWalletRepo struct {
	mu           sync.Mutex
	nextID       uint
	transactions []models.WalletTransaction
	createErr    error
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{}
}

func (r *fakeWalletRepo) Create(_ context.Context, transaction *models.WalletTransaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return r.createErr
	}
	r.nextID++
	transaction.ID = r.nextID
	r.transactions = append(r.transactions, *transaction)
	return nil
}

func (r *fakeWalletRepo) FindBySession(_ context.Context, sessionID uint) ([]models.WalletTransaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.WalletTransaction
	for _, transaction := range r.transactions {
		if transaction.SessionID == sessionID {
			result = append(result, transaction)
		}
	}
	return result, nil
}

type fakeNotificationRepo struct {
	mu            sync.Mutex
	nextID        uint
	notifications []models.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{}
}

func (r *fakeNotificationRepo) Create(_ context.Context, notification *models.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	notification.ID = r.nextID
	notification.CreatedAt = time.Now()
	r.notifications = append(r.notifications, *notification)
	return nil
}

func (r *fakeNotificationRepo) FindByUser(_ context.Context, userID uint) ([]models.Notification, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var result []models.Notification
	for _, notification := range r.notifications {
		if notification.UserID == userID {
			result = append(result, notification)
		}
	}
	return result, nil
}

func (r *fakeNotificationRepo) MarkRead(_ context.Context, userID uint, notificationID *uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.notifications {
		notification := &r.notifications[i]
		if notification.UserID != userID || notification.Read {
			continue
		}
		if notificationID != nil && notification.ID != *notificationID {
			continue
		}
		notification.Read = true
	}
	return nil
}

// newTestClient 建立不綁定真實連接的客戶端，測試直接從 SendChan 讀事件
func newTestClient(userID uint, role string) *Client {
	return &Client{
		ConnID:   uuid.New(),
		UserID:   userID,
		Role:     role,
		SendChan: make(chan []byte, 64),
		done:     make(chan struct{}),
	}
}

// drainEvents 取出客戶端目前收到的所有事件
func drainEvents(t *testing.T, client *Client) []Envelope {
	t.Helper()
	var events []Envelope
	for {
		select {
		case message := <-client.SendChan:
			var envelope Envelope
			if err := json.Unmarshal(message, &envelope); err != nil {
				t.Fatalf("failed to decode envelope: %v", err)
			}
			events = append(events, envelope)
		default:
			return events
		}
	}
}

// findEvent 在事件列表中尋找第一個符合名稱的事件
func findEvent(events []Envelope, name string) (*Envelope, bool) {
	for i := range events {
		if events[i].Event == name {
			return &events[i], true
		}
	}
	return nil, false
}
