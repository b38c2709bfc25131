package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"gorm.io/gorm"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/repository"
)

// chatBacklogLimit 是加入對話時推送的歷史訊息上限
const chatBacklogLimit = 50

// ChatService 負責對話房間的加入授權、訊息落庫與廣播
type ChatService struct {
	hub              *Hub
	conversationRepo repository.ConversationRepository
	messageRepo      repository.MessageRepository
}

func NewChatService(hub *Hub, conversationRepo repository.ConversationRepository, messageRepo repository.MessageRepository) *ChatService {
	return &ChatService{
		hub:              hub,
		conversationRepo: conversationRepo,
		messageRepo:      messageRepo,
	}
}

// CreateConversation 建立一個固定兩人的對話；參與者在此時確定，之後不再變動
func (s *ChatService) CreateConversation(ctx context.Context, patientID, providerID uint, kind models.ConversationKind) (*models.Conversation, error) {
	if kind != models.ConversationKindCare && kind != models.ConversationKindSupport {
		return nil, ErrMalformedPayload
	}
	conversation := &models.Conversation{
		PatientID:     patientID,
		ProviderID:    providerID,
		Kind:          kind,
		LastMessageAt: time.Now(),
	}
	if err := s.conversationRepo.Create(ctx, conversation); err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	return conversation, nil
}

// ListConversations 列出用戶參與的對話
func (s *ChatService) ListConversations(ctx context.Context, userID uint) ([]models.Conversation, error) {
	return s.conversationRepo.FindByParticipant(ctx, userID)
}

// RecentMessages 供 REST 查詢對話的最近訊息，授權邏輯與房間加入一致
func (s *ChatService) RecentMessages(ctx context.Context, userID, conversationID uint) ([]models.Message, error) {
	if _, err := s.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	return s.messageRepo.FindRecentByConversation(ctx, conversationID, chatBacklogLimit)
}

// authorize 重新讀取對話並確認用戶是參與者；授權永遠查當下的記錄，不做快取
func (s *ChatService) authorize(ctx context.Context, conversationID, userID uint) (*models.Conversation, error) {
	conversation, err := s.conversationRepo.FindByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("find conversation: %w", err)
	}
	if !conversation.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return conversation, nil
}

// JoinConversation 驗證參與者身份後將連接加入對話房間，
// 推送最近的歷史訊息給加入者，並通知房間內原有成員
func (s *ChatService) JoinConversation(ctx context.Context, client *Client, conversationID uint) error {
	if _, err := s.authorize(ctx, conversationID, client.UserID); err != nil {
		return err
	}

	backlog, err := s.messageRepo.FindRecentByConversation(ctx, conversationID, chatBacklogLimit)
	if err != nil {
		return fmt.Errorf("load backlog: %w", err)
	}

	topic := ConversationTopic(conversationID)
	s.hub.Join(client, topic)
	s.hub.Emit(client, EventChatMessages, BacklogPayload{
		ConversationID: conversationID,
		Messages:       backlog,
	})
	s.hub.BroadcastExcept(topic, client, EventConversationUserJoined, ConversationEventPayload{
		ConversationID: conversationID,
		UserID:         client.UserID,
		Role:           client.Role,
	})
	return nil
}

// LeaveConversation 將連接移出對話房間並通知剩餘成員；
// 不在房間裡的連接直接忽略，避免偽造離開事件
func (s *ChatService) LeaveConversation(client *Client, conversationID uint) {
	topic := ConversationTopic(conversationID)
	if !s.hub.InTopic(client, topic) {
		return
	}
	s.hub.Leave(client, topic)
	s.hub.Broadcast(topic, EventConversationUserLeft, ConversationEventPayload{
		ConversationID: conversationID,
		UserID:         client.UserID,
		Role:           client.Role,
	})
}

// SendMessage 發送一條訊息。每次發送都重新驗證參與者身份，
// 中途被移除的用戶無法繼續發言；訊息落庫成功後才廣播
func (s *ChatService) SendMessage(ctx context.Context, client *Client, conversationID uint, content, messageType string) error {
	conversation, err := s.authorize(ctx, conversationID, client.UserID)
	if err != nil {
		return err
	}

	message := models.NewChatMessage(conversationID, client.UserID, client.Role, content, messageType)
	if err := s.messageRepo.Create(ctx, &message); err != nil {
		return fmt.Errorf("create message: %w", err)
	}

	// 最後活動時間是排序用的輔助欄位，更新失敗不影響訊息本身
	if err := s.conversationRepo.TouchLastMessage(ctx, conversation.ID, time.Now()); err != nil {
		log.Printf("touch conversation %d error: %v", conversation.ID, err)
	}

	// 廣播給所有成員，包含發送者自己，讓發送者的其他連接也能同步
	s.hub.Broadcast(ConversationTopic(conversationID), EventMessageNew, message)
	return nil
}

// Typing 廣播輸入中指示；純即時信號，不落庫也不重查授權
func (s *ChatService) Typing(client *Client, conversationID uint, started bool) {
	event := EventTypingStop
	if started {
		event = EventTypingStart
	}
	s.hub.BroadcastExcept(ConversationTopic(conversationID), client, event, TypingPayload{
		ConversationID: conversationID,
		UserID:         client.UserID,
	})
}

// MarkAsRead 標記單條或整個對話的訊息為已讀，然後通知房間。
// 已讀狀態是盡力而為的簿記，沒有送達或排序保證
func (s *ChatService) MarkAsRead(ctx context.Context, client *Client, conversationID uint, messageID *uint) error {
	if _, err := s.authorize(ctx, conversationID, client.UserID); err != nil {
		return err
	}

	if err := s.messageRepo.MarkRead(ctx, conversationID, messageID, client.UserID); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}

	s.hub.Broadcast(ConversationTopic(conversationID), EventMessageRead, MessageReadPayload{
		ConversationID: conversationID,
		MessageID:      messageID,
		ReaderID:       client.UserID,
	})
	return nil
}
