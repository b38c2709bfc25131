package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"gorm.io/gorm"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/repository"
)

// ConsultationService 管理視訊諮詢房間的生命週期，
// 並在兩位參與者之間原樣轉發 WebRTC 協商訊息
type ConsultationService struct {
	hub           *Hub
	sessionRepo   repository.ConsultationRepository
	walletRepo    repository.WalletRepository
	notifications *NotificationService

	// 同一場次的讀改寫以場次鎖串行化，
	// 避免同一用戶多連接近乎同時加入時旗標互相覆蓋
	locksMux sync.Mutex
	locks    map[uint]*sync.Mutex

	settleTimeout time.Duration
}

func NewConsultationService(hub *Hub, sessionRepo repository.ConsultationRepository, walletRepo repository.WalletRepository, notifications *NotificationService) *ConsultationService {
	return &ConsultationService{
		hub:           hub,
		sessionRepo:   sessionRepo,
		walletRepo:    walletRepo,
		notifications: notifications,
		locks:         make(map[uint]*sync.Mutex),
		settleTimeout: 10 * time.Second,
	}
}

// ScheduleSession 預約一場諮詢，場次從 scheduled、房間從 pending 開始
func (s *ConsultationService) ScheduleSession(ctx context.Context, patientID, physicianID uint, scheduledAt time.Time, feeCents int64) (*models.ConsultationSession, error) {
	session := &models.ConsultationSession{
		PatientID:   patientID,
		PhysicianID: physicianID,
		Status:      models.SessionStatusScheduled,
		ScheduledAt: scheduledAt,
		FeeCents:    feeCents,
		RoomStatus:  models.RoomStatusPending,
	}
	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return session, nil
}

// GetSession 供 REST 查詢場次，僅限參與者
func (s *ConsultationService) GetSession(ctx context.Context, userID, sessionID uint) (*models.ConsultationSession, error) {
	return s.authorize(ctx, sessionID, userID)
}

// lockSession 取得場次鎖，回傳解鎖函數
func (s *ConsultationService) lockSession(sessionID uint) func() {
	s.locksMux.Lock()
	lock, ok := s.locks[sessionID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[sessionID] = lock
	}
	s.locksMux.Unlock()

	lock.Lock()
	return lock.Unlock
}

// authorize 重新讀取場次並確認用戶是參與者
func (s *ConsultationService) authorize(ctx context.Context, sessionID, userID uint) (*models.ConsultationSession, error) {
	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	if !session.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return session, nil
}

// JoinRoom 驗證參與者身份後加入諮詢房間：設置對應的成員旗標、
// 回傳完整房間狀態給加入者，並通知房間內原有成員。
// 任何落庫失敗都在加入前返回，不留下半套狀態
func (s *ConsultationService) JoinRoom(ctx context.Context, client *Client, sessionID uint) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.authorize(ctx, sessionID, client.UserID)
	if err != nil {
		return err
	}

	changed := false
	if client.UserID == session.PatientID && !session.PatientJoined {
		session.PatientJoined = true
		changed = true
	}
	if client.UserID == session.PhysicianID && !session.PhysicianJoined {
		session.PhysicianJoined = true
		changed = true
	}
	if changed {
		if err := s.sessionRepo.Update(ctx, session); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	}

	topic := ConsultationTopic(sessionID)
	s.hub.Join(client, topic)

	// 加入者必須立刻拿到完整房間狀態，晚進場的一方才能校正畫面
	s.hub.Emit(client, EventRoomState, RoomStatePayload{
		SessionID:       session.ID,
		PatientJoined:   session.PatientJoined,
		PhysicianJoined: session.PhysicianJoined,
		RoomStatus:      session.RoomStatus,
	})
	s.hub.BroadcastExcept(topic, client, EventConsultationUserJoined, ConsultationEventPayload{
		SessionID: sessionID,
		UserID:    client.UserID,
		Role:      client.Role,
	})
	return nil
}

// LeaveRoom 離開諮詢房間；同一用戶沒有其他連接留在房間時才清除成員旗標。
// 斷線時也走這條路徑
func (s *ConsultationService) LeaveRoom(ctx context.Context, client *Client, sessionID uint) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	topic := ConsultationTopic(sessionID)
	// 從未加入的連接沒有離開可言，也不允許藉此對房間廣播離開事件
	if !s.hub.InTopic(client, topic) {
		return ErrNotInRoom
	}
	remaining := s.hub.UserConnections(topic, client.UserID, client)
	s.hub.Leave(client, topic)

	if remaining == 0 {
		session, err := s.sessionRepo.FindByID(ctx, sessionID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSessionNotFound
			}
			return fmt.Errorf("find session: %w", err)
		}

		changed := false
		if client.UserID == session.PatientID && session.PatientJoined {
			session.PatientJoined = false
			changed = true
		}
		if client.UserID == session.PhysicianID && session.PhysicianJoined {
			session.PhysicianJoined = false
			changed = true
		}
		if changed {
			if err := s.sessionRepo.Update(ctx, session); err != nil {
				return fmt.Errorf("update session: %w", err)
			}
		}
	}

	s.hub.Broadcast(topic, EventConsultationUserLeft, ConsultationEventPayload{
		SessionID: sessionID,
		UserID:    client.UserID,
		Role:      client.Role,
	})
	return nil
}

// Relay 將 WebRTC 協商訊息原樣轉發到目標用戶的個人頻道。
// 發送方必須已在房間內；房間成員在加入時已授權過，這裡不再查庫
func (s *ConsultationService) Relay(client *Client, event string, sessionID, targetUserID uint, payload json.RawMessage) error {
	if !s.hub.InTopic(client, ConsultationTopic(sessionID)) {
		return ErrNotInRoom
	}

	s.hub.SendToUser(targetUserID, event, SignalRelayPayload{
		SessionID:  sessionID,
		FromUserID: client.UserID,
		FromRole:   client.Role,
		Payload:    payload,
	})
	return nil
}

// StartSession 將場次轉為進行中。只接受從 scheduled 出發的轉換，
// 重複的開始請求會收到錯誤而不是默默改寫開始時間
func (s *ConsultationService) StartSession(ctx context.Context, client *Client, sessionID uint) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.authorize(ctx, sessionID, client.UserID)
	if err != nil {
		return err
	}

	if session.Status != models.SessionStatusScheduled {
		return ErrInvalidTransition
	}

	now := time.Now()
	session.Status = models.SessionStatusInProgress
	session.StartedAt = &now
	session.RoomStatus = models.RoomStatusActive
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.hub.Broadcast(ConsultationTopic(sessionID), EventSessionStarted, SessionStartedPayload{
		SessionID: sessionID,
		StartedAt: now,
	})
	return nil
}

// EndSession 結束場次：計算時長、落庫、廣播，最後非同步觸發結算。
// 結算失敗不會回滾已完成的場次，留待補償程序重試
func (s *ConsultationService) EndSession(ctx context.Context, client *Client, sessionID uint) error {
	unlock := s.lockSession(sessionID)
	defer unlock()

	session, err := s.authorize(ctx, sessionID, client.UserID)
	if err != nil {
		return err
	}

	if session.Status == models.SessionStatusCompleted {
		return ErrInvalidTransition
	}

	now := time.Now()
	session.DurationMinutes = sessionDuration(session, now)
	session.Status = models.SessionStatusCompleted
	session.RoomStatus = models.RoomStatusCompleted
	session.EndedAt = &now
	if err := s.sessionRepo.Update(ctx, session); err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	s.hub.Broadcast(ConsultationTopic(sessionID), EventSessionEnded, SessionEndedPayload{
		SessionID:       sessionID,
		EndedAt:         now,
		DurationMinutes: session.DurationMinutes,
	})

	// 已完成的場次不會再有合法的狀態轉換，場次鎖可以回收
	s.locksMux.Lock()
	delete(s.locks, sessionID)
	s.locksMux.Unlock()

	go s.settle(*session)
	return nil
}

// sessionDuration 計算場次時長（整分鐘、向下取整）；
// 場次從未真正開始時以建立時間為基準
func sessionDuration(session *models.ConsultationSession, endedAt time.Time) int {
	base := session.CreatedAt
	if session.StartedAt != nil {
		base = *session.StartedAt
	}
	return int(endedAt.Sub(base) / time.Minute)
}

// settle 執行諮詢結算：病患扣款、醫師入帳、標記已結算並通知雙方。
// 任何一步失敗都只記錄，場次維持未結算狀態供補償重試
func (s *ConsultationService) settle(session models.ConsultationSession) {
	ctx, cancel := context.WithTimeout(context.Background(), s.settleTimeout)
	defer cancel()

	reference := fmt.Sprintf("consultation-%d", session.ID)

	charge := &models.WalletTransaction{
		UserID:      session.PatientID,
		SessionID:   session.ID,
		AmountCents: -session.FeeCents,
		Kind:        models.TransactionConsultationCharge,
		Reference:   reference,
	}
	if err := s.walletRepo.Create(ctx, charge); err != nil {
		log.Printf("settle session %d: charge error: %v", session.ID, err)
		return
	}

	payout := &models.WalletTransaction{
		UserID:      session.PhysicianID,
		SessionID:   session.ID,
		AmountCents: session.FeeCents,
		Kind:        models.TransactionConsultationPayout,
		Reference:   reference,
	}
	if err := s.walletRepo.Create(ctx, payout); err != nil {
		log.Printf("settle session %d: payout error: %v", session.ID, err)
		return
	}

	if err := s.sessionRepo.MarkSettled(ctx, session.ID); err != nil {
		log.Printf("settle session %d: mark settled error: %v", session.ID, err)
		return
	}

	if err := s.notifications.Notify(ctx, session.PatientID, "payment", "諮詢費用已扣款",
		fmt.Sprintf("第 %d 號諮詢已完成，費用已從您的錢包扣除", session.ID)); err != nil {
		log.Printf("settle session %d: notify patient error: %v", session.ID, err)
	}
	if err := s.notifications.Notify(ctx, session.PhysicianID, "payment", "諮詢收入已入帳",
		fmt.Sprintf("第 %d 號諮詢已完成，收入已存入您的錢包", session.ID)); err != nil {
		log.Printf("settle session %d: notify physician error: %v", session.ID, err)
	}
}
