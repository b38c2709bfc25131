package service

import (
	"context"
	"time"

	"telecare_rtc/internal/repository"
)

type Services struct {
	User         *UserService
	Chat         *ChatService
	Consultation *ConsultationService
	Notification *NotificationService
	Presence     *PresenceTracker
	Hub          *Hub
	Dispatcher   *Dispatcher
}

// Options 彙整服務層的營運參數與選配的協作者
type Options struct {
	PresenceGrace time.Duration
	CallTimeout   time.Duration
	Bus           PresenceBus // 多節點部署時的在線狀態匯流排，可為 nil
}

func NewServices(repos *repository.Repositories, opts Options) *Services {
	hub := NewHub()

	presence := NewPresenceTracker(hub, opts.PresenceGrace)
	if opts.Bus != nil {
		presence.AttachBus(context.Background(), opts.Bus)
	}

	notificationService := NewNotificationService(hub, repos.Notification)
	chatService := NewChatService(hub, repos.Conversation, repos.Message)
	consultationService := NewConsultationService(hub, repos.Consultation, repos.Wallet, notificationService)
	userService := NewUserService(repos.User)

	dispatcher := NewDispatcher(hub, presence, chatService, consultationService, notificationService, opts.CallTimeout)
	hub.SetLifecycle(dispatcher)

	return &Services{
		User:         userService,
		Chat:         chatService,
		Consultation: consultationService,
		Notification: notificationService,
		Presence:     presence,
		Hub:          hub,
		Dispatcher:   dispatcher,
	}
}
