package repository

import "telecare_rtc/internal/storage"

type Repositories struct {
	User         UserRepository
	Conversation ConversationRepository
	Message      MessageRepository
	Consultation ConsultationRepository
	Notification NotificationRepository
	Wallet       WalletRepository
}

func NewRepositories(db *storage.PostgresDB) *Repositories {
	return &Repositories{
		User:         NewUserRepository(db),
		Conversation: NewConversationRepository(db),
		Message:      NewMessageRepository(db),
		Consultation: NewConsultationRepository(db),
		Notification: NewNotificationRepository(db),
		Wallet:       NewWalletRepository(db),
	}
}
