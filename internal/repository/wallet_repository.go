package repository

import (
	"context"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/storage"
)

type WalletRepository interface {
	Create(ctx context.Context, transaction *models.WalletTransaction) error
	FindBySession(ctx context.Context, sessionID uint) ([]models.WalletTransaction, error)
}

type walletRepository struct {
	db *storage.PostgresDB
}

func NewWalletRepository(db *storage.PostgresDB) WalletRepository {
	return &walletRepository{db: db}
}

func (r *walletRepository) Create(ctx context.Context, transaction *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(transaction).Error
}

func (r *walletRepository) FindBySession(ctx context.Context, sessionID uint) ([]models.WalletTransaction, error) {
	var transactions []models.WalletTransaction
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Find(&transactions).Error
	return transactions, err
}
