package repository

import (
	"context"

	"telecare_rtc/internal/models"
	"telecare_rtc/internal/storage"
)

type ConsultationRepository interface {
	Create(ctx context.Context, session *models.ConsultationSession) error
	FindByID(ctx context.Context, id uint) (*models.ConsultationSession, error)
	Update(ctx context.Context, session *models.ConsultationSession) error
	MarkSettled(ctx context.Context, id uint) error
}

type consultationRepository struct {
	db *storage.PostgresDB
}

func NewConsultationRepository(db *storage.PostgresDB) ConsultationRepository {
	return &consultationRepository{db: db}
}

func (r *consultationRepository) Create(ctx context.Context, session *models.ConsultationSession) error {
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *consultationRepository) FindByID(ctx context.Context, id uint) (*models.ConsultationSession, error) {
	var session models.ConsultationSession
	err := r.db.WithContext(ctx).First(&session, id).Error
	if err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *consultationRepository) Update(ctx context.Context, session *models.ConsultationSession) error {
	return r.db.WithContext(ctx).Save(session).Error
}

func (r *consultationRepository) MarkSettled(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).
		Model(&models.ConsultationSession{}).
		Where("id = ?", id).
		Update("settled", true).Error
}
