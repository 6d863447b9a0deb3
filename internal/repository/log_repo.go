package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/learnloop/notification-engine/internal/domain"
)

type DeliveryLogRepository interface {
	Append(ctx context.Context, e *domain.DeliveryLogEntry) error
	ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryLogEntry, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryLogEntry, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

type GormDeliveryLogRepo struct {
	db *gorm.DB
}

func NewGormDeliveryLogRepo(db *gorm.DB) *GormDeliveryLogRepo {
	return &GormDeliveryLogRepo{db: db}
}

func (r *GormDeliveryLogRepo) Append(ctx context.Context, e *domain.DeliveryLogEntry) error {
	if err := e.Validate(); err != nil {
		return err
	}
	if e.ID == "" {
		e.ID = uuid.NewString()
	}

	model, err := deliveryLogModelFromDomain(e)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}

	entry, err := deliveryLogModelToDomain(model)
	if err != nil {
		return err
	}
	*e = *entry
	return nil
}

func (r *GormDeliveryLogRepo) ListByNotification(ctx context.Context, notificationID string) ([]domain.DeliveryLogEntry, error) {
	var models []DeliveryLogModel
	err := r.db.WithContext(ctx).
		Where("notification_id = ?", notificationID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return logModelsToDomain(models)
}

func (r *GormDeliveryLogRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.DeliveryLogEntry, error) {
	if limit < 1 {
		limit = 50
	}

	var models []DeliveryLogModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("timestamp DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return logModelsToDomain(models)
}

func (r *GormDeliveryLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("timestamp < ?", cutoff).
		Delete(&DeliveryLogModel{})
	return result.RowsAffected, result.Error
}

func logModelsToDomain(models []DeliveryLogModel) ([]domain.DeliveryLogEntry, error) {
	entries := make([]domain.DeliveryLogEntry, 0, len(models))
	for i := range models {
		entry, err := deliveryLogModelToDomain(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	return entries, nil
}
