package repository

import (
	"context"
	"errors"
	"time"

	"github.com/learnloop/notification-engine/internal/domain"
	"gorm.io/gorm"
)

type ListParams struct {
	UserID   *string
	Status   *domain.Status
	Channel  *domain.Channel
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error)

	// ClaimDue atomically claims up to limit due pending records, moving each
	// to processing and incrementing its attempt count. A record is claimed by
	// at most one caller.
	ClaimDue(ctx context.Context, limit int, now time.Time) ([]domain.Notification, error)

	MarkSent(ctx context.Context, id string, at time.Time) (bool, error)
	MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time, errorMessage string) (bool, error)
	MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error)
	AdvanceDelivery(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error)
	Cancel(ctx context.Context, id string) (bool, error)
}

type GormNotificationRepo struct {
	db *gorm.DB
}

func NewGormNotificationRepo(db *gorm.DB) *GormNotificationRepo {
	return &GormNotificationRepo{db: db}
}

func (r *GormNotificationRepo) Create(ctx context.Context, n *domain.Notification) error {
	model, err := notificationModelFromDomain(n)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return err
	}
	if n != nil {
		created, err := notificationModelToDomain(model)
		if err != nil {
			return err
		}
		*n = *created
	}
	return nil
}

func (r *GormNotificationRepo) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	var model NotificationModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return notificationModelToDomain(&model)
}

func (r *GormNotificationRepo) List(ctx context.Context, params ListParams) ([]domain.Notification, int64, error) {
	query := r.db.WithContext(ctx).Model(&NotificationModel{})

	if params.UserID != nil {
		query = query.Where("user_id = ?", *params.UserID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}
	if params.Channel != nil {
		query = query.Where("channel = ?", *params.Channel)
	}
	if params.From != nil {
		query = query.Where("created_at >= ?", *params.From)
	}
	if params.To != nil {
		query = query.Where("created_at <= ?", *params.To)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page := max(params.Page, 1)
	pageSize := params.PageSize
	if pageSize < 1 {
		pageSize = 50
	}
	pageSize = min(pageSize, 100)

	var models []NotificationModel
	err := query.
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&models).Error
	if err != nil {
		return nil, 0, err
	}

	notifications := make([]domain.Notification, 0, len(models))
	for i := range models {
		n, err := notificationModelToDomain(&models[i])
		if err != nil {
			return nil, 0, err
		}
		notifications = append(notifications, *n)
	}

	return notifications, total, nil
}

func (r *GormNotificationRepo) ClaimDue(ctx context.Context, limit int, now time.Time) ([]domain.Notification, error) {
	if limit < 1 {
		return nil, nil
	}

	var candidates []NotificationModel
	err := r.db.WithContext(ctx).
		Where("status = ?", domain.StatusPending).
		Where("scheduled_for IS NULL OR scheduled_for <= ?", now).
		Where("next_attempt_at IS NULL OR next_attempt_at <= ?", now).
		Order("priority_rank DESC, created_at ASC").
		Limit(limit).
		Find(&candidates).Error
	if err != nil {
		return nil, err
	}

	claimed := make([]domain.Notification, 0, len(candidates))
	for i := range candidates {
		model := &candidates[i]

		// Claim-and-transition is a single conditional update per record;
		// a concurrent claimer loses the race and gets zero rows.
		result := r.db.WithContext(ctx).
			Model(&NotificationModel{}).
			Where("id = ? AND status = ?", model.ID, domain.StatusPending).
			Updates(map[string]any{
				"status":          domain.StatusProcessing,
				"attempt_count":   gorm.Expr("attempt_count + 1"),
				"last_attempt_at": now,
				"next_attempt_at": nil,
			})
		if result.Error != nil {
			return claimed, result.Error
		}
		if result.RowsAffected == 0 {
			continue
		}

		model.Status = domain.StatusProcessing
		model.AttemptCount++
		lastAttempt := now
		model.LastAttemptAt = &lastAttempt
		model.NextAttemptAt = nil

		n, err := notificationModelToDomain(model)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, *n)
	}

	return claimed, nil
}

func (r *GormNotificationRepo) MarkSent(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.conditionalUpdate(ctx, id, []domain.Status{domain.StatusProcessing}, map[string]any{
		"status":        domain.StatusSent,
		"sent_at":       at,
		"error_message": nil,
	})
}

func (r *GormNotificationRepo) MarkRetry(ctx context.Context, id string, nextAttemptAt time.Time, errorMessage string) (bool, error) {
	return r.conditionalUpdate(ctx, id, []domain.Status{domain.StatusProcessing}, map[string]any{
		"status":          domain.StatusPending,
		"next_attempt_at": nextAttemptAt,
		"error_message":   errorMessage,
	})
}

func (r *GormNotificationRepo) MarkFailed(ctx context.Context, id string, errorMessage string) (bool, error) {
	return r.conditionalUpdate(ctx, id, []domain.Status{domain.StatusProcessing}, map[string]any{
		"status":        domain.StatusFailed,
		"error_message": errorMessage,
	})
}

func (r *GormNotificationRepo) AdvanceDelivery(ctx context.Context, id string, from, to domain.Status, at time.Time) (bool, error) {
	patch := map[string]any{"status": to}
	switch to {
	case domain.StatusDelivered:
		patch["delivered_at"] = at
	case domain.StatusRead:
		patch["read_at"] = at
	}
	return r.conditionalUpdate(ctx, id, []domain.Status{from}, patch)
}

func (r *GormNotificationRepo) Cancel(ctx context.Context, id string) (bool, error) {
	return r.conditionalUpdate(ctx, id,
		[]domain.Status{domain.StatusPending, domain.StatusProcessing},
		map[string]any{"status": domain.StatusCancelled},
	)
}

func (r *GormNotificationRepo) conditionalUpdate(ctx context.Context, id string, fromStatuses []domain.Status, patch map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&NotificationModel{}).
		Where("id = ? AND status IN ?", id, fromStatuses).
		Updates(patch)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
