package repository

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/learnloop/notification-engine/internal/domain"
)

// NotificationModel is the persistence model for the notification_queue table.
type NotificationModel struct {
	ID            string          `gorm:"type:uuid;primaryKey"`
	UserID        string          `gorm:"type:varchar(64);not null;index"`
	TemplateID    *string         `gorm:"type:varchar(64)"`
	Channel       domain.Channel  `gorm:"type:varchar(10);not null"`
	Title         string          `gorm:"type:varchar(255);not null"`
	Message       string          `gorm:"type:text;not null"`
	Priority      domain.Priority `gorm:"type:varchar(10);not null"`
	PriorityRank  int             `gorm:"not null;default:0"`
	Status        domain.Status   `gorm:"type:varchar(20);not null"`
	Recipient     json.RawMessage `gorm:"type:jsonb"`
	Metadata      json.RawMessage `gorm:"type:jsonb"`
	ScheduledFor  *time.Time      `gorm:"type:timestamptz"`
	AttemptCount  int             `gorm:"not null;default:0"`
	MaxAttempts   int             `gorm:"not null;default:5"`
	NextAttemptAt *time.Time
	LastAttemptAt *time.Time
	SentAt        *time.Time
	DeliveredAt   *time.Time
	ReadAt        *time.Time
	ErrorMessage  *string `gorm:"type:text"`
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (NotificationModel) TableName() string {
	return "notification_queue"
}

// DeliveryLogModel is the persistence model for the notification_logs table.
// Rows are append-only.
type DeliveryLogModel struct {
	ID               string           `gorm:"type:uuid;primaryKey"`
	NotificationID   string           `gorm:"type:uuid;not null"`
	UserID           string           `gorm:"type:varchar(64);not null"`
	Channel          domain.Channel   `gorm:"type:varchar(10);not null"`
	Status           domain.LogStatus `gorm:"type:varchar(20);not null"`
	Retrying         bool             `gorm:"not null;default:false"`
	ProviderResponse json.RawMessage  `gorm:"type:jsonb"`
	ErrorCode        *string          `gorm:"type:varchar(64)"`
	ErrorMessage     *string          `gorm:"type:text"`
	DeliveryTimeMs   int64            `gorm:"not null;default:0"`
	Timestamp        time.Time        `gorm:"not null"`
}

func (DeliveryLogModel) TableName() string {
	return "notification_logs"
}

func notificationModelFromDomain(n *domain.Notification) (*NotificationModel, error) {
	if n == nil {
		return nil, nil
	}

	recipient, err := json.Marshal(n.Recipient)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal recipient: %w", err)
	}

	var metadata json.RawMessage
	if n.Metadata != nil {
		metadata, err = json.Marshal(n.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	return &NotificationModel{
		ID:            n.ID,
		UserID:        n.UserID,
		TemplateID:    n.TemplateID,
		Channel:       n.Channel,
		Title:         n.Title,
		Message:       n.Message,
		Priority:      n.Priority,
		PriorityRank:  n.Priority.Rank(),
		Status:        n.Status,
		Recipient:     recipient,
		Metadata:      metadata,
		ScheduledFor:  n.ScheduledFor,
		AttemptCount:  n.AttemptCount,
		MaxAttempts:   n.MaxAttempts,
		NextAttemptAt: n.NextAttemptAt,
		LastAttemptAt: n.LastAttemptAt,
		SentAt:        n.SentAt,
		DeliveredAt:   n.DeliveredAt,
		ReadAt:        n.ReadAt,
		ErrorMessage:  n.ErrorMessage,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}, nil
}

func notificationModelToDomain(m *NotificationModel) (*domain.Notification, error) {
	if m == nil {
		return nil, nil
	}

	var recipient domain.RecipientInfo
	if len(m.Recipient) > 0 {
		if err := json.Unmarshal(m.Recipient, &recipient); err != nil {
			return nil, fmt.Errorf("failed to unmarshal recipient: %w", err)
		}
	}

	var metadata domain.Metadata
	if len(m.Metadata) > 0 {
		if err := json.Unmarshal(m.Metadata, &metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &domain.Notification{
		ID:            m.ID,
		UserID:        m.UserID,
		TemplateID:    m.TemplateID,
		Channel:       m.Channel,
		Title:         m.Title,
		Message:       m.Message,
		Priority:      m.Priority,
		Status:        m.Status,
		Recipient:     recipient,
		Metadata:      metadata,
		ScheduledFor:  m.ScheduledFor,
		AttemptCount:  m.AttemptCount,
		MaxAttempts:   m.MaxAttempts,
		NextAttemptAt: m.NextAttemptAt,
		LastAttemptAt: m.LastAttemptAt,
		SentAt:        m.SentAt,
		DeliveredAt:   m.DeliveredAt,
		ReadAt:        m.ReadAt,
		ErrorMessage:  m.ErrorMessage,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}, nil
}

func deliveryLogModelFromDomain(e *domain.DeliveryLogEntry) (*DeliveryLogModel, error) {
	if e == nil {
		return nil, nil
	}

	var providerResponse json.RawMessage
	if e.ProviderResponse != nil {
		var err error
		providerResponse, err = json.Marshal(e.ProviderResponse)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal provider response: %w", err)
		}
	}

	return &DeliveryLogModel{
		ID:               e.ID,
		NotificationID:   e.NotificationID,
		UserID:           e.UserID,
		Channel:          e.Channel,
		Status:           e.Status,
		Retrying:         e.Retrying,
		ProviderResponse: providerResponse,
		ErrorCode:        e.ErrorCode,
		ErrorMessage:     e.ErrorMessage,
		DeliveryTimeMs:   e.DeliveryTime.Milliseconds(),
		Timestamp:        e.Timestamp,
	}, nil
}

func deliveryLogModelToDomain(m *DeliveryLogModel) (*domain.DeliveryLogEntry, error) {
	if m == nil {
		return nil, nil
	}

	var providerResponse domain.Metadata
	if len(m.ProviderResponse) > 0 {
		if err := json.Unmarshal(m.ProviderResponse, &providerResponse); err != nil {
			return nil, fmt.Errorf("failed to unmarshal provider response: %w", err)
		}
	}

	return &domain.DeliveryLogEntry{
		ID:               m.ID,
		NotificationID:   m.NotificationID,
		UserID:           m.UserID,
		Channel:          m.Channel,
		Status:           m.Status,
		Retrying:         m.Retrying,
		ProviderResponse: providerResponse,
		ErrorCode:        m.ErrorCode,
		ErrorMessage:     m.ErrorMessage,
		DeliveryTime:     time.Duration(m.DeliveryTimeMs) * time.Millisecond,
		Timestamp:        m.Timestamp,
	}, nil
}
