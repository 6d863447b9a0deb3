package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100
	maxUserLogLimit = 200
)

type NotificationService interface {
	Enqueue(ctx context.Context, n *domain.Notification) (*domain.Notification, error)
	GetByID(ctx context.Context, id string) (*domain.Notification, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error)
	Cancel(ctx context.Context, id string) (*domain.Notification, error)
	Logs(ctx context.Context, notificationID string) ([]domain.DeliveryLogEntry, error)
	UserLogs(ctx context.Context, userID string, limit int) ([]domain.DeliveryLogEntry, error)
}

type NotificationHandler struct {
	service NotificationService
}

func NewNotificationHandler(service NotificationService) (*NotificationHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("notification service is required")
	}
	return &NotificationHandler{service: service}, nil
}

func RegisterNotificationRoutes(router fiber.Router, service NotificationService) error {
	h, err := NewNotificationHandler(service)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/notifications", h.EnqueueNotification)
	v1.Get("/notifications/:id", h.GetNotification)
	v1.Post("/notifications/:id/cancel", h.CancelNotification)
	v1.Get("/notifications/:id/logs", h.GetNotificationLogs)
	v1.Get("/notifications", h.ListNotifications)
	v1.Get("/users/:userId/logs", h.GetUserLogs)

	return nil
}

type recipientPayload struct {
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	DeviceTokens []string `json:"deviceTokens"`
	WebhookURL   string   `json:"webhookUrl"`
}

type enqueueNotificationRequest struct {
	UserID       string           `json:"userId"`
	TemplateID   *string          `json:"templateId"`
	Channel      string           `json:"channel"`
	Title        string           `json:"title"`
	Message      string           `json:"message"`
	Priority     string           `json:"priority"`
	Recipient    recipientPayload `json:"recipient"`
	Metadata     domain.Metadata  `json:"metadata"`
	ScheduledFor *time.Time       `json:"scheduledFor"`
	MaxAttempts  *int             `json:"maxAttempts"`
}

type notificationResponse struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	TemplateID    *string         `json:"templateId,omitempty"`
	Channel       string          `json:"channel"`
	Title         string          `json:"title"`
	Message       string          `json:"message"`
	Priority      string          `json:"priority"`
	Status        string          `json:"status"`
	Metadata      domain.Metadata `json:"metadata,omitempty"`
	ScheduledFor  *time.Time      `json:"scheduledFor,omitempty"`
	AttemptCount  int             `json:"attemptCount"`
	MaxAttempts   int             `json:"maxAttempts"`
	NextAttemptAt *time.Time      `json:"nextAttemptAt,omitempty"`
	SentAt        *time.Time      `json:"sentAt,omitempty"`
	DeliveredAt   *time.Time      `json:"deliveredAt,omitempty"`
	ReadAt        *time.Time      `json:"readAt,omitempty"`
	ErrorMessage  *string         `json:"errorMessage,omitempty"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

type deliveryLogResponse struct {
	ID               string          `json:"id"`
	NotificationID   string          `json:"notificationId"`
	UserID           string          `json:"userId"`
	Channel          string          `json:"channel"`
	Status           string          `json:"status"`
	Retrying         bool            `json:"retrying"`
	ProviderResponse domain.Metadata `json:"providerResponse,omitempty"`
	ErrorCode        *string         `json:"errorCode,omitempty"`
	ErrorMessage     *string         `json:"errorMessage,omitempty"`
	DeliveryTimeMs   int64           `json:"deliveryTimeMs"`
	Timestamp        time.Time       `json:"timestamp"`
}

type listNotificationsResponse struct {
	Data []notificationResponse `json:"data"`
	Meta listMeta               `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

func (h *NotificationHandler) EnqueueNotification(c *fiber.Ctx) error {
	var req enqueueNotificationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	notification, err := requestToDomainNotification(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Enqueue(c.Context(), &notification)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusAccepted).JSON(toNotificationResponse(created))
}

func (h *NotificationHandler) GetNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) CancelNotification(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	notification, err := h.service.Cancel(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toNotificationResponse(notification))
}

func (h *NotificationHandler) GetNotificationLogs(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	entries, err := h.service.Logs(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"notificationId": id,
		"logs":           toLogResponses(entries),
	})
}

func (h *NotificationHandler) GetUserLogs(c *fiber.Ctx) error {
	userID := strings.TrimSpace(c.Params("userId"))
	limit := c.QueryInt("limit", defaultPageSize)
	if limit < 1 || limit > maxUserLogLimit {
		return toHTTPError(fmt.Errorf("%w: limit must be between 1 and %d", domain.ErrValidation, maxUserLogLimit))
	}

	entries, err := h.service.UserLogs(c.Context(), userID, limit)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"userId": userID,
		"logs":   toLogResponses(entries),
	})
}

func (h *NotificationHandler) ListNotifications(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	notifications, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listNotificationsResponse{
		Data: toNotificationResponses(notifications),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if userID := strings.TrimSpace(c.Query("userId")); userID != "" {
		params.UserID = &userID
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	if rawChannel := strings.TrimSpace(c.Query("channel")); rawChannel != "" {
		channel, err := domain.ParseChannelFromString(rawChannel)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Channel = &channel
	}

	from, err := parseRFC3339Query(c.Query("from"), "from")
	if err != nil {
		return repository.ListParams{}, err
	}
	to, err := parseRFC3339Query(c.Query("to"), "to")
	if err != nil {
		return repository.ListParams{}, err
	}
	params.From = from
	params.To = to

	return params, nil
}

func parseRFC3339Query(value string, field string) (*time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}

	t, err := time.Parse(time.RFC3339, trimmed)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be RFC3339", domain.ErrValidation, field)
	}
	return &t, nil
}

func requestToDomainNotification(req enqueueNotificationRequest) (domain.Notification, error) {
	channel, err := domain.ParseChannelFromString(req.Channel)
	if err != nil {
		return domain.Notification{}, err
	}

	priority := domain.PriorityNormal
	if strings.TrimSpace(req.Priority) != "" {
		priority, err = domain.ParsePriorityFromString(req.Priority)
		if err != nil {
			return domain.Notification{}, err
		}
	}

	n := domain.Notification{
		UserID:       strings.TrimSpace(req.UserID),
		TemplateID:   req.TemplateID,
		Channel:      channel,
		Title:        strings.TrimSpace(req.Title),
		Message:      strings.TrimSpace(req.Message),
		Priority:     priority,
		Recipient:    recipientForChannel(channel, req.Recipient),
		Metadata:     req.Metadata,
		ScheduledFor: req.ScheduledFor,
	}
	if req.MaxAttempts != nil {
		n.MaxAttempts = *req.MaxAttempts
	}

	return n, nil
}

func recipientForChannel(channel domain.Channel, payload recipientPayload) domain.RecipientInfo {
	switch channel {
	case domain.ChannelEmail:
		return domain.EmailRecipient(payload.Email)
	case domain.ChannelSMS:
		return domain.SMSRecipient(payload.Phone)
	case domain.ChannelPush:
		return domain.PushRecipient(payload.DeviceTokens...)
	case domain.ChannelWebhook:
		return domain.WebhookRecipient(payload.WebhookURL)
	default:
		return domain.InAppRecipient()
	}
}

func toNotificationResponses(notifications []domain.Notification) []notificationResponse {
	responses := make([]notificationResponse, 0, len(notifications))
	for _, notification := range notifications {
		n := notification
		responses = append(responses, toNotificationResponse(&n))
	}
	return responses
}

func toNotificationResponse(n *domain.Notification) notificationResponse {
	if n == nil {
		return notificationResponse{}
	}

	return notificationResponse{
		ID:            n.ID,
		UserID:        n.UserID,
		TemplateID:    n.TemplateID,
		Channel:       n.Channel.String(),
		Title:         n.Title,
		Message:       n.Message,
		Priority:      n.Priority.String(),
		Status:        n.Status.String(),
		Metadata:      n.Metadata,
		ScheduledFor:  n.ScheduledFor,
		AttemptCount:  n.AttemptCount,
		MaxAttempts:   n.MaxAttempts,
		NextAttemptAt: n.NextAttemptAt,
		SentAt:        n.SentAt,
		DeliveredAt:   n.DeliveredAt,
		ReadAt:        n.ReadAt,
		ErrorMessage:  n.ErrorMessage,
		CreatedAt:     n.CreatedAt,
		UpdatedAt:     n.UpdatedAt,
	}
}

func toLogResponses(entries []domain.DeliveryLogEntry) []deliveryLogResponse {
	responses := make([]deliveryLogResponse, 0, len(entries))
	for _, entry := range entries {
		responses = append(responses, deliveryLogResponse{
			ID:               entry.ID,
			NotificationID:   entry.NotificationID,
			UserID:           entry.UserID,
			Channel:          entry.Channel.String(),
			Status:           entry.Status.String(),
			Retrying:         entry.Retrying,
			ProviderResponse: entry.ProviderResponse,
			ErrorCode:        entry.ErrorCode,
			ErrorMessage:     entry.ErrorMessage,
			DeliveryTimeMs:   entry.DeliveryTime.Milliseconds(),
			Timestamp:        entry.Timestamp,
		})
	}
	return responses
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrInvalidTransition):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
