package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/internal/repository"
	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

// Listing defaults.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// DefaultNotificationType is stored when a caller leaves the type empty.
const DefaultNotificationType = "general"

// NotificationDTO represents the API-friendly notification payload.
type NotificationDTO struct {
	ID          string          `json:"id"`
	RecipientID string          `json:"recipientId"`
	Type        string          `json:"type"`
	Title       string          `json:"title"`
	Message     string          `json:"message"`
	Data        map[string]any  `json:"data,omitempty"`
	Channels    models.Channels `json:"channels"`
	ActionURL   string          `json:"actionUrl,omitempty"`
	IsRead      bool            `json:"isRead"`
	ReadAt      *time.Time      `json:"readAt,omitempty"`
	Status      string          `json:"status"`
	SentAt      *time.Time      `json:"sentAt,omitempty"`
	CreatedAt   time.Time       `json:"createdAt"`
}

// CreateNotificationInput defines attributes required to persist a notification.
// Data accepts one of the typed payloads in models or a plain map.
type CreateNotificationInput struct {
	RecipientID string
	Type        string
	Title       string
	Message     string
	Data        any
	Channels    *models.Channels
	ActionURL   string
}

// ListNotificationsInput selects a page of a user's notifications. Page is 1-based.
type ListNotificationsInput struct {
	Page       int
	Limit      int
	UnreadOnly bool
}

// NotificationPage is one page of notifications plus pagination metadata.
type NotificationPage struct {
	Notifications []NotificationDTO `json:"notifications"`
	Total         int64             `json:"total"`
	UnreadCount   int64             `json:"unreadCount"`
	CurrentPage   int               `json:"currentPage"`
	Limit         int               `json:"limit"`
	TotalPages    int               `json:"totalPages"`
	HasMore       bool              `json:"hasMore"`
}

// NotificationEventPayload represents data sent to realtime consumers.
type NotificationEventPayload struct {
	Notification    *NotificationDTO `json:"notification,omitempty"`
	NotificationID  string           `json:"notificationId,omitempty"`
	NotificationIDs []string         `json:"notificationIds,omitempty"`
	Updated         int64            `json:"updated,omitempty"`
}

// Publisher pushes realtime messages to connected users.
type Publisher interface {
	BroadcastToUser(stream, userID string, message realtime.Message)
}

// NotificationOption customises a NotificationService.
type NotificationOption func(*NotificationService)

// WithPublisher enables realtime in-app delivery.
func WithPublisher(publisher Publisher) NotificationOption {
	return func(s *NotificationService) { s.publisher = publisher }
}

// WithEmailSender replaces the default logging email sender.
func WithEmailSender(sender notifier.EmailSender) NotificationOption {
	return func(s *NotificationService) {
		if sender != nil {
			s.email = sender
		}
	}
}

// WithSMSSender replaces the default logging SMS sender.
func WithSMSSender(sender notifier.SMSSender) NotificationOption {
	return func(s *NotificationService) {
		if sender != nil {
			s.sms = sender
		}
	}
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) NotificationOption {
	return func(s *NotificationService) {
		if now != nil {
			s.now = now
		}
	}
}

// WithPublicURL sets the origin used to turn action paths into absolute links in emails.
func WithPublicURL(base string) NotificationOption {
	return func(s *NotificationService) { s.publicURL = strings.TrimRight(strings.TrimSpace(base), "/") }
}

// WithLogger overrides the module logger.
func WithLogger(log *zap.Logger) NotificationOption {
	return func(s *NotificationService) {
		if log != nil {
			s.log = log
		}
	}
}

// NotificationService turns marketplace events into per-recipient
// notification records and performs best-effort channel delivery.
type NotificationService struct {
	notifications repository.NotificationStore
	users         repository.UserStore
	publisher     Publisher
	email         notifier.EmailSender
	sms           notifier.SMSSender
	now           func() time.Time
	publicURL     string
	log           *zap.Logger
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(notifications repository.NotificationStore, users repository.UserStore, opts ...NotificationOption) (*NotificationService, error) {
	if notifications == nil {
		return nil, errors.New("notification service: notification store is required")
	}
	if users == nil {
		return nil, errors.New("notification service: user store is required")
	}

	log := logger.WithModule("notifications")
	stub := notifier.NewLogSender(log)
	svc := &NotificationService{
		notifications: notifications,
		users:         users,
		email:         stub,
		sms:           stub,
		now:           time.Now,
		log:           log,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// Create persists a single notification for an existing recipient. Channel
// preferences are not applied here; see ApplyUserPreferences.
func (s *NotificationService) Create(ctx context.Context, input CreateNotificationInput) (*NotificationDTO, error) {
	ctx = ensureContext(ctx)

	message := strings.TrimSpace(input.Message)
	if message == "" {
		return nil, ErrMessageRequired
	}
	recipientID := strings.TrimSpace(input.RecipientID)
	if recipientID == "" {
		return nil, ErrRecipientNotFound
	}

	recipient, err := s.users.FindByID(ctx, recipientID)
	if err != nil {
		return nil, fmt.Errorf("notification service: load recipient: %w", err)
	}
	if recipient == nil {
		return nil, ErrRecipientNotFound
	}

	data, err := encodeData(input.Data)
	if err != nil {
		return nil, err
	}

	channels := models.DefaultChannels()
	if input.Channels != nil {
		channels = *input.Channels
	}

	notification := models.Notification{
		RecipientID: recipientID,
		Type:        defaultIfEmpty(strings.TrimSpace(input.Type), DefaultNotificationType),
		Title:       strings.TrimSpace(input.Title),
		Message:     message,
		Data:        data,
		Channels:    channels,
		ActionURL:   strings.TrimSpace(input.ActionURL),
		Status:      models.NotificationStatusPending,
	}
	notification.CreatedAt = s.now().UTC()

	if err := s.notifications.Insert(ctx, &notification); err != nil {
		return nil, fmt.Errorf("notification service: create notification: %w", err)
	}
	metrics.NotificationsCreated.WithLabelValues(notification.Type).Inc()

	dto := mapNotification(notification)
	return &dto, nil
}

// ApplyUserPreferences intersects requested channels with the recipient's
// stored choices. In-app stays on unless the user explicitly disabled it;
// email and SMS need both a request and an explicit opt-in.
func ApplyUserPreferences(requested models.Channels, user *models.User) models.Channels {
	if user == nil {
		return requested
	}
	prefs := user.Preferences
	return models.Channels{
		InApp: requested.InApp && !isFalse(prefs.InApp),
		Email: requested.Email && isTrue(prefs.Email),
		SMS:   requested.SMS && isTrue(prefs.SMS),
	}
}

// ApplyUserPreferences is the method form of the package function.
func (s *NotificationService) ApplyUserPreferences(requested models.Channels, user *models.User) models.Channels {
	return ApplyUserPreferences(requested, user)
}

// MarkAsRead flips the read flag on the supplied notifications that belong to
// userID and are still unread. Foreign ids are ignored.
func (s *NotificationService) MarkAsRead(ctx context.Context, ids []string, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}
	ids = normaliseIDs(ids)
	if len(ids) == 0 {
		return 0, nil
	}

	updated, err := s.notifications.MarkRead(ctx, userID, ids, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("notification service: mark read: %w", err)
	}

	if updated > 0 {
		s.broadcast(userID, realtime.EventNotificationRead, &NotificationEventPayload{
			NotificationIDs: ids,
			Updated:         updated,
		})
	}
	return updated, nil
}

// MarkAllAsRead marks every unread notification of the user as read.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}

	updated, err := s.notifications.MarkAllRead(ctx, userID, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("notification service: mark all read: %w", err)
	}

	s.broadcast(userID, realtime.EventNotificationReadAll, &NotificationEventPayload{Updated: updated})
	return updated, nil
}

// GetUserNotifications returns one page of the user's notifications, newest
// first, together with the total and the unread count.
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string, input ListNotificationsInput) (*NotificationPage, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserRequired
	}

	page := input.Page
	if page < 1 {
		page = 1
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	filter := repository.NotificationFilter{RecipientID: userID, UnreadOnly: input.UnreadOnly}
	var (
		rows   []models.Notification
		total  int64
		unread int64
	)

	g, gctx := errgroup.WithContext(ctx)
	// past math.MaxInt/limit the offset would wrap; no rows can live there
	if page <= math.MaxInt/limit {
		g.Go(func() error {
			var err error
			rows, err = s.notifications.Find(gctx, filter, repository.Page{Offset: (page - 1) * limit, Limit: limit})
			return err
		})
	}
	g.Go(func() error {
		var err error
		total, err = s.notifications.Count(gctx, filter)
		return err
	})
	g.Go(func() error {
		var err error
		unread, err = s.notifications.Count(gctx, repository.NotificationFilter{RecipientID: userID, UnreadOnly: true})
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, apperrors.Wrap(err, "Failed to load notifications")
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return &NotificationPage{
		Notifications: mapNotificationRows(rows),
		Total:         total,
		UnreadCount:   unread,
		CurrentPage:   page,
		Limit:         limit,
		TotalPages:    totalPages,
		HasMore:       page < totalPages,
	}, nil
}

// DeleteNotification removes the notification when it belongs to userID.
// A missing or foreign id is not an error.
func (s *NotificationService) DeleteNotification(ctx context.Context, id, userID string) error {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserRequired
	}
	id = strings.TrimSpace(id)

	deleted, err := s.notifications.DeleteOne(ctx, id, userID)
	if err != nil {
		return fmt.Errorf("notification service: delete notification: %w", err)
	}
	if deleted {
		s.broadcast(userID, realtime.EventNotificationDeleted, &NotificationEventPayload{NotificationID: id})
	}
	return nil
}

// GetUnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) GetUnreadCount(ctx context.Context, userID string) (int64, error) {
	ctx = ensureContext(ctx)
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return 0, ErrUserRequired
	}

	count, err := s.notifications.Count(ctx, repository.NotificationFilter{RecipientID: userID, UnreadOnly: true})
	if err != nil {
		return 0, fmt.Errorf("notification service: unread count: %w", err)
	}
	return count, nil
}

func (s *NotificationService) broadcast(userID, event string, payload *NotificationEventPayload) {
	if s.publisher == nil {
		return
	}
	message := realtime.Message{
		Stream: realtime.StreamNotifications,
		Event:  event,
	}
	if payload != nil {
		message.Data = payload
	}
	s.publisher.BroadcastToUser(realtime.StreamNotifications, userID, message)
}

func encodeData(data any) (datatypes.JSON, error) {
	if data == nil {
		return nil, nil
	}
	if m, ok := data.(map[string]any); ok && len(m) == 0 {
		return nil, nil
	}
	encoded, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("notification service: marshal data: %w", err)
	}
	return datatypes.JSON(encoded), nil
}

func mapNotificationRows(rows []models.Notification) []NotificationDTO {
	items := make([]NotificationDTO, 0, len(rows))
	for _, row := range rows {
		items = append(items, mapNotification(row))
	}
	return items
}

func mapNotification(row models.Notification) NotificationDTO {
	return NotificationDTO{
		ID:          row.ID,
		RecipientID: row.RecipientID,
		Type:        row.Type,
		Title:       row.Title,
		Message:     row.Message,
		Data:        decodeJSON(row.Data),
		Channels:    row.Channels,
		ActionURL:   row.ActionURL,
		IsRead:      row.IsRead,
		ReadAt:      row.ReadAt,
		Status:      row.Status,
		SentAt:      row.SentAt,
		CreatedAt:   row.CreatedAt,
	}
}

func decodeJSON(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}

func isTrue(flag *bool) bool  { return flag != nil && *flag }
func isFalse(flag *bool) bool { return flag != nil && !*flag }
