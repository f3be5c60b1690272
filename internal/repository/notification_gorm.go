package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// GormNotificationStore stores notifications in a relational database.
type GormNotificationStore struct {
	db  *gorm.DB
	now func() time.Time
}

// NewGormNotificationStore constructs a GormNotificationStore.
func NewGormNotificationStore(db *gorm.DB) (*GormNotificationStore, error) {
	if db == nil {
		return nil, errors.New("notification store: db is required")
	}
	return &GormNotificationStore{db: db, now: time.Now}, nil
}

func (s *GormNotificationStore) Insert(ctx context.Context, notification *models.Notification) error {
	if err := validateNotification(notification); err != nil {
		return err
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = s.now().UTC()
	}
	if err := s.db.WithContext(ensureContext(ctx)).Create(notification).Error; err != nil {
		return fmt.Errorf("notification store: insert: %w", err)
	}
	return nil
}

func (s *GormNotificationStore) MarkSent(ctx context.Context, id string, at time.Time) error {
	result := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":  models.NotificationStatusSent,
			"sent_at": at,
		})
	if result.Error != nil {
		return fmt.Errorf("notification store: mark sent: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormNotificationStore) MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return s.markRead(s.db.WithContext(ensureContext(ctx)).Where("id IN ?", ids), recipientID, at)
}

func (s *GormNotificationStore) MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error) {
	return s.markRead(s.db.WithContext(ensureContext(ctx)), recipientID, at)
}

func (s *GormNotificationStore) markRead(tx *gorm.DB, recipientID string, at time.Time) (int64, error) {
	result := tx.Model(&models.Notification{}).
		Where("recipient_id = ? AND is_read = ?", recipientID, false).
		Updates(map[string]any{
			"is_read": true,
			"read_at": at,
		})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: mark read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormNotificationStore) DeleteOne(ctx context.Context, id, recipientID string) (bool, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&models.Notification{})
	if result.Error != nil {
		return false, fmt.Errorf("notification store: delete: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

func (s *GormNotificationStore) Find(ctx context.Context, filter NotificationFilter, page Page) ([]models.Notification, error) {
	var rows []models.Notification
	query := s.scope(ctx, filter).
		Order("created_at DESC").
		Order("id DESC")
	if page.Limit > 0 {
		query = query.Limit(page.Limit)
	}
	if page.Offset > 0 {
		query = query.Offset(page.Offset)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification store: find: %w", err)
	}
	return rows, nil
}

func (s *GormNotificationStore) Count(ctx context.Context, filter NotificationFilter) (int64, error) {
	var count int64
	if err := s.scope(ctx, filter).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("notification store: count: %w", err)
	}
	return count, nil
}

func (s *GormNotificationStore) PurgeRead(ctx context.Context, readBefore time.Time) (int64, error) {
	result := s.db.WithContext(ensureContext(ctx)).
		Where("is_read = ? AND read_at < ?", true, readBefore).
		Delete(&models.Notification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification store: purge read: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (s *GormNotificationStore) scope(ctx context.Context, filter NotificationFilter) *gorm.DB {
	query := s.db.WithContext(ensureContext(ctx)).
		Model(&models.Notification{}).
		Where("recipient_id = ?", filter.RecipientID)
	if filter.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	return query
}
