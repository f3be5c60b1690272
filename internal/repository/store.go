package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

var (
	// ErrNotFound is returned when an update targets a record that does not exist.
	ErrNotFound = errors.New("repository: record not found")
	// ErrInvalidNotification is returned when a notification lacks a recipient or message.
	ErrInvalidNotification = errors.New("repository: notification requires recipient and message")
)

// NotificationFilter narrows notification queries to one recipient.
type NotificationFilter struct {
	RecipientID string
	UnreadOnly  bool
}

// Page is an offset/limit window over a sorted result set.
type Page struct {
	Offset int
	Limit  int
}

// NotificationStore persists notification records.
type NotificationStore interface {
	Insert(ctx context.Context, notification *models.Notification) error
	MarkSent(ctx context.Context, id string, at time.Time) error
	MarkRead(ctx context.Context, recipientID string, ids []string, at time.Time) (int64, error)
	MarkAllRead(ctx context.Context, recipientID string, at time.Time) (int64, error)
	DeleteOne(ctx context.Context, id, recipientID string) (bool, error)
	Find(ctx context.Context, filter NotificationFilter, page Page) ([]models.Notification, error)
	Count(ctx context.Context, filter NotificationFilter) (int64, error)
	PurgeRead(ctx context.Context, readBefore time.Time) (int64, error)
}

// UserStore reads marketplace users.
type UserStore interface {
	// FindByID returns nil without an error when the user does not exist.
	FindByID(ctx context.Context, id string) (*models.User, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
}

func validateNotification(notification *models.Notification) error {
	if notification == nil ||
		strings.TrimSpace(notification.RecipientID) == "" ||
		strings.TrimSpace(notification.Message) == "" {
		return ErrInvalidNotification
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx == nil {
		return context.Background()
	}
	return ctx
}
