package services

import (
	"net/http"

	apperrors "github.com/Parthmh361/pure-harvest/pkg/errors"
)

var (
	// ErrRecipientNotFound is returned when a notification names a user that does not exist.
	ErrRecipientNotFound = apperrors.NewNotFound("notification.recipient_not_found", "Recipient not found")
	// ErrMessageRequired is returned when a notification message is empty after trimming.
	ErrMessageRequired = apperrors.New("notification.message_required", "Notification message is required", http.StatusBadRequest)
	// ErrUserRequired is returned when a per-user operation has no user id.
	ErrUserRequired = apperrors.New("notification.user_required", "User id is required", http.StatusBadRequest)
	// ErrOrderRequired is returned when an order fan-out receives no order.
	ErrOrderRequired = apperrors.New("notification.order_required", "Order is required", http.StatusBadRequest)
)
