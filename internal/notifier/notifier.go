// Package notifier holds the email and SMS provider integration points used
// by the notification dispatcher.
package notifier

import (
	"context"
	"errors"
)

// ErrNoRecipient is returned when a message has no destination address.
var ErrNoRecipient = errors.New("notifier: recipient address is required")

// EmailMessage is a rendered email ready for a provider. Text is the plain
// fallback for clients that do not render HTML.
type EmailMessage struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// SMSMessage is a rendered single-line text message.
type SMSMessage struct {
	To   string
	Body string
}

// EmailSender hands an email to a delivery provider.
type EmailSender interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// SMSSender hands a text message to a delivery provider.
type SMSSender interface {
	SendSMS(ctx context.Context, msg SMSMessage) error
}
