package notifier

import (
	"context"
	"errors"
	"strings"

	"github.com/Parthmh361/pure-harvest/pkg/mail"
)

// SMTPEmailSender delivers notification emails through a pkg/mail Mailer.
type SMTPEmailSender struct {
	mailer mail.Mailer
	from   string
}

// NewSMTPEmailSender wraps mailer. from overrides the mailer's default sender when set.
func NewSMTPEmailSender(mailer mail.Mailer, from string) (*SMTPEmailSender, error) {
	if mailer == nil {
		return nil, errors.New("notifier: mailer is required")
	}
	return &SMTPEmailSender{mailer: mailer, from: strings.TrimSpace(from)}, nil
}

func (s *SMTPEmailSender) SendEmail(ctx context.Context, msg EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	return s.mailer.Send(ctx, mail.Message{
		From:    s.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
}
