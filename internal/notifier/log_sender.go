package notifier

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/pkg/logger"
)

// LogSender satisfies both sender interfaces by logging the message and
// reporting success. It is the default when no provider is configured.
type LogSender struct {
	log *zap.Logger
}

// NewLogSender constructs a LogSender. A nil logger uses the "notifier" module logger.
func NewLogSender(log *zap.Logger) *LogSender {
	if log == nil {
		log = logger.WithModule("notifier")
	}
	return &LogSender{log: log}
}

func (s *LogSender) SendEmail(_ context.Context, msg EmailMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	s.log.Info("email delivery stubbed",
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
	)
	return nil
}

func (s *LogSender) SendSMS(_ context.Context, msg SMSMessage) error {
	if strings.TrimSpace(msg.To) == "" {
		return ErrNoRecipient
	}
	s.log.Info("sms delivery stubbed",
		zap.String("to", msg.To),
		zap.Int("length", len(msg.Body)),
	)
	return nil
}
