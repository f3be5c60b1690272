package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/notifier"
	"github.com/Parthmh361/pure-harvest/internal/realtime"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

// Channel labels used in delivery metrics.
const (
	channelInApp = "in_app"
	channelEmail = "email"
	channelSMS   = "sms"
)

// DeliveryResult reports which channels accepted a notification.
type DeliveryResult struct {
	InApp bool `json:"inApp"`
	Email bool `json:"email"`
	SMS   bool `json:"sms"`
}

// SendInApp marks the notification sent and pushes it to the recipient's open
// realtime connections. Failures are logged and reported as false.
func (s *NotificationService) SendInApp(ctx context.Context, dto *NotificationDTO) bool {
	if dto == nil {
		return s.recordDelivery(channelInApp, false)
	}

	sentAt := s.now().UTC()
	if err := s.notifications.MarkSent(ensureContext(ctx), dto.ID, sentAt); err != nil {
		s.log.Error("in-app delivery failed", zap.String("notification_id", dto.ID), zap.Error(err))
		return s.recordDelivery(channelInApp, false)
	}

	dto.Status = models.NotificationStatusSent
	dto.SentAt = &sentAt
	s.broadcast(dto.RecipientID, realtime.EventNotificationCreated, &NotificationEventPayload{Notification: dto})
	return s.recordDelivery(channelInApp, true)
}

// SendEmail renders the notification as an email and hands it to the email
// provider. It returns false without an address or on any provider error.
func (s *NotificationService) SendEmail(ctx context.Context, dto *NotificationDTO, recipient *models.User) bool {
	if dto == nil || recipient == nil || strings.TrimSpace(recipient.Email) == "" {
		return s.recordSkip(channelEmail)
	}

	actionURL := s.absoluteURL(dto.ActionURL)
	body, err := renderEmailBody(dto, actionURL)
	if err != nil {
		s.log.Error("email render failed", zap.String("notification_id", dto.ID), zap.Error(err))
		return s.recordDelivery(channelEmail, false)
	}

	err = s.email.SendEmail(ensureContext(ctx), notifier.EmailMessage{
		To:      recipient.Email,
		Subject: emailSubject(dto),
		HTML:    body,
		Text:    renderEmailText(dto, actionURL),
	})
	if err != nil {
		s.log.Error("email delivery failed",
			zap.String("notification_id", dto.ID),
			zap.String("recipient_id", recipient.ID),
			zap.Error(err),
		)
		return s.recordDelivery(channelEmail, false)
	}
	return s.recordDelivery(channelEmail, true)
}

// SendSMS renders a one line text and hands it to the SMS provider. Users
// without a phone number are skipped.
func (s *NotificationService) SendSMS(ctx context.Context, dto *NotificationDTO, recipient *models.User) bool {
	if dto == nil || recipient == nil || strings.TrimSpace(recipient.Phone) == "" {
		return s.recordSkip(channelSMS)
	}

	err := s.sms.SendSMS(ensureContext(ctx), notifier.SMSMessage{
		To:   recipient.Phone,
		Body: renderSMS(dto),
	})
	if err != nil {
		s.log.Error("sms delivery failed",
			zap.String("notification_id", dto.ID),
			zap.String("recipient_id", recipient.ID),
			zap.Error(err),
		)
		return s.recordDelivery(channelSMS, false)
	}
	return s.recordDelivery(channelSMS, true)
}

// Deliver runs the best-effort sends for a created notification on the
// channels its recipient allows.
func (s *NotificationService) Deliver(ctx context.Context, dto *NotificationDTO) DeliveryResult {
	if dto == nil {
		return DeliveryResult{}
	}
	ctx = ensureContext(ctx)

	recipient, err := s.users.FindByID(ctx, dto.RecipientID)
	if err != nil || recipient == nil {
		s.log.Warn("delivery skipped, recipient unavailable", zap.String("recipient_id", dto.RecipientID), zap.Error(err))
		return DeliveryResult{}
	}

	channels := ApplyUserPreferences(dto.Channels, recipient)
	var result DeliveryResult
	if channels.InApp {
		result.InApp = s.SendInApp(ctx, dto)
	}
	if channels.Email {
		result.Email = s.SendEmail(ctx, dto, recipient)
	}
	if channels.SMS {
		result.SMS = s.SendSMS(ctx, dto, recipient)
	}
	return result
}

// DeliverAll delivers each notification in order.
func (s *NotificationService) DeliverAll(ctx context.Context, dtos []NotificationDTO) {
	for i := range dtos {
		s.Deliver(ctx, &dtos[i])
	}
}

func (s *NotificationService) absoluteURL(path string) string {
	path = strings.TrimSpace(path)
	if path == "" || s.publicURL == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return s.publicURL + path
}

func (s *NotificationService) recordDelivery(channel string, ok bool) bool {
	result := "success"
	if !ok {
		result = "failure"
	}
	metrics.ChannelDeliveries.WithLabelValues(channel, result).Inc()
	return ok
}

func (s *NotificationService) recordSkip(channel string) bool {
	metrics.ChannelDeliveries.WithLabelValues(channel, "skipped").Inc()
	return false
}
