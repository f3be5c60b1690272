package models

import (
	"time"

	"gorm.io/datatypes"
)

// Delivery states recorded on a notification.
const (
	NotificationStatusPending = "pending"
	NotificationStatusSent    = "sent"
)

// Channels selects the delivery channels of a notification.
type Channels struct {
	InApp bool `gorm:"column:in_app" json:"inApp"`
	Email bool `gorm:"column:email" json:"email"`
	SMS   bool `gorm:"column:sms" json:"sms"`
}

// DefaultChannels returns the channel set used when a caller supplies none.
func DefaultChannels() Channels {
	return Channels{InApp: true}
}

// Notification is a message addressed to exactly one recipient.
type Notification struct {
	BaseModel

	RecipientID string         `gorm:"type:varchar(36);not null;index:idx_notifications_recipient_read,priority:1" json:"recipientId"`
	Type        string         `gorm:"type:varchar(64);not null;index" json:"type"`
	Title       string         `gorm:"type:varchar(255)" json:"title"`
	Message     string         `gorm:"type:text;not null" json:"message"`
	Data        datatypes.JSON `json:"data"`
	Channels    Channels       `gorm:"embedded;embeddedPrefix:channel_" json:"channels"`
	ActionURL   string         `gorm:"type:text" json:"actionUrl"`

	IsRead bool       `gorm:"index:idx_notifications_recipient_read,priority:2" json:"isRead"`
	ReadAt *time.Time `json:"readAt"`

	Status string     `gorm:"type:varchar(16)" json:"status"`
	SentAt *time.Time `json:"sentAt"`
}
