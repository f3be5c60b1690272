// Package events turns marketplace events into notification dispatcher calls.
// Events arrive from Kafka or from the internal HTTP ingestion endpoints.
package events

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// Event type prefixes and names.
const (
	OrderPrefix   = "order."
	ProductPrefix = "product."

	TypeOrderStatus     = "order.status_changed"
	TypeReviewCreated   = "review.created"
	TypeSystemBroadcast = "system.broadcast"
)

// Review describes a newly posted product review.
type Review struct {
	ProductID string `json:"productId" validate:"required"`
	FarmerID  string `json:"farmerId" validate:"required"`
	Rating    int    `json:"rating" validate:"gte=1,lte=5"`
}

// Event is the JSON envelope carried on the marketplace events topic.
type Event struct {
	Type             string          `json:"type" validate:"required"`
	Order            *models.Order   `json:"order,omitempty"`
	Status           string          `json:"status,omitempty"`
	RecipientID      string          `json:"recipient_id,omitempty"`
	Product          *models.Product `json:"product,omitempty"`
	Review           *Review         `json:"review,omitempty"`
	Message          string          `json:"message,omitempty"`
	NotificationType string          `json:"notification_type,omitempty"`
	UserIDs          []string        `json:"user_ids,omitempty"`
}

// Key returns the partition key: the order or product id when present so
// events about one entity stay ordered.
func (e Event) Key() string {
	switch {
	case e.Order != nil && e.Order.ID != "":
		return e.Order.ID
	case e.Product != nil && e.Product.ID != "":
		return e.Product.ID
	case e.Review != nil:
		return e.Review.ProductID
	default:
		return e.Type
	}
}

// Decode parses an event envelope.
func Decode(payload []byte) (Event, error) {
	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return Event{}, fmt.Errorf("events: decode: %w", err)
	}
	event.Type = strings.ToLower(strings.TrimSpace(event.Type))
	if event.Type == "" {
		return Event{}, fmt.Errorf("events: decode: missing type")
	}
	return event, nil
}

// Encode serialises an event envelope.
func Encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}
