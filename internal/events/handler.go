package events

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/internal/services"
	"github.com/Parthmh361/pure-harvest/pkg/logger"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
	"github.com/Parthmh361/pure-harvest/pkg/validator"
)

// ErrUnsupportedEvent is returned for event types the handler does not route.
var ErrUnsupportedEvent = errors.New("events: unsupported event type")

// ErrIncompleteEvent is returned when an event lacks the body its type needs.
var ErrIncompleteEvent = errors.New("events: event body is incomplete")

// Dispatcher is the subset of the notification service the handler drives.
type Dispatcher interface {
	CreateOrderNotification(ctx context.Context, order *models.Order, event services.OrderEvent) ([]services.NotificationDTO, error)
	NotifyOrderUpdate(ctx context.Context, orderID, status, recipientID string) (*services.NotificationDTO, error)
	CreateProductNotification(ctx context.Context, product *models.Product, event services.ProductEvent) (*services.NotificationDTO, error)
	NotifyNewReview(ctx context.Context, productID, farmerID string, rating int) (*services.NotificationDTO, error)
	CreateSystemNotification(ctx context.Context, message, notificationType string, userIDs []string) ([]services.NotificationDTO, error)
	DeliverAll(ctx context.Context, notifications []services.NotificationDTO)
}

// Sink accepts marketplace events for processing.
type Sink interface {
	Publish(ctx context.Context, event Event) error
}

// Handler routes events to the dispatcher and delivers what it creates.
type Handler struct {
	dispatcher Dispatcher
	log        *zap.Logger
}

// NewHandler constructs a Handler.
func NewHandler(dispatcher Dispatcher) (*Handler, error) {
	if dispatcher == nil {
		return nil, errors.New("events: dispatcher is required")
	}
	return &Handler{dispatcher: dispatcher, log: logger.WithModule("events")}, nil
}

// Publish handles the event inline, so a Handler can stand in for a broker.
func (h *Handler) Publish(ctx context.Context, event Event) error {
	_, err := h.Handle(ctx, event)
	return err
}

// Handle dispatches one event and returns the notifications it created. On a
// fan-out failure the records created before the failure are returned too.
func (h *Handler) Handle(ctx context.Context, event Event) ([]services.NotificationDTO, error) {
	created, err := h.route(ctx, event)
	if len(created) > 0 {
		h.dispatcher.DeliverAll(ctx, created)
	}

	result := "success"
	if err != nil {
		result = "failure"
	}
	metrics.EventsConsumed.WithLabelValues(metricType(event.Type), result).Inc()
	return created, err
}

func (h *Handler) route(ctx context.Context, event Event) ([]services.NotificationDTO, error) {
	eventType := strings.ToLower(strings.TrimSpace(event.Type))
	if err := validator.ValidateStruct(event); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrIncompleteEvent, eventType, err)
	}

	switch {
	case eventType == TypeOrderStatus:
		if event.Order == nil || event.RecipientID == "" {
			return nil, fmt.Errorf("%w: %s needs order and recipient_id", ErrIncompleteEvent, eventType)
		}
		status := defaultString(event.Status, event.Order.Status)
		return single(h.dispatcher.NotifyOrderUpdate(ctx, event.Order.ID, status, event.RecipientID))

	case strings.HasPrefix(eventType, OrderPrefix):
		if event.Order == nil {
			return nil, fmt.Errorf("%w: %s needs order", ErrIncompleteEvent, eventType)
		}
		return h.dispatcher.CreateOrderNotification(ctx, event.Order, OrderEventFor(eventType))

	case strings.HasPrefix(eventType, ProductPrefix):
		if event.Product == nil {
			return nil, fmt.Errorf("%w: %s needs product", ErrIncompleteEvent, eventType)
		}
		return single(h.dispatcher.CreateProductNotification(ctx, event.Product, ProductEventFor(eventType)))

	case eventType == TypeReviewCreated:
		if event.Review == nil {
			return nil, fmt.Errorf("%w: %s needs review", ErrIncompleteEvent, eventType)
		}
		return single(h.dispatcher.NotifyNewReview(ctx, event.Review.ProductID, event.Review.FarmerID, event.Review.Rating))

	case eventType == TypeSystemBroadcast:
		return h.dispatcher.CreateSystemNotification(ctx, event.Message, event.NotificationType, event.UserIDs)
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedEvent, event.Type)
}

// OrderEventFor maps "order.<name>" to the fan-out type. order.created and
// order.placed map to new_order; other names map to order_<name>.
func OrderEventFor(eventType string) services.OrderEvent {
	name := strings.TrimPrefix(strings.ToLower(eventType), OrderPrefix)
	switch name {
	case "created", "placed", "new":
		return services.OrderEventNew
	}
	return services.OrderEvent("order_" + name)
}

// ProductEventFor maps "product.<name>" to the product notification type.
// Stock events keep their bare names.
func ProductEventFor(eventType string) services.ProductEvent {
	name := strings.TrimPrefix(strings.ToLower(eventType), ProductPrefix)
	switch name {
	case string(services.ProductEventLowStock), string(services.ProductEventOutOfStock):
		return services.ProductEvent(name)
	}
	return services.ProductEvent("product_" + name)
}

func single(dto *services.NotificationDTO, err error) ([]services.NotificationDTO, error) {
	if dto == nil {
		return nil, err
	}
	return []services.NotificationDTO{*dto}, err
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// metricType keeps label cardinality bounded to the event family.
func metricType(eventType string) string {
	family, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(eventType)), ".")
	switch family {
	case "order", "product", "review", "system":
		return family
	}
	return "unknown"
}
