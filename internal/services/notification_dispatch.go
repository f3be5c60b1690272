package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Parthmh361/pure-harvest/internal/models"
	"github.com/Parthmh361/pure-harvest/pkg/metrics"
)

// NotifyOrderUpdate sends a single status update to one recipient. It is the
// path for targeted updates; CreateOrderNotification fans an order event out
// to the buyer and every farmer.
func (s *NotificationService) NotifyOrderUpdate(ctx context.Context, orderID, status, recipientID string) (*NotificationDTO, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	tpl := orderStatusTemplate(status)
	return s.Create(ctx, CreateNotificationInput{
		RecipientID: recipientID,
		Type:        "order_" + status,
		Title:       tpl.title,
		Message:     tpl.message,
		Data:        models.OrderStatusData{OrderID: orderID},
		Channels: &models.Channels{
			InApp: true,
			Email: true,
			SMS:   status == models.OrderStatusDelivered,
		},
		ActionURL: "/orders/" + orderID,
	})
}

// NotifyLowStock warns a farmer that a product is running out.
func (s *NotificationService) NotifyLowStock(ctx context.Context, productID, farmerID string, currentStock int) (*NotificationDTO, error) {
	stock := currentStock
	return s.Create(ctx, CreateNotificationInput{
		RecipientID: farmerID,
		Type:        string(ProductEventLowStock),
		Title:       "Low Stock Alert",
		Message:     fmt.Sprintf("Your product stock is running low. Current stock: %d", currentStock),
		Data:        models.ProductEventData{ProductID: productID, Stock: &stock},
		Channels:    &models.Channels{InApp: true, Email: true},
		ActionURL:   "/farmer/products/" + productID,
	})
}

// NotifyNewReview tells a farmer that one of their products was reviewed.
func (s *NotificationService) NotifyNewReview(ctx context.Context, productID, farmerID string, rating int) (*NotificationDTO, error) {
	return s.Create(ctx, CreateNotificationInput{
		RecipientID: farmerID,
		Type:        TypeReviewReceived,
		Title:       "New Review",
		Message:     fmt.Sprintf("Your product received a new %d-star review", rating),
		Data:        models.ReviewEventData{ProductID: productID, Rating: rating},
		Channels:    &models.Channels{InApp: true},
		ActionURL:   "/farmer/products/" + productID,
	})
}

// CreateOrderNotification notifies the buyer and then the farmer of each item,
// in item order. The loop is sequential and stops at the first failure; the
// records created before the failure are kept and returned with the error.
func (s *NotificationService) CreateOrderNotification(ctx context.Context, order *models.Order, event OrderEvent) ([]NotificationDTO, error) {
	if order == nil {
		return nil, ErrOrderRequired
	}

	tpl := orderTemplate(event)
	orderNumber := defaultIfEmpty(order.OrderNumber, order.ID)
	baseMessage := fmt.Sprintf(tpl.message, orderNumber)

	var created []NotificationDTO
	defer func() {
		metrics.FanoutRecipients.WithLabelValues("order").Observe(float64(len(created)))
	}()

	if buyerID := strings.TrimSpace(order.BuyerID); buyerID != "" {
		dto, err := s.Create(ctx, CreateNotificationInput{
			RecipientID: buyerID,
			Type:        string(event),
			Title:       tpl.title,
			Message:     baseMessage,
			Data: models.OrderEventData{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				Status:      order.Status,
				TotalAmount: order.TotalAmount,
				OrderType:   models.OrderAudienceBuyer,
			},
			ActionURL: "/orders/" + order.ID,
		})
		if err != nil {
			return s.abortFanout(created, "order", err, zap.String("order_id", order.ID), zap.String("recipient_id", buyerID))
		}
		created = append(created, *dto)
	}

	for _, item := range order.Items {
		farmerID := strings.TrimSpace(item.FarmerID)
		if farmerID == "" {
			continue
		}
		dto, err := s.Create(ctx, CreateNotificationInput{
			RecipientID: farmerID,
			Type:        string(event),
			Title:       tpl.title,
			Message:     fmt.Sprintf("%s - %s (Qty: %d)", baseMessage, item.ProductName, item.Quantity),
			Data: models.OrderItemEventData{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				ProductID:   item.ProductID,
				ProductName: item.ProductName,
				Quantity:    item.Quantity,
				Status:      order.Status,
				OrderType:   models.OrderAudienceFarmer,
			},
			ActionURL: "/farmer/orders/" + order.ID,
		})
		if err != nil {
			return s.abortFanout(created, "order", err, zap.String("order_id", order.ID), zap.String("recipient_id", farmerID))
		}
		created = append(created, *dto)
	}

	return created, nil
}

// CreateProductNotification notifies the product's farmer. A product without
// a farmer produces nothing and no error.
func (s *NotificationService) CreateProductNotification(ctx context.Context, product *models.Product, event ProductEvent) (*NotificationDTO, error) {
	if product == nil || strings.TrimSpace(product.FarmerID) == "" {
		return nil, nil
	}

	title, message := productContent(event, product)
	data := models.ProductEventData{ProductID: product.ID, ProductName: product.Name}
	channels := models.DefaultChannels()
	if isStockEvent(event) {
		stock := product.Stock
		data.Stock = &stock
		channels.Email = true
	}

	return s.Create(ctx, CreateNotificationInput{
		RecipientID: product.FarmerID,
		Type:        string(event),
		Title:       title,
		Message:     message,
		Data:        data,
		Channels:    &channels,
		ActionURL:   "/farmer/products/" + product.ID,
	})
}

// CreateSystemNotification sends message to each listed user, or to every
// active user when userIDs is empty. Sequential; the first failure stops the
// loop and the records created so far are returned with the error.
func (s *NotificationService) CreateSystemNotification(ctx context.Context, message, notificationType string, userIDs []string) ([]NotificationDTO, error) {
	ctx = ensureContext(ctx)
	if strings.TrimSpace(message) == "" {
		return nil, ErrMessageRequired
	}

	targets := normaliseIDs(userIDs)
	if len(targets) == 0 {
		active, err := s.users.ListActiveIDs(ctx)
		if err != nil {
			return nil, fmt.Errorf("notification service: list active users: %w", err)
		}
		targets = active
	}

	notificationType = defaultIfEmpty(strings.TrimSpace(notificationType), TypeSystem)
	created := make([]NotificationDTO, 0, len(targets))
	defer func() {
		metrics.FanoutRecipients.WithLabelValues("system").Observe(float64(len(created)))
	}()

	for _, userID := range targets {
		dto, err := s.Create(ctx, CreateNotificationInput{
			RecipientID: userID,
			Type:        notificationType,
			Title:       "System Notification",
			Message:     message,
			Data:        models.SystemEventData{IsSystem: true},
		})
		if err != nil {
			return s.abortFanout(created, "system", err, zap.String("recipient_id", userID))
		}
		created = append(created, *dto)
	}
	return created, nil
}

func (s *NotificationService) abortFanout(created []NotificationDTO, kind string, err error, fields ...zap.Field) ([]NotificationDTO, error) {
	s.log.Warn("notification fan-out aborted",
		append(fields,
			zap.String("kind", kind),
			zap.Int("created", len(created)),
			zap.Error(err),
		)...,
	)
	return created, err
}
