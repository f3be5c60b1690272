package services

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"github.com/Parthmh361/pure-harvest/internal/models"
)

// OrderEvent names an order fan-out notification type.
type OrderEvent string

// Order fan-out types.
const (
	OrderEventNew        OrderEvent = "new_order"
	OrderEventConfirmed  OrderEvent = "order_confirmed"
	OrderEventProcessing OrderEvent = "order_processing"
	OrderEventShipped    OrderEvent = "order_shipped"
	OrderEventDelivered  OrderEvent = "order_delivered"
	OrderEventCancelled  OrderEvent = "order_cancelled"
)

// ProductEvent names a product notification type.
type ProductEvent string

// Product notification types.
const (
	ProductEventCreated    ProductEvent = "product_created"
	ProductEventUpdated    ProductEvent = "product_updated"
	ProductEventDeleted    ProductEvent = "product_deleted"
	ProductEventLowStock   ProductEvent = "low_stock"
	ProductEventOutOfStock ProductEvent = "out_of_stock"
)

// Types produced by the single purpose helpers.
const (
	TypeReviewReceived = "review_received"
	TypeSystem         = "system"
)

type textTemplate struct {
	title   string
	message string // fmt format
}

// order fan-out: %s is the order number
var orderTemplates = map[OrderEvent]textTemplate{
	OrderEventNew:        {"New Order Received", "Order #%s has been placed"},
	OrderEventConfirmed:  {"Order Confirmed", "Order #%s has been confirmed"},
	OrderEventProcessing: {"Order Processing", "Order #%s is being processed"},
	OrderEventShipped:    {"Order Shipped", "Order #%s has been shipped"},
	OrderEventDelivered:  {"Order Delivered", "Order #%s has been delivered"},
	OrderEventCancelled:  {"Order Cancelled", "Order #%s has been cancelled"},
}

var orderFallback = textTemplate{"Order Update", "Order #%s has been updated"}

func orderTemplate(event OrderEvent) textTemplate {
	if tpl, ok := orderTemplates[event]; ok {
		return tpl
	}
	return orderFallback
}

// single recipient status updates
var orderStatusTemplates = map[string]textTemplate{
	models.OrderStatusConfirmed:  {"Order Confirmed", "Your order has been confirmed by the farmer"},
	models.OrderStatusProcessing: {"Order Processing", "Your order is being prepared for shipment"},
	models.OrderStatusShipped:    {"Order Shipped", "Your order is on its way"},
	models.OrderStatusDelivered:  {"Order Delivered", "Your order has been delivered"},
	models.OrderStatusCancelled:  {"Order Cancelled", "Your order has been cancelled"},
}

var orderStatusFallback = textTemplate{"Order Update", "Your order status has been updated"}

func orderStatusTemplate(status string) textTemplate {
	if tpl, ok := orderStatusTemplates[status]; ok {
		return tpl
	}
	return orderStatusFallback
}

// product notifications: first %s is the product name, stock types add %d
var productTemplates = map[ProductEvent]textTemplate{
	ProductEventCreated:    {"Product Listed", "Your product %s is now live on the marketplace"},
	ProductEventUpdated:    {"Product Updated", "Your product %s has been updated"},
	ProductEventDeleted:    {"Product Removed", "Your product %s has been removed from the marketplace"},
	ProductEventLowStock:   {"Low Stock Alert", "%s is running low. Only %d left in stock"},
	ProductEventOutOfStock: {"Out of Stock", "%s is out of stock (%d remaining)"},
}

var productFallback = textTemplate{"Product Update", "Your product %s has been updated"}

func isStockEvent(event ProductEvent) bool {
	return event == ProductEventLowStock || event == ProductEventOutOfStock
}

func productContent(event ProductEvent, product *models.Product) (string, string) {
	tpl, ok := productTemplates[event]
	if !ok {
		tpl = productFallback
	}
	if isStockEvent(event) {
		return tpl.title, fmt.Sprintf(tpl.message, product.Name, product.Stock)
	}
	return tpl.title, fmt.Sprintf(tpl.message, product.Name)
}

// channel content

var emailSubjects = map[string]string{
	string(OrderEventNew):          "New order on PureHarvest",
	string(OrderEventDelivered):    "Your PureHarvest order has been delivered",
	string(OrderEventCancelled):    "Your PureHarvest order was cancelled",
	string(ProductEventLowStock):   "Low stock on PureHarvest",
	string(ProductEventOutOfStock): "A product is out of stock",
	TypeReviewReceived:             "You received a new review",
	TypeSystem:                     "PureHarvest announcement",
}

// farmers in an order fan-out get seller-side wording
var farmerEmailSubjects = map[string]string{
	string(OrderEventNew):       "New order for your products on PureHarvest",
	string(OrderEventDelivered): "An order you fulfilled has been delivered",
	string(OrderEventCancelled): "An order for your products was cancelled",
}

const defaultEmailSubject = "PureHarvest Notification"

var emailLayout = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
<body style="font-family:Arial,sans-serif;color:#1f2933">
<h2 style="color:#2f855a">{{.Title}}</h2>
<p>{{.Message}}</p>
{{- if .ActionURL}}
<p><a href="{{.ActionURL}}" style="color:#2f855a">View details</a></p>
{{- end}}
<p style="font-size:12px;color:#7b8794">You are receiving this email because of your PureHarvest notification settings.</p>
</body>
</html>
`))

type emailView struct {
	Title     string
	Message   string
	ActionURL string
}

func emailSubject(dto *NotificationDTO) string {
	if audience, _ := dto.Data["orderType"].(string); audience == models.OrderAudienceFarmer {
		if subject, ok := farmerEmailSubjects[dto.Type]; ok {
			return subject
		}
	}
	if subject, ok := emailSubjects[dto.Type]; ok {
		return subject
	}
	if title := strings.TrimSpace(dto.Title); title != "" {
		return title
	}
	return defaultEmailSubject
}

func renderEmailBody(dto *NotificationDTO, actionURL string) (string, error) {
	var buf bytes.Buffer
	err := emailLayout.Execute(&buf, emailView{
		Title:     defaultIfEmpty(dto.Title, defaultEmailSubject),
		Message:   dto.Message,
		ActionURL: actionURL,
	})
	if err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return buf.String(), nil
}

func renderEmailText(dto *NotificationDTO, actionURL string) string {
	var b strings.Builder
	b.WriteString(defaultIfEmpty(dto.Title, defaultEmailSubject))
	b.WriteString("\n\n")
	b.WriteString(dto.Message)
	if actionURL != "" {
		b.WriteString("\n\nView details: ")
		b.WriteString(actionURL)
	}
	return b.String()
}

var smsPrefixes = map[string]string{
	string(OrderEventDelivered):  "Delivered",
	string(OrderEventShipped):    "Shipped",
	string(ProductEventLowStock): "Stock alert",
}

func renderSMS(dto *NotificationDTO) string {
	text := strings.Join(strings.Fields(dto.Message), " ")
	if prefix, ok := smsPrefixes[dto.Type]; ok {
		return "PureHarvest " + prefix + ": " + text
	}
	return "PureHarvest: " + text
}
