package models

// Payloads stored in Notification.Data. Each notification family has its own
// shape; the JSON keys are what clients read.

// OrderEventData is attached to the buyer's copy of an order notification.
type OrderEventData struct {
	OrderID     string  `json:"orderId"`
	OrderNumber string  `json:"orderNumber"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"totalAmount"`
	OrderType   string  `json:"orderType"`
}

// OrderItemEventData is attached to a farmer's copy of an order notification.
type OrderItemEventData struct {
	OrderID     string `json:"orderId"`
	OrderNumber string `json:"orderNumber"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	Status      string `json:"status"`
	OrderType   string `json:"orderType"`
}

// OrderStatusData is attached by single-recipient order status updates.
type OrderStatusData struct {
	OrderID string `json:"orderId"`
}

// ProductEventData is attached to product lifecycle and stock notifications.
type ProductEventData struct {
	ProductID   string `json:"productId"`
	ProductName string `json:"productName,omitempty"`
	Stock       *int   `json:"stock,omitempty"`
}

// ReviewEventData is attached to new review notifications.
type ReviewEventData struct {
	ProductID string `json:"productId"`
	Rating    int    `json:"rating"`
}

// SystemEventData marks broadcast notifications.
type SystemEventData struct {
	IsSystem bool `json:"isSystem"`
}

// Order audiences used in OrderType.
const (
	OrderAudienceBuyer  = "buyer"
	OrderAudienceFarmer = "farmer"
)
