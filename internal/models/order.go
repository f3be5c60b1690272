package models

// Order statuses the marketplace moves an order through.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

// OrderItem is a single line of an order. FarmerID is empty when the product
// has no farmer on record.
type OrderItem struct {
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price,omitempty"`
	FarmerID    string  `json:"farmerId,omitempty"`
}

// Order is the marketplace order document as received from the order service.
type Order struct {
	ID          string      `json:"id" validate:"required"`
	OrderNumber string      `json:"orderNumber"`
	Status      string      `json:"status"`
	TotalAmount float64     `json:"totalAmount"`
	BuyerID     string      `json:"buyerId,omitempty"`
	Items       []OrderItem `json:"items"`
}
