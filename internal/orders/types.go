package orders

import (
	"strconv"
	"strings"
	"time"
)

// Order statuses
const (
	StatusPending    = "pending"
	StatusConfirmed  = "confirmed"
	StatusProcessing = "processing"
	StatusShipped    = "shipped"
	StatusDelivered  = "delivered"
	StatusCancelled  = "cancelled"
	StatusRefunded   = "refunded"
)

// Channels record the surface an order originated from.
const (
	ChannelWhatsApp = "whatsapp"
	ChannelAPI      = "api"
)

// Statuses is the full order lifecycle.
var Statuses = []string{
	StatusPending, StatusConfirmed, StatusProcessing, StatusShipped,
	StatusDelivered, StatusCancelled, StatusRefunded,
}

// ValidStatus reports whether s is a lifecycle status.
func ValidStatus(s string) bool {
	for _, st := range Statuses {
		if st == s {
			return true
		}
	}
	return false
}

// StoreIDFromNumber returns the store id embedded in an ORD-{store}-... order number.
func StoreIDFromNumber(orderNumber string) (int64, bool) {
	parts := strings.Split(orderNumber, "-")
	if len(parts) != 4 || parts[0] != "ORD" {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// IsFinal reports whether an order in status s can no longer move.
func IsFinal(s string) bool {
	return s == StatusCancelled || s == StatusDelivered || s == StatusRefunded
}

// Item is an order line. UnitPrice is a snapshot of the product price at order time.
type Item struct {
	ProductID   int64  `dynamodbav:"product_id" db:"product_id" json:"product_id"`
	VariantID   *int64 `dynamodbav:"variant_id,omitempty" db:"variant_id" json:"variant_id,omitempty"`
	ProductName string `dynamodbav:"product_name" db:"product_name" json:"product_name"`
	Quantity    int    `dynamodbav:"quantity" db:"quantity" json:"quantity"`
	UnitPrice   string `dynamodbav:"unit_price" db:"unit_price" json:"unit_price"`
	Subtotal    string `dynamodbav:"subtotal" db:"subtotal" json:"subtotal"`
}

// Order is the order aggregate: the order row plus its items.
// TotalAmount is fixed at creation as the sum of item subtotals.
type Order struct {
	ID          string    `dynamodbav:"order_id" db:"id" json:"id"` // PK
	StoreID     int64     `dynamodbav:"store_id" db:"store_id" json:"store_id"`
	CustomerID  string    `dynamodbav:"customer_id" db:"customer_id" json:"customer_id"`
	OrderNumber string    `dynamodbav:"order_number" db:"order_number" json:"order_number"`
	Status      string    `dynamodbav:"status" db:"status" json:"status"`
	TotalAmount string    `dynamodbav:"total_amount" db:"total_amount" json:"total_amount"`
	Channel     string    `dynamodbav:"channel" db:"channel" json:"channel"`
	Notes       string    `dynamodbav:"notes,omitempty" db:"notes" json:"notes,omitempty"`
	Items       []Item    `dynamodbav:"items" db:"-" json:"items"`
	CreatedAt   time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" db:"updated_at" json:"updated_at"`
}

// StatusChange is one row of the order status history. FromStatus is empty for the initial entry.
type StatusChange struct {
	ID         string    `dynamodbav:"history_id" db:"id" json:"id"`
	OrderID    string    `dynamodbav:"order_id" db:"order_id" json:"order_id"`
	FromStatus string    `dynamodbav:"from_status,omitempty" db:"from_status" json:"from_status,omitempty"`
	ToStatus   string    `dynamodbav:"to_status" db:"to_status" json:"to_status"`
	Notes      string    `dynamodbav:"notes,omitempty" db:"notes" json:"notes,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at"`
}

// numberGuard reserves (store_id, order_number) and points at the order.
type numberGuard struct {
	NumberKey   string `dynamodbav:"number_key"`
	OrderID     string `dynamodbav:"order_id"`
	StoreID     int64  `dynamodbav:"store_id"`
	OrderNumber string `dynamodbav:"order_number"`
}
