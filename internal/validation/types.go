package validation

// Item is a single requested order line.
type Item struct {
	ProductID int64  `json:"product_id" validate:"required,gt=0"`
	VariantID *int64 `json:"variant_id,omitempty" validate:"omitempty,gt=0"`
	Quantity  int    `json:"quantity" validate:"required,min=1"` // must be >= 1
}

// CreateOrderRequest is the payload for POST /stores/:storeId/orders
type CreateOrderRequest struct {
	CustomerID string `json:"customer_id" validate:"required"`
	Items      []Item `json:"items" validate:"required,min=1,dive"` // at least one item
	Notes      string `json:"notes,omitempty" validate:"max=500"`
}

// UpdateStatusRequest is the payload for PATCH /stores/:storeId/orders/:orderId/status
type UpdateStatusRequest struct {
	Status         string `json:"status" validate:"required,order_status"`
	Notes          string `json:"notes,omitempty" validate:"max=500"`
	TrackingNumber string `json:"tracking_number,omitempty" validate:"max=100"`
}

// CancelOrderRequest is the optional payload for POST .../cancel
type CancelOrderRequest struct {
	Reason string `json:"reason,omitempty" validate:"max=500"`
}

// AgentChatRequest is the payload for POST /agent/chat
type AgentChatRequest struct {
	ConversationID string `json:"conversationId" validate:"required"`
	CustomerID     string `json:"customerId" validate:"required"`
	StoreID        int64  `json:"storeId" validate:"required,gt=0"`
	Message        string `json:"message" validate:"required,max=4000"`
}

// AgentConversationQuery scopes GET and DELETE /agent/conversations/:conversationId
// to the conversation's owner.
type AgentConversationQuery struct {
	CustomerID string `form:"customerId" validate:"required"`
	StoreID    int64  `form:"storeId" validate:"required,gt=0"`
}
