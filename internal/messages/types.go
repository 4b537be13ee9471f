package messages

import "time"

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"

	ChannelWhatsApp = "whatsapp"

	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
)

// Message is one immutable row of the customer message log.
type Message struct {
	ID         string    `dynamodbav:"message_id" db:"id" json:"id"`
	StoreID    int64     `dynamodbav:"store_id" db:"store_id" json:"store_id"`
	CustomerID string    `dynamodbav:"customer_id" db:"customer_id" json:"customer_id"`
	Channel    string    `dynamodbav:"channel" db:"channel" json:"channel"`
	Direction  string    `dynamodbav:"direction" db:"direction" json:"direction"`
	Type       string    `dynamodbav:"message_type" db:"message_type" json:"type"`
	Content    string    `dynamodbav:"content" db:"content" json:"content"`
	Metadata   Metadata  `dynamodbav:"metadata,omitempty" db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at"`
}
