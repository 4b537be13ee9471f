package customers

import "time"

// Customer belongs to exactly one store and is unique on (store_id, phone).
type Customer struct {
	ID        string    `dynamodbav:"customer_id" db:"id" json:"id"`
	StoreID   int64     `dynamodbav:"store_id" db:"store_id" json:"store_id"`
	Phone     string    `dynamodbav:"phone" db:"phone" json:"phone"`
	Name      string    `dynamodbav:"name" db:"name" json:"name"`
	Email     string    `dynamodbav:"email,omitempty" db:"email" json:"email,omitempty"`
	CreatedAt time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at"`
}

// phoneGuard reserves (store_id, phone) for one customer.
type phoneGuard struct {
	PhoneKey   string `dynamodbav:"phone_key"`
	CustomerID string `dynamodbav:"customer_id"`
	StoreID    int64  `dynamodbav:"store_id"`
}

// DefaultName is the name given to a customer first seen without a profile name.
func DefaultName(phone string) string {
	return "Customer " + phone
}
