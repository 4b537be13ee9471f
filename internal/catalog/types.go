package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Store is a tenant: a seller account owning products, customers and orders.
type Store struct {
	ID          int64     `dynamodbav:"store_id" db:"id" json:"id" yaml:"id"`
	OwnerUserID string    `dynamodbav:"owner_user_id" db:"owner_user_id" json:"owner_user_id" yaml:"owner_user_id"`
	Name        string    `dynamodbav:"name" db:"name" json:"name" yaml:"name"`
	CreatedAt   time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at" yaml:"-"`
}

// Product belongs to exactly one store. Price is an exact decimal string.
// IsActive false marks a soft-deleted product.
type Product struct {
	ID          int64     `dynamodbav:"product_id" db:"id" json:"id" yaml:"id"`
	StoreID     int64     `dynamodbav:"store_id" db:"store_id" json:"store_id" yaml:"-"`
	Name        string    `dynamodbav:"name" db:"name" json:"name" yaml:"name"`
	Description string    `dynamodbav:"description,omitempty" db:"description" json:"description,omitempty" yaml:"description"`
	SKU         string    `dynamodbav:"sku,omitempty" db:"sku" json:"sku,omitempty" yaml:"sku"`
	Price       string    `dynamodbav:"price" db:"price" json:"price" yaml:"price"`
	IsActive    bool      `dynamodbav:"is_active" db:"is_active" json:"is_active" yaml:"active"`
	CreatedAt   time.Time `dynamodbav:"created_at" db:"created_at" json:"created_at" yaml:"-"`
	UpdatedAt   time.Time `dynamodbav:"updated_at" db:"updated_at" json:"updated_at" yaml:"-"`
}

// PriceDecimal parses Price.
func (p Product) PriceDecimal() (decimal.Decimal, error) {
	return decimal.NewFromString(p.Price)
}

// MenuLimit is how many products the WhatsApp menu lists.
const MenuLimit = 10
