package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
)

const customerColumns = `id, store_id, phone, name, email, created_at`

// CustomerStore keeps customers unique on (store_id, phone).
type CustomerStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
	newID   func() string
}

func NewCustomerStore(db *sqlx.DB) *CustomerStore {
	return &CustomerStore{db: db, nowFunc: time.Now, newID: uuid.NewString}
}

// GetOrCreate returns the customer for (storeID, phone), inserting it on first contact.
// A concurrent insert of the same phone is absorbed by ON CONFLICT and answered with
// the winner's row.
func (s *CustomerStore) GetOrCreate(ctx context.Context, storeID int64, phone, name string) (*customers.Customer, bool, error) {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return nil, false, errors.New("phone is required")
	}

	existing, err := s.GetByPhone(ctx, storeID, phone)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	if name == "" {
		name = customers.DefaultName(phone)
	}
	c := customers.Customer{
		ID:        s.newID(),
		StoreID:   storeID,
		Phone:     phone,
		Name:      name,
		CreatedAt: s.nowFunc().UTC(),
	}
	res, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (:id, :store_id, :phone, :name, :email, :created_at)
		ON CONFLICT (store_id, phone) DO NOTHING`, c)
	if err != nil {
		return nil, false, fmt.Errorf("insert customer: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("insert customer: %w", err)
	}
	if n == 1 {
		return &c, true, nil
	}

	winner, err := s.GetByPhone(ctx, storeID, phone)
	if err != nil {
		return nil, false, err
	}
	if winner == nil {
		return nil, false, fmt.Errorf("customer insert skipped but no row found for %s", phone)
	}
	return winner, false, nil
}

// GetByPhone returns (nil, nil) when no customer has this phone in the store.
func (s *CustomerStore) GetByPhone(ctx context.Context, storeID int64, phone string) (*customers.Customer, error) {
	return s.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE store_id = ? AND phone = ?`, storeID, phone)
}

// Get returns (nil, nil) if not found.
func (s *CustomerStore) Get(ctx context.Context, customerID string) (*customers.Customer, error) {
	return s.getOne(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, customerID)
}

func (s *CustomerStore) getOne(ctx context.Context, query string, args ...any) (*customers.Customer, error) {
	var c customers.Customer
	err := s.db.GetContext(ctx, &c, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get customer: %w", err)
	}
	return &c, nil
}
