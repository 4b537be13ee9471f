package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

const orderColumns = `id, store_id, customer_id, order_number, status, total_amount, channel, notes, created_at, updated_at`

// OrderStore persists the order aggregate: the order row, its items and the status
// history. It satisfies orders.Repository.
type OrderStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
}

func NewOrderStore(db *sqlx.DB) *OrderStore {
	return &OrderStore{db: db, nowFunc: time.Now}
}

// Create writes the order, its items and the initial history row in one transaction.
// Returns orders.ErrDuplicateOrderNumber if the number is taken in the store.
func (s *OrderStore) Create(ctx context.Context, order orders.Order, initial orders.StatusChange) error {
	now := s.nowFunc().UTC()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = order.CreatedAt
	}
	if initial.CreatedAt.IsZero() {
		initial.CreatedAt = order.CreatedAt
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.NamedExecContext(ctx, `
		INSERT INTO orders (`+orderColumns+`)
		VALUES (:id, :store_id, :customer_id, :order_number, :status, :total_amount, :channel, :notes, :created_at, :updated_at)
		ON CONFLICT (store_id, order_number) DO NOTHING`, order)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	if n == 0 {
		return orders.ErrDuplicateOrderNumber
	}

	insertItem := tx.Rebind(`
		INSERT INTO order_items (order_id, line_no, product_id, variant_id, product_name, quantity, unit_price, subtotal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	for i, it := range order.Items {
		if _, err := tx.ExecContext(ctx, insertItem,
			order.ID, i, it.ProductID, it.VariantID, it.ProductName, it.Quantity, it.UnitPrice, it.Subtotal,
		); err != nil {
			return fmt.Errorf("insert order item: %w", err)
		}
	}

	if err := insertHistory(ctx, tx, initial); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit order: %w", err)
	}
	return nil
}

// Get returns the order with its items, or (nil, nil) if not found.
func (s *OrderStore) Get(ctx context.Context, orderID string) (*orders.Order, error) {
	return s.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = ?`, orderID)
}

// GetByNumber resolves an order number within a store. Returns (nil, nil) if not found.
func (s *OrderStore) GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*orders.Order, error) {
	return s.getOne(ctx, `SELECT `+orderColumns+` FROM orders WHERE store_id = ? AND order_number = ?`, storeID, orderNumber)
}

// UpdateStatus moves the order from expected to change.ToStatus and appends the
// history row in one transaction. Returns orders.ErrStatusMismatch if the order is
// not in expected.
func (s *OrderStore) UpdateStatus(ctx context.Context, orderID, expected string, change orders.StatusChange) error {
	if change.CreatedAt.IsZero() {
		change.CreatedAt = s.nowFunc().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		tx.Rebind(`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`),
		change.ToStatus, change.CreatedAt, orderID, expected,
	)
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update status: %w", err)
	}
	if n == 0 {
		return orders.ErrStatusMismatch
	}

	if err := insertHistory(ctx, tx, change); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit status: %w", err)
	}
	return nil
}

// History returns the status changes of an order, oldest first.
func (s *OrderStore) History(ctx context.Context, orderID string) ([]orders.StatusChange, error) {
	var out []orders.StatusChange
	err := s.db.SelectContext(ctx, &out, s.db.Rebind(`
		SELECT id, order_id, from_status, to_status, notes, created_at
		FROM order_status_history WHERE order_id = ? ORDER BY created_at, id`), orderID)
	if err != nil {
		return nil, fmt.Errorf("list status history: %w", err)
	}
	return out, nil
}

func (s *OrderStore) getOne(ctx context.Context, query string, args ...any) (*orders.Order, error) {
	var o orders.Order
	err := s.db.GetContext(ctx, &o, s.db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get order: %w", err)
	}
	err = s.db.SelectContext(ctx, &o.Items, s.db.Rebind(`
		SELECT product_id, variant_id, product_name, quantity, unit_price, subtotal
		FROM order_items WHERE order_id = ? ORDER BY line_no`), o.ID)
	if err != nil {
		return nil, fmt.Errorf("get order items: %w", err)
	}
	return &o, nil
}

func insertHistory(ctx context.Context, tx *sqlx.Tx, change orders.StatusChange) error {
	_, err := tx.NamedExecContext(ctx, `
		INSERT INTO order_status_history (id, order_id, from_status, to_status, notes, created_at)
		VALUES (:id, :order_id, :from_status, :to_status, :notes, :created_at)`, change)
	if err != nil {
		return fmt.Errorf("insert status history: %w", err)
	}
	return nil
}
