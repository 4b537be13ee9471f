package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
)

const productColumns = `id, store_id, name, description, sku, price, is_active, created_at, updated_at`

// CatalogStore reads and writes stores and products.
type CatalogStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
}

func NewCatalogStore(db *sqlx.DB) *CatalogStore {
	return &CatalogStore{db: db, nowFunc: time.Now}
}

// GetStore returns (nil, nil) when the store does not exist.
func (s *CatalogStore) GetStore(ctx context.Context, storeID int64) (*catalog.Store, error) {
	var st catalog.Store
	err := s.db.GetContext(ctx, &st, s.db.Rebind(`SELECT id, owner_user_id, name, created_at FROM stores WHERE id = ?`), storeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get store: %w", err)
	}
	return &st, nil
}

// PutStore creates or replaces a store.
func (s *CatalogStore) PutStore(ctx context.Context, st catalog.Store) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = s.nowFunc().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO stores (id, owner_user_id, name, created_at)
		VALUES (:id, :owner_user_id, :name, :created_at)
		ON CONFLICT (id) DO UPDATE SET owner_user_id = excluded.owner_user_id, name = excluded.name`, st)
	if err != nil {
		return fmt.Errorf("put store: %w", err)
	}
	return nil
}

// GetProduct returns (nil, nil) when the product does not exist. Callers check StoreID.
func (s *CatalogStore) GetProduct(ctx context.Context, productID int64) (*catalog.Product, error) {
	var p catalog.Product
	err := s.db.GetContext(ctx, &p, s.db.Rebind(`SELECT `+productColumns+` FROM products WHERE id = ?`), productID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return &p, nil
}

// PutProduct creates or replaces a product.
func (s *CatalogStore) PutProduct(ctx context.Context, p catalog.Product) error {
	now := s.nowFunc().UTC()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (:id, :store_id, :name, :description, :sku, :price, :is_active, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			store_id = excluded.store_id,
			name = excluded.name,
			description = excluded.description,
			sku = excluded.sku,
			price = excluded.price,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at`, p)
	if err != nil {
		return fmt.Errorf("put product: %w", err)
	}
	return nil
}

// ListActiveProducts returns up to limit active products of a store ordered by id.
// A limit <= 0 returns all of them.
func (s *CatalogStore) ListActiveProducts(ctx context.Context, storeID int64, limit int) ([]catalog.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE store_id = ? AND is_active = ? ORDER BY id`
	args := []any{storeID, true}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []catalog.Product
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}
