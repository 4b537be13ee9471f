package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
)

// MessageStore is the append-only message log.
type MessageStore struct {
	db      *sqlx.DB
	nowFunc func() time.Time
	newID   func() string
}

func NewMessageStore(db *sqlx.DB) *MessageStore {
	return &MessageStore{db: db, nowFunc: time.Now, newID: uuid.NewString}
}

// Append inserts m, filling in a missing id and timestamp.
func (s *MessageStore) Append(ctx context.Context, m messages.Message) (*messages.Message, error) {
	if m.ID == "" {
		m.ID = s.newID()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = s.nowFunc().UTC()
	}
	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO customer_messages (id, store_id, customer_id, channel, direction, message_type, content, metadata, created_at)
		VALUES (:id, :store_id, :customer_id, :channel, :direction, :message_type, :content, :metadata, :created_at)`, m)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &m, nil
}

// ListByCustomer returns the latest limit messages of a customer, oldest first.
// A limit <= 0 returns the whole log.
func (s *MessageStore) ListByCustomer(ctx context.Context, customerID string, limit int) ([]messages.Message, error) {
	query := `SELECT id, store_id, customer_id, channel, direction, message_type, content, metadata, created_at
		FROM customer_messages WHERE customer_id = ? ORDER BY created_at DESC, id DESC`
	args := []any{customerID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	var out []messages.Message
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}
