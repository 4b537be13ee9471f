package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/events"
)

// numberRetries is how many times a colliding order number is regenerated.
const numberRetries = 3

// Repository persists order aggregates.
type Repository interface {
	Create(ctx context.Context, order Order, initial StatusChange) error
	Get(ctx context.Context, orderID string) (*Order, error)
	GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*Order, error)
	UpdateStatus(ctx context.Context, orderID, expected string, change StatusChange) error
}

// CatalogReader resolves stores and products.
type CatalogReader interface {
	GetStore(ctx context.Context, storeID int64) (*catalog.Store, error)
	GetProduct(ctx context.Context, productID int64) (*catalog.Product, error)
}

// CustomerReader resolves customers.
type CustomerReader interface {
	Get(ctx context.Context, customerID string) (*customers.Customer, error)
}

// LineInput is one requested order line.
type LineInput struct {
	ProductID int64
	VariantID *int64
	Quantity  int
}

// CreateOrderInput describes a new order.
type CreateOrderInput struct {
	StoreID    int64
	CustomerID string
	Items      []LineInput
	Channel    string
	Notes      string
}

// Service is the order pipeline: it prices lines from the catalog, persists the
// aggregate and drives status transitions.
//
// Stock is neither checked nor reserved when an order is created.
type Service struct {
	repo      Repository
	catalog   CatalogReader
	customers CustomerReader
	events    events.Publisher
	logger    *zap.Logger
	nowFunc   func() time.Time
	newID     func() string
}

// NewService wires the pipeline. A nil publisher disables events.
func NewService(repo Repository, cat CatalogReader, cust CustomerReader, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:      repo,
		catalog:   cat,
		customers: cust,
		events:    publisher,
		logger:    logger,
		nowFunc:   time.Now,
		newID:     uuid.NewString,
	}
}

// CreateSingleItemOrder creates a one-line WhatsApp order.
func (s *Service) CreateSingleItemOrder(ctx context.Context, storeID int64, customerID string, productID int64, quantity int) (*Order, error) {
	return s.CreateOrder(ctx, CreateOrderInput{
		StoreID:    storeID,
		CustomerID: customerID,
		Items:      []LineInput{{ProductID: productID, Quantity: quantity}},
		Channel:    ChannelWhatsApp,
	})
}

// CreateOrder validates and prices the lines, then persists the order, its items and
// the initial history entry together. Store, customer and products must all belong to
// in.StoreID; anything else is reported as not found.
func (s *Service) CreateOrder(ctx context.Context, in CreateOrderInput) (*Order, error) {
	const op = "orders.CreateOrder"

	if len(in.Items) == 0 {
		return nil, apperr.Validation(op, "order must contain at least one item")
	}
	for _, it := range in.Items {
		if it.Quantity < 1 {
			return nil, apperr.Validation(op, "quantity must be at least 1")
		}
	}

	store, err := s.catalog.GetStore(ctx, in.StoreID)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if store == nil {
		return nil, apperr.NotFound(op, "store not found")
	}

	customer, err := s.customers.Get(ctx, in.CustomerID)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if customer == nil || customer.StoreID != in.StoreID {
		return nil, apperr.NotFound(op, "customer not found")
	}

	items := make([]Item, 0, len(in.Items))
	total := decimal.Zero
	for _, line := range in.Items {
		product, err := s.catalog.GetProduct(ctx, line.ProductID)
		if err != nil {
			return nil, apperr.Internal(op, err)
		}
		if product == nil || product.StoreID != in.StoreID || !product.IsActive {
			return nil, apperr.NotFound(op, fmt.Sprintf("product %d not found", line.ProductID))
		}
		price, err := product.PriceDecimal()
		if err != nil {
			return nil, apperr.Internal(op, fmt.Errorf("product %d has invalid price %q: %w", product.ID, product.Price, err))
		}
		subtotal := price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		total = total.Add(subtotal)
		items = append(items, Item{
			ProductID:   product.ID,
			VariantID:   line.VariantID,
			ProductName: product.Name,
			Quantity:    line.Quantity,
			UnitPrice:   product.Price,
			Subtotal:    subtotal.String(),
		})
	}

	channel := in.Channel
	if channel == "" {
		channel = ChannelAPI
	}
	now := s.nowFunc().UTC()
	order := Order{
		ID:          s.newID(),
		StoreID:     in.StoreID,
		CustomerID:  in.CustomerID,
		Status:      StatusPending,
		TotalAmount: total.String(),
		Channel:     channel,
		Notes:       in.Notes,
		Items:       items,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	initial := StatusChange{
		ID:        s.newID(),
		OrderID:   order.ID,
		ToStatus:  StatusPending,
		Notes:     "Order created",
		CreatedAt: now,
	}

	for attempt := 0; ; attempt++ {
		order.OrderNumber = s.orderNumber(in.StoreID, now)
		err = s.repo.Create(ctx, order, initial)
		if err == nil {
			break
		}
		if !errors.Is(err, ErrDuplicateOrderNumber) || attempt == numberRetries {
			return nil, apperr.Internal(op, err)
		}
		s.logger.Warn("order number collision, regenerating",
			zap.String("order_number", order.OrderNumber), zap.Int("attempt", attempt+1))
	}

	s.logger.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.Int64("store_id", order.StoreID),
		zap.String("total_amount", order.TotalAmount),
		zap.String("channel", order.Channel),
	)
	s.publish(ctx, order.ID, events.OrderCreated, createdPayload(order))
	return &order, nil
}

// Get returns an order of the store. Orders of other stores are reported as not found.
func (s *Service) Get(ctx context.Context, storeID int64, orderID string) (*Order, error) {
	const op = "orders.Get"
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if o == nil || o.StoreID != storeID {
		return nil, apperr.NotFound(op, "order not found")
	}
	return o, nil
}

// GetByNumber resolves an order number within a store.
func (s *Service) GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*Order, error) {
	const op = "orders.GetByNumber"
	o, err := s.repo.GetByNumber(ctx, storeID, strings.TrimSpace(orderNumber))
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if o == nil || o.StoreID != storeID {
		return nil, apperr.NotFound(op, "order not found")
	}
	return o, nil
}

// UpdateStatus moves an order to next and records the transition. Orders that are
// cancelled, delivered or refunded no longer move.
func (s *Service) UpdateStatus(ctx context.Context, storeID int64, orderID, next, notes string) (*Order, error) {
	const op = "orders.UpdateStatus"

	if !ValidStatus(next) {
		return nil, apperr.Validation(op, fmt.Sprintf("invalid status %q", next))
	}
	o, err := s.repo.Get(ctx, orderID)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	if o == nil {
		return nil, apperr.NotFound(op, "order not found")
	}
	if o.StoreID != storeID {
		return nil, apperr.Forbidden(op, "order belongs to another store")
	}
	if o.Status == next {
		return nil, apperr.Conflict(op, fmt.Sprintf("order is already %s", next))
	}
	if IsFinal(o.Status) {
		return nil, apperr.Conflict(op, fmt.Sprintf("order is %s and can no longer change", o.Status))
	}

	now := s.nowFunc().UTC()
	change := StatusChange{
		ID:         s.newID(),
		OrderID:    o.ID,
		FromStatus: o.Status,
		ToStatus:   next,
		Notes:      notes,
		CreatedAt:  now,
	}
	if err := s.repo.UpdateStatus(ctx, o.ID, o.Status, change); err != nil {
		if errors.Is(err, ErrStatusMismatch) {
			return nil, apperr.Conflict(op, "order status changed concurrently")
		}
		return nil, apperr.Internal(op, err)
	}

	s.logger.Info("order status updated",
		zap.String("order_id", o.ID),
		zap.String("from", o.Status),
		zap.String("to", next),
	)
	s.publish(ctx, o.ID, events.OrderStatusChanged, statusPayload{
		ID:         o.ID,
		StoreID:    o.StoreID,
		FromStatus: o.Status,
		ToStatus:   next,
	})

	o.Status = next
	o.UpdatedAt = now
	return o, nil
}

// Cancel cancels an order unless it is already cancelled or delivered.
func (s *Service) Cancel(ctx context.Context, storeID int64, orderID, reason string) (*Order, error) {
	const op = "orders.Cancel"
	o, err := s.Get(ctx, storeID, orderID)
	if err != nil {
		return nil, err
	}
	if o.Status == StatusCancelled || o.Status == StatusDelivered {
		return nil, apperr.Conflict(op, fmt.Sprintf("cannot cancel order with status %s", o.Status))
	}
	if reason == "" {
		reason = "Order cancelled"
	}
	return s.UpdateStatus(ctx, storeID, orderID, StatusCancelled, reason)
}

// orderNumber renders ORD-{store}-{last 6 digits of epoch millis}-{6 random chars}.
func (s *Service) orderNumber(storeID int64, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(s.newID(), "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("ORD-%d-%06d-%s", storeID, now.UnixMilli()%1_000_000, suffix)
}

func (s *Service) publish(ctx context.Context, key, eventType string, payload any) {
	if err := s.events.Publish(ctx, key, events.New(eventType, payload)); err != nil {
		s.logger.Warn("publish order event failed",
			zap.String("event_type", eventType), zap.String("order_id", key), zap.Error(err))
	}
}

type itemPayload struct {
	ProductID int64  `json:"product_id"`
	VariantID *int64 `json:"variant_id"`
	Quantity  int    `json:"quantity"`
}

type orderPayload struct {
	ID          string        `json:"id"`
	StoreID     int64         `json:"store_id"`
	OrderNumber string        `json:"order_number"`
	TotalAmount string        `json:"total_amount"`
	Items       []itemPayload `json:"items"`
}

type statusPayload struct {
	ID         string `json:"id"`
	StoreID    int64  `json:"store_id"`
	FromStatus string `json:"from_status"`
	ToStatus   string `json:"to_status"`
}

func createdPayload(o Order) orderPayload {
	p := orderPayload{ID: o.ID, StoreID: o.StoreID, OrderNumber: o.OrderNumber, TotalAmount: o.TotalAmount}
	for _, it := range o.Items {
		p.Items = append(p.Items, itemPayload{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
	}
	return p
}
