// Package orderflow runs the WhatsApp conversation: one inbound customer message in,
// one reply out. Webhook delivery only enqueues a Job; Process does the work.
package orderflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/intent"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messaging"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/payment"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

// errOrderCreated marks failures that happen after the order was stored, so the
// customer is not told the order failed.
var errOrderCreated = errors.New("order created")

// Job is one inbound customer message routed to a store.
type Job struct {
	StoreID    int64                   `json:"store_id"`
	Message    whatsapp.InboundMessage `json:"message"`
	ReceivedAt time.Time               `json:"received_at"`
}

// Outcome is how a job ended.
type Outcome string

const (
	OutcomeResponded  Outcome = "responded"
	OutcomeSuppressed Outcome = "suppressed"
	OutcomeFailed     Outcome = "failed"
)

// Deduper claims inbound message ids so redelivered webhooks are processed once.
type Deduper interface {
	CreateIfNotExists(ctx context.Context, key, resourceID, fingerprint string) (bool, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

type CustomerResolver interface {
	GetOrCreate(ctx context.Context, storeID int64, phone, name string) (*customers.Customer, bool, error)
}

type MenuSource interface {
	ListActiveProducts(ctx context.Context, storeID int64, limit int) ([]catalog.Product, error)
}

type OrderPipeline interface {
	CreateSingleItemOrder(ctx context.Context, storeID int64, customerID string, productID int64, quantity int) (*orders.Order, error)
	GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*orders.Order, error)
}

type PaymentLinks interface {
	CreatePaymentLink(ctx context.Context, in payment.LinkRequest) (*payment.Link, error)
}

// Messenger sends customer messages and logs inbound ones.
type Messenger interface {
	Send(ctx context.Context, to messaging.Recipient, text string) (string, error)
	LogInbound(ctx context.Context, from messaging.Recipient, content, msgType string, meta messages.Metadata)
}

// Deps are the collaborators of an Orchestrator. Dedup, Payments and Metrics may be nil.
type Deps struct {
	Dedup         Deduper
	Customers     CustomerResolver
	Catalog       MenuSource
	Orders        OrderPipeline
	Payments      PaymentLinks
	Messenger     Messenger
	Metrics       *aws.Metrics
	PaymentMethod string
}

// Orchestrator is the catch boundary of the WhatsApp flow. Branch failures become an
// apology to the customer and never reach the webhook caller.
type Orchestrator struct {
	dedup         Deduper
	customers     CustomerResolver
	catalog       MenuSource
	orders        OrderPipeline
	payments      PaymentLinks
	messenger     Messenger
	metrics       *aws.Metrics
	paymentMethod string
	logger        *zap.Logger
}

func NewOrchestrator(d Deps, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.PaymentMethod == "" {
		d.PaymentMethod = payment.MethodQRIS
	}
	return &Orchestrator{
		dedup:         d.Dedup,
		customers:     d.Customers,
		catalog:       d.Catalog,
		orders:        d.Orders,
		payments:      d.Payments,
		messenger:     d.Messenger,
		metrics:       d.Metrics,
		paymentMethod: d.PaymentMethod,
		logger:        logger,
	}
}

// Process handles one job. A returned error means the job could not be claimed and
// should be redelivered; every later failure is answered with an apology and
// reported as OutcomeFailed with a nil error.
func (o *Orchestrator) Process(ctx context.Context, job Job) (Outcome, error) {
	msg := job.Message
	log := o.logger.With(
		zap.Int64("store_id", job.StoreID),
		zap.String("message_id", msg.ID))

	if msg.ID == "" || msg.From == "" {
		log.Warn("job without message, suppressed")
		return OutcomeSuppressed, nil
	}

	key := idempotency.MessageKey(msg.ID)
	if o.dedup != nil {
		created, err := o.dedup.CreateIfNotExists(ctx, key, "", "")
		if err != nil {
			return OutcomeFailed, fmt.Errorf("claim message %s: %w", msg.ID, err)
		}
		if !created {
			log.Info("duplicate delivery, suppressed")
			return OutcomeSuppressed, nil
		}
	}
	o.metrics.Incr(ctx, "InboundMessages", nil)

	rcpt := messaging.Recipient{StoreID: job.StoreID, Phone: msg.From}

	name := msg.ProfileName
	if name == "" {
		name = customers.DefaultName(msg.From)
	}
	cust, created, err := o.customers.GetOrCreate(ctx, job.StoreID, msg.From, name)
	if err != nil {
		return o.fail(ctx, log, key, rcpt, whatsapp.MsgApology, fmt.Errorf("resolve customer: %w", err)), nil
	}
	if created {
		log.Info("customer created", zap.String("customer_id", cust.ID))
	}
	rcpt.CustomerID = cust.ID

	o.messenger.LogInbound(ctx, rcpt, msg.Text, msg.Type, messages.Metadata{
		"message_id": msg.ID,
		"timestamp":  strconv.FormatInt(msg.Timestamp, 10),
	})

	in := intent.Classify(msg.Text)
	o.metrics.Incr(ctx, "Intent", map[string]string{"Intent": string(in.Kind)})
	log = log.With(zap.String("intent", string(in.Kind)), zap.String("customer_id", cust.ID))

	if err := o.route(ctx, log, job.StoreID, rcpt, cust, in); err != nil {
		apology := whatsapp.MsgApology
		if in.Kind == intent.Order && !errors.Is(err, errOrderCreated) {
			apology = whatsapp.MsgOrderApology
		}
		return o.fail(ctx, log, key, rcpt, apology, err), nil
	}

	o.markDone(ctx, log, key, in.Kind)
	return OutcomeResponded, nil
}

func (o *Orchestrator) route(ctx context.Context, log *zap.Logger, storeID int64, rcpt messaging.Recipient, cust *customers.Customer, in intent.Intent) error {
	switch in.Kind {
	case intent.Menu:
		return o.handleMenu(ctx, storeID, rcpt)
	case intent.Order:
		return o.handleOrder(ctx, log, storeID, rcpt, cust, in.Order)
	case intent.Status:
		return o.handleStatus(ctx, storeID, rcpt, in.OrderRef)
	default:
		// Payment questions get the help text as well.
		return o.send(ctx, rcpt, whatsapp.MsgHelp)
	}
}

func (o *Orchestrator) handleMenu(ctx context.Context, storeID int64, rcpt messaging.Recipient) error {
	products, err := o.catalog.ListActiveProducts(ctx, storeID, catalog.MenuLimit)
	if err != nil {
		return fmt.Errorf("list products: %w", err)
	}
	return o.send(ctx, rcpt, whatsapp.FormatMenu(products))
}

func (o *Orchestrator) handleOrder(ctx context.Context, log *zap.Logger, storeID int64, rcpt messaging.Recipient, cust *customers.Customer, details *intent.OrderDetails) error {
	if details == nil || details.ProductID == 0 {
		return o.send(ctx, rcpt, whatsapp.MsgInvalidOrderFormat)
	}

	order, err := o.orders.CreateSingleItemOrder(ctx, storeID, cust.ID, details.ProductID, details.Quantity)
	switch {
	case apperr.Is(err, apperr.KindNotFound), apperr.Is(err, apperr.KindValidation):
		log.Info("order rejected", zap.Int64("product_id", details.ProductID), zap.Error(err))
		return o.send(ctx, rcpt, whatsapp.MsgInvalidOrderFormat)
	case err != nil:
		return fmt.Errorf("create order: %w", err)
	}
	o.metrics.Incr(ctx, "OrdersCreated", nil)
	log.Info("order created",
		zap.String("order_id", order.ID),
		zap.String("order_number", order.OrderNumber),
		zap.String("total_amount", order.TotalAmount))

	var text string
	link, err := o.paymentLink(ctx, cust, order)
	if err != nil {
		o.metrics.Incr(ctx, "PaymentLinkFailures", nil)
		log.Warn("payment link unavailable", zap.String("order_id", order.ID), zap.Error(err))
		text = whatsapp.FormatOrderConfirmationWithoutLink(order)
	} else {
		text = whatsapp.FormatOrderConfirmation(order, link.URL())
	}
	if err := o.send(ctx, rcpt, text); err != nil {
		return fmt.Errorf("%w: order %s: %w", errOrderCreated, order.OrderNumber, err)
	}
	return nil
}

func (o *Orchestrator) paymentLink(ctx context.Context, cust *customers.Customer, order *orders.Order) (*payment.Link, error) {
	if o.payments == nil {
		return nil, fmt.Errorf("payment links not configured")
	}
	email := cust.Email
	if email == "" {
		email = cust.Phone + "@whatsapp.local"
	}
	return o.payments.CreatePaymentLink(ctx, payment.LinkRequest{
		OrderID:       order.ID,
		StoreID:       order.StoreID,
		OrderNumber:   order.OrderNumber,
		Amount:        order.TotalAmount,
		Method:        o.paymentMethod,
		CustomerEmail: email,
		CustomerPhone: cust.Phone,
		CustomerName:  cust.Name,
	})
}

func (o *Orchestrator) handleStatus(ctx context.Context, storeID int64, rcpt messaging.Recipient, ref string) error {
	if ref == "" {
		return o.send(ctx, rcpt, whatsapp.MsgMissingOrderNumber)
	}
	order, err := o.orders.GetByNumber(ctx, storeID, ref)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		return o.send(ctx, rcpt, whatsapp.FormatOrderNotFound(ref))
	case err != nil:
		return fmt.Errorf("get order %s: %w", ref, err)
	}
	return o.send(ctx, rcpt, whatsapp.FormatOrderStatus(order))
}

func (o *Orchestrator) send(ctx context.Context, rcpt messaging.Recipient, text string) error {
	if _, err := o.messenger.Send(ctx, rcpt, text); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}

func (o *Orchestrator) fail(ctx context.Context, log *zap.Logger, key string, rcpt messaging.Recipient, apology string, cause error) Outcome {
	o.metrics.Incr(ctx, "ProcessingFailures", nil)
	log.Error("processing whatsapp message failed", zap.Error(cause))

	if _, err := o.messenger.Send(ctx, rcpt, apology); err != nil {
		log.Warn("apology not delivered", zap.Error(err))
	}
	if o.dedup != nil {
		if err := o.dedup.MarkFailed(ctx, key, cause.Error()); err != nil {
			log.Warn("mark message failed", zap.Error(err))
		}
	}
	return OutcomeFailed
}

func (o *Orchestrator) markDone(ctx context.Context, log *zap.Logger, key string, kind intent.Kind) {
	if o.dedup == nil {
		return
	}
	body, _ := json.Marshal(map[string]string{"intent": string(kind)})
	if err := o.dedup.MarkDone(ctx, key, string(body), 200); err != nil {
		log.Warn("mark message done", zap.Error(err))
	}
}
