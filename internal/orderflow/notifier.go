package orderflow

import (
	"context"

	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messaging"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

type CustomerLookup interface {
	Get(ctx context.Context, customerID string) (*customers.Customer, error)
}

// OutboundSender is the send half of a Messenger.
type OutboundSender interface {
	Send(ctx context.Context, to messaging.Recipient, text string) (string, error)
}

// Notifier tells customers about order changes made outside the chat. Failures are
// logged and never returned.
type Notifier struct {
	customers CustomerLookup
	sender    OutboundSender
	logger    *zap.Logger
}

func NewNotifier(cust CustomerLookup, sender OutboundSender, logger *zap.Logger) *Notifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Notifier{customers: cust, sender: sender, logger: logger}
}

// StatusChanged sends the message for the order's current status. trackingNumber is
// only used for shipped orders.
func (n *Notifier) StatusChanged(ctx context.Context, o *orders.Order, trackingNumber string) {
	var text string
	switch o.Status {
	case orders.StatusShipped:
		text = whatsapp.FormatShipped(o, trackingNumber)
	case orders.StatusDelivered:
		text = whatsapp.FormatDelivered(o)
	default:
		text = whatsapp.FormatOrderStatus(o)
	}
	n.notify(ctx, o, "status_changed", text)
}

// PaymentConfirmed sends the payment confirmation.
func (n *Notifier) PaymentConfirmed(ctx context.Context, o *orders.Order) {
	n.notify(ctx, o, "payment_confirmed", whatsapp.FormatPaymentConfirmation(o))
}

func (n *Notifier) notify(ctx context.Context, o *orders.Order, kind, text string) {
	if n == nil || n.sender == nil {
		return
	}
	log := n.logger.With(zap.String("notification", kind), zap.String("order_id", o.ID))

	cust, err := n.customers.Get(ctx, o.CustomerID)
	if err != nil {
		log.Warn("notification customer lookup failed", zap.Error(err))
		return
	}
	if cust == nil {
		log.Warn("notification customer not found", zap.String("customer_id", o.CustomerID))
		return
	}
	to := messaging.Recipient{StoreID: o.StoreID, CustomerID: cust.ID, Phone: cust.Phone}
	if _, err := n.sender.Send(ctx, to, text); err != nil {
		log.Warn("notification not delivered", zap.Error(err))
	}
}
