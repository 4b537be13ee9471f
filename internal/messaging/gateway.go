// Package messaging sends customer messages and records each one in the message log.
package messaging

import (
	"context"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
	"go.uber.org/zap"
)

// Sender delivers a text to a phone number and returns the provider message id.
type Sender interface {
	Send(ctx context.Context, to, text string) (string, error)
}

// MessageLog appends rows to the customer message log.
type MessageLog interface {
	Append(ctx context.Context, m messages.Message) (*messages.Message, error)
}

// Recipient identifies who a message is for.
type Recipient struct {
	StoreID    int64
	CustomerID string
	Phone      string
}

// Gateway pairs every send with a log row. Logging never fails a send.
type Gateway struct {
	sender  Sender
	log     MessageLog
	metrics *aws.Metrics
	logger  *zap.Logger
}

func NewGateway(sender Sender, log MessageLog, metrics *aws.Metrics, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{sender: sender, log: log, metrics: metrics, logger: logger}
}

// Send delivers text and logs it as an outbound message, whether or not the
// provider accepted it. The send error, if any, is returned.
func (g *Gateway) Send(ctx context.Context, to Recipient, text string) (string, error) {
	id, err := g.sender.Send(ctx, to.Phone, text)

	meta := messages.Metadata{}
	if err != nil {
		meta["error"] = err.Error()
		g.metrics.Incr(ctx, "SendFailures", nil)
		g.logger.Warn("whatsapp send failed",
			zap.Int64("store_id", to.StoreID),
			zap.String("customer_id", to.CustomerID),
			zap.Error(err))
	} else {
		meta["provider_message_id"] = id
	}

	g.append(ctx, messages.Message{
		StoreID:    to.StoreID,
		CustomerID: to.CustomerID,
		Channel:    messages.ChannelWhatsApp,
		Direction:  messages.DirectionOutbound,
		Type:       messages.TypeText,
		Content:    text,
		Metadata:   meta,
	})
	return id, err
}

// LogInbound records a customer message. Best effort.
func (g *Gateway) LogInbound(ctx context.Context, from Recipient, content, msgType string, meta messages.Metadata) {
	if msgType == "" {
		msgType = messages.TypeText
	}
	g.append(ctx, messages.Message{
		StoreID:    from.StoreID,
		CustomerID: from.CustomerID,
		Channel:    messages.ChannelWhatsApp,
		Direction:  messages.DirectionInbound,
		Type:       msgType,
		Content:    content,
		Metadata:   meta,
	})
}

func (g *Gateway) append(ctx context.Context, m messages.Message) {
	if g.log == nil {
		return
	}
	if _, err := g.log.Append(ctx, m); err != nil {
		g.logger.Warn("append customer message failed",
			zap.String("direction", m.Direction),
			zap.String("customer_id", m.CustomerID),
			zap.Error(err))
	}
}
