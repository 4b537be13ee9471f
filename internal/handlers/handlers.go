package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/agent"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
)

// OrderService is the order pipeline as seen by the HTTP surface.
type OrderService interface {
	CreateOrder(ctx context.Context, in orders.CreateOrderInput) (*orders.Order, error)
	GetByNumber(ctx context.Context, storeID int64, orderNumber string) (*orders.Order, error)
	UpdateStatus(ctx context.Context, storeID int64, orderID, next, notes string) (*orders.Order, error)
	Cancel(ctx context.Context, storeID int64, orderID, reason string) (*orders.Order, error)
}

// IdempotencyStore guards POST requests carrying an Idempotency-Key.
type IdempotencyStore interface {
	CreateIfNotExists(ctx context.Context, key, resourceID, fingerprint string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.Record, error)
	MarkDone(ctx context.Context, key, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

type CustomerReader interface {
	Get(ctx context.Context, customerID string) (*customers.Customer, error)
}

type MessageReader interface {
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]messages.Message, error)
}

// Notifier tells customers about order changes. Implementations are best effort.
type Notifier interface {
	StatusChanged(ctx context.Context, o *orders.Order, trackingNumber string)
	PaymentConfirmed(ctx context.Context, o *orders.Order)
}

// StoreResolver maps a WhatsApp phone_number_id to a store.
type StoreResolver interface {
	Resolve(phoneNumberID string) (int64, bool)
}

// AgentRunner is the conversational agent.
type AgentRunner interface {
	Execute(ctx context.Context, conversationID, customerID string, storeID int64, message string) (*agent.Response, error)
	History(conversationID, customerID string, storeID int64) ([]agent.Message, error)
	Clear(conversationID, customerID string, storeID int64) error
}

// HandlerConfig groups dependencies for the HTTP surface. Nil optional
// dependencies disable their routes.
type HandlerConfig struct {
	Orders      OrderService
	Idempotency IdempotencyStore
	Customers   CustomerReader
	Messages    MessageReader
	Notifier    Notifier

	Dispatcher       orderflow.Dispatcher
	Stores           StoreResolver
	AppSecret        string
	VerifyToken      string
	PaymentServerKey string
	MessageListLimit int
	Agent            AgentRunner
	Logger           *zap.Logger
}

// Register mounts every route group on r.
func Register(r *gin.Engine, cfg HandlerConfig) {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Notifier == nil {
		cfg.Notifier = nopNotifier{}
	}

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	RegisterWebhookRoutes(r, cfg)
	if cfg.Orders != nil {
		RegisterOrdersRoutes(r, cfg)
	}
	if cfg.Agent != nil {
		RegisterAgentRoutes(r, cfg)
	}
}

// writeError maps err to a status code. Internal details are logged, not returned.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status := apperr.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}
	c.JSON(status, errorBody(err))
}

func errorBody(err error) gin.H {
	return gin.H{"error": string(apperr.KindOf(err)), "msg": apperr.Message(err)}
}

func storeParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("storeId"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_store_id"})
		return 0, false
	}
	return id, true
}

type nopNotifier struct{}

func (nopNotifier) StatusChanged(context.Context, *orders.Order, string) {}
func (nopNotifier) PaymentConfirmed(context.Context, *orders.Order)      {}
