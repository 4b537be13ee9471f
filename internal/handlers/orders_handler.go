package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/validation"
)

const (
	defaultMessageLimit = 50
	maxMessageLimit     = 200
)

// RegisterOrdersRoutes registers the store-scoped order and customer routes.
func RegisterOrdersRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	logger := cfg.Logger

	r.POST("/stores/:storeId/orders", func(c *gin.Context) {
		ctx := c.Request.Context()
		storeID, ok := storeParam(c)
		if !ok {
			return
		}

		// Require idempotency key header
		idempKey := c.GetHeader("Idempotency-Key")
		if idempKey == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "missing_idempotency_key"})
			return
		}

		// Bind + validate request
		var req validation.CreateOrderRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			// BindAndValidate already wrote a 400
			return
		}

		key := idempotency.RequestKey(storeID, idempKey)
		fp := fingerprint(req)
		created, err := cfg.Idempotency.CreateIfNotExists(ctx, key, "", fp)
		if err != nil {
			logger.Error("idempotency claim failed", zap.String("idempotency_key", key), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
			return
		}
		if !created {
			replay(c, cfg, key, fp)
			return
		}

		lines := make([]orders.LineInput, 0, len(req.Items))
		for _, it := range req.Items {
			lines = append(lines, orders.LineInput{ProductID: it.ProductID, VariantID: it.VariantID, Quantity: it.Quantity})
		}
		order, err := cfg.Orders.CreateOrder(ctx, orders.CreateOrderInput{
			StoreID:    storeID,
			CustomerID: req.CustomerID,
			Items:      lines,
			Channel:    orders.ChannelAPI,
			Notes:      req.Notes,
		})
		if err != nil {
			status := apperr.HTTPStatus(err)
			if status >= http.StatusInternalServerError {
				// let the client retry with a new key
				if mErr := cfg.Idempotency.MarkFailed(ctx, key, err.Error()); mErr != nil {
					logger.Warn("mark idempotency failed", zap.String("idempotency_key", key), zap.Error(mErr))
				}
				writeError(c, logger, err)
				return
			}
			// client errors are final for this key and replay as-is
			body, _ := json.Marshal(errorBody(err))
			if mErr := cfg.Idempotency.MarkDone(ctx, key, string(body), status); mErr != nil {
				logger.Warn("mark idempotency done", zap.String("idempotency_key", key), zap.Error(mErr))
			}
			c.Data(status, "application/json; charset=utf-8", body)
			return
		}

		body, err := json.Marshal(order)
		if err != nil {
			writeError(c, logger, apperr.Internal("handlers.CreateOrder", err))
			return
		}
		if err := cfg.Idempotency.MarkDone(ctx, key, string(body), http.StatusCreated); err != nil {
			logger.Warn("mark idempotency done", zap.String("idempotency_key", key), zap.Error(err))
		}

		logger.Info("order created",
			zap.Int64("store_id", storeID),
			zap.String("order_id", order.ID),
			zap.String("order_number", order.OrderNumber),
		)
		c.Header("Location", fmt.Sprintf("/stores/%d/orders/by-number/%s", storeID, order.OrderNumber))
		c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
	})

	r.GET("/stores/:storeId/orders/by-number/:orderNumber", func(c *gin.Context) {
		storeID, ok := storeParam(c)
		if !ok {
			return
		}
		o, err := cfg.Orders.GetByNumber(c.Request.Context(), storeID, c.Param("orderNumber"))
		if err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, o)
	})

	r.PATCH("/stores/:storeId/orders/:orderId/status", func(c *gin.Context) {
		ctx := c.Request.Context()
		storeID, ok := storeParam(c)
		if !ok {
			return
		}
		var req validation.UpdateStatusRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		o, err := cfg.Orders.UpdateStatus(ctx, storeID, c.Param("orderId"), req.Status, req.Notes)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		cfg.Notifier.StatusChanged(ctx, o, req.TrackingNumber)
		c.JSON(http.StatusOK, o)
	})

	r.POST("/stores/:storeId/orders/:orderId/cancel", func(c *gin.Context) {
		ctx := c.Request.Context()
		storeID, ok := storeParam(c)
		if !ok {
			return
		}
		var req validation.CancelOrderRequest
		if c.Request.ContentLength != 0 {
			if err := validation.BindAndValidate(c, &req, v); err != nil {
				return
			}
		}
		o, err := cfg.Orders.Cancel(ctx, storeID, c.Param("orderId"), req.Reason)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		cfg.Notifier.StatusChanged(ctx, o, "")
		c.JSON(http.StatusOK, o)
	})

	if cfg.Customers == nil || cfg.Messages == nil {
		return
	}
	r.GET("/stores/:storeId/customers/:customerId/messages", func(c *gin.Context) {
		ctx := c.Request.Context()
		storeID, ok := storeParam(c)
		if !ok {
			return
		}
		limit := cfg.MessageListLimit
		if limit <= 0 {
			limit = defaultMessageLimit
		}
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 1 || n > maxMessageLimit {
				c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
				return
			}
			limit = n
		}

		cust, err := cfg.Customers.Get(ctx, c.Param("customerId"))
		if err != nil {
			writeError(c, logger, apperr.Internal("handlers.ListMessages", err))
			return
		}
		if cust == nil || cust.StoreID != storeID {
			writeError(c, logger, apperr.NotFound("handlers.ListMessages", "customer not found"))
			return
		}
		msgs, err := cfg.Messages.ListByCustomer(ctx, cust.ID, limit)
		if err != nil {
			writeError(c, logger, apperr.Internal("handlers.ListMessages", err))
			return
		}
		if msgs == nil {
			msgs = []messages.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"customer_id": cust.ID, "messages": msgs})
	})
}

// replay answers a repeated Idempotency-Key from its stored record.
func replay(c *gin.Context, cfg HandlerConfig, key, fp string) {
	rec, err := cfg.Idempotency.Get(c.Request.Context(), key)
	if err != nil {
		cfg.Logger.Error("idempotency lookup failed", zap.String("idempotency_key", key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed"})
		return
	}
	if rec == nil {
		// claim lost but the record expired in between
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_record_missing"})
		return
	}
	if rec.Fingerprint != "" && rec.Fingerprint != fp {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return
	}
	switch rec.Status {
	case idempotency.StatusDone:
		status := rec.ResponseStatus
		if status == 0 {
			status = http.StatusOK
		}
		if rec.ResponseBody == "" {
			c.JSON(status, gin.H{})
			return
		}
		c.Data(status, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	case idempotency.StatusFailed:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "previous_attempt_failed"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
}

// fingerprint hashes the decoded request so formatting differences do not count.
func fingerprint(req validation.CreateOrderRequest) string {
	b, _ := json.Marshal(req)
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
