package handlers

import (
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/payment"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/validation"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

// maxWebhookBody caps how much of a webhook request is read.
const maxWebhookBody = 1 << 20

// RegisterWebhookRoutes mounts the WhatsApp and Midtrans webhooks.
func RegisterWebhookRoutes(r *gin.Engine, cfg HandlerConfig) {
	logger := cfg.Logger
	now := time.Now

	r.GET("/webhooks/whatsapp", func(c *gin.Context) {
		if cfg.VerifyToken == "" ||
			c.Query("hub.mode") != "subscribe" ||
			c.Query("hub.verify_token") != cfg.VerifyToken {
			c.JSON(http.StatusForbidden, gin.H{"error": "verification_failed"})
			return
		}
		c.String(http.StatusOK, c.Query("hub.challenge"))
	})

	r.POST("/webhooks/whatsapp", func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body"})
			return
		}
		if !whatsapp.VerifySignature(cfg.AppSecret, body, c.GetHeader(whatsapp.SignatureHeader)) {
			logger.Warn("whatsapp webhook signature mismatch", zap.String("client_ip", c.ClientIP()))
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
			return
		}

		payload, err := whatsapp.ParsePayload(body)
		if err != nil {
			logger.Warn("unparseable whatsapp webhook", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		msg, ok := whatsapp.ExtractMessage(payload)
		if !ok {
			// statuses, reactions and other non-message events
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		if cfg.Stores == nil || cfg.Dispatcher == nil {
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		storeID, ok := cfg.Stores.Resolve(msg.PhoneNumberID)
		if !ok {
			logger.Warn("no store for whatsapp number", zap.String("phone_number_id", msg.PhoneNumberID))
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}

		job := orderflow.Job{StoreID: storeID, Message: *msg, ReceivedAt: now().UTC()}
		if err := cfg.Dispatcher.Dispatch(c.Request.Context(), job); err != nil {
			logger.Error("dispatch inbound message",
				zap.String("message_id", msg.ID),
				zap.Int64("store_id", storeID),
				zap.Error(err),
			)
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	})

	if cfg.Orders == nil {
		return
	}
	v := validation.New()

	r.POST("/webhooks/midtrans", func(c *gin.Context) {
		ctx := c.Request.Context()
		var n payment.Notification
		if err := validation.BindAndValidate(c, &n, v); err != nil {
			return
		}
		if cfg.PaymentServerKey == "" || !payment.VerifyNotification(cfg.PaymentServerKey, n) {
			logger.Warn("midtrans notification signature mismatch", zap.String("order_number", n.OrderID))
			c.JSON(http.StatusForbidden, gin.H{"error": "invalid_signature"})
			return
		}

		outcome := n.Outcome()
		log := logger.With(
			zap.String("order_number", n.OrderID),
			zap.String("transaction_status", n.TransactionStatus),
			zap.String("outcome", string(outcome)),
		)
		if outcome != payment.OutcomePaid {
			log.Info("midtrans notification ignored")
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		storeID, ok := orders.StoreIDFromNumber(n.OrderID)
		if !ok {
			log.Warn("midtrans notification for unknown order number")
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		o, err := cfg.Orders.GetByNumber(ctx, storeID, n.OrderID)
		if err != nil {
			log.Warn("midtrans notification order lookup", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		if o.Status != orders.StatusPending {
			// repeated notification
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		note := "Payment received via Midtrans"
		if n.TransactionID != "" {
			note += " (" + n.TransactionID + ")"
		}
		updated, err := cfg.Orders.UpdateStatus(ctx, storeID, o.ID, orders.StatusConfirmed, note)
		if err != nil {
			if apperr.Is(err, apperr.KindConflict) {
				c.JSON(http.StatusOK, gin.H{"success": true})
				return
			}
			log.Error("confirm paid order", zap.Error(err))
			c.JSON(http.StatusOK, gin.H{"success": false})
			return
		}
		log.Info("order paid", zap.String("order_id", updated.ID))
		cfg.Notifier.PaymentConfirmed(ctx, updated)
		c.JSON(http.StatusOK, gin.H{"success": true})
	})
}
