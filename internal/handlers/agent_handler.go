package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/agent"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/validation"
)

// RegisterAgentRoutes mounts the conversational agent API.
func RegisterAgentRoutes(r *gin.Engine, cfg HandlerConfig) {
	v := validation.New()
	logger := cfg.Logger

	r.POST("/agent/chat", func(c *gin.Context) {
		var req validation.AgentChatRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		resp, err := cfg.Agent.Execute(c.Request.Context(), req.ConversationID, req.CustomerID, req.StoreID, req.Message)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		status := http.StatusOK
		if !resp.Success {
			logger.Warn("agent turn failed", zap.String("conversation_id", req.ConversationID), zap.String("msg", resp.Message))
			status = http.StatusBadRequest
		}
		c.JSON(status, resp)
	})

	r.GET("/agent/conversations/:conversationId", func(c *gin.Context) {
		id := c.Param("conversationId")
		q, ok := conversationOwner(c, v)
		if !ok {
			return
		}
		history, err := cfg.Agent.History(id, q.CustomerID, q.StoreID)
		if err != nil {
			writeError(c, logger, err)
			return
		}
		if history == nil {
			history = []agent.Message{}
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "conversationId": id, "messages": history})
	})

	r.DELETE("/agent/conversations/:conversationId", func(c *gin.Context) {
		q, ok := conversationOwner(c, v)
		if !ok {
			return
		}
		if err := cfg.Agent.Clear(c.Param("conversationId"), q.CustomerID, q.StoreID); err != nil {
			writeError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "message": "Conversation cleared"})
	})
}

// conversationOwner reads the customerId and storeId query parameters, writing a 400 when they are missing.
func conversationOwner(c *gin.Context, v *validatorv10.Validate) (validation.AgentConversationQuery, bool) {
	var q validation.AgentConversationQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_query", "msg": err.Error()})
		return q, false
	}
	if err := validation.Validate(c, &q, v); err != nil {
		return q, false
	}
	return q, true
}
