package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
)

// DefaultSystemPrompt frames the assistant for store customers.
const DefaultSystemPrompt = `You are a helpful AI assistant for an e-commerce store. You help customers:
- Browse products and get information
- Create orders
- Check order status
- Answer questions about products and services

Always be polite, professional, and try to help customers complete their purchases.
When customers want to buy something, ask clarifying questions before creating orders.`

const (
	DefaultMaxIterations = 5
	DefaultHistorySize   = 10

	toolCallMarker = "TOOL_CALL:"
)

// Options tune the agent loop.
type Options struct {
	SystemPrompt  string
	Tools         []Tool
	MaxIterations int
	// HistorySize caps how many recent messages are sent to the model.
	HistorySize int
}

// Response is the outcome of one Execute call.
type Response struct {
	Success   bool           `json:"success"`
	Message   string         `json:"message"`
	ToolCalls []ToolCall     `json:"toolCalls,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Agent runs a think/act/observe loop over a language model and the toolbox.
type Agent struct {
	model  LanguageModel
	memory *MemoryStore
	tools  *Toolbox
	opts   Options
	logger *zap.Logger
	newID  func() string
}

func New(model LanguageModel, memory *MemoryStore, tools *Toolbox, opts Options, logger *zap.Logger) *Agent {
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = DefaultSystemPrompt
	}
	if opts.Tools == nil {
		opts.Tools = DefaultTools
	}
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultHistorySize
	}
	if memory == nil {
		memory = NewMemoryStore(DefaultIdle, nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Agent{
		model:  model,
		memory: memory,
		tools:  tools,
		opts:   opts,
		logger: logger,
		newID:  uuid.NewString,
	}
}

// Execute appends message to the conversation and loops until the model answers
// without requesting tools or MaxIterations rounds have run. Model failures are
// reported in the response, not as an error.
func (a *Agent) Execute(ctx context.Context, conversationID, customerID string, storeID int64, message string) (*Response, error) {
	const op = "agent.Execute"
	if conversationID == "" || customerID == "" || storeID <= 0 || strings.TrimSpace(message) == "" {
		return nil, apperr.Validation(op, "conversationId, customerId, storeId and message are required")
	}

	conv, err := a.memory.GetOrCreate(conversationID, customerID, storeID)
	if err != nil {
		return nil, ownerError(op, err)
	}
	conv.Messages = append(conv.Messages, Message{Role: "user", Content: message})

	var last *Response
	for i := 0; i < a.opts.MaxIterations; i++ {
		resp, err := a.think(ctx, &conv)
		if err != nil {
			a.logger.Warn("agent thinking failed",
				zap.String("conversation_id", conversationID),
				zap.Int("iteration", i),
				zap.Error(err),
			)
			a.memory.Save(conv)
			return &Response{Success: false, Message: "Agent thinking failed: " + err.Error()}, nil
		}
		last = resp
		if len(resp.ToolCalls) == 0 {
			a.memory.Save(conv)
			return resp, nil
		}

		results := make([]ToolResult, 0, len(resp.ToolCalls))
		for _, call := range resp.ToolCalls {
			if a.tools == nil {
				results = append(results, ToolResult{ToolName: call.Name, Error: "tools unavailable"})
				continue
			}
			r := a.tools.Run(ctx, call, customerID, storeID)
			a.logger.Info("agent tool executed",
				zap.String("conversation_id", conversationID),
				zap.String("tool", call.Name),
				zap.Bool("success", r.Success),
			)
			results = append(results, r)
		}
		a.observe(&conv, results)
	}

	a.memory.Save(conv)
	if last == nil {
		return &Response{Success: true, Message: "Agent completed execution"}, nil
	}
	return last, nil
}

// History returns the stored messages of a conversation owned by the customer.
func (a *Agent) History(conversationID, customerID string, storeID int64) ([]Message, error) {
	hist, err := a.memory.History(conversationID, customerID, storeID)
	if err != nil {
		return nil, ownerError("agent.History", err)
	}
	return hist, nil
}

// Clear forgets a conversation owned by the customer.
func (a *Agent) Clear(conversationID, customerID string, storeID int64) error {
	if err := a.memory.Clear(conversationID, customerID, storeID); err != nil {
		return ownerError("agent.Clear", err)
	}
	return nil
}

func ownerError(op string, err error) error {
	if errors.Is(err, ErrNotOwner) {
		return apperr.Forbidden(op, "conversation belongs to another customer")
	}
	return apperr.Internal(op, err)
}

func (a *Agent) think(ctx context.Context, conv *Conversation) (*Response, error) {
	window := conv.Messages
	if len(window) > a.opts.HistorySize {
		window = window[len(window)-a.opts.HistorySize:]
	}
	msgs := make([]ChatMessage, 0, len(window))
	for _, m := range window {
		msgs = append(msgs, ChatMessage{Role: m.Role, Content: m.Content})
	}

	out, err := a.model.Complete(ctx, a.systemPrompt(), msgs)
	if err != nil {
		return nil, err
	}

	calls := a.parseToolCalls(out.Text)
	conv.Messages = append(conv.Messages, Message{Role: "assistant", Content: out.Text, ToolCalls: calls})
	conv.MessageCount++

	return &Response{
		Success:   true,
		Message:   out.Text,
		ToolCalls: calls,
		Metadata:  map[string]any{"tokensUsed": out.TotalTokens},
	}, nil
}

func (a *Agent) observe(conv *Conversation, results []ToolResult) {
	body, err := json.Marshal(results)
	if err != nil {
		body = []byte(fmt.Sprintf("%q", err.Error()))
	}
	conv.Messages = append(conv.Messages, Message{
		Role:        "user",
		Content:     "Tool results: " + string(body),
		ToolResults: results,
	})
}

func (a *Agent) systemPrompt() string {
	var b strings.Builder
	b.WriteString(a.opts.SystemPrompt)
	if len(a.opts.Tools) == 0 {
		return b.String()
	}
	b.WriteString("\n\nAvailable tools:\n")
	for _, t := range a.opts.Tools {
		fmt.Fprintf(&b, "- %s: %s\n  Params: %s\n", t.Name, t.Description, strings.Join(t.Required, ", "))
	}
	b.WriteString("\nWhen you need to perform an action, respond with:\n")
	b.WriteString(`TOOL_CALL: {"name": "tool_name", "input": {...}}`)
	return b.String()
}

// parseToolCalls decodes one JSON object after every TOOL_CALL: marker. Malformed
// objects are skipped.
func (a *Agent) parseToolCalls(text string) []ToolCall {
	var calls []ToolCall
	rest := text
	for {
		idx := strings.Index(rest, toolCallMarker)
		if idx < 0 {
			return calls
		}
		rest = rest[idx+len(toolCallMarker):]

		var call ToolCall
		dec := json.NewDecoder(strings.NewReader(strings.TrimLeft(rest, " \t\r\n")))
		if err := dec.Decode(&call); err != nil || call.Name == "" {
			continue
		}
		call.ID = a.newID()
		calls = append(calls, call)
	}
}
