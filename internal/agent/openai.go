package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	defaultLLMBaseURL  = "https://api.openai.com/v1"
	defaultLLMModel    = "gpt-4o-mini"
	defaultLLMTimeout  = 30 * time.Second
	defaultTemperature = 0.7
)

// ChatMessage is a message sent to the language model.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Completion is the model's reply.
type Completion struct {
	Text        string
	TotalTokens int
}

// LanguageModel produces the next assistant message.
type LanguageModel interface {
	Complete(ctx context.Context, system string, messages []ChatMessage) (*Completion, error)
}

// OpenAIOptions configure an OpenAI-compatible chat completions client.
type OpenAIOptions struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// OpenAIClient talks to any OpenAI-compatible /chat/completions endpoint.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

func NewOpenAIClient(opts OpenAIOptions) *OpenAIClient {
	if opts.BaseURL == "" {
		opts.BaseURL = defaultLLMBaseURL
	}
	if opts.Model == "" {
		opts.Model = defaultLLMModel
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultLLMTimeout
	}
	return &OpenAIClient{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		apiKey:  opts.APIKey,
		model:   opts.Model,
		client:  &http.Client{Timeout: opts.Timeout},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []ChatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message ChatMessage `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends the system prompt followed by messages.
func (c *OpenAIClient) Complete(ctx context.Context, system string, messages []ChatMessage) (*Completion, error) {
	if c.apiKey == "" {
		return nil, errors.New("AGENT_LLM_API_KEY not set")
	}

	req := chatRequest{Model: c.model, Temperature: defaultTemperature}
	req.Messages = append(req.Messages, ChatMessage{Role: "system", Content: system})
	req.Messages = append(req.Messages, messages...)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	var out chatResponse
	if resp.StatusCode != http.StatusOK {
		if json.Unmarshal(respBody, &out) == nil && out.Error != nil && out.Error.Message != "" {
			return nil, fmt.Errorf("LLM API error (%d): %s", resp.StatusCode, out.Error.Message)
		}
		return nil, fmt.Errorf("LLM API error (%d): %s", resp.StatusCode, string(respBody))
	}
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Choices) == 0 {
		return nil, errors.New("LLM response without choices")
	}
	return &Completion{Text: out.Choices[0].Message.Content, TotalTokens: out.Usage.TotalTokens}, nil
}
