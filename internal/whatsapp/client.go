package whatsapp

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

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
)

const (
	DefaultAPIBaseURL = "https://graph.facebook.com/v18.0"
	defaultTimeout    = 10 * time.Second
)

// ClientOptions configure the send client.
type ClientOptions struct {
	BaseURL       string
	PhoneNumberID string
	AccessToken   string
	Timeout       time.Duration
}

// Client sends text messages through the Cloud API.
type Client struct {
	baseURL       string
	phoneNumberID string
	token         string
	http          *http.Client
}

func NewClient(opts ClientOptions) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultAPIBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	return &Client{
		baseURL:       strings.TrimRight(opts.BaseURL, "/"),
		phoneNumberID: opts.PhoneNumberID,
		token:         opts.AccessToken,
		http:          &http.Client{Timeout: opts.Timeout},
	}
}

type sendRequest struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		PreviewURL bool   `json:"preview_url"`
		Body       string `json:"body"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
	Error *struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error,omitempty"`
}

// Send delivers text to the phone number and returns the provider message id.
func (c *Client) Send(ctx context.Context, to, text string) (string, error) {
	const op = "whatsapp.Send"
	if c.phoneNumberID == "" || c.token == "" {
		return "", apperr.Validation(op, "whatsapp configuration incomplete")
	}

	req := sendRequest{MessagingProduct: "whatsapp", To: to, Type: "text"}
	req.Text.PreviewURL = true
	req.Text.Body = text
	body, err := json.Marshal(req)
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("marshal request: %w", err))
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", apperr.Internal(op, fmt.Errorf("create request: %w", err))
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.token)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", apperr.External(op, fmt.Errorf("failed to send whatsapp message: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.External(op, fmt.Errorf("read response: %w", err))
	}

	var out sendResponse
	_ = json.Unmarshal(respBody, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", apperr.External(op, fmt.Errorf("whatsapp api error (%d): %s", resp.StatusCode, msg))
	}
	if len(out.Messages) == 0 || out.Messages[0].ID == "" {
		return "", apperr.External(op, errors.New("whatsapp api response without message id"))
	}
	return out.Messages[0].ID, nil
}
