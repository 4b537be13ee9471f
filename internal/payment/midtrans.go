// Package payment issues Midtrans Snap payment links and verifies Midtrans
// payment notifications.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL = "https://app.sandbox.midtrans.com/snap/v1"
	defaultTimeout = 10 * time.Second
)

// Payment methods accepted by LinkRequest.Method.
const (
	MethodQRIS         = "qris"
	MethodBankTransfer = "bank_transfer"
	MethodCreditCard   = "credit_card"
	MethodEWallet      = "e_wallet"
	MethodCash         = "cash"
)

// Snap channel codes per method. Methods without an entry let Snap offer every channel.
var enabledPayments = map[string][]string{
	MethodQRIS:         {"other_qris", "gopay"},
	MethodBankTransfer: {"bca_va", "bni_va", "bri_va", "permata_va", "echannel"},
	MethodCreditCard:   {"credit_card"},
	MethodEWallet:      {"gopay", "shopeepay"},
}

// Options configure an Issuer.
type Options struct {
	ServerKey string
	BaseURL   string
	Timeout   time.Duration
}

// LinkRequest describes the order a payment link is issued for.
type LinkRequest struct {
	OrderID       string
	StoreID       int64
	OrderNumber   string
	Amount        string // decimal string
	Method        string
	CustomerEmail string
	CustomerPhone string
	CustomerName  string
}

// Link is the issued payment link with an echo of the order it belongs to.
type Link struct {
	OrderID     string `json:"order_id"`
	OrderNumber string `json:"order_number"`
	Amount      string `json:"amount"`
	Status      string `json:"status"`
	Method      string `json:"method"`
	Token       string `json:"snap_token,omitempty"`
	RedirectURL string `json:"redirect_url,omitempty"`
}

// URL returns what the customer should open: the redirect URL, or the Snap token.
func (l *Link) URL() string {
	if l.RedirectURL != "" {
		return l.RedirectURL
	}
	return l.Token
}

// Issuer creates Snap transactions.
type Issuer struct {
	serverKey string
	baseURL   string
	client    *http.Client
	logger    *zap.Logger
}

// NewIssuer returns a Snap client. Every call is a single attempt bounded by opts.Timeout.
func NewIssuer(opts Options, logger *zap.Logger) *Issuer {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Issuer{
		serverKey: opts.ServerKey,
		baseURL:   strings.TrimRight(opts.BaseURL, "/"),
		client:    &http.Client{Timeout: opts.Timeout},
		logger:    logger,
	}
}

type snapRequest struct {
	TransactionDetails struct {
		OrderID     string `json:"order_id"`
		GrossAmount int64  `json:"gross_amount"`
	} `json:"transaction_details"`
	CustomerDetails struct {
		FirstName string `json:"first_name,omitempty"`
		Email     string `json:"email,omitempty"`
		Phone     string `json:"phone,omitempty"`
	} `json:"customer_details"`
	EnabledPayments []string `json:"enabled_payments,omitempty"`
	CustomField1    string   `json:"custom_field1,omitempty"` // order id
	CustomField2    string   `json:"custom_field2,omitempty"` // store id
}

type snapResponse struct {
	Token         string   `json:"token"`
	RedirectURL   string   `json:"redirect_url"`
	ErrorMessages []string `json:"error_messages"`
}

// GrossAmount converts a decimal amount to the whole-currency integer Snap expects.
func GrossAmount(amount string) (int64, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, fmt.Errorf("parse amount %q: %w", amount, err)
	}
	return d.Round(0).IntPart(), nil
}

// CreatePaymentLink registers a Snap transaction for the order. The Midtrans order id
// is the order number, so notifications can be matched back to the order.
func (i *Issuer) CreatePaymentLink(ctx context.Context, in LinkRequest) (*Link, error) {
	const op = "payment.CreatePaymentLink"
	if i.serverKey == "" {
		return nil, apperr.External(op, fmt.Errorf("midtrans server key not configured"))
	}
	gross, err := GrossAmount(in.Amount)
	if err != nil {
		return nil, apperr.Validation(op, err.Error())
	}

	var req snapRequest
	req.TransactionDetails.OrderID = in.OrderNumber
	req.TransactionDetails.GrossAmount = gross
	req.CustomerDetails.FirstName = in.CustomerName
	req.CustomerDetails.Email = in.CustomerEmail
	req.CustomerDetails.Phone = in.CustomerPhone
	req.EnabledPayments = enabledPayments[in.Method]
	req.CustomField1 = in.OrderID
	req.CustomField2 = fmt.Sprintf("%d", in.StoreID)

	body, err := json.Marshal(req)
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, i.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return nil, apperr.Internal(op, fmt.Errorf("create request: %w", err))
	}
	httpReq.SetBasicAuth(i.serverKey, "")
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := i.client.Do(httpReq)
	if err != nil {
		return nil, apperr.External(op, fmt.Errorf("snap request: %w", err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperr.External(op, fmt.Errorf("read response: %w", err))
	}

	var out snapResponse
	_ = json.Unmarshal(respBody, &out)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.Join(out.ErrorMessages, "; ")
		if msg == "" {
			msg = strings.TrimSpace(string(respBody))
		}
		return nil, apperr.External(op, fmt.Errorf("snap error (%d): %s", resp.StatusCode, msg))
	}
	if out.Token == "" && out.RedirectURL == "" {
		return nil, apperr.External(op, fmt.Errorf("snap response without token"))
	}

	i.logger.Info("payment link issued",
		zap.String("order_number", in.OrderNumber),
		zap.Int64("gross_amount", gross),
		zap.String("method", in.Method))

	return &Link{
		OrderID:     in.OrderID,
		OrderNumber: in.OrderNumber,
		Amount:      in.Amount,
		Status:      "pending",
		Method:      in.Method,
		Token:       out.Token,
		RedirectURL: out.RedirectURL,
	}, nil
}
