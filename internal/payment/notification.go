package payment

import (
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
)

// Outcome is what a notification means for the order.
type Outcome string

const (
	OutcomePaid    Outcome = "paid"
	OutcomePending Outcome = "pending"
	OutcomeFailed  Outcome = "failed"
	OutcomeUnknown Outcome = "unknown"
)

// Notification is the HTTP notification Midtrans posts after a transaction changes.
type Notification struct {
	OrderID           string `json:"order_id" validate:"required"`
	StatusCode        string `json:"status_code" validate:"required"`
	GrossAmount       string `json:"gross_amount" validate:"required"`
	SignatureKey      string `json:"signature_key" validate:"required"`
	TransactionStatus string `json:"transaction_status" validate:"required"`
	TransactionID     string `json:"transaction_id"`
	FraudStatus       string `json:"fraud_status"`
	PaymentType       string `json:"payment_type"`
}

// Signature computes SHA-512(order_id + status_code + gross_amount + server_key) as hex.
func Signature(orderID, statusCode, grossAmount, serverKey string) string {
	sum := sha512.Sum512([]byte(orderID + statusCode + grossAmount + serverKey))
	return hex.EncodeToString(sum[:])
}

// VerifyNotification reports whether n carries a valid signature for serverKey.
func VerifyNotification(serverKey string, n Notification) bool {
	if serverKey == "" || n.SignatureKey == "" {
		return false
	}
	want := Signature(n.OrderID, n.StatusCode, n.GrossAmount, serverKey)
	return subtle.ConstantTimeCompare([]byte(want), []byte(n.SignatureKey)) == 1
}

// Outcome maps the transaction and fraud status to an order outcome.
func (n Notification) Outcome() Outcome {
	switch n.TransactionStatus {
	case "capture":
		switch n.FraudStatus {
		case "", "accept":
			return OutcomePaid
		case "challenge":
			return OutcomePending
		default:
			return OutcomeFailed
		}
	case "settlement":
		return OutcomePaid
	case "pending":
		return OutcomePending
	case "deny", "cancel", "expire", "failure":
		return OutcomeFailed
	default:
		return OutcomeUnknown
	}
}
