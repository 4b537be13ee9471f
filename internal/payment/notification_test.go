package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVerifyNotification(t *testing.T) {
	n := Notification{
		OrderID:           "ORD-1-000001-ABCDEF",
		StatusCode:        "200",
		GrossAmount:       "30000.00",
		TransactionStatus: "settlement",
	}
	n.SignatureKey = Signature(n.OrderID, n.StatusCode, n.GrossAmount, "server-key")

	assert.True(t, VerifyNotification("server-key", n))
	assert.False(t, VerifyNotification("other-key", n))
	assert.False(t, VerifyNotification("", n))

	tampered := n
	tampered.GrossAmount = "1.00"
	assert.False(t, VerifyNotification("server-key", tampered))

	unsigned := n
	unsigned.SignatureKey = ""
	assert.False(t, VerifyNotification("server-key", unsigned))
}

func TestSignature_KnownVector(t *testing.T) {
	// SHA-512 of the empty string
	assert.Equal(t,
		"cf83e1357eefb8bdf1542850d66d8007d620e4050b5715dc83f4a921d36ce9ce47d0d13c5d85f2b0ff8318d2877eec2f63b931bd47417a81a538327af927da3e",
		Signature("", "", "", ""))
}

func TestNotification_Outcome(t *testing.T) {
	cases := []struct {
		status, fraud string
		want          Outcome
	}{
		{"capture", "accept", OutcomePaid},
		{"capture", "", OutcomePaid},
		{"capture", "challenge", OutcomePending},
		{"capture", "deny", OutcomeFailed},
		{"settlement", "", OutcomePaid},
		{"pending", "", OutcomePending},
		{"deny", "", OutcomeFailed},
		{"cancel", "", OutcomeFailed},
		{"expire", "", OutcomeFailed},
		{"failure", "", OutcomeFailed},
		{"refund", "", OutcomeUnknown},
	}
	for _, c := range cases {
		n := Notification{TransactionStatus: c.status, FraudStatus: c.fraud}
		assert.Equal(t, c.want, n.Outcome(), "%s/%s", c.status, c.fraud)
	}
}
