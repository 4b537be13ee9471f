package payment

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCreatePaymentLink(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/transactions", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "SB-server-key", user)
		assert.Empty(t, pass)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"snap-token","redirect_url":"https://pay.example/snap-token"}`))
	}))
	defer srv.Close()

	iss := NewIssuer(Options{ServerKey: "SB-server-key", BaseURL: srv.URL + "/"}, zap.NewNop())
	link, err := iss.CreatePaymentLink(context.Background(), LinkRequest{
		OrderID:       "o-1",
		StoreID:       7,
		OrderNumber:   "ORD-7-123456-ABCDEF",
		Amount:        "30000.40",
		Method:        MethodQRIS,
		CustomerPhone: "628123",
		CustomerName:  "Budi",
		CustomerEmail: "628123@whatsapp.local",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example/snap-token", link.URL())
	assert.Equal(t, "snap-token", link.Token)
	assert.Equal(t, "pending", link.Status)
	assert.Equal(t, "o-1", link.OrderID)
	assert.Equal(t, "30000.40", link.Amount)

	td := got["transaction_details"].(map[string]any)
	assert.Equal(t, "ORD-7-123456-ABCDEF", td["order_id"])
	assert.Equal(t, float64(30000), td["gross_amount"])
	assert.Equal(t, []any{"other_qris", "gopay"}, got["enabled_payments"])
	assert.Equal(t, "7", got["custom_field2"])
}

func TestCreatePaymentLink_TokenOnly(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"only-token"}`))
	}))
	defer srv.Close()

	iss := NewIssuer(Options{ServerKey: "k", BaseURL: srv.URL}, nil)
	link, err := iss.CreatePaymentLink(context.Background(), LinkRequest{OrderNumber: "ORD-1", Amount: "1000", Method: MethodCash})
	require.NoError(t, err)
	assert.Equal(t, "only-token", link.URL())
}

func TestCreatePaymentLink_Failures(t *testing.T) {
	t.Run("gateway rejects", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error_messages":["Access denied due to unauthorized transaction"]}`))
		}))
		defer srv.Close()

		iss := NewIssuer(Options{ServerKey: "bad", BaseURL: srv.URL}, nil)
		_, err := iss.CreatePaymentLink(context.Background(), LinkRequest{OrderNumber: "ORD-1", Amount: "1000"})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindExternal))
		assert.Contains(t, err.Error(), "unauthorized transaction")
	})

	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-release
		}))
		defer srv.Close()
		defer close(release)

		iss := NewIssuer(Options{ServerKey: "k", BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
		_, err := iss.CreatePaymentLink(context.Background(), LinkRequest{OrderNumber: "ORD-1", Amount: "1000"})
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindExternal))
	})

	t.Run("missing server key", func(t *testing.T) {
		iss := NewIssuer(Options{}, nil)
		_, err := iss.CreatePaymentLink(context.Background(), LinkRequest{OrderNumber: "ORD-1", Amount: "1000"})
		assert.True(t, apperr.Is(err, apperr.KindExternal))
	})

	t.Run("bad amount", func(t *testing.T) {
		iss := NewIssuer(Options{ServerKey: "k"}, nil)
		_, err := iss.CreatePaymentLink(context.Background(), LinkRequest{OrderNumber: "ORD-1", Amount: "abc"})
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	})
}

func TestGrossAmount(t *testing.T) {
	cases := map[string]int64{
		"15000":    15000,
		"15000.00": 15000,
		"0.5":      1,
		"1999.49":  1999,
	}
	for in, want := range cases {
		got, err := GrossAmount(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
