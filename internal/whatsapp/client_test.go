package whatsapp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSend(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/PNID-1/messages", r.URL.Path)
		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"messaging_product":"whatsapp","messages":[{"id":"wamid.out.1"}]}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, PhoneNumberID: "PNID-1", AccessToken: "token-1"})
	id, err := c.Send(context.Background(), "628123", "halo")
	require.NoError(t, err)
	assert.Equal(t, "wamid.out.1", id)

	assert.Equal(t, "whatsapp", got.MessagingProduct)
	assert.Equal(t, "628123", got.To)
	assert.Equal(t, "text", got.Type)
	assert.Equal(t, "halo", got.Text.Body)
	assert.True(t, got.Text.PreviewURL)
}

func TestClientSend_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid parameter","code":100}}`))
	}))
	defer srv.Close()

	c := NewClient(ClientOptions{BaseURL: srv.URL, PhoneNumberID: "P", AccessToken: "T"})
	_, err := c.Send(context.Background(), "not-a-phone", "halo")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindExternal))
	assert.Contains(t, err.Error(), "Invalid parameter")
}

func TestClientSend_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(ClientOptions{BaseURL: url, PhoneNumberID: "P", AccessToken: "T"})
	_, err := c.Send(context.Background(), "628123", "halo")
	assert.True(t, apperr.Is(err, apperr.KindExternal))
}

func TestClientSend_MissingConfig(t *testing.T) {
	c := NewClient(ClientOptions{})
	_, err := c.Send(context.Background(), "628123", "halo")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
