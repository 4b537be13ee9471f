package whatsapp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const textPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "WABA-1",
    "changes": [{
      "field": "messages",
      "value": {
        "messaging_product": "whatsapp",
        "metadata": {"display_phone_number": "628000", "phone_number_id": "PNID-1"},
        "contacts": [{"wa_id": "628123", "profile": {"name": "Budi"}}],
        "messages": [{"from": "628123", "id": "wamid.1", "timestamp": "1710000000", "type": "text", "text": {"body": "order 1 qty 2"}}]
      }
    }]
  }]
}`

func TestVerifySignature(t *testing.T) {
	body := []byte(textPayload)
	sig := Sign("app-secret", body)

	assert.True(t, VerifySignature("app-secret", body, sig))
	assert.False(t, VerifySignature("other", body, sig))
	assert.False(t, VerifySignature("app-secret", append(body, ' '), sig))
	assert.False(t, VerifySignature("app-secret", body, sig[len("sha256="):]), "prefix is required")
	assert.False(t, VerifySignature("app-secret", body, "sha256=zz"))
	assert.False(t, VerifySignature("app-secret", body, ""))
	assert.False(t, VerifySignature("", body, Sign("", body)))
}

func TestExtractMessage_Text(t *testing.T) {
	p, err := ParsePayload([]byte(textPayload))
	require.NoError(t, err)

	m, ok := ExtractMessage(p)
	require.True(t, ok)
	assert.Equal(t, &InboundMessage{
		ID:            "wamid.1",
		From:          "628123",
		Text:          "order 1 qty 2",
		Type:          TypeText,
		Timestamp:     1710000000,
		ProfileName:   "Budi",
		PhoneNumberID: "PNID-1",
	}, m)
}

func TestExtractMessage_MediaAndSkips(t *testing.T) {
	body := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [
	    {"value": {"statuses": [{"id": "wamid.0", "status": "delivered"}]}},
	    {"value": {"messages": [{"from": "1", "id": "a", "timestamp": "1", "type": "sticker"}]}},
	    {"value": {"messages": [{"from": "2", "id": "b", "timestamp": "2", "type": "image", "image": {"id": "IMG-9"}}]}}
	  ]}]
	}`
	p, err := ParsePayload([]byte(body))
	require.NoError(t, err)

	m, ok := ExtractMessage(p)
	require.True(t, ok)
	assert.Equal(t, "b", m.ID)
	assert.Equal(t, TypeImage, m.Type)
	assert.Equal(t, "[Image: IMG-9]", m.Text)
	assert.Empty(t, m.ProfileName)
}

func TestExtractMessage_Document(t *testing.T) {
	body := `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"2","id":"d","timestamp":"x","type":"document","document":{"id":"DOC-1"}}]}}]}]}`
	p, err := ParsePayload([]byte(body))
	require.NoError(t, err)
	m, ok := ExtractMessage(p)
	require.True(t, ok)
	assert.Equal(t, TypeFile, m.Type)
	assert.Equal(t, "[File: DOC-1]", m.Text)
	assert.Zero(t, m.Timestamp)
}

func TestExtractMessage_None(t *testing.T) {
	cases := map[string]string{
		"wrong object":      `{"object":"page","entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"a","type":"text","text":{"body":"hi"}}]}}]}]}`,
		"delivery receipt":  `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"statuses":[{"id":"x"}]}}]}]}`,
		"no entries":        `{"object":"whatsapp_business_account"}`,
		"text without body": `{"object":"whatsapp_business_account","entry":[{"changes":[{"value":{"messages":[{"from":"1","id":"a","type":"text"}]}}]}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			p, err := ParsePayload([]byte(body))
			require.NoError(t, err)
			_, ok := ExtractMessage(p)
			assert.False(t, ok)
		})
	}

	_, ok := ExtractMessage(nil)
	assert.False(t, ok)
}

func TestParsePayload_Invalid(t *testing.T) {
	_, err := ParsePayload([]byte("{not json"))
	assert.Error(t, err)
}
