// Package whatsapp speaks the WhatsApp Business Cloud API: webhook signatures
// and payloads, the message-send endpoint, and the customer-facing message texts.
package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SignatureHeader carries the HMAC of the raw webhook body.
const SignatureHeader = "X-Hub-Signature-256"

const (
	objectBusinessAccount = "whatsapp_business_account"
	signaturePrefix       = "sha256="
)

// Message types kept after extraction.
const (
	TypeText  = "text"
	TypeImage = "image"
	TypeFile  = "file"
)

// Sign returns the X-Hub-Signature-256 value for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return signaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks header against the HMAC-SHA256 of the raw body.
func VerifySignature(secret string, body []byte, header string) bool {
	if secret == "" || !strings.HasPrefix(header, signaturePrefix) {
		return false
	}
	got, err := hex.DecodeString(strings.TrimPrefix(header, signaturePrefix))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

// Payload is the subset of the webhook notification the service reads.
type Payload struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`
}

type Entry struct {
	ID      string   `json:"id"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

type Value struct {
	MessagingProduct string          `json:"messaging_product"`
	Metadata         Metadata        `json:"metadata"`
	Contacts         []Contact       `json:"contacts"`
	Messages         []Message       `json:"messages"`
	Statuses         json.RawMessage `json:"statuses,omitempty"`
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number"`
	PhoneNumberID      string `json:"phone_number_id"`
}

type Contact struct {
	WaID    string `json:"wa_id"`
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type Message struct {
	From      string `json:"from"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Type      string `json:"type"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text,omitempty"`
	Image    *Media `json:"image,omitempty"`
	File     *Media `json:"file,omitempty"`
	Document *Media `json:"document,omitempty"`
}

type Media struct {
	ID       string `json:"id"`
	MimeType string `json:"mime_type,omitempty"`
	Caption  string `json:"caption,omitempty"`
}

// InboundMessage is a customer message extracted from a webhook payload.
type InboundMessage struct {
	ID            string `json:"id"`
	From          string `json:"from"`
	Text          string `json:"text"`
	Type          string `json:"type"`
	Timestamp     int64  `json:"timestamp"`
	ProfileName   string `json:"profile_name,omitempty"`
	PhoneNumberID string `json:"phone_number_id,omitempty"`
}

// ParsePayload decodes a webhook body.
func ParsePayload(body []byte) (*Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, fmt.Errorf("decode webhook payload: %w", err)
	}
	return &p, nil
}

// ExtractMessage returns the first processable customer message: the first message of
// the first change carrying a text, image or file message. Delivery receipts and
// other notifications yield false.
func ExtractMessage(p *Payload) (*InboundMessage, bool) {
	if p == nil || p.Object != objectBusinessAccount {
		return nil, false
	}
	for _, entry := range p.Entry {
		for _, change := range entry.Changes {
			if len(change.Value.Messages) == 0 {
				continue
			}
			m := change.Value.Messages[0]
			out := &InboundMessage{
				ID:            m.ID,
				From:          m.From,
				PhoneNumberID: change.Value.Metadata.PhoneNumberID,
			}
			switch {
			case m.Type == "text" && m.Text != nil:
				out.Text, out.Type = m.Text.Body, TypeText
			case m.Type == "image" && m.Image != nil:
				out.Text, out.Type = "[Image: "+m.Image.ID+"]", TypeImage
			case m.Type == "file" && m.File != nil:
				out.Text, out.Type = "[File: "+m.File.ID+"]", TypeFile
			case m.Type == "document" && m.Document != nil:
				out.Text, out.Type = "[File: "+m.Document.ID+"]", TypeFile
			default:
				continue
			}
			out.Timestamp, _ = strconv.ParseInt(m.Timestamp, 10, 64)
			for _, c := range change.Value.Contacts {
				if c.WaID == m.From || len(change.Value.Contacts) == 1 {
					out.ProfileName = c.Profile.Name
					break
				}
			}
			return out, true
		}
	}
	return nil, false
}
