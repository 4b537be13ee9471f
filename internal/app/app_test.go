package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws/awstest"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/config"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

func testConfig(waURL string) *config.Config {
	return &config.Config{
		Storage: config.StorageConfig{
			Driver: DriverDynamo,
			Tables: config.TablesConfig{
				Stores:             "stores",
				Products:           "products",
				Customers:          "customers",
				CustomerPhones:     "customer_phones",
				Orders:             "orders",
				OrderNumbers:       "order_numbers",
				OrderStatusHistory: "order_status_history",
				CustomerMessages:   "customer_messages",
				Idempotency:        "idempotency",
			},
		},
		Metrics:     config.MetricsConfig{Namespace: "Test"},
		WhatsApp:    config.WhatsAppConfig{APIBaseURL: waURL, PhoneNumberID: "PNID-1", AccessToken: "token", Timeout: time.Second},
		Payment:     config.PaymentConfig{Method: "qris"},
		Agent:       config.AgentConfig{MaxIterations: 5, HistorySize: 10, MemoryIdle: time.Hour},
		Idempotency: config.IdempotencyConfig{TTL: time.Hour},
	}
}

func testClients() *aws.AWSClients {
	return &aws.AWSClients{
		DynamoDB:   awstest.NewServiceDynamo(),
		SQS:        &awstest.FakeSQS{},
		CloudWatch: &awstest.FakeCloudWatch{},
	}
}

func TestNewWithClients_ProcessesMenuRequest(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []string
	)
	wa := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		bodies = append(bodies, string(b))
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(map[string]any{"messages": []map[string]string{{"id": "wamid.out"}}})
	}))
	defer wa.Close()

	ctx := context.Background()
	a, err := NewWithClients(ctx, testConfig(wa.URL), testClients(), nil)
	require.NoError(t, err)
	defer a.Close()

	assert.Nil(t, a.Agent, "agent needs an API key")

	require.NoError(t, a.Stores.Catalog.PutStore(ctx, catalog.Store{ID: 1, Name: "Warung Kopi"}))
	require.NoError(t, a.Stores.Catalog.PutProduct(ctx, catalog.Product{ID: 1, StoreID: 1, Name: "Kopi Susu", Price: "15000", IsActive: true}))

	outcome, err := a.Orchestrator.Process(ctx, orderflow.Job{
		StoreID: 1,
		Message: whatsapp.InboundMessage{ID: "wamid.in", From: "628123", Text: "menu", Type: whatsapp.TypeText, PhoneNumberID: "PNID-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, orderflow.OutcomeResponded, outcome)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, bodies, 1)
	assert.Contains(t, bodies[0], "Kopi Susu")
}

func TestNewWithClients_AgentNeedsKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:0")
	cfg.Agent.APIKey = "sk-test"
	a, err := NewWithClients(context.Background(), cfg, testClients(), nil)
	require.NoError(t, err)
	defer a.Close()
	assert.NotNil(t, a.Agent)
}

func TestOpenStores_UnknownDriver(t *testing.T) {
	_, err := OpenStores(context.Background(), config.StorageConfig{Driver: "mongo"}, awstest.NewServiceDynamo())
	assert.ErrorContains(t, err, "unknown storage driver")
}
