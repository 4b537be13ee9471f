package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dynamodb", cfg.Storage.Driver)
	assert.Equal(t, "orders", cfg.Storage.Tables.Orders)
	assert.Equal(t, 48*time.Hour, cfg.Idempotency.TTL)
	assert.Equal(t, 10*time.Second, cfg.WhatsApp.Timeout)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
	assert.Equal(t, time.Hour, cfg.Agent.MemoryIdle)
	assert.Equal(t, "qris", cfg.Payment.Method)
	assert.Empty(t, cfg.Kafka.Brokers)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("STORAGE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://localhost/orderflow")
	t.Setenv("WHATSAPP_DEFAULT_STORE_ID", "42")
	t.Setenv("JOB_TIMEOUT", "5s")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage.Driver)
	assert.Equal(t, "postgres://localhost/orderflow", cfg.Storage.Postgres.DSN)
	assert.Equal(t, int64(42), cfg.WhatsApp.DefaultStoreID)
	assert.Equal(t, 5*time.Second, cfg.Queue.JobTimeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
}

func TestLoad_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("whatsapp:\n  verify_token: from-file\nqueue:\n  workers: 3\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.WhatsApp.VerifyToken)
	assert.Equal(t, 3, cfg.Queue.Workers)
}

func TestValidate(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	assert.Error(t, cfg.Validate())

	cfg.WhatsApp.AppSecret = "secret"
	cfg.WhatsApp.VerifyToken = "verify"
	cfg.WhatsApp.AccessToken = "token"
	cfg.App.RunLocal = true
	assert.NoError(t, cfg.Validate())

	cfg.Storage.Driver = "postgres"
	assert.Error(t, cfg.Validate())
}

func TestValidate_LambdaNeedsQueue(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.WhatsApp.AppSecret = "secret"
	cfg.WhatsApp.VerifyToken = "verify"
	cfg.WhatsApp.AccessToken = "token"

	cfg.App.RunLocal = false
	assert.ErrorContains(t, cfg.Validate(), "INBOUND_QUEUE_URL is required")

	cfg.Queue.InboundURL = "https://sqs.ap-southeast-1.amazonaws.com/123/inbound"
	assert.NoError(t, cfg.Validate())

	cfg.App.RunLocal = true
	cfg.Queue.InboundURL = ""
	assert.NoError(t, cfg.Validate())
}

func TestWhatsAppRoutes(t *testing.T) {
	routes, err := WhatsAppConfig{StoreRoutes: "111=1, 222=2"}.Routes()
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"111": 1, "222": 2}, routes)

	_, err = WhatsAppConfig{StoreRoutes: "111"}.Routes()
	assert.Error(t, err)

	_, err = WhatsAppConfig{StoreRoutes: "111=abc"}.Routes()
	assert.Error(t, err)
}
