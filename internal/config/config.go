package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Log         LogConfig         `mapstructure:"log"`
	AWS         AWSConfig         `mapstructure:"aws"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Queue       QueueConfig       `mapstructure:"queue"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	WhatsApp    WhatsAppConfig    `mapstructure:"whatsapp"`
	Payment     PaymentConfig     `mapstructure:"payment"`
	Kafka       KafkaConfig       `mapstructure:"kafka"`
	Agent       AgentConfig       `mapstructure:"agent"`
	Idempotency IdempotencyConfig `mapstructure:"idempotency"`
}

type AppConfig struct {
	Env      string `mapstructure:"env"`
	Port     string `mapstructure:"port"`
	RunLocal bool   `mapstructure:"run_local"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

type AWSConfig struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

type StorageConfig struct {
	Driver   string         `mapstructure:"driver"`
	Tables   TablesConfig   `mapstructure:"tables"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// TablesConfig names the DynamoDB tables.
type TablesConfig struct {
	Stores             string `mapstructure:"stores"`
	Products           string `mapstructure:"products"`
	Customers          string `mapstructure:"customers"`
	CustomerPhones     string `mapstructure:"customer_phones"`
	Orders             string `mapstructure:"orders"`
	OrderNumbers       string `mapstructure:"order_numbers"`
	OrderStatusHistory string `mapstructure:"order_status_history"`
	CustomerMessages   string `mapstructure:"customer_messages"`
	Idempotency        string `mapstructure:"idempotency"`
}

type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// QueueConfig controls how inbound WhatsApp messages are handed to the orchestrator.
// An empty InboundURL processes them in-process on a bounded pool, which is only
// allowed with RUN_LOCAL.
type QueueConfig struct {
	InboundURL string        `mapstructure:"inbound_url"`
	Workers    int           `mapstructure:"workers"`
	JobTimeout time.Duration `mapstructure:"job_timeout"`
}

type MetricsConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Namespace string `mapstructure:"namespace"`
}

type WhatsAppConfig struct {
	AppSecret      string        `mapstructure:"app_secret"`
	VerifyToken    string        `mapstructure:"verify_token"`
	AccessToken    string        `mapstructure:"access_token"`
	APIBaseURL     string        `mapstructure:"api_base_url"`
	PhoneNumberID  string        `mapstructure:"phone_number_id"`
	StoreRoutes    string        `mapstructure:"store_routes"`
	DefaultStoreID int64         `mapstructure:"default_store_id"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type PaymentConfig struct {
	ServerKey string        `mapstructure:"server_key"`
	BaseURL   string        `mapstructure:"base_url"`
	Method    string        `mapstructure:"method"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AgentConfig struct {
	BaseURL       string        `mapstructure:"base_url"`
	APIKey        string        `mapstructure:"api_key"`
	Model         string        `mapstructure:"model"`
	MaxIterations int           `mapstructure:"max_iterations"`
	HistorySize   int           `mapstructure:"history_size"`
	MemoryIdle    time.Duration `mapstructure:"memory_idle"`
	Timeout       time.Duration `mapstructure:"timeout"`
}

type IdempotencyConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type binding struct {
	key string
	env string
	def any
}

var bindings = []binding{
	{"app.env", "APP_ENV", "production"},
	{"app.port", "PORT", "8080"},
	{"app.run_local", "RUN_LOCAL", false},

	{"log.level", "LOG_LEVEL", "info"},
	{"log.encoding", "LOG_ENCODING", "json"},

	{"aws.region", "AWS_REGION", "us-east-1"},
	{"aws.endpoint", "AWS_ENDPOINT_OVERRIDE", ""},

	{"storage.driver", "STORAGE_DRIVER", "dynamodb"},
	{"storage.tables.stores", "STORES_TABLE", "stores"},
	{"storage.tables.products", "PRODUCTS_TABLE", "products"},
	{"storage.tables.customers", "CUSTOMERS_TABLE", "customers"},
	{"storage.tables.customer_phones", "CUSTOMER_PHONES_TABLE", "customer_phones"},
	{"storage.tables.orders", "ORDERS_TABLE", "orders"},
	{"storage.tables.order_numbers", "ORDER_NUMBERS_TABLE", "order_numbers"},
	{"storage.tables.order_status_history", "ORDER_STATUS_HISTORY_TABLE", "order_status_history"},
	{"storage.tables.customer_messages", "CUSTOMER_MESSAGES_TABLE", "customer_messages"},
	{"storage.tables.idempotency", "IDEMPOTENCY_TABLE", "idempotency"},
	{"storage.postgres.dsn", "DATABASE_URL", ""},
	{"storage.postgres.max_open_conns", "POSTGRES_MAX_OPEN_CONNS", 10},
	{"storage.postgres.max_idle_conns", "POSTGRES_MAX_IDLE_CONNS", 5},
	{"storage.postgres.conn_max_lifetime", "POSTGRES_CONN_MAX_LIFETIME", "5m"},

	{"queue.inbound_url", "INBOUND_QUEUE_URL", ""},
	{"queue.workers", "LOCAL_WORKERS", 8},
	{"queue.job_timeout", "JOB_TIMEOUT", "30s"},

	{"metrics.enabled", "METRICS_ENABLED", false},
	{"metrics.namespace", "METRICS_NAMESPACE", "WhatsAppOrderflow"},

	{"whatsapp.app_secret", "WHATSAPP_APP_SECRET", ""},
	{"whatsapp.verify_token", "WHATSAPP_VERIFY_TOKEN", ""},
	{"whatsapp.access_token", "WHATSAPP_ACCESS_TOKEN", ""},
	{"whatsapp.api_base_url", "WHATSAPP_API_BASE_URL", "https://graph.facebook.com/v18.0"},
	{"whatsapp.phone_number_id", "WHATSAPP_PHONE_NUMBER_ID", ""},
	{"whatsapp.store_routes", "WHATSAPP_STORE_ROUTES", ""},
	{"whatsapp.default_store_id", "WHATSAPP_DEFAULT_STORE_ID", 0},
	{"whatsapp.timeout", "WHATSAPP_TIMEOUT", "10s"},

	{"payment.server_key", "MIDTRANS_SERVER_KEY", ""},
	{"payment.base_url", "MIDTRANS_BASE_URL", "https://app.sandbox.midtrans.com/snap/v1"},
	{"payment.method", "PAYMENT_METHOD", "qris"},
	{"payment.timeout", "MIDTRANS_TIMEOUT", "10s"},

	{"kafka.brokers", "KAFKA_BROKERS", []string{}},
	{"kafka.topic", "KAFKA_TOPIC_ORDERS", "orders.events"},

	{"agent.base_url", "AGENT_LLM_BASE_URL", "https://api.openai.com/v1"},
	{"agent.api_key", "AGENT_LLM_API_KEY", ""},
	{"agent.model", "AGENT_LLM_MODEL", "gpt-4o-mini"},
	{"agent.max_iterations", "AGENT_MAX_ITERATIONS", 5},
	{"agent.history_size", "AGENT_HISTORY_SIZE", 10},
	{"agent.memory_idle", "AGENT_MEMORY_IDLE", "1h"},
	{"agent.timeout", "AGENT_LLM_TIMEOUT", "30s"},

	{"idempotency.ttl", "IDEMPOTENCY_TTL", "48h"},
}

// Load reads an optional .env file, an optional config/config.yaml (or CONFIG_FILE)
// and the environment, in increasing precedence.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	for _, b := range bindings {
		v.SetDefault(b.key, b.def)
		if err := v.BindEnv(b.key, b.env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", b.env, err)
		}
	}

	if file := os.Getenv("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("./config")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// IsDevelopment reports whether the service runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.App.Env == "development"
}

// Validate rejects configurations that cannot serve the WhatsApp flow.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.WhatsApp.AppSecret == "" {
		errs = append(errs, errors.New("WHATSAPP_APP_SECRET is required"))
	}
	if c.WhatsApp.VerifyToken == "" {
		errs = append(errs, errors.New("WHATSAPP_VERIFY_TOKEN is required"))
	}
	if c.WhatsApp.AccessToken == "" {
		errs = append(errs, errors.New("WHATSAPP_ACCESS_TOKEN is required"))
	}
	if _, err := c.WhatsApp.Routes(); err != nil {
		errs = append(errs, err)
	}
	if !c.App.RunLocal && c.Queue.InboundURL == "" {
		errs = append(errs, errors.New("INBOUND_QUEUE_URL is required unless RUN_LOCAL=true"))
	}
	if c.Queue.Workers < 1 {
		errs = append(errs, errors.New("LOCAL_WORKERS must be at least 1"))
	}
	if c.Agent.MaxIterations < 1 {
		errs = append(errs, errors.New("AGENT_MAX_ITERATIONS must be at least 1"))
	}
	return errors.Join(errs...)
}

// Validate checks the storage driver settings.
func (s StorageConfig) Validate() error {
	switch s.Driver {
	case "dynamodb":
		return nil
	case "postgres":
		if s.Postgres.DSN == "" {
			return errors.New("DATABASE_URL is required for the postgres driver")
		}
		return nil
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", s.Driver)
	}
}

// Routes parses StoreRoutes ("phone_number_id=store_id,...").
func (w WhatsAppConfig) Routes() (map[string]int64, error) {
	routes := map[string]int64{}
	for _, pair := range strings.Split(w.StoreRoutes, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		phoneID, storeID, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid WHATSAPP_STORE_ROUTES entry %q", pair)
		}
		id, err := strconv.ParseInt(strings.TrimSpace(storeID), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid store id in WHATSAPP_STORE_ROUTES entry %q", pair)
		}
		routes[strings.TrimSpace(phoneID)] = id
	}
	return routes, nil
}
