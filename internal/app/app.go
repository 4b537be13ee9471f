// Package app assembles the order flow from configuration. cmd/api and cmd/worker
// build the same graph; only their entry points differ.
package app

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/agent"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/catalog"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/config"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/customers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/events"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messages"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/messaging"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orders"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/payment"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/storage/postgres"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/whatsapp"
)

const (
	DriverDynamo   = "dynamodb"
	DriverPostgres = "postgres"
)

// CatalogStore is implemented by catalog.DynamoStore and postgres.CatalogStore.
type CatalogStore interface {
	GetStore(ctx context.Context, storeID int64) (*catalog.Store, error)
	PutStore(ctx context.Context, st catalog.Store) error
	GetProduct(ctx context.Context, productID int64) (*catalog.Product, error)
	PutProduct(ctx context.Context, p catalog.Product) error
	ListActiveProducts(ctx context.Context, storeID int64, limit int) ([]catalog.Product, error)
}

type CustomerStore interface {
	GetOrCreate(ctx context.Context, storeID int64, phone, name string) (*customers.Customer, bool, error)
	GetByPhone(ctx context.Context, storeID int64, phone string) (*customers.Customer, error)
	Get(ctx context.Context, customerID string) (*customers.Customer, error)
}

type MessageStore interface {
	Append(ctx context.Context, m messages.Message) (*messages.Message, error)
	ListByCustomer(ctx context.Context, customerID string, limit int) ([]messages.Message, error)
}

// Stores are the persistence layer for one storage driver.
type Stores struct {
	Catalog   CatalogStore
	Customers CustomerStore
	Orders    orders.Repository
	Messages  MessageStore

	db *sqlx.DB
}

// Close releases the SQL pool, if any.
func (s *Stores) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// OpenStores returns the stores for cfg.Storage.Driver. The postgres driver applies
// the schema before returning.
func OpenStores(ctx context.Context, cfg config.StorageConfig, dynamo aws.DynamoDBAPI) (*Stores, error) {
	switch cfg.Driver {
	case DriverDynamo, "":
		t := cfg.Tables
		return &Stores{
			Catalog:   catalog.NewDynamoStore(dynamo, t.Stores, t.Products),
			Customers: customers.NewDynamoStore(dynamo, t.Customers, t.CustomerPhones),
			Orders: orders.NewDynamoStore(dynamo, orders.Tables{
				Orders:        t.Orders,
				OrderNumbers:  t.OrderNumbers,
				StatusHistory: t.OrderStatusHistory,
			}),
			Messages: messages.NewDynamoStore(dynamo, t.CustomerMessages),
		}, nil
	case DriverPostgres:
		db, err := postgres.Open(ctx, postgres.Options{
			DSN:             cfg.Postgres.DSN,
			MaxOpenConns:    cfg.Postgres.MaxOpenConns,
			MaxIdleConns:    cfg.Postgres.MaxIdleConns,
			ConnMaxLifetime: cfg.Postgres.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
		pg := postgres.NewStores(db)
		return &Stores{
			Catalog:   pg.Catalog,
			Customers: pg.Customers,
			Orders:    pg.Orders,
			Messages:  pg.Messages,
			db:        db,
		}, nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}
}

// App is the wired order flow.
type App struct {
	Config       *config.Config
	Logger       *zap.Logger
	Clients      *aws.AWSClients
	Stores       *Stores
	Idempotency  *idempotency.Store
	Orders       *orders.Service
	Gateway      *messaging.Gateway
	Notifier     *orderflow.Notifier
	Orchestrator *orderflow.Orchestrator
	Agent        *agent.Agent
	Metrics      *aws.Metrics

	publisher events.Publisher
	closers   []func() error
}

// New builds every collaborator from cfg. Idempotency records always live in DynamoDB.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	clients, err := aws.NewAWSClients(ctx, cfg.AWS.Region, cfg.AWS.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("init aws clients: %w", err)
	}
	return NewWithClients(ctx, cfg, clients, logger)
}

// NewWithClients is New with the AWS clients supplied by the caller.
func NewWithClients(ctx context.Context, cfg *config.Config, clients *aws.AWSClients, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{Config: cfg, Logger: logger, Clients: clients}

	stores, err := OpenStores(ctx, cfg.Storage, clients.DynamoDB)
	if err != nil {
		return nil, fmt.Errorf("open %s stores: %w", cfg.Storage.Driver, err)
	}
	a.Stores = stores
	a.closers = append(a.closers, stores.Close)

	var cw aws.CloudWatchAPI
	if cfg.Metrics.Enabled {
		cw = clients.CloudWatch
	}
	a.Metrics = aws.NewMetrics(cw, cfg.Metrics.Namespace, logger.Named("metrics"))

	a.publisher = events.Nop{}
	if len(cfg.Kafka.Brokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger.Named("events"))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("init kafka publisher: %w", err)
		}
		a.publisher = kp
		a.closers = append(a.closers, kp.Close)
	}

	a.Idempotency = idempotency.NewStore(clients.DynamoDB, cfg.Storage.Tables.Idempotency, cfg.Idempotency.TTL)
	a.Orders = orders.NewService(stores.Orders, stores.Catalog, stores.Customers, a.publisher, logger.Named("orders"))

	wa := whatsapp.NewClient(whatsapp.ClientOptions{
		BaseURL:       cfg.WhatsApp.APIBaseURL,
		PhoneNumberID: cfg.WhatsApp.PhoneNumberID,
		AccessToken:   cfg.WhatsApp.AccessToken,
		Timeout:       cfg.WhatsApp.Timeout,
	})
	a.Gateway = messaging.NewGateway(wa, stores.Messages, a.Metrics, logger.Named("messaging"))
	a.Notifier = orderflow.NewNotifier(stores.Customers, a.Gateway, logger.Named("notifier"))

	deps := orderflow.Deps{
		Dedup:         a.Idempotency,
		Customers:     stores.Customers,
		Catalog:       stores.Catalog,
		Orders:        a.Orders,
		Messenger:     a.Gateway,
		Metrics:       a.Metrics,
		PaymentMethod: cfg.Payment.Method,
	}
	if cfg.Payment.ServerKey != "" {
		deps.Payments = payment.NewIssuer(payment.Options{
			ServerKey: cfg.Payment.ServerKey,
			BaseURL:   cfg.Payment.BaseURL,
			Timeout:   cfg.Payment.Timeout,
		}, logger.Named("payment"))
	}
	a.Orchestrator = orderflow.NewOrchestrator(deps, logger.Named("orchestrator"))

	if cfg.Agent.APIKey != "" {
		model := agent.NewOpenAIClient(agent.OpenAIOptions{
			BaseURL: cfg.Agent.BaseURL,
			APIKey:  cfg.Agent.APIKey,
			Model:   cfg.Agent.Model,
			Timeout: cfg.Agent.Timeout,
		})
		a.Agent = agent.New(model,
			agent.NewMemoryStore(cfg.Agent.MemoryIdle, nil),
			agent.NewToolbox(a.Orders, stores.Catalog),
			agent.Options{MaxIterations: cfg.Agent.MaxIterations, HistorySize: cfg.Agent.HistorySize},
			logger.Named("agent"),
		)
	}
	return a, nil
}

// Close releases everything New opened, in reverse order.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("close", zap.Error(err))
		}
	}
	a.closers = nil
}
