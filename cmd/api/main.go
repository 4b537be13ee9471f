package main

import (
	"context"
	"log"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	ginadapter "github.com/awslabs/aws-lambda-go-api-proxy/gin"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-whatsapp-orderflow/internal/app"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/aws"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/config"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/handlers"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/logging"
	"github.com/imrishuroy/go-whatsapp-orderflow/internal/orderflow"
)

func setupRouter(cfg handlers.HandlerConfig, logger *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger(logger))
	handlers.Register(r, cfg)
	return r
}

// requestLogger writes one line per request.
func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.IsDevelopment(),
	})
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid configuration", zap.Error(err))
	}
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()
	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to build app", zap.Error(err))
	}
	defer a.Close()

	routes, _ := cfg.WhatsApp.Routes()
	hc := handlers.HandlerConfig{
		Orders:           a.Orders,
		Idempotency:      a.Idempotency,
		Customers:        a.Stores.Customers,
		Messages:         a.Stores.Messages,
		Notifier:         a.Notifier,
		Stores:           orderflow.NewStoreRouter(routes, cfg.WhatsApp.DefaultStoreID),
		AppSecret:        cfg.WhatsApp.AppSecret,
		VerifyToken:      cfg.WhatsApp.VerifyToken,
		PaymentServerKey: cfg.Payment.ServerKey,
		Logger:           logger.Named("http"),
	}
	if a.Agent != nil {
		hc.Agent = a.Agent
	}

	// inbound messages go to the worker queue, or run in-process without one
	if cfg.Queue.InboundURL != "" {
		hc.Dispatcher = orderflow.NewQueueDispatcher(aws.NewPublisher(a.Clients.SQS, cfg.Queue.InboundURL), logger.Named("dispatch"))
	} else {
		local := orderflow.NewLocalDispatcher(a.Orchestrator, cfg.Queue.Workers, cfg.Queue.Workers*16, cfg.Queue.JobTimeout, logger.Named("dispatch"))
		defer local.Close()
		hc.Dispatcher = local
	}

	r := setupRouter(hc, logger)

	if cfg.App.RunLocal {
		addr := ":" + cfg.App.Port
		logger.Info("running local server", zap.String("addr", addr), zap.String("storage", cfg.Storage.Driver))
		if err := r.Run(addr); err != nil {
			logger.Fatal("failed to run local server", zap.Error(err))
		}
		return
	}

	adapter := ginadapter.New(r)
	lambda.Start(func(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
		return adapter.ProxyWithContext(ctx, req)
	})
}
