package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"github.com/trading-account-engine/internal/account_processor/components"
	"github.com/trading-account-engine/internal/api_gateway"
	"github.com/trading-account-engine/internal/api_gateway/handler"
	"github.com/trading-account-engine/internal/api_gateway/service"
	"github.com/trading-account-engine/internal/api_gateway/stream"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/data/mongo"
	"github.com/trading-account-engine/internal/data/postgres"
	"github.com/trading-account-engine/internal/domain/account"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/logger"
	"github.com/trading-account-engine/internal/platform/marketdata"
	"github.com/trading-account-engine/internal/platform/messaging/consumers"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
	"github.com/trading-account-engine/internal/platform/persistence"
)

// redisPinger adapts a Redis client to the health check
type redisPinger struct {
	rdb *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.rdb.Ping(ctx).Err()
}

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	healthChecks := map[string]handler.Pinger{
		"postgres": postgresDB,
		"mongodb":  mongoDB,
	}

	// Persisted quotes are optional; without Redis the quote listing is empty
	var quoteReader service.QuoteReader
	if cfg.Redis.Enabled() {
		rdb, err := marketdata.NewRedisClient(appCtx, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()
		quoteReader = marketdata.NewRedisQuoteStore(rdb, cfg.Redis.QuoteTTL, log)
		healthChecks["redis"] = redisPinger{rdb: rdb}
	}

	// Initialize Kafka producers for API Gateway
	executionProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.ExecutionTopic, false)
	if err != nil {
		log.Error("Failed to initialize execution producer", "error", err)
		os.Exit(1)
	}
	quoteProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.QuoteTopic, true)
	if err != nil {
		log.Error("Failed to initialize quote producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	eventRepo := postgres.NewAccountEventRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	snapshotRepo := mongo.NewSnapshotRepository(log, mongoDB.Database())

	// What-if pricing rebuilds accounts with the processor's factory settings
	instruments, err := instrument.LoadProviderFile(cfg.Accounting.InstrumentsFile)
	if err != nil {
		log.Error("Failed to load instruments", "file", cfg.Accounting.InstrumentsFile, "error", err)
		os.Exit(1)
	}
	factoryCfg, err := components.NewFactoryConfig(cfg.Accounting)
	if err != nil {
		log.Error("Invalid accounting config", "error", err)
		os.Exit(1)
	}

	// Initialize services
	accountService := service.NewAccountService(log, snapshotRepo, eventRepo, executionProducer)
	preTradeService := service.NewPreTradeService(log, eventRepo, account.NewFactory(factoryCfg), instruments)
	executionService := service.NewExecutionService(log, ledgerRepo, executionProducer)
	quoteService := service.NewQuoteService(log, quoteProducer, quoteReader)

	// Every gateway instance follows all partitions of the state topic
	hub := stream.NewHub(log.With("component", "stream_hub"))
	hostname, _ := os.Hostname()
	stateConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka,
		cfg.Kafka.AccountStateTopic, cfg.Kafka.StreamGroup+"-"+hostname, kafka.LastOffset)
	if err := stateConsumer.Subscribe(appCtx, hub.HandleMessage); err != nil {
		log.Error("Failed to subscribe to account states", "error", err)
		os.Exit(1)
	}

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, api_gateway.Dependencies{
		AccountService:   accountService,
		ExecutionService: executionService,
		PreTradeService:  preTradeService,
		QuoteService:     quoteService,
		Streamer:         hub,
		HealthChecks:     healthChecks,
	})
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx, cfg.Server.WriteTimeout); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = stateConsumer.Close(); err != nil {
		log.Error("Error closing account state consumer", "error", err)
	}

	if err = executionProducer.Close(); err != nil {
		log.Error("Error closing execution producer", "error", err)
	}
	if err = quoteProducer.Close(); err != nil {
		log.Error("Error closing quote producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
