package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/trading-account-engine/internal/account_processor/components"
	"github.com/trading-account-engine/internal/account_processor/consumer"
	"github.com/trading-account-engine/internal/account_processor/outbox_poller"
	"github.com/trading-account-engine/internal/account_processor/service"
	"github.com/trading-account-engine/internal/config"
	"github.com/trading-account-engine/internal/data/mongo"
	"github.com/trading-account-engine/internal/data/postgres"
	"github.com/trading-account-engine/internal/domain/instrument"
	"github.com/trading-account-engine/internal/logger"
	"github.com/trading-account-engine/internal/platform/clock"
	"github.com/trading-account-engine/internal/platform/marketdata"
	"github.com/trading-account-engine/internal/platform/messaging/consumers"
	"github.com/trading-account-engine/internal/platform/messaging/producers"
	"github.com/trading-account-engine/internal/platform/metrics"
	"github.com/trading-account-engine/internal/platform/persistence"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("account_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Account Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
		"calculated_issuers", cfg.Accounting.CalculatedIssuers,
	)

	// Instruments are static for the life of the process
	instruments, err := instrument.LoadProviderFile(cfg.Accounting.InstrumentsFile)
	if err != nil {
		log.Error("Failed to load instruments", "file", cfg.Accounting.InstrumentsFile, "error", err)
		os.Exit(1)
	}
	log.Info("Loaded instruments", "count", instruments.Count())

	// Initialize databases with app context
	if err := persistence.RunMigrations(log, cfg.Postgres.URL, cfg.Postgres.MigrationsPath); err != nil {
		log.Error("Failed to run PostgreSQL migrations", "error", err)
		os.Exit(1)
	}

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

	// Initialize repositories
	eventRepo := postgres.NewAccountEventRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)
	ledgerRepo := mongo.NewLedgerRepository(log, mongoDB.Database())
	snapshotRepo := mongo.NewSnapshotRepository(log, mongoDB.Database())

	if err := ledgerRepo.EnsureIndexes(appCtx); err != nil {
		log.Error("Failed to ensure ledger indexes", "error", err)
		os.Exit(1)
	}

	// Rate cache, warmed from Redis when configured
	cache := marketdata.NewMemoryCache()
	var quoteStore consumer.QuoteStore
	if cfg.Redis.Enabled() {
		rdb, err := marketdata.NewRedisClient(appCtx, &cfg.Redis)
		if err != nil {
			log.Error("Failed to initialize Redis", "error", err)
			os.Exit(1)
		}
		defer rdb.Close()

		store := marketdata.NewRedisQuoteStore(rdb, cfg.Redis.QuoteTTL, log)
		warmed, err := store.Warm(appCtx, cache, instruments)
		if err != nil {
			log.Warn("Failed to warm rate cache", "error", err)
		}
		log.Info("Rate cache warmed", "quotes", warmed)
		quoteStore = store
	}

	// Ensure consumed topics exist before the readers join their groups
	for _, topic := range []string{cfg.Kafka.ExecutionTopic, cfg.Kafka.QuoteTopic} {
		if err := producers.EnsureTopic(cfg.Kafka.Brokers, topic, cfg.Kafka.NumPartitions, cfg.Kafka.ReplicationFactor, log); err != nil {
			log.Error("Failed to ensure Kafka topic", "topic", topic, "error", err)
			os.Exit(1)
		}
	}

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer is nil if DLQTopic is not configured; PublishToDLQ is nil-safe.

	stateProducer, err := producers.NewTopicProducer(appCtx, log, &cfg.Kafka, cfg.Kafka.AccountStateTopic, false)
	if err != nil {
		log.Error("Failed to initialize account state producer", "error", err)
		os.Exit(1)
	}

	// Initialize processing service with separated concerns
	processingService, registry, err := components.CreateProcessingService(
		components.ProcessingDeps{
			DB:          postgresDB,
			EventRepo:   eventRepo,
			OutboxRepo:  outboxRepo,
			LedgerRepo:  ledgerRepo,
			Instruments: instruments,
			Cache:       cache,
			Positions:   cache,
			Clock:       clock.NewLiveClock(),
		},
		log,
		cfg,
	)
	if err != nil {
		log.Error("Failed to create processing service", "error", err)
		os.Exit(1)
	}

	executionHandler := consumer.NewExecutionEventHandler(log, processingService, dlqProducer, cfg.Kafka.ExecutionTopic)
	quoteHandler := consumer.NewQuoteEventHandler(log, cache, quoteStore, instruments)

	executionConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka,
		cfg.Kafka.ExecutionTopic, cfg.Kafka.ConsumerGroup, cfg.Kafka.StartOffset)
	quoteConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka,
		cfg.Kafka.QuoteTopic, cfg.Kafka.QuoteConsumerGroup, cfg.Kafka.StartOffset)

	// Initialize outbox poller
	statePublisher := outbox_poller.NewStatePublisher(outboxRepo, ledgerRepo, snapshotRepo, stateProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, statePublisher, log)

	metricsServer := metrics.NewServer(cfg.Metrics.Port, log)
	metricsServer.Start()

	// Create error channel for service errors
	errChan := make(chan error, 2)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Quotes first, so rates are flowing when executions arrive
	if err := quoteConsumer.Subscribe(appCtx, quoteHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("quote consumer error: %w", err)
	}
	if err := executionConsumer.Subscribe(appCtx, executionHandler.HandleMessage); err != nil {
		errChan <- fmt.Errorf("execution consumer error: %w", err)
	}

	// Start outbox poller in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Outbox Poller",
			"interval", cfg.Outbox.PollingInterval.String(),
			"batch_size", cfg.Outbox.BatchSize,
		)
		poller.Start(appCtx)
	}()

	if cfg.Accounting.EventRetention > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			registry.RunPurger(appCtx, cfg.Accounting.EventRetention/2)
		}()
	}

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Shutdown the worker pool if it's a WorkerPoolProcessingService
	if wpService, ok := processingService.(*service.WorkerPoolProcessingService); ok {
		log.Info("Shutting down worker pool", "running_workers", wpService.Running())
		wpService.Shutdown()
	}

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...", "live_accounts", registry.Len())

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka consumers
	if err = executionConsumer.Close(); err != nil {
		log.Error("Error closing execution consumer", "error", err)
	}
	if err = quoteConsumer.Close(); err != nil {
		log.Error("Error closing quote consumer", "error", err)
	}

	// Close Kafka producers
	if err = stateProducer.Close(); err != nil {
		log.Error("Error closing account state producer", "error", err)
	}
	if err = dlqProducer.Close(); err != nil {
		log.Error("Error closing DLQ Kafka producer", "error", err)
	}

	if err = metricsServer.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping metrics server", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Account Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Account Processor shutdown completed with errors")
	} else {
		log.Info("Account Processor shutdown completed successfully")
	}
}
