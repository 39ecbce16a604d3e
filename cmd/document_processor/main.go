package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/taxdocs-pipeline/internal/config"
	"github.com/taxdocs-pipeline/internal/data/postgres"
	"github.com/taxdocs-pipeline/internal/document_processor/consumer"
	"github.com/taxdocs-pipeline/internal/document_processor/extract"
	"github.com/taxdocs-pipeline/internal/document_processor/service"
	"github.com/taxdocs-pipeline/internal/logger"
	"github.com/taxdocs-pipeline/internal/platform/messaging/consumers"
	"github.com/taxdocs-pipeline/internal/platform/messaging/producers"
	"github.com/taxdocs-pipeline/internal/platform/persistence"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("document_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Document Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize database with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize object storage
	blobStore, err := storage.NewMinioStore(log, &cfg.Storage)
	if err != nil {
		log.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}

	// Initialize repository
	documentRepo := postgres.NewDocumentRepository(log, postgresDB)

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka DLQ producer
	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler is nil-safe.

	// Initialize the extraction pipeline behind a bounded worker pool
	baseService := service.NewProcessingService(log, documentRepo, blobStore, extract.NewPDFExtractor())
	processingService, err := service.NewWorkerPoolProcessingService(baseService, service.WorkerPoolConfig(cfg.WorkerPool), log)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize extraction event handler
	extractionEventHandler := consumer.NewExtractionEventHandler(
		log,
		processingService,
		dlqProducer,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.ExtractionTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.ExtractionTopic, cfg.Kafka.ConsumerGroup, extractionEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

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

	// Shutdown the worker pool
	log.Info("Shutting down worker pool", "running_workers", processingService.Running())
	processingService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

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

	// Close DLQ Kafka producer
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Final status
	if serviceErr != nil {
		log.Error("Document Processor shutdown with errors", "error", serviceErr)
	}
	if err != nil {
		log.Error("Document Processor shutdown completed with errors")
	} else {
		log.Info("Document Processor shutdown completed successfully")
	}
}
