package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/taxdocs-pipeline/internal/api_gateway"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/config"
	"github.com/taxdocs-pipeline/internal/data/mongo"
	"github.com/taxdocs-pipeline/internal/data/postgres"
	"github.com/taxdocs-pipeline/internal/hmrc"
	"github.com/taxdocs-pipeline/internal/logger"
	"github.com/taxdocs-pipeline/internal/platform/messaging/producers"
	"github.com/taxdocs-pipeline/internal/platform/persistence"
	"github.com/taxdocs-pipeline/internal/platform/storage"
	"github.com/taxdocs-pipeline/internal/upload"
)

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

	// Initialize databases with app context; NewPostgresDB applies schema
	// migrations before opening the pool
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

	// Initialize object storage
	blobStore, err := storage.NewMinioStore(log, &cfg.Storage)
	if err != nil {
		log.Error("Failed to initialize object storage", "error", err)
		os.Exit(1)
	}
	if err := blobStore.EnsureBucket(appCtx); err != nil {
		log.Error("Failed to ensure storage bucket", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer (publishes extraction requests)
	kafkaProducer, err := producers.NewExtractionReqMessageProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	documentRepo := postgres.NewDocumentRepository(log, postgresDB)
	folderRepo := postgres.NewFolderRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	submissionRepo := mongo.NewSubmissionRepository(log, mongoDB.Database())

	// Initialize the tax authority client
	hmrcClient := hmrc.NewClient(log, &cfg.HMRC)

	// Initialize the chunked upload session tracker and its idle sweep
	tracker := upload.NewTracker(log, &cfg.Upload, blobStore)
	tracker.StartSweeper(appCtx)

	// Initialize services
	documentService := service.NewDocumentService(log, documentRepo, folderRepo, transactionRepo, blobStore, kafkaProducer, postgresDB, &cfg.Upload)
	uploadService := service.NewUploadService(log, tracker, documentRepo, blobStore)
	transactionService := service.NewTransactionService(log, transactionRepo, documentRepo)
	submissionService := service.NewSubmissionService(log, documentRepo, transactionRepo, submissionRepo, hmrcClient, postgresDB)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, documentService, uploadService, transactionService, submissionService)
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

	// Cancel the application context; this also stops the session sweeper
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server first so no request observes a closed pool
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = kafkaProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
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
