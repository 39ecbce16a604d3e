package service

import (
	"context"
	"log/slog"

	"github.com/panjf2000/ants/v2"
	"github.com/taxdocs-pipeline/internal/domain/shared"
)

// WorkerPoolProcessingService fans extraction requests out to a bounded ants
// pool while keeping the per-message call synchronous, so the Kafka consumer
// commits an offset only after its extraction finished.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
}

// WorkerPoolConfig sizes the extraction pool
type WorkerPoolConfig struct {
	Size int
}

// NewWorkerPoolProcessingService wraps a processing service with a worker pool
func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
	}, nil
}

// ProcessExtraction submits an extraction to the worker pool and waits for
// its result
func (s *WorkerPoolProcessingService) ProcessExtraction(ctx context.Context, request *shared.ExtractionRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Submitting extraction to worker pool",
		"document_id", request.DocumentID.String(),
	)

	resultChan := make(chan error, 1)
	requestCopy := *request

	err := s.pool.Submit(func() {
		resultChan <- s.baseService.ProcessExtraction(ctx, &requestCopy)
	})

	if err != nil {
		logger.Error("Failed to submit extraction to worker pool",
			"document_id", request.DocumentID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
