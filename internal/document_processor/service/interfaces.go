package service

import (
	"context"

	"github.com/taxdocs-pipeline/internal/domain/shared"
)

// ProcessingService defines the interface for processing extraction requests.
type ProcessingService interface {
	ProcessExtraction(ctx context.Context, request *shared.ExtractionRequest) error
}
