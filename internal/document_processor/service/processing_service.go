package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taxdocs-pipeline/internal/document_processor/extract"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/shared"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

// ProcessingServiceImpl runs one extraction end to end: load the document
// row, download the blob, run the extractor, and write the outcome back.
type ProcessingServiceImpl struct {
	docRepo   document.Repository
	store     storage.BlobStore
	extractor extract.Extractor
	logger    *slog.Logger
}

// NewProcessingService creates a new extraction processing service
func NewProcessingService(
	logger *slog.Logger,
	docRepo document.Repository,
	store storage.BlobStore,
	extractor extract.Extractor,
) ProcessingService {
	return &ProcessingServiceImpl{
		docRepo:   docRepo,
		store:     store,
		extractor: extractor,
		logger:    logger,
	}
}

// ProcessExtraction handles one extraction request. A nil return commits the
// Kafka offset: business failures (missing document, unreadable content) are
// recorded on the document and swallowed, while infrastructure failures
// (storage, database) propagate so the message is redelivered.
func (s *ProcessingServiceImpl) ProcessExtraction(ctx context.Context, request *shared.ExtractionRequest) error {
	logger := s.logger
	if request.CorrelationID != "" {
		logger = s.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Processing extraction request",
		"document_id", request.DocumentID.String(),
		"blob_key", request.BlobKey,
	)

	doc, err := s.docRepo.GetByID(ctx, request.DocumentID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound{}) {
			// The document was deleted after the job was published; there is
			// nothing to extract and nothing to mark
			logger.Warn("Document vanished before extraction", "document_id", request.DocumentID.String())
			return nil
		}
		return fmt.Errorf("load document %s: %w", request.DocumentID.String(), err)
	}

	if doc.ProcessingStatus == document.ProcessingCompleted {
		// Redelivered message after a successful run
		logger.Info("Extraction already completed, skipping", "document_id", doc.ID.String())
		return nil
	}

	content, err := s.store.Get(ctx, doc.BlobKey)
	if err != nil {
		return fmt.Errorf("download blob %s: %w", doc.BlobKey, err)
	}

	result, err := s.extractor.Extract(ctx, content, doc.ContentType)
	if err != nil {
		logger.Error("Extraction failed",
			"document_id", doc.ID.String(),
			"content_type", doc.ContentType,
			"error", err,
		)
		return s.markFailed(ctx, doc)
	}

	payload, err := json.Marshal(result.Candidates)
	if err != nil {
		logger.Error("Failed to encode candidates", "document_id", doc.ID.String(), "error", err)
		return s.markFailed(ctx, doc)
	}

	if err := doc.SetProcessingStatus(document.ProcessingCompleted); err != nil {
		logger.Warn("Illegal processing transition, skipping", "document_id", doc.ID.String(), "error", err)
		return nil
	}

	candidates := json.RawMessage(payload)
	count := len(result.Candidates)
	patch := document.Patch{
		ProcessingStatus: &doc.ProcessingStatus,
		Candidates:       &candidates,
		ExtractedCount:   &count,
		ConfidenceScore:  &result.Confidence,
	}
	if err := s.docRepo.ApplyPatch(ctx, doc.ID, patch); err != nil {
		return fmt.Errorf("record extraction outcome for %s: %w", doc.ID.String(), err)
	}

	logger.Info("Extraction completed",
		"document_id", doc.ID.String(),
		"candidates", count,
		"confidence", result.Confidence,
	)

	return nil
}

// markFailed flips the document's processing axis to error. A database
// failure here propagates so the message is retried.
func (s *ProcessingServiceImpl) markFailed(ctx context.Context, doc *document.Document) error {
	if err := doc.SetProcessingStatus(document.ProcessingError); err != nil {
		// Already completed or never started; leave the row alone
		return nil
	}

	patch := document.Patch{ProcessingStatus: &doc.ProcessingStatus}
	if err := s.docRepo.ApplyPatch(ctx, doc.ID, patch); err != nil {
		return fmt.Errorf("record extraction failure for %s: %w", doc.ID.String(), err)
	}

	// The failure is recorded; the message is spent
	return nil
}
