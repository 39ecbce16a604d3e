package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/taxdocs-pipeline/internal/document_processor/service"
	"github.com/taxdocs-pipeline/internal/domain/shared"
	"github.com/taxdocs-pipeline/internal/platform/messaging/producers"
)

// ExtractionEventHandler handles incoming extraction request messages from Kafka
type ExtractionEventHandler struct {
	processingService service.ProcessingService
	producer          producers.DeadLetterPublisher
	logger            *slog.Logger
}

// NewExtractionEventHandler creates a new handler
func NewExtractionEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	producer producers.DeadLetterPublisher,
) *ExtractionEventHandler {
	return &ExtractionEventHandler{
		processingService: processingService,
		producer:          producer,
		logger:            logger,
	}
}

// HandleMessage processes Kafka messages. Poison messages go to the DLQ and
// their offset is committed; infrastructure failures are returned so the
// message is redelivered.
func (h *ExtractionEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var request shared.ExtractionRequest
	if err := json.Unmarshal(value, &request); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal extraction request from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.producer != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.producer.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Successfully published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				// Message handled, commit offset
				return nil
			}
		}
		// Allow Kafka retries
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if request.CorrelationID != "" {
		logger = h.logger.With("correlation_id", request.CorrelationID)
	}

	logger.Info("Received extraction request",
		"document_id", request.DocumentID.String(),
		"blob_key", request.BlobKey,
		"content_type", request.ContentType,
	)

	if err := h.processingService.ProcessExtraction(ctx, &request); err != nil {
		logger.Error("Failed to process extraction request",
			"document_id", request.DocumentID.String(),
			"error", err,
		)
		return fmt.Errorf("processing extraction for document %s failed: %w", request.DocumentID.String(), err)
	}

	logger.Info("Successfully handled extraction request", "document_id", request.DocumentID.String())
	return nil
}
