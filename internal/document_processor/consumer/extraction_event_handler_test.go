package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxdocs-pipeline/internal/document_processor/service"
	"github.com/taxdocs-pipeline/internal/domain/shared"
)

type MockProcessingService struct {
	mock.Mock
}

func (m *MockProcessingService) ProcessExtraction(ctx context.Context, request *shared.ExtractionRequest) error {
	args := m.Called(ctx, request)
	return args.Error(0)
}

var _ service.ProcessingService = (*MockProcessingService)(nil)

type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, value []byte, reason string) error {
	args := m.Called(ctx, key, value, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func newHandlerFixture() (*MockProcessingService, *MockDeadLetterPublisher, *ExtractionEventHandler) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	processing := &MockProcessingService{}
	dlq := &MockDeadLetterPublisher{}
	return processing, dlq, NewExtractionEventHandler(logger, processing, dlq)
}

func TestExtractionEventHandler_HandleMessage(t *testing.T) {
	ctx := context.Background()

	validRequest := shared.ExtractionRequest{
		DocumentID:    uuid.New(),
		UserID:        uuid.New(),
		ClientID:      uuid.New(),
		BlobKey:       "documents/u/c/1_abcd.pdf",
		ContentType:   "application/pdf",
		CorrelationID: "corr-1",
		Timestamp:     time.Now(),
	}
	validPayload, err := json.Marshal(validRequest)
	require.NoError(t, err)

	t.Run("valid message is handed to the processing service", func(t *testing.T) {
		processing, dlq, handler := newHandlerFixture()

		processing.On("ProcessExtraction", mock.Anything, mock.MatchedBy(func(r *shared.ExtractionRequest) bool {
			return r.DocumentID == validRequest.DocumentID && r.BlobKey == validRequest.BlobKey
		})).Return(nil)

		err := handler.HandleMessage(ctx, []byte(validRequest.DocumentID.String()), validPayload)
		assert.NoError(t, err)
		processing.AssertExpectations(t)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})

	t.Run("processing failure is returned for redelivery", func(t *testing.T) {
		processing, dlq, handler := newHandlerFixture()
		procErr := errors.New("database unavailable")

		processing.On("ProcessExtraction", mock.Anything, mock.Anything).Return(procErr)

		err := handler.HandleMessage(ctx, []byte("key"), validPayload)
		assert.ErrorIs(t, err, procErr)
		dlq.AssertNotCalled(t, "PublishToDLQ")
	})

	t.Run("poison message goes to the DLQ and commits", func(t *testing.T) {
		processing, dlq, handler := newHandlerFixture()
		poison := []byte("{not json")

		dlq.On("PublishToDLQ", mock.Anything, "key-1", poison, mock.Anything).Return(nil)

		err := handler.HandleMessage(ctx, []byte("key-1"), poison)
		assert.NoError(t, err)
		dlq.AssertExpectations(t)
		processing.AssertNotCalled(t, "ProcessExtraction")
	})

	t.Run("DLQ publish failure keeps the message retryable", func(t *testing.T) {
		_, dlq, handler := newHandlerFixture()
		poison := []byte("{not json")

		dlq.On("PublishToDLQ", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(errors.New("broker down"))

		err := handler.HandleMessage(ctx, []byte("key-1"), poison)
		assert.Error(t, err)
	})

	t.Run("poison message without a DLQ producer is returned", func(t *testing.T) {
		logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
		processing := &MockProcessingService{}
		handler := NewExtractionEventHandler(logger, processing, nil)

		err := handler.HandleMessage(ctx, []byte("key"), []byte("{not json"))
		assert.Error(t, err)
		processing.AssertNotCalled(t, "ProcessExtraction")
	})
}
