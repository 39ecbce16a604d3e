package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/submission"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	"github.com/taxdocs-pipeline/internal/hmrc"
)

type MockSubmissionService struct {
	mock.Mock
}

func (m *MockSubmissionService) SubmitToHMRC(ctx context.Context, input *service.SubmitInput) (*submission.Record, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submission.Record), args.Error(1)
}

func (m *MockSubmissionService) GetSubmissions(ctx context.Context, userID, documentID uuid.UUID) ([]*submission.Record, error) {
	args := m.Called(ctx, userID, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*submission.Record), args.Error(1)
}

func (m *MockSubmissionService) GetSubmissionRows(ctx context.Context, submissionID uuid.UUID) ([]*submission.ExternalTransaction, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*submission.ExternalTransaction), args.Error(1)
}

var _ service.SubmissionService = (*MockSubmissionService)(nil)

func TestSubmissionHandler_Submit(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	submitBody := func() []byte {
		body, _ := json.Marshal(SubmitRequest{TaxYear: "2025-26", PeriodKey: "26A1"})
		return body
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockSubmissionService)
		handler := NewSubmissionHandler(logger, mockService)

		documentID := uuid.New()
		record := submission.NewRecord(userID, uuid.New(), nil, documentID, "2025-26", "26A1", 3)
		record.MarkSubmitted()

		mockService.On("SubmitToHMRC", mock.Anything, mock.MatchedBy(func(input *service.SubmitInput) bool {
			return input.UserID == userID && input.DocumentID == documentID && input.TaxYear == "2025-26"
		})).Return(record, nil)

		router := setupTestRouter()
		router.POST("/documents/:id/submit", handler.Submit)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+documentID.String()+"/submit", bytes.NewBuffer(submitBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var responseBody SubmissionResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, string(submission.StatusSubmitted), responseBody.Status)
		assert.Equal(t, 3, responseBody.TransactionCount)
		mockService.AssertExpectations(t)
	})

	t.Run("AuthorityRejection", func(t *testing.T) {
		mockService := new(MockSubmissionService)
		handler := NewSubmissionHandler(logger, mockService)

		documentID := uuid.New()
		rejection := &hmrc.AuthorityError{
			StatusCode: 422,
			Body:       `{"code":"INVALID_PERIOD"}`,
		}
		record := submission.NewRecord(userID, uuid.New(), nil, documentID, "2025-26", "26A1", 3)
		record.MarkFailed(rejection.Body)

		mockService.On("SubmitToHMRC", mock.Anything, mock.Anything).Return(record, rejection)

		router := setupTestRouter()
		router.POST("/documents/:id/submit", handler.Submit)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+documentID.String()+"/submit", bytes.NewBuffer(submitBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		// The client gets the failed record with the authority's payload verbatim
		assert.Equal(t, http.StatusUnprocessableEntity, rr.Code)

		var responseBody SubmissionResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, string(submission.StatusFailed), responseBody.Status)
		assert.Equal(t, rejection.Body, responseBody.AuthorityError)
		mockService.AssertExpectations(t)
	})

	t.Run("NothingToSubmit", func(t *testing.T) {
		mockService := new(MockSubmissionService)
		handler := NewSubmissionHandler(logger, mockService)

		documentID := uuid.New()
		mockService.On("SubmitToHMRC", mock.Anything, mock.Anything).Return(nil, transaction.ErrEmptyBatch)

		router := setupTestRouter()
		router.POST("/documents/:id/submit", handler.Submit)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+documentID.String()+"/submit", bytes.NewBuffer(submitBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("DocumentNotFound", func(t *testing.T) {
		mockService := new(MockSubmissionService)
		handler := NewSubmissionHandler(logger, mockService)

		documentID := uuid.New()
		mockService.On("SubmitToHMRC", mock.Anything, mock.Anything).
			Return(nil, document.ErrDocumentNotFound{DocumentID: documentID})

		router := setupTestRouter()
		router.POST("/documents/:id/submit", handler.Submit)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+documentID.String()+"/submit", bytes.NewBuffer(submitBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingTaxYear", func(t *testing.T) {
		mockService := new(MockSubmissionService)
		handler := NewSubmissionHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/documents/:id/submit", handler.Submit)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+uuid.New().String()+"/submit", bytes.NewBufferString(`{}`))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestSubmissionHandler_GetRows(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	mockService := new(MockSubmissionService)
	handler := NewSubmissionHandler(logger, mockService)

	submissionID := uuid.New()
	rows := []*submission.ExternalTransaction{
		{
			ID:                uuid.New(),
			SubmissionID:      submissionID,
			TransactionID:     uuid.New(),
			AuthorityID:       "hmrc-1",
			ExternalReference: "doc-tx",
			Direction:         "expense",
			Amount:            "-10.00",
		},
	}
	mockService.On("GetSubmissionRows", mock.Anything, submissionID).Return(rows, nil)

	router := setupTestRouter()
	router.GET("/submissions/:id/transactions", handler.GetRows)

	req, _ := http.NewRequest(http.MethodGet, "/submissions/"+submissionID.String()+"/transactions", nil)
	req.Header.Set(middleware.UserIDHeader, userID.String())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var responseBody []ExternalTransactionResponse
	decodeData(t, rr.Body.Bytes(), &responseBody)
	require.Len(t, responseBody, 1)
	assert.Equal(t, "hmrc-1", responseBody[0].AuthorityID)
	assert.Equal(t, "-10.00", responseBody[0].Amount)
	mockService.AssertExpectations(t)
}
