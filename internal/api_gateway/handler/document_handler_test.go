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

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) UploadDocument(ctx context.Context, input *service.UploadDocumentInput) (*document.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentService) GetDocument(ctx context.Context, userID, id uuid.UUID) (*document.Document, string, error) {
	args := m.Called(ctx, userID, id)
	if args.Get(0) == nil {
		return nil, "", args.Error(2)
	}
	return args.Get(0).(*document.Document), args.String(1), args.Error(2)
}

func (m *MockDocumentService) ListDocuments(ctx context.Context, userID uuid.UUID, filter document.Filter) ([]*document.Document, int64, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*document.Document), args.Get(1).(int64), args.Error(2)
}

func (m *MockDocumentService) GetStats(ctx context.Context, userID uuid.UUID) (*document.Stats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Stats), args.Error(1)
}

func (m *MockDocumentService) DeleteDocument(ctx context.Context, userID, id uuid.UUID, cascade bool) error {
	args := m.Called(ctx, userID, id, cascade)
	return args.Error(0)
}

func (m *MockDocumentService) BeginProcessing(ctx context.Context, userID, id uuid.UUID, correlationID string) error {
	args := m.Called(ctx, userID, id, correlationID)
	return args.Error(0)
}

func (m *MockDocumentService) ApproveAndFinalize(ctx context.Context, input *service.ApproveInput) (*document.Document, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentService) CreateFolder(ctx context.Context, userID uuid.UUID, name string) (*document.Folder, error) {
	args := m.Called(ctx, userID, name)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Folder), args.Error(1)
}

func (m *MockDocumentService) ListFolders(ctx context.Context, userID uuid.UUID) ([]*document.Folder, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*document.Folder), args.Error(1)
}

func (m *MockDocumentService) AssignToFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error {
	args := m.Called(ctx, userID, documentID, folderID)
	return args.Error(0)
}

func (m *MockDocumentService) RemoveFromFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error {
	args := m.Called(ctx, userID, documentID, folderID)
	return args.Error(0)
}

var _ service.DocumentService = (*MockDocumentService)(nil)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Identity())
	return r
}

func testDocument(userID uuid.UUID) *document.Document {
	doc, _ := document.NewDocument(userID, uuid.New(), nil, "documents/u/c/1_abcd.pdf", "receipts.pdf", 2048, "application/pdf")
	return doc
}

// decodeData unmarshals the envelope's data field into out
func decodeData(t *testing.T, body []byte, out interface{}) {
	t.Helper()
	var response Response
	require.NoError(t, json.Unmarshal(body, &response))
	require.NotNil(t, response.Data)
	dataBytes, err := json.Marshal(response.Data)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(dataBytes, out))
}

func TestDocumentHandler_GetByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		doc := testDocument(userID)
		mockService.On("GetDocument", mock.Anything, userID, doc.ID).Return(doc, "https://minio/signed", nil)

		router := setupTestRouter()
		router.GET("/documents/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/documents/"+doc.ID.String(), nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var responseBody DocumentResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, doc.ID.String(), responseBody.ID)
		assert.Equal(t, "receipts.pdf", responseBody.FileName)
		assert.Equal(t, "https://minio/signed", responseBody.DownloadURL)
		assert.Equal(t, string(document.StatusUploaded), responseBody.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("GetDocument", mock.Anything, userID, id).
			Return(nil, "", document.ErrDocumentNotFound{DocumentID: id})

		router := setupTestRouter()
		router.GET("/documents/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/documents/"+id.String(), nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidUUID", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/documents/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/documents/not-a-uuid", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("MissingIdentity", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/documents/:id", handler.GetByID)

		req, _ := http.NewRequest(http.MethodGet, "/documents/"+uuid.New().String(), nil)
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_Process(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	t.Run("Accepted", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("BeginProcessing", mock.Anything, userID, id, mock.AnythingOfType("string")).Return(nil)

		router := setupTestRouter()
		router.POST("/documents/:id/process", handler.Process)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+id.String()+"/process", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusAccepted, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("AlreadyCompleted", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("BeginProcessing", mock.Anything, userID, id, mock.AnythingOfType("string")).
			Return(document.ErrInvalidTransition{From: "completed", To: "processing"})

		router := setupTestRouter()
		router.POST("/documents/:id/process", handler.Process)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+id.String()+"/process", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_Approve(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	approveBody := func() []byte {
		body, _ := json.Marshal(ApproveRequest{
			DocumentTypes: []string{"receipt"},
			Transactions: []ApprovedTransactionRequest{
				{
					Date:            "2026-04-12",
					Description:     "Office chair",
					Category:        "equipment",
					Amount:          "-149.99",
					IsAIGenerated:   true,
					ConfidenceScore: 0.92,
				},
			},
		})
		return body
	}

	t.Run("Success", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		doc := testDocument(userID)
		doc.Status = document.StatusProcessed
		mockService.On("ApproveAndFinalize", mock.Anything, mock.MatchedBy(func(input *service.ApproveInput) bool {
			return input.UserID == userID &&
				input.DocumentID == doc.ID &&
				len(input.Transactions) == 1 &&
				input.Transactions[0].Amount.String() == "-149.99"
		})).Return(doc, nil)

		router := setupTestRouter()
		router.POST("/documents/:id/approve", handler.Approve)

		req, _ := http.NewRequest(http.MethodPost, "/documents/"+doc.ID.String()+"/approve", bytes.NewBuffer(approveBody()))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var responseBody DocumentResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, string(document.StatusProcessed), responseBody.Status)
		mockService.AssertExpectations(t)
	})

	t.Run("EmptyBatch", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("ApproveAndFinalize", mock.Anything, mock.Anything).Return(nil, transaction.ErrEmptyBatch)

		router := setupTestRouter()
		router.POST("/documents/:id/approve", handler.Approve)

		body, _ := json.Marshal(ApproveRequest{Transactions: []ApprovedTransactionRequest{}})
		req, _ := http.NewRequest(http.MethodPost, "/documents/"+id.String()+"/approve", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
	})

	t.Run("BadAmount", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		router := setupTestRouter()
		router.POST("/documents/:id/approve", handler.Approve)

		body, _ := json.Marshal(ApproveRequest{
			Transactions: []ApprovedTransactionRequest{
				{Date: "2026-04-12", Description: "x", Amount: "not-a-number"},
			},
		})
		req, _ := http.NewRequest(http.MethodPost, "/documents/"+uuid.New().String()+"/approve", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_Delete(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	t.Run("NoContent", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("DeleteDocument", mock.Anything, userID, id, false).Return(nil)

		router := setupTestRouter()
		router.DELETE("/documents/:id", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/documents/"+id.String(), nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("CascadeFlag", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("DeleteDocument", mock.Anything, userID, id, true).Return(nil)

		router := setupTestRouter()
		router.DELETE("/documents/:id", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/documents/"+id.String()+"?cascade=true", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("HasTransactions", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		id := uuid.New()
		mockService.On("DeleteDocument", mock.Anything, userID, id, false).
			Return(document.ErrDocumentHasTransactions{DocumentID: id})

		router := setupTestRouter()
		router.DELETE("/documents/:id", handler.Delete)

		req, _ := http.NewRequest(http.MethodDelete, "/documents/"+id.String(), nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusConflict, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_List(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	t.Run("PaginationAndFilters", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		docs := []*document.Document{testDocument(userID), testDocument(userID)}
		mockService.On("ListDocuments", mock.Anything, userID, mock.MatchedBy(func(f document.Filter) bool {
			return f.Status != nil && *f.Status == document.StatusUploaded &&
				f.Limit == 10 && f.Offset == 20
		})).Return(docs, int64(42), nil)

		router := setupTestRouter()
		router.GET("/documents", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/documents?status=uploaded&page=3&per_page=10", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)

		var response Response
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
		require.NotNil(t, response.Meta)
		assert.Equal(t, 3, response.Meta.Page)
		assert.Equal(t, 42, response.Meta.TotalItems)
		assert.Equal(t, 5, response.Meta.TotalPages)
		mockService.AssertExpectations(t)
	})

	t.Run("BadDateFilter", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		router := setupTestRouter()
		router.GET("/documents", handler.List)

		req, _ := http.NewRequest(http.MethodGet, "/documents?uploaded_from=yesterday", nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusBadRequest, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_Folders(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	t.Run("CreateFolder", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		folder, err := document.NewFolder(userID, "2026 receipts")
		require.NoError(t, err)
		mockService.On("CreateFolder", mock.Anything, userID, "2026 receipts").Return(folder, nil)

		router := setupTestRouter()
		router.POST("/folders", handler.CreateFolder)

		body, _ := json.Marshal(CreateFolderRequest{Name: "2026 receipts"})
		req, _ := http.NewRequest(http.MethodPost, "/folders", bytes.NewBuffer(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusCreated, rr.Code)

		var responseBody FolderResponse
		decodeData(t, rr.Body.Bytes(), &responseBody)
		assert.Equal(t, "2026 receipts", responseBody.Name)
		mockService.AssertExpectations(t)
	})

	t.Run("AssignIdempotent", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		folderID := uuid.New()
		documentID := uuid.New()
		mockService.On("AssignToFolder", mock.Anything, userID, documentID, folderID).Return(nil).Twice()

		router := setupTestRouter()
		router.PUT("/folders/:id/documents/:documentId", handler.AssignToFolder)

		for i := 0; i < 2; i++ {
			req, _ := http.NewRequest(http.MethodPut, "/folders/"+folderID.String()+"/documents/"+documentID.String(), nil)
			req.Header.Set(middleware.UserIDHeader, userID.String())
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			assert.Equal(t, http.StatusNoContent, rr.Code)
		}
		mockService.AssertExpectations(t)
	})

	t.Run("FolderNotFound", func(t *testing.T) {
		mockService := new(MockDocumentService)
		handler := NewDocumentHandler(logger, mockService)

		folderID := uuid.New()
		documentID := uuid.New()
		mockService.On("AssignToFolder", mock.Anything, userID, documentID, folderID).
			Return(document.ErrFolderNotFound{FolderID: folderID})

		router := setupTestRouter()
		router.PUT("/folders/:id/documents/:documentId", handler.AssignToFolder)

		req, _ := http.NewRequest(http.MethodPut, "/folders/"+folderID.String()+"/documents/"+documentID.String(), nil)
		req.Header.Set(middleware.UserIDHeader, userID.String())
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		mockService.AssertExpectations(t)
	})
}

func TestDocumentHandler_Stats(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	userID := uuid.New()

	mockService := new(MockDocumentService)
	handler := NewDocumentHandler(logger, mockService)

	mockService.On("GetStats", mock.Anything, userID).Return(&document.Stats{
		TotalDocuments: 6,
		TotalBytes:     14120,
		ByStatus:       map[string]int64{"uploaded": 4, "processed": 2},
	}, nil)

	router := setupTestRouter()
	router.GET("/documents/stats", handler.Stats)

	req, _ := http.NewRequest(http.MethodGet, "/documents/stats", nil)
	req.Header.Set(middleware.UserIDHeader, userID.String())
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)

	var responseBody StatsResponse
	decodeData(t, rr.Body.Bytes(), &responseBody)
	assert.Equal(t, int64(6), responseBody.TotalDocuments)
	assert.Equal(t, int64(14120), responseBody.TotalBytes)
	assert.Equal(t, int64(4), responseBody.ByStatus["uploaded"])
	mockService.AssertExpectations(t)
}
