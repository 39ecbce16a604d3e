package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
)

// DocumentHandler handles HTTP requests for document and folder operations
type DocumentHandler struct {
	documentService service.DocumentService
	logger          *slog.Logger
}

// NewDocumentHandler creates a new document handler
func NewDocumentHandler(logger *slog.Logger, documentService service.DocumentService) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		logger:          logger,
	}
}

// Upload accepts an inline document upload as multipart form data. Files over
// the inline cap must use the chunked upload endpoints instead.
func (h *DocumentHandler) Upload(c *gin.Context) {
	clientID, err := uuid.Parse(c.PostForm("client_id"))
	if err != nil {
		RespondBadRequest(c, "Invalid client_id")
		return
	}

	var businessID *uuid.UUID
	if raw := c.PostForm("business_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid business_id")
			return
		}
		businessID = &id
	}

	var documentTypes []string
	if raw := c.PostForm("document_types"); raw != "" {
		for _, t := range strings.Split(raw, ",") {
			if t = strings.TrimSpace(t); t != "" {
				documentTypes = append(documentTypes, t)
			}
		}
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondBadRequest(c, "Missing file")
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.logger.Error("Failed to open uploaded file", "error", err)
		RespondBadRequest(c, "Unreadable file")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		h.logger.Error("Failed to read uploaded file", "error", err)
		RespondInternalError(c)
		return
	}

	doc, err := h.documentService.UploadDocument(c.Request.Context(), &service.UploadDocumentInput{
		UserID:        middleware.GetUserID(c),
		ClientID:      clientID,
		BusinessID:    businessID,
		FileName:      fileHeader.Filename,
		Content:       content,
		DocumentTypes: documentTypes,
	})
	if err != nil {
		var tooLarge domainupload.ErrFileTooLarge
		switch {
		case errors.Is(err, document.ErrUnsupportedFormat):
			RespondBadRequest(c, "Unsupported document format")
		case errors.As(err, &tooLarge):
			RespondPayloadTooLarge(c, tooLarge.Error()+"; use the chunked upload endpoints")
		default:
			h.logger.Error("Failed to upload document", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapDocumentToResponse(doc, ""))
}

// GetByID retrieves a document with a short-lived download URL
func (h *DocumentHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	doc, url, err := h.documentService.GetDocument(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound{}) {
			RespondNotFound(c, "Document not found")
			return
		}
		h.logger.Error("Failed to get document", "document_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapDocumentToResponse(doc, url))
}

// List retrieves the caller's documents with optional filters
func (h *DocumentHandler) List(c *gin.Context) {
	var query ListDocumentsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := buildDocumentFilter(query)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	docs, total, err := h.documentService.ListDocuments(c.Request.Context(), middleware.GetUserID(c), filter)
	if err != nil {
		h.logger.Error("Failed to list documents", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]DocumentResponse, 0, len(docs))
	for _, doc := range docs {
		responses = append(responses, mapDocumentToResponse(doc, ""))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, query.Page, query.PerPage, int(total))
}

// Stats aggregates the caller's document counts and byte totals
func (h *DocumentHandler) Stats(c *gin.Context) {
	stats, err := h.documentService.GetStats(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("Failed to get document stats", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, StatsResponse{
		TotalDocuments:     stats.TotalDocuments,
		TotalBytes:         stats.TotalBytes,
		ByStatus:           stats.ByStatus,
		ByProcessingStatus: stats.ByProcessingStatus,
	})
}

// Delete removes a document. Documents with transaction rows are refused
// unless ?cascade=true; submitted rows block the delete either way.
func (h *DocumentHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	cascade := c.Query("cascade") == "true"

	err = h.documentService.DeleteDocument(c.Request.Context(), middleware.GetUserID(c), id, cascade)
	if err != nil {
		var hasTransactions document.ErrDocumentHasTransactions
		switch {
		case errors.Is(err, document.ErrDocumentNotFound{}):
			RespondNotFound(c, "Document not found")
		case errors.As(err, &hasTransactions):
			RespondConflict(c, hasTransactions.Error())
		default:
			h.logger.Error("Failed to delete document", "document_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondNoContent(c)
}

// Process starts asynchronous extraction for a document. The 202 response
// only acknowledges the job; progress is visible on the document itself.
func (h *DocumentHandler) Process(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	err = h.documentService.BeginProcessing(c.Request.Context(), middleware.GetUserID(c), id, middleware.GetCorrelationID(c))
	if err != nil {
		var invalid document.ErrInvalidTransition
		switch {
		case errors.Is(err, document.ErrDocumentNotFound{}):
			RespondNotFound(c, "Document not found")
		case errors.As(err, &invalid):
			RespondConflict(c, invalid.Error())
		default:
			h.logger.Error("Failed to start processing", "document_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondAccepted(c, gin.H{
		"document_id": id.String(),
		"status":      string(document.ProcessingInProgress),
	})
}

// Approve finalizes a reviewed extraction batch: document metadata and the
// approved transaction rows are persisted atomically
func (h *DocumentHandler) Approve(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	var req ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	input := &service.ApproveInput{
		UserID:        middleware.GetUserID(c),
		DocumentID:    id,
		DocumentTypes: req.DocumentTypes,
	}
	for _, tr := range req.Transactions {
		date, err := parseDate(tr.Date)
		if err != nil {
			RespondBadRequest(c, "Invalid date on transaction "+tr.Description)
			return
		}
		amount, err := decimal.NewFromString(tr.Amount)
		if err != nil {
			RespondBadRequest(c, "Invalid amount on transaction "+tr.Description)
			return
		}
		input.Transactions = append(input.Transactions, service.ApprovedTransaction{
			Date:        date,
			Description: tr.Description,
			Category:    tr.Category,
			Amount:      amount,
			Currency:    tr.Currency,
			IsAI:        tr.IsAIGenerated,
			Confidence:  tr.ConfidenceScore,
			Notes:       tr.Notes,
		})
	}

	doc, err := h.documentService.ApproveAndFinalize(c.Request.Context(), input)
	if err != nil {
		var invalid document.ErrInvalidTransition
		switch {
		case errors.Is(err, transaction.ErrEmptyBatch):
			RespondBadRequest(c, "Approval batch cannot be empty")
		case errors.Is(err, document.ErrDocumentNotFound{}):
			RespondNotFound(c, "Document not found")
		case errors.As(err, &invalid):
			RespondConflict(c, invalid.Error())
		case errors.Is(err, transaction.ErrEmptyDescription), errors.Is(err, transaction.ErrInvalidCurrencyFormat):
			RespondBadRequest(c, err.Error())
		default:
			h.logger.Error("Failed to approve document", "document_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapDocumentToResponse(doc, ""))
}

// CreateFolder creates a named folder for the caller
func (h *DocumentHandler) CreateFolder(c *gin.Context) {
	var req CreateFolderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	folder, err := h.documentService.CreateFolder(c.Request.Context(), middleware.GetUserID(c), req.Name)
	if err != nil {
		if errors.Is(err, document.ErrEmptyFolderName) {
			RespondBadRequest(c, "Folder name cannot be empty")
			return
		}
		h.logger.Error("Failed to create folder", "error", err)
		RespondInternalError(c)
		return
	}

	RespondCreated(c, mapFolderToResponse(folder))
}

// ListFolders lists the caller's folders
func (h *DocumentHandler) ListFolders(c *gin.Context) {
	folders, err := h.documentService.ListFolders(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		h.logger.Error("Failed to list folders", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]FolderResponse, 0, len(folders))
	for _, folder := range folders {
		responses = append(responses, mapFolderToResponse(folder))
	}

	RespondOK(c, responses)
}

// AssignToFolder places a document into a folder; repeating the call is a no-op
func (h *DocumentHandler) AssignToFolder(c *gin.Context) {
	folderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid folder ID")
		return
	}
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	err = h.documentService.AssignToFolder(c.Request.Context(), middleware.GetUserID(c), documentID, folderID)
	if err != nil {
		h.respondFolderError(c, err, folderID, documentID)
		return
	}

	RespondNoContent(c)
}

// RemoveFromFolder takes a document out of a folder
func (h *DocumentHandler) RemoveFromFolder(c *gin.Context) {
	folderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid folder ID")
		return
	}
	documentID, err := uuid.Parse(c.Param("documentId"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	err = h.documentService.RemoveFromFolder(c.Request.Context(), middleware.GetUserID(c), documentID, folderID)
	if err != nil {
		h.respondFolderError(c, err, folderID, documentID)
		return
	}

	RespondNoContent(c)
}

func (h *DocumentHandler) respondFolderError(c *gin.Context, err error, folderID, documentID uuid.UUID) {
	switch {
	case errors.Is(err, document.ErrFolderNotFound{}):
		RespondNotFound(c, "Folder not found")
	case errors.Is(err, document.ErrDocumentNotFound{}):
		RespondNotFound(c, "Document not found")
	default:
		h.logger.Error("Folder operation failed",
			"folder_id", folderID.String(),
			"document_id", documentID.String(),
			"error", err,
		)
		RespondInternalError(c)
	}
}

// parseDate accepts RFC 3339 timestamps or bare 2006-01-02 dates
func parseDate(raw string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", raw)
}

// mapDocumentToResponse maps a document entity to a document response DTO
func mapDocumentToResponse(doc *document.Document, downloadURL string) DocumentResponse {
	response := DocumentResponse{
		ID:               doc.ID.String(),
		ClientID:         doc.ClientID.String(),
		FileName:         doc.FileName,
		FileSize:         doc.FileSize,
		ContentType:      doc.ContentType,
		DocumentTypes:    doc.DocumentTypes,
		Status:           string(doc.Status),
		ProcessingStatus: string(doc.ProcessingStatus),
		ExtractedCount:   doc.ExtractedCount,
		ConfidenceScore:  doc.ConfidenceScore,
		DownloadURL:      downloadURL,
		UploadedAt:       doc.UploadedAt.Format(time.RFC3339),
	}

	if doc.BusinessID != nil {
		response.BusinessID = doc.BusinessID.String()
	}
	if len(doc.Candidates) > 0 {
		response.Candidates = doc.Candidates
	}
	if doc.ProcessedAt != nil {
		response.ProcessedAt = doc.ProcessedAt.Format(time.RFC3339)
	}
	if doc.SubmittedAt != nil {
		response.SubmittedAt = doc.SubmittedAt.Format(time.RFC3339)
	}

	return response
}

// mapFolderToResponse maps a folder entity to a folder response DTO
func mapFolderToResponse(folder *document.Folder) FolderResponse {
	return FolderResponse{
		ID:        folder.ID.String(),
		Name:      folder.Name,
		CreatedAt: folder.CreatedAt.Format(time.RFC3339),
	}
}

// buildDocumentFilter translates query parameters into a domain filter
func buildDocumentFilter(query ListDocumentsQuery) (document.Filter, error) {
	filter := document.Filter{
		Limit:  query.PerPage,
		Offset: (query.Page - 1) * query.PerPage,
	}

	if query.ClientID != "" {
		id, err := uuid.Parse(query.ClientID)
		if err != nil {
			return filter, errors.New("invalid client_id")
		}
		filter.ClientID = &id
	}
	if query.BusinessID != "" {
		id, err := uuid.Parse(query.BusinessID)
		if err != nil {
			return filter, errors.New("invalid business_id")
		}
		filter.BusinessID = &id
	}
	if query.DocumentType != "" {
		filter.DocumentType = &query.DocumentType
	}
	if query.Status != "" {
		status := document.Status(query.Status)
		filter.Status = &status
	}
	if query.ProcessingStatus != "" {
		status := document.ProcessingStatus(query.ProcessingStatus)
		filter.ProcessingStatus = &status
	}
	if query.Search != "" {
		filter.Search = &query.Search
	}
	if query.UploadedFrom != "" {
		from, err := time.Parse(time.RFC3339, query.UploadedFrom)
		if err != nil {
			return filter, errors.New("invalid uploaded_from: expected RFC 3339")
		}
		filter.UploadedFrom = &from
	}
	if query.UploadedTo != "" {
		to, err := time.Parse(time.RFC3339, query.UploadedTo)
		if err != nil {
			return filter, errors.New("invalid uploaded_to: expected RFC 3339")
		}
		filter.UploadedTo = &to
	}

	return filter, nil
}
