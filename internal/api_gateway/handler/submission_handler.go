package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/submission"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	"github.com/taxdocs-pipeline/internal/hmrc"
)

// SubmissionHandler handles HTTP requests for the HMRC submission flow
type SubmissionHandler struct {
	submissionService service.SubmissionService
	logger            *slog.Logger
}

// NewSubmissionHandler creates a new submission handler
func NewSubmissionHandler(logger *slog.Logger, submissionService service.SubmissionService) *SubmissionHandler {
	return &SubmissionHandler{
		submissionService: submissionService,
		logger:            logger,
	}
}

// Submit runs the per-transaction submission protocol for a document. On an
// authority rejection the response carries the failed record: the client sees
// which attempt failed and what the authority said, and can inspect the
// already-accepted rows through the submission detail endpoint.
func (h *SubmissionHandler) Submit(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	var req SubmitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	record, err := h.submissionService.SubmitToHMRC(c.Request.Context(), &service.SubmitInput{
		UserID:     middleware.GetUserID(c),
		DocumentID: documentID,
		TaxYear:    req.TaxYear,
		PeriodKey:  req.PeriodKey,
	})
	if err != nil {
		var authorityErr *hmrc.AuthorityError
		switch {
		case errors.Is(err, document.ErrDocumentNotFound{}):
			RespondNotFound(c, "Document not found")
		case errors.Is(err, transaction.ErrEmptyBatch):
			RespondBadRequest(c, "Document has no approved transactions to submit")
		case errors.As(err, &authorityErr):
			// The record in the body names the failure; 422 mirrors the
			// authority's rejection of the content
			RespondWithData(c, http.StatusUnprocessableEntity, mapSubmissionToResponse(record))
		default:
			h.logger.Error("Submission failed",
				"document_id", documentID.String(),
				"error", err,
			)
			if record != nil {
				RespondBadGateway(c, "Submission failed: "+record.AuthorityError)
				return
			}
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapSubmissionToResponse(record))
}

// ListByDocument lists submission records for a document, newest first
func (h *SubmissionHandler) ListByDocument(c *gin.Context) {
	documentID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid document ID")
		return
	}

	records, err := h.submissionService.GetSubmissions(c.Request.Context(), middleware.GetUserID(c), documentID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound{}) {
			RespondNotFound(c, "Document not found")
			return
		}
		h.logger.Error("Failed to list submissions", "document_id", documentID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]SubmissionResponse, 0, len(records))
	for _, record := range records {
		responses = append(responses, mapSubmissionToResponse(record))
	}

	RespondOK(c, responses)
}

// GetRows lists the authority-accepted transaction rows of a submission in
// acceptance order. For failed submissions this is the reconciliation ledger.
func (h *SubmissionHandler) GetRows(c *gin.Context) {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid submission ID")
		return
	}

	rows, err := h.submissionService.GetSubmissionRows(c.Request.Context(), submissionID)
	if err != nil {
		h.logger.Error("Failed to get submission rows", "submission_id", submissionID.String(), "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]ExternalTransactionResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, ExternalTransactionResponse{
			TransactionID:     row.TransactionID.String(),
			AuthorityID:       row.AuthorityID,
			ExternalReference: row.ExternalReference,
			Direction:         row.Direction,
			Amount:            row.Amount,
			Date:              row.Date.Format("2006-01-02"),
			Description:       row.Description,
			SubmittedAt:       row.SubmittedAt.Format(time.RFC3339),
		})
	}

	RespondOK(c, responses)
}

// mapSubmissionToResponse maps a submission record to a response DTO
func mapSubmissionToResponse(record *submission.Record) SubmissionResponse {
	response := SubmissionResponse{
		ID:               record.ID.String(),
		DocumentID:       record.DocumentID.String(),
		TaxYear:          record.TaxYear,
		PeriodKey:        record.PeriodKey,
		Status:           string(record.Status),
		AuthorityError:   record.AuthorityError,
		TransactionCount: record.TransactionCount,
		CreatedAt:        record.CreatedAt.Format(time.RFC3339),
	}

	if record.CompletedAt != nil {
		response.CompletedAt = record.CompletedAt.Format(time.RFC3339)
	}

	return response
}
