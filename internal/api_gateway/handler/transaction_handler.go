package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
)

// TransactionHandler handles HTTP requests for persisted transaction rows
type TransactionHandler struct {
	transactionService service.TransactionService
	logger             *slog.Logger
}

// NewTransactionHandler creates a new transaction handler
func NewTransactionHandler(logger *slog.Logger, transactionService service.TransactionService) *TransactionHandler {
	return &TransactionHandler{
		transactionService: transactionService,
		logger:             logger,
	}
}

// GetByID retrieves one transaction row
func (h *TransactionHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	row, err := h.transactionService.GetTransaction(c.Request.Context(), middleware.GetUserID(c), id)
	if err != nil {
		if errors.Is(err, transaction.ErrTransactionNotFound{}) {
			RespondNotFound(c, "Transaction not found")
			return
		}
		h.logger.Error("Failed to get transaction", "transaction_id", id.String(), "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapTransactionToResponse(row))
}

// List retrieves transactions matching the query filters
func (h *TransactionHandler) List(c *gin.Context) {
	var query ListTransactionsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		RespondBadRequest(c, "Invalid query parameters: "+err.Error())
		return
	}

	filter, err := buildTransactionFilter(query)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	rows, err := h.transactionService.ListTransactions(c.Request.Context(), middleware.GetUserID(c), filter)
	if err != nil {
		h.logger.Error("Failed to list transactions", "error", err)
		RespondInternalError(c)
		return
	}

	responses := make([]TransactionResponse, 0, len(rows))
	for _, row := range rows {
		responses = append(responses, mapTransactionToResponse(row))
	}

	RespondWithPaginatedData(c, http.StatusOK, responses, query.Page, query.PerPage, len(responses))
}

// Update applies a partial edit to a transaction row. Submitted rows refuse
// changes to amount, category and date.
func (h *TransactionHandler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	var req UpdateTransactionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	patch, err := buildTransactionPatch(req)
	if err != nil {
		RespondBadRequest(c, err.Error())
		return
	}

	row, err := h.transactionService.UpdateTransaction(c.Request.Context(), middleware.GetUserID(c), id, patch)
	if err != nil {
		switch {
		case errors.Is(err, transaction.ErrTransactionNotFound{}):
			RespondNotFound(c, "Transaction not found")
		case errors.Is(err, transaction.ErrSubmittedImmutable):
			RespondConflict(c, err.Error())
		default:
			h.logger.Error("Failed to update transaction", "transaction_id", id.String(), "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapTransactionToResponse(row))
}

// Delete removes transaction rows in bulk. Submitted rows survive; the
// response reports how many were actually removed.
func (h *TransactionHandler) Delete(c *gin.Context) {
	var req DeleteTransactionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	ids := make([]uuid.UUID, 0, len(req.IDs))
	for _, raw := range req.IDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			RespondBadRequest(c, "Invalid transaction ID: "+raw)
			return
		}
		ids = append(ids, id)
	}

	deleted, err := h.transactionService.DeleteTransactions(c.Request.Context(), middleware.GetUserID(c), ids)
	if err != nil {
		h.logger.Error("Failed to delete transactions", "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, gin.H{
		"requested": len(ids),
		"deleted":   deleted,
	})
}

// mapTransactionToResponse maps a transaction entity to a response DTO
func mapTransactionToResponse(row *transaction.Transaction) TransactionResponse {
	response := TransactionResponse{
		ID:              row.ID.String(),
		DocumentID:      row.DocumentID.String(),
		ClientID:        row.ClientID.String(),
		Date:            row.Date.Format("2006-01-02"),
		Description:     row.Description,
		Category:        row.Category,
		Amount:          row.Amount.String(),
		Currency:        row.Currency,
		Direction:       string(row.Direction()),
		Status:          string(row.Status),
		IsAIGenerated:   row.IsAIGenerated,
		ConfidenceScore: row.ConfidenceScore,
		Notes:           row.Notes,
		CreatedAt:       row.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       row.UpdatedAt.Format(time.RFC3339),
	}

	if row.BusinessID != nil {
		response.BusinessID = row.BusinessID.String()
	}

	return response
}

// buildTransactionFilter translates query parameters into a domain filter
func buildTransactionFilter(query ListTransactionsQuery) (transaction.Filter, error) {
	filter := transaction.Filter{
		Limit:  query.PerPage,
		Offset: (query.Page - 1) * query.PerPage,
	}

	if query.DocumentID != "" {
		id, err := uuid.Parse(query.DocumentID)
		if err != nil {
			return filter, errors.New("invalid document_id")
		}
		filter.DocumentID = &id
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
	if query.Status != "" {
		status := transaction.Status(query.Status)
		filter.Status = &status
	}
	if query.DateFrom != "" {
		from, err := time.Parse("2006-01-02", query.DateFrom)
		if err != nil {
			return filter, errors.New("invalid date_from: expected 2006-01-02")
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse("2006-01-02", query.DateTo)
		if err != nil {
			return filter, errors.New("invalid date_to: expected 2006-01-02")
		}
		filter.DateTo = &to
	}

	return filter, nil
}

// buildTransactionPatch translates an update request into a domain patch
func buildTransactionPatch(req UpdateTransactionRequest) (transaction.Patch, error) {
	var patch transaction.Patch

	if req.Date != nil {
		date, err := parseDate(*req.Date)
		if err != nil {
			return patch, errors.New("invalid date")
		}
		patch.Date = &date
	}
	if req.Amount != nil {
		amount, err := decimal.NewFromString(*req.Amount)
		if err != nil {
			return patch, errors.New("invalid amount: expected a decimal string")
		}
		patch.Amount = &amount
	}
	if req.Status != nil {
		status := transaction.Status(*req.Status)
		switch status {
		case transaction.StatusPending, transaction.StatusApproved, transaction.StatusRejected:
			patch.Status = &status
		default:
			return patch, errors.New("invalid status: submitted is set by the submission flow only")
		}
	}
	patch.Description = req.Description
	patch.Category = req.Category
	patch.Notes = req.Notes

	return patch, nil
}
