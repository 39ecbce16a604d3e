package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
)

// TransactionServiceImpl implements the TransactionService interface
type TransactionServiceImpl struct {
	txRepo  transaction.Repository
	docRepo document.Repository
	logger  *slog.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(logger *slog.Logger, txRepo transaction.Repository, docRepo document.Repository) TransactionService {
	return &TransactionServiceImpl{
		txRepo:  txRepo,
		docRepo: docRepo,
		logger:  logger,
	}
}

// GetTransaction retrieves one transaction row owned by the user
func (s *TransactionServiceImpl) GetTransaction(ctx context.Context, userID, id uuid.UUID) (*transaction.Transaction, error) {
	return s.ownedTransaction(ctx, userID, id)
}

// ListTransactions retrieves the user's transactions matching the filter
func (s *TransactionServiceImpl) ListTransactions(ctx context.Context, userID uuid.UUID, filter transaction.Filter) ([]*transaction.Transaction, error) {
	return s.txRepo.List(ctx, userID, filter)
}

// UpdateTransaction applies a partial edit. Submitted rows refuse changes to
// amount, category and date; the domain guard makes that decision.
func (s *TransactionServiceImpl) UpdateTransaction(ctx context.Context, userID, id uuid.UUID, patch transaction.Patch) (*transaction.Transaction, error) {
	row, err := s.ownedTransaction(ctx, userID, id)
	if err != nil {
		return nil, err
	}

	if err := row.ApplyPatch(patch); err != nil {
		return nil, err
	}

	if err := s.txRepo.Update(ctx, row); err != nil {
		return nil, err
	}

	s.logger.Info("Transaction updated", "transaction_id", id.String())
	return row, nil
}

// DeleteTransactions removes rows in bulk. Submitted rows and rows belonging
// to other users are silently kept; the returned count tells the caller how
// many actually went away.
func (s *TransactionServiceImpl) DeleteTransactions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error) {
	owned := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, err := s.ownedTransaction(ctx, userID, id); err != nil {
			if errors.Is(err, transaction.ErrTransactionNotFound{}) {
				continue
			}
			return 0, err
		}
		owned = append(owned, id)
	}

	if len(owned) == 0 {
		return 0, nil
	}

	deleted, err := s.txRepo.DeleteBatch(ctx, owned)
	if err != nil {
		return 0, err
	}

	if deleted < int64(len(ids)) {
		s.logger.Info("Some transactions were not deleted",
			"requested", len(ids),
			"deleted", deleted,
		)
	}

	return deleted, nil
}

// ownedTransaction loads a row and verifies the user owns its parent
// document. A foreign or dangling row reads as not found; ownership leaks
// nothing.
func (s *TransactionServiceImpl) ownedTransaction(ctx context.Context, userID, id uuid.UUID) (*transaction.Transaction, error) {
	row, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	doc, err := s.docRepo.GetByID(ctx, row.DocumentID)
	if err != nil {
		if errors.Is(err, document.ErrDocumentNotFound{}) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		return nil, err
	}
	if doc.UserID != userID {
		return nil, transaction.ErrTransactionNotFound{TransactionID: id}
	}

	return row, nil
}
