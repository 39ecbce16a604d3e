package transaction

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines transaction persistence operations
type Repository interface {
	// CreateBatch bulk-inserts all rows; all-or-nothing under the caller's tx
	CreateBatch(ctx context.Context, transactions []*Transaction) error

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*Transaction, error)
	// List returns rows matching the filter, scoped to the user owning the
	// parent documents
	List(ctx context.Context, userID uuid.UUID, filter Filter) ([]*Transaction, error)
	Update(ctx context.Context, tx *Transaction) error
	UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status Status) error

	// DeleteBatch removes rows that are not yet submitted; submitted rows are
	// skipped and reported via the returned count of deleted rows.
	DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error)

	CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int64, error)
	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a missing transaction row
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
