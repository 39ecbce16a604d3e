package submission

import (
	"context"

	"github.com/google/uuid"
)

// Repository manages submission records and their external transaction rows
type Repository interface {
	CreateRecord(ctx context.Context, record *Record) error
	GetRecord(ctx context.Context, id uuid.UUID) (*Record, error)
	GetRecordsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*Record, error)
	UpdateRecordStatus(ctx context.Context, id uuid.UUID, status Status, authorityError string) error

	CreateExternalTransaction(ctx context.Context, ext *ExternalTransaction) error
	GetExternalTransactions(ctx context.Context, submissionID uuid.UUID) ([]*ExternalTransaction, error)
	CountExternalTransactions(ctx context.Context, submissionID uuid.UUID) (int64, error)
}

// ErrRecordNotFound indicates a missing submission record
type ErrRecordNotFound struct {
	RecordID uuid.UUID
}

func (e ErrRecordNotFound) Error() string {
	return "submission record not found: " + e.RecordID.String()
}

// Is implements the errors.Is interface for ErrRecordNotFound
func (e ErrRecordNotFound) Is(target error) bool {
	t, ok := target.(ErrRecordNotFound)
	if !ok {
		return false
	}
	if t.RecordID == uuid.Nil {
		return true
	}
	return e.RecordID == t.RecordID
}
