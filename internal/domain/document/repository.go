package document

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository defines document persistence operations
type Repository interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)

	// LockForUpdate acquires a row-level lock on the document. It must be
	// called inside a transaction; the lock is released on commit/rollback.
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Document, error)

	// ApplyPatch updates only the fields present in the patch
	ApplyPatch(ctx context.Context, id uuid.UUID, patch Patch) error

	List(ctx context.Context, userID uuid.UUID, filter Filter) ([]*Document, error)
	Count(ctx context.Context, userID uuid.UUID, filter Filter) (int64, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*Stats, error)
	Delete(ctx context.Context, id uuid.UUID) error
	WithTx(tx pgx.Tx) Repository
}

// FolderRepository defines folder persistence and document assignment operations
type FolderRepository interface {
	CreateFolder(ctx context.Context, folder *Folder) error
	GetFolder(ctx context.Context, id uuid.UUID) (*Folder, error)
	ListFolders(ctx context.Context, userID uuid.UUID) ([]*Folder, error)

	// AssignDocument is idempotent: assigning an already-assigned pair is a
	// silent no-op, not an error.
	AssignDocument(ctx context.Context, documentID, folderID uuid.UUID) error
	RemoveDocument(ctx context.Context, documentID, folderID uuid.UUID) error
	WithTx(tx pgx.Tx) FolderRepository
}

// ErrDocumentNotFound indicates a missing document or one owned by another caller
type ErrDocumentNotFound struct {
	DocumentID uuid.UUID
}

func (e ErrDocumentNotFound) Error() string {
	return "document not found: " + e.DocumentID.String()
}

// Is implements the errors.Is interface for ErrDocumentNotFound
func (e ErrDocumentNotFound) Is(target error) bool {
	t, ok := target.(ErrDocumentNotFound)
	if !ok {
		return false
	}
	if t.DocumentID == uuid.Nil {
		return true
	}
	return e.DocumentID == t.DocumentID
}

// ErrFolderNotFound indicates a missing folder
type ErrFolderNotFound struct {
	FolderID uuid.UUID
}

func (e ErrFolderNotFound) Error() string {
	return "folder not found: " + e.FolderID.String()
}

// Is implements the errors.Is interface for ErrFolderNotFound
func (e ErrFolderNotFound) Is(target error) bool {
	t, ok := target.(ErrFolderNotFound)
	if !ok {
		return false
	}
	if t.FolderID == uuid.Nil {
		return true
	}
	return e.FolderID == t.FolderID
}

// ErrDocumentHasTransactions indicates a delete attempted while transaction
// rows still reference the document
type ErrDocumentHasTransactions struct {
	DocumentID uuid.UUID
}

func (e ErrDocumentHasTransactions) Error() string {
	return "document still has transactions: " + e.DocumentID.String()
}
