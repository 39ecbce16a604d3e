// Package service contains the orchestration layer of the API gateway. The
// services own all cross-store choreography: blob writes before rows, row
// transactions around approvals, and the draft-first submission protocol.
package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/submission"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
)

// TxExecutor runs a function inside one database transaction
type TxExecutor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// UploadDocumentInput describes a single-call (inline) document upload
type UploadDocumentInput struct {
	UserID        uuid.UUID
	ClientID      uuid.UUID
	BusinessID    *uuid.UUID
	FileName      string
	Content       []byte
	DocumentTypes []string
}

// ApprovedTransaction is one reviewed line item in an approval batch. The
// provisional id the client reviewed is discarded; persisted rows get fresh
// uuids.
type ApprovedTransaction struct {
	Date        time.Time
	Description string
	Category    string
	Amount      decimal.Decimal
	Currency    string
	IsAI        bool
	Confidence  float64
	Notes       string
}

// ApproveInput carries a full approval batch for one document
type ApproveInput struct {
	UserID        uuid.UUID
	DocumentID    uuid.UUID
	DocumentTypes []string
	Transactions  []ApprovedTransaction
}

// DocumentService manages the document lifecycle from upload to approval
type DocumentService interface {
	UploadDocument(ctx context.Context, input *UploadDocumentInput) (*document.Document, error)
	GetDocument(ctx context.Context, userID, id uuid.UUID) (*document.Document, string, error)
	ListDocuments(ctx context.Context, userID uuid.UUID, filter document.Filter) ([]*document.Document, int64, error)
	GetStats(ctx context.Context, userID uuid.UUID) (*document.Stats, error)
	DeleteDocument(ctx context.Context, userID, id uuid.UUID, cascade bool) error

	// BeginProcessing marks the document as processing and publishes an
	// extraction job. The call returns without waiting for extraction.
	BeginProcessing(ctx context.Context, userID, id uuid.UUID, correlationID string) error

	// ApproveAndFinalize persists a reviewed batch atomically: document
	// metadata, transaction rows, and extraction counters move together or
	// not at all.
	ApproveAndFinalize(ctx context.Context, input *ApproveInput) (*document.Document, error)

	CreateFolder(ctx context.Context, userID uuid.UUID, name string) (*document.Folder, error)
	ListFolders(ctx context.Context, userID uuid.UUID) ([]*document.Folder, error)
	AssignToFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error
	RemoveFromFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error
}

// TransactionService manages persisted transaction rows after approval
type TransactionService interface {
	GetTransaction(ctx context.Context, userID, id uuid.UUID) (*transaction.Transaction, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, filter transaction.Filter) ([]*transaction.Transaction, error)
	UpdateTransaction(ctx context.Context, userID, id uuid.UUID, patch transaction.Patch) (*transaction.Transaction, error)

	// DeleteTransactions removes the given rows, skipping submitted ones and
	// rows the user does not own. Returns how many rows were actually deleted.
	DeleteTransactions(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) (int64, error)
}

// ChunkedUploadInput describes the opening call of a chunked upload
type ChunkedUploadInput struct {
	UserID       uuid.UUID
	ClientID     uuid.UUID
	BusinessID   *uuid.UUID
	FileName     string
	DeclaredSize int64
}

// UploadService manages chunked upload sessions and their document handoff
type UploadService interface {
	Initiate(ctx context.Context, input *ChunkedUploadInput) (*domainupload.Session, error)
	UploadPart(ctx context.Context, userID uuid.UUID, sessionID string, partNumber int, data []byte) (*domainupload.Session, error)
	Progress(ctx context.Context, userID uuid.UUID, sessionID string) (*domainupload.Session, error)

	// Complete assembles the blob and creates the document row for it
	Complete(ctx context.Context, userID uuid.UUID, sessionID string) (*document.Document, error)
	Abort(ctx context.Context, userID uuid.UUID, sessionID string) error
}

// SubmitInput carries one submission request
type SubmitInput struct {
	UserID     uuid.UUID
	DocumentID uuid.UUID
	TaxYear    string
	PeriodKey  string
}

// SubmissionService runs the per-transaction authority submission protocol
type SubmissionService interface {
	// SubmitToHMRC submits every approved transaction of the document
	// sequentially. On the first authority rejection it stops, leaving the
	// prior acceptances on record; nothing already submitted is rolled back.
	SubmitToHMRC(ctx context.Context, input *SubmitInput) (*submission.Record, error)

	GetSubmissions(ctx context.Context, userID, documentID uuid.UUID) ([]*submission.Record, error)
	GetSubmissionRows(ctx context.Context, submissionID uuid.UUID) ([]*submission.ExternalTransaction, error)
}
