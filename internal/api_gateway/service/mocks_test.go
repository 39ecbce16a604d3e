package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/mock"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/submission"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
	"github.com/taxdocs-pipeline/internal/hmrc"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

// MockDocumentRepository mocks document.Repository
type MockDocumentRepository struct {
	mock.Mock
}

func (m *MockDocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockDocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) ApplyPatch(ctx context.Context, id uuid.UUID, patch document.Patch) error {
	args := m.Called(ctx, id, patch)
	return args.Error(0)
}

func (m *MockDocumentRepository) List(ctx context.Context, userID uuid.UUID, filter document.Filter) ([]*document.Document, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*document.Document), args.Error(1)
}

func (m *MockDocumentRepository) Count(ctx context.Context, userID uuid.UUID, filter document.Filter) (int64, error) {
	args := m.Called(ctx, userID, filter)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockDocumentRepository) GetStats(ctx context.Context, userID uuid.UUID) (*document.Stats, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Stats), args.Error(1)
}

func (m *MockDocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockDocumentRepository) WithTx(tx pgx.Tx) document.Repository {
	return m
}

// MockFolderRepository mocks document.FolderRepository
type MockFolderRepository struct {
	mock.Mock
}

func (m *MockFolderRepository) CreateFolder(ctx context.Context, folder *document.Folder) error {
	args := m.Called(ctx, folder)
	return args.Error(0)
}

func (m *MockFolderRepository) GetFolder(ctx context.Context, id uuid.UUID) (*document.Folder, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*document.Folder), args.Error(1)
}

func (m *MockFolderRepository) ListFolders(ctx context.Context, userID uuid.UUID) ([]*document.Folder, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*document.Folder), args.Error(1)
}

func (m *MockFolderRepository) AssignDocument(ctx context.Context, documentID, folderID uuid.UUID) error {
	args := m.Called(ctx, documentID, folderID)
	return args.Error(0)
}

func (m *MockFolderRepository) RemoveDocument(ctx context.Context, documentID, folderID uuid.UUID) error {
	args := m.Called(ctx, documentID, folderID)
	return args.Error(0)
}

func (m *MockFolderRepository) WithTx(tx pgx.Tx) document.FolderRepository {
	return m
}

// MockTransactionRepository mocks transaction.Repository
type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) CreateBatch(ctx context.Context, transactions []*transaction.Transaction) error {
	args := m.Called(ctx, transactions)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) List(ctx context.Context, userID uuid.UUID, filter transaction.Filter) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, userID, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) Update(ctx context.Context, tx *transaction.Transaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

func (m *MockTransactionRepository) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status transaction.Status) error {
	args := m.Called(ctx, ids, status)
	return args.Error(0)
}

func (m *MockTransactionRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	args := m.Called(ctx, ids)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int64, error) {
	args := m.Called(ctx, documentID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

// MockSubmissionRepository mocks submission.Repository
type MockSubmissionRepository struct {
	mock.Mock
}

func (m *MockSubmissionRepository) CreateRecord(ctx context.Context, record *submission.Record) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetRecord(ctx context.Context, id uuid.UUID) (*submission.Record, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*submission.Record), args.Error(1)
}

func (m *MockSubmissionRepository) GetRecordsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*submission.Record, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*submission.Record), args.Error(1)
}

func (m *MockSubmissionRepository) UpdateRecordStatus(ctx context.Context, id uuid.UUID, status submission.Status, authorityError string) error {
	args := m.Called(ctx, id, status, authorityError)
	return args.Error(0)
}

func (m *MockSubmissionRepository) CreateExternalTransaction(ctx context.Context, ext *submission.ExternalTransaction) error {
	args := m.Called(ctx, ext)
	return args.Error(0)
}

func (m *MockSubmissionRepository) GetExternalTransactions(ctx context.Context, submissionID uuid.UUID) ([]*submission.ExternalTransaction, error) {
	args := m.Called(ctx, submissionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*submission.ExternalTransaction), args.Error(1)
}

func (m *MockSubmissionRepository) CountExternalTransactions(ctx context.Context, submissionID uuid.UUID) (int64, error) {
	args := m.Called(ctx, submissionID)
	return args.Get(0).(int64), args.Error(1)
}

// MockBlobStore mocks storage.BlobStore
type MockBlobStore struct {
	mock.Mock
}

func (m *MockBlobStore) Put(ctx context.Context, key string, data []byte, contentType string) (*storage.PutResult, error) {
	args := m.Called(ctx, key, data, contentType)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PutResult), args.Error(1)
}

func (m *MockBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockBlobStore) Head(ctx context.Context, key string) (*storage.Metadata, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.Metadata), args.Error(1)
}

func (m *MockBlobStore) Delete(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockBlobStore) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	args := m.Called(ctx, key, contentType)
	return args.String(0), args.Error(1)
}

func (m *MockBlobStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (*storage.PartResult, error) {
	args := m.Called(ctx, key, uploadID, partNumber, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PartResult), args.Error(1)
}

func (m *MockBlobStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []storage.Part) (*storage.PutResult, error) {
	args := m.Called(ctx, key, uploadID, parts)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*storage.PutResult), args.Error(1)
}

func (m *MockBlobStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	args := m.Called(ctx, key, uploadID)
	return args.Error(0)
}

func (m *MockBlobStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	args := m.Called(ctx, key, expiry)
	return args.String(0), args.Error(1)
}

// MockMessagePublisher mocks producers.MessagePublisher
type MockMessagePublisher struct {
	mock.Mock
}

func (m *MockMessagePublisher) Publish(ctx context.Context, key string, value interface{}) error {
	args := m.Called(ctx, key, value)
	return args.Error(0)
}

func (m *MockMessagePublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

// MockSubmissionClient mocks hmrc.SubmissionClient
type MockSubmissionClient struct {
	mock.Mock
}

func (m *MockSubmissionClient) SubmitTransaction(ctx context.Context, sub *hmrc.TransactionSubmission) (*hmrc.SubmissionResult, error) {
	args := m.Called(ctx, sub)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*hmrc.SubmissionResult), args.Error(1)
}

// MockSessionTracker mocks SessionTracker
type MockSessionTracker struct {
	mock.Mock
}

func (m *MockSessionTracker) Initiate(ctx context.Context, blobKey, fileName, contentType string, declaredSize int64) (*domainupload.Session, error) {
	args := m.Called(ctx, blobKey, fileName, contentType, declaredSize)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainupload.Session), args.Error(1)
}

func (m *MockSessionTracker) UploadPart(ctx context.Context, sessionID string, partNumber int, data []byte) (*domainupload.Session, error) {
	args := m.Called(ctx, sessionID, partNumber, data)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainupload.Session), args.Error(1)
}

func (m *MockSessionTracker) Progress(sessionID string) (*domainupload.Session, error) {
	args := m.Called(sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domainupload.Session), args.Error(1)
}

func (m *MockSessionTracker) Complete(ctx context.Context, sessionID string) (*storage.PutResult, *domainupload.Session, error) {
	args := m.Called(ctx, sessionID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*storage.PutResult), args.Get(1).(*domainupload.Session), args.Error(2)
}

func (m *MockSessionTracker) Abort(ctx context.Context, sessionID string) error {
	args := m.Called(ctx, sessionID)
	return args.Error(0)
}

// fakeTxExecutor runs the transaction function directly. When failBegin is
// set it simulates a transaction that cannot start.
type fakeTxExecutor struct {
	failBegin error
}

func (f *fakeTxExecutor) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	if f.failBegin != nil {
		return f.failBegin
	}
	return fn(nil)
}
