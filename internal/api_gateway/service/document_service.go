package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxdocs-pipeline/internal/config"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/shared"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
	"github.com/taxdocs-pipeline/internal/platform/messaging/producers"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

// downloadURLExpiry bounds how long a presigned document link stays valid
const downloadURLExpiry = 15 * time.Minute

// DocumentServiceImpl implements the DocumentService interface
type DocumentServiceImpl struct {
	docRepo    document.Repository
	folderRepo document.FolderRepository
	txRepo     transaction.Repository
	store      storage.BlobStore
	producer   producers.MessagePublisher
	txExec     TxExecutor
	uploadCfg  *config.UploadConfig
	logger     *slog.Logger
}

// NewDocumentService creates a new document service
func NewDocumentService(
	logger *slog.Logger,
	docRepo document.Repository,
	folderRepo document.FolderRepository,
	txRepo transaction.Repository,
	store storage.BlobStore,
	producer producers.MessagePublisher,
	txExec TxExecutor,
	uploadCfg *config.UploadConfig,
) DocumentService {
	return &DocumentServiceImpl{
		docRepo:    docRepo,
		folderRepo: folderRepo,
		txRepo:     txRepo,
		store:      store,
		producer:   producer,
		txExec:     txExec,
		uploadCfg:  uploadCfg,
		logger:     logger,
	}
}

// BuildBlobKey derives the storage key for an uploaded document. The random
// suffix keeps same-second uploads of identically named files apart.
func BuildBlobKey(userID, clientID uuid.UUID, fileName string) string {
	ext := filepath.Ext(fileName)
	suffix := uuid.New().String()[:8]
	return fmt.Sprintf("documents/%s/%s/%d_%s%s", userID, clientID, time.Now().UnixNano(), suffix, ext)
}

// UploadDocument stores the file inline and creates the document row.
// Blob first, row second: a storage failure must never leave a row pointing
// at nothing, and an orphaned blob is reclaimable garbage, not corruption.
func (s *DocumentServiceImpl) UploadDocument(ctx context.Context, input *UploadDocumentInput) (*document.Document, error) {
	contentType, err := document.ContentTypeForFileName(input.FileName)
	if err != nil {
		return nil, err
	}

	size := int64(len(input.Content))
	if size == 0 {
		return nil, fmt.Errorf("document content cannot be empty")
	}
	if size > s.uploadCfg.MaxInlineSize {
		return nil, domainupload.ErrFileTooLarge{Size: size, Limit: s.uploadCfg.MaxInlineSize}
	}

	blobKey := BuildBlobKey(input.UserID, input.ClientID, input.FileName)

	putResult, err := s.store.Put(ctx, blobKey, input.Content, contentType)
	if err != nil {
		s.logger.Error("Failed to store document blob",
			"blob_key", blobKey,
			"user_id", input.UserID.String(),
			"error", err,
		)
		return nil, err
	}

	doc, err := document.NewDocument(input.UserID, input.ClientID, input.BusinessID, blobKey, input.FileName, putResult.Size, contentType)
	if err != nil {
		return nil, err
	}
	if len(input.DocumentTypes) > 0 {
		doc.DocumentTypes = input.DocumentTypes
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// The blob is already durable; remove it so a failed upload leaves
		// no trace. Best-effort only.
		if delErr := s.store.Delete(ctx, blobKey); delErr != nil {
			s.logger.Warn("Failed to clean up blob after row insert failure",
				"blob_key", blobKey,
				"error", delErr,
			)
		}
		return nil, err
	}

	s.logger.Info("Document uploaded",
		"document_id", doc.ID.String(),
		"user_id", input.UserID.String(),
		"blob_key", blobKey,
		"size", putResult.Size,
	)

	return doc, nil
}

// GetDocument returns the document and a presigned download URL for its blob
func (s *DocumentServiceImpl) GetDocument(ctx context.Context, userID, id uuid.UUID) (*document.Document, string, error) {
	doc, err := s.ownedDocument(ctx, userID, id)
	if err != nil {
		return nil, "", err
	}

	url, err := s.store.PresignedGetURL(ctx, doc.BlobKey, downloadURLExpiry)
	if err != nil {
		// The document itself is still useful without a link
		s.logger.Warn("Failed to presign download URL", "document_id", id.String(), "error", err)
		url = ""
	}

	return doc, url, nil
}

// ListDocuments returns matching documents plus the unpaginated total
func (s *DocumentServiceImpl) ListDocuments(ctx context.Context, userID uuid.UUID, filter document.Filter) ([]*document.Document, int64, error) {
	docs, err := s.docRepo.List(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.docRepo.Count(ctx, userID, filter)
	if err != nil {
		return nil, 0, err
	}

	return docs, total, nil
}

// GetStats aggregates document counts for a user
func (s *DocumentServiceImpl) GetStats(ctx context.Context, userID uuid.UUID) (*document.Stats, error) {
	return s.docRepo.GetStats(ctx, userID)
}

// DeleteDocument removes a document. With transactions attached it refuses
// unless cascade is set; submitted transactions block the delete either way.
func (s *DocumentServiceImpl) DeleteDocument(ctx context.Context, userID, id uuid.UUID, cascade bool) error {
	doc, err := s.ownedDocument(ctx, userID, id)
	if err != nil {
		return err
	}

	transactions, err := s.txRepo.GetByDocumentID(ctx, id)
	if err != nil {
		return err
	}

	if len(transactions) > 0 {
		if !cascade {
			return document.ErrDocumentHasTransactions{DocumentID: id}
		}
		for _, t := range transactions {
			if t.Status == transaction.StatusSubmitted {
				return document.ErrDocumentHasTransactions{DocumentID: id}
			}
		}
	}

	err = s.txExec.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if len(transactions) > 0 {
			ids := make([]uuid.UUID, len(transactions))
			for i, t := range transactions {
				ids[i] = t.ID
			}
			if _, err := s.txRepo.WithTx(tx).DeleteBatch(ctx, ids); err != nil {
				return err
			}
		}
		return s.docRepo.WithTx(tx).Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	// Rows are gone; the blob delete is best-effort cleanup
	if err := s.store.Delete(ctx, doc.BlobKey); err != nil {
		s.logger.Warn("Failed to delete document blob",
			"document_id", id.String(),
			"blob_key", doc.BlobKey,
			"error", err,
		)
	}

	s.logger.Info("Document deleted", "document_id", id.String(), "cascade", cascade)
	return nil
}

// BeginProcessing moves the document onto the processing axis and publishes
// the extraction job. Fire-and-forget: the caller gets control back as soon
// as the job is on the queue.
func (s *DocumentServiceImpl) BeginProcessing(ctx context.Context, userID, id uuid.UUID, correlationID string) error {
	doc, err := s.ownedDocument(ctx, userID, id)
	if err != nil {
		return err
	}

	if err := doc.SetProcessingStatus(document.ProcessingInProgress); err != nil {
		return err
	}

	status := document.ProcessingInProgress
	if err := s.docRepo.ApplyPatch(ctx, id, document.Patch{ProcessingStatus: &status}); err != nil {
		return err
	}

	request := &shared.ExtractionRequest{
		DocumentID:    doc.ID,
		UserID:        doc.UserID,
		ClientID:      doc.ClientID,
		BlobKey:       doc.BlobKey,
		ContentType:   doc.ContentType,
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
	}

	if err := s.producer.Publish(ctx, doc.ID.String(), request); err != nil {
		s.logger.Error("Failed to publish extraction request",
			"document_id", doc.ID.String(),
			"error", err,
		)
		return err
	}

	s.logger.Info("Extraction requested",
		"document_id", doc.ID.String(),
		"correlation_id", correlationID,
	)

	return nil
}

// ApproveAndFinalize persists one reviewed batch inside a single database
// transaction. The row lock on the document serializes concurrent approvals;
// any failure rolls back every row of the batch.
func (s *DocumentServiceImpl) ApproveAndFinalize(ctx context.Context, input *ApproveInput) (*document.Document, error) {
	if len(input.Transactions) == 0 {
		return nil, transaction.ErrEmptyBatch
	}

	// Validate and build all rows before touching the database
	rows := make([]*transaction.Transaction, 0, len(input.Transactions))
	var updated *document.Document
	buildRows := func(doc *document.Document) error {
		for _, in := range input.Transactions {
			row, err := transaction.New(doc.ID, doc.ClientID, doc.BusinessID, in.Date, in.Description, in.Category, in.Amount, in.Currency, transaction.StatusApproved)
			if err != nil {
				return err
			}
			row.IsAIGenerated = in.IsAI
			row.ConfidenceScore = in.Confidence
			row.Notes = in.Notes
			rows = append(rows, row)
		}
		return nil
	}

	err := s.txExec.ExecuteTx(ctx, func(tx pgx.Tx) error {
		docRepo := s.docRepo.WithTx(tx)

		doc, err := docRepo.LockForUpdate(ctx, input.DocumentID)
		if err != nil {
			return err
		}
		if doc.UserID != input.UserID {
			return document.ErrDocumentNotFound{DocumentID: input.DocumentID}
		}

		if err := doc.AdvanceStatus(document.StatusProcessed); err != nil {
			return err
		}
		if err := doc.SetProcessingStatus(document.ProcessingCompleted); err != nil {
			return err
		}

		rows = rows[:0]
		if err := buildRows(doc); err != nil {
			return err
		}

		if err := s.txRepo.WithTx(tx).CreateBatch(ctx, rows); err != nil {
			return err
		}

		count := len(rows)
		now := time.Now()
		cleared := json.RawMessage("null") // Candidates are spent once approved
		patch := document.Patch{
			Status:           &doc.Status,
			ProcessingStatus: &doc.ProcessingStatus,
			ExtractedCount:   &count,
			Candidates:       &cleared,
			ProcessedAt:      &now,
		}
		if len(input.DocumentTypes) > 0 {
			patch.DocumentTypes = &input.DocumentTypes
		}
		if err := docRepo.ApplyPatch(ctx, doc.ID, patch); err != nil {
			return err
		}

		doc.ExtractedCount = count
		doc.Candidates = nil
		doc.ProcessedAt = &now
		if len(input.DocumentTypes) > 0 {
			doc.DocumentTypes = input.DocumentTypes
		}
		updated = doc
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Document approved and finalized",
		"document_id", input.DocumentID.String(),
		"transaction_count", len(rows),
	)

	return updated, nil
}

// CreateFolder creates a folder owned by the user
func (s *DocumentServiceImpl) CreateFolder(ctx context.Context, userID uuid.UUID, name string) (*document.Folder, error) {
	folder, err := document.NewFolder(userID, name)
	if err != nil {
		return nil, err
	}

	if err := s.folderRepo.CreateFolder(ctx, folder); err != nil {
		return nil, err
	}

	return folder, nil
}

// ListFolders lists the user's folders
func (s *DocumentServiceImpl) ListFolders(ctx context.Context, userID uuid.UUID) ([]*document.Folder, error) {
	return s.folderRepo.ListFolders(ctx, userID)
}

// AssignToFolder links a document to a folder. Repeating an assignment is a
// no-op, so clients may retry freely.
func (s *DocumentServiceImpl) AssignToFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	if err := s.ownedFolder(ctx, userID, folderID); err != nil {
		return err
	}

	return s.folderRepo.AssignDocument(ctx, documentID, folderID)
}

// RemoveFromFolder unlinks a document from a folder
func (s *DocumentServiceImpl) RemoveFromFolder(ctx context.Context, userID, documentID, folderID uuid.UUID) error {
	if _, err := s.ownedDocument(ctx, userID, documentID); err != nil {
		return err
	}
	if err := s.ownedFolder(ctx, userID, folderID); err != nil {
		return err
	}

	return s.folderRepo.RemoveDocument(ctx, documentID, folderID)
}

// ownedDocument loads a document and hides other users' documents behind
// not-found, never leaking their existence.
func (s *DocumentServiceImpl) ownedDocument(ctx context.Context, userID, id uuid.UUID) (*document.Document, error) {
	doc, err := s.docRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, document.ErrDocumentNotFound{DocumentID: id}
	}
	return doc, nil
}

func (s *DocumentServiceImpl) ownedFolder(ctx context.Context, userID, folderID uuid.UUID) error {
	folder, err := s.folderRepo.GetFolder(ctx, folderID)
	if err != nil {
		return err
	}
	if folder.UserID != userID {
		return document.ErrFolderNotFound{FolderID: folderID}
	}
	return nil
}
