// Package postgres provides PostgreSQL implementations of the domain repositories.
// It handles all database operations while maintaining transaction safety and
// proper error handling for the document pipeline.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/platform/persistence"
)

const documentColumns = `id, user_id, client_id, business_id, blob_key, file_name, file_size, content_type,
		document_types, status, processing_status, extracted_count, confidence_score, candidates,
		uploaded_at, processed_at, submitted_at, updated_at`

// DocumentRepository implements the document.Repository interface for PostgreSQL
type DocumentRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewDocumentRepository creates a new PostgreSQL document repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewDocumentRepository(logger *slog.Logger, db *persistence.PostgresDB) document.Repository {
	return &DocumentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *DocumentRepository) WithTx(tx pgx.Tx) document.Repository {
	return &DocumentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new document record
func (r *DocumentRepository) Create(ctx context.Context, doc *document.Document) error {
	query := `
		INSERT INTO documents (id, user_id, client_id, business_id, blob_key, file_name, file_size, content_type,
			document_types, status, processing_status, extracted_count, confidence_score, candidates,
			uploaded_at, processed_at, submitted_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
	`

	_, err := r.querier.Exec(ctx, query,
		doc.ID,
		doc.UserID,
		doc.ClientID,
		doc.BusinessID,
		doc.BlobKey,
		doc.FileName,
		doc.FileSize,
		doc.ContentType,
		doc.DocumentTypes,
		doc.Status,
		doc.ProcessingStatus,
		doc.ExtractedCount,
		doc.ConfidenceScore,
		doc.Candidates,
		doc.UploadedAt,
		doc.ProcessedAt,
		doc.SubmittedAt,
		doc.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create document", "id", doc.ID.String(), "error", err)
		return fmt.Errorf("failed to create document: %w", err)
	}

	return nil
}

// GetByID retrieves a document by its ID
func (r *DocumentRepository) GetByID(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1`, documentColumns)

	doc, err := r.scanDocument(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound{DocumentID: id}
		}
		r.logger.Error("Failed to get document", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get document: %w", err)
	}

	return doc, nil
}

// LockForUpdate obtains a row-level lock on the document and returns its
// current state. Must be called inside a transaction; this serializes
// concurrent approvals for the same document.
func (r *DocumentRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*document.Document, error) {
	query := fmt.Sprintf(`SELECT %s FROM documents WHERE id = $1 FOR UPDATE`, documentColumns)

	doc, err := r.scanDocument(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrDocumentNotFound{DocumentID: id}
		}
		r.logger.Error("Failed to lock document for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock document for update: %w", err)
	}

	return doc, nil
}

// ApplyPatch updates only the fields present in the patch. The blob key is
// never part of a patch; it is immutable once set.
func (r *DocumentRepository) ApplyPatch(ctx context.Context, id uuid.UUID, patch document.Patch) error {
	if patch.IsEmpty() {
		return nil
	}

	builder := sq.Update("documents").
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id}).
		PlaceholderFormat(sq.Dollar)

	if patch.DocumentTypes != nil {
		builder = builder.Set("document_types", *patch.DocumentTypes)
	}
	if patch.Status != nil {
		builder = builder.Set("status", *patch.Status)
	}
	if patch.ProcessingStatus != nil {
		builder = builder.Set("processing_status", *patch.ProcessingStatus)
	}
	if patch.ExtractedCount != nil {
		builder = builder.Set("extracted_count", *patch.ExtractedCount)
	}
	if patch.ConfidenceScore != nil {
		builder = builder.Set("confidence_score", *patch.ConfidenceScore)
	}
	if patch.Candidates != nil {
		builder = builder.Set("candidates", *patch.Candidates)
	}
	if patch.ProcessedAt != nil {
		builder = builder.Set("processed_at", *patch.ProcessedAt)
	}
	if patch.SubmittedAt != nil {
		builder = builder.Set("submitted_at", *patch.SubmittedAt)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build document patch query: %w", err)
	}

	result, err := r.querier.Exec(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to patch document", "id", id.String(), "error", err)
		return fmt.Errorf("failed to patch document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return document.ErrDocumentNotFound{DocumentID: id}
	}

	return nil
}

// List retrieves documents for a user matching the filter conjunction.
// Omitted filter dimensions match all rows.
func (r *DocumentRepository) List(ctx context.Context, userID uuid.UUID, filter document.Filter) ([]*document.Document, error) {
	builder := sq.Select(documentColumns).
		From("documents").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("uploaded_at DESC").
		PlaceholderFormat(sq.Dollar)

	builder = applyDocumentFilter(builder, filter)

	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build document list query: %w", err)
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list documents", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var docs []*document.Document
	for rows.Next() {
		doc, err := r.scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate document rows: %w", err)
	}

	return docs, nil
}

// Count returns the number of documents matching the filter
func (r *DocumentRepository) Count(ctx context.Context, userID uuid.UUID, filter document.Filter) (int64, error) {
	builder := sq.Select("COUNT(*)").
		From("documents").
		Where(sq.Eq{"user_id": userID}).
		PlaceholderFormat(sq.Dollar)

	builder = applyDocumentFilter(builder, filter)

	query, args, err := builder.ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build document count query: %w", err)
	}

	var count int64
	if err := r.querier.QueryRow(ctx, query, args...).Scan(&count); err != nil {
		r.logger.Error("Failed to count documents", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}

	return count, nil
}

// GetStats aggregates document counts and sizes for a user
func (r *DocumentRepository) GetStats(ctx context.Context, userID uuid.UUID) (*document.Stats, error) {
	query := `
		SELECT status, processing_status, COUNT(*), COALESCE(SUM(file_size), 0)
		FROM documents
		WHERE user_id = $1
		GROUP BY status, processing_status
	`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to get document stats", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to get document stats: %w", err)
	}
	defer rows.Close()

	stats := &document.Stats{
		ByStatus:           make(map[string]int64),
		ByProcessingStatus: make(map[string]int64),
	}
	for rows.Next() {
		var status, processingStatus string
		var count, bytes int64
		if err := rows.Scan(&status, &processingStatus, &count, &bytes); err != nil {
			return nil, fmt.Errorf("failed to scan stats row: %w", err)
		}
		stats.TotalDocuments += count
		stats.TotalBytes += bytes
		stats.ByStatus[status] += count
		stats.ByProcessingStatus[processingStatus] += count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stats rows: %w", err)
	}

	return stats, nil
}

// Delete removes a document row. Rows in transactions referencing the
// document make the delete fail at the constraint level; callers decide
// whether to cascade beforehand.
func (r *DocumentRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.querier.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		r.logger.Error("Failed to delete document", "id", id.String(), "error", err)
		return fmt.Errorf("failed to delete document: %w", err)
	}

	if result.RowsAffected() == 0 {
		return document.ErrDocumentNotFound{DocumentID: id}
	}

	return nil
}

// applyDocumentFilter adds the optional filter dimensions as a conjunction
func applyDocumentFilter(builder sq.SelectBuilder, filter document.Filter) sq.SelectBuilder {
	if filter.ClientID != nil {
		builder = builder.Where(sq.Eq{"client_id": *filter.ClientID})
	}
	if filter.BusinessID != nil {
		builder = builder.Where(sq.Eq{"business_id": *filter.BusinessID})
	}
	if filter.DocumentType != nil {
		builder = builder.Where(sq.Expr("? = ANY(document_types)", *filter.DocumentType))
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"status": *filter.Status})
	}
	if filter.ProcessingStatus != nil {
		builder = builder.Where(sq.Eq{"processing_status": *filter.ProcessingStatus})
	}
	if filter.Search != nil {
		builder = builder.Where(sq.ILike{"blob_key": "%" + *filter.Search + "%"})
	}
	if filter.UploadedFrom != nil {
		builder = builder.Where(sq.GtOrEq{"uploaded_at": *filter.UploadedFrom})
	}
	if filter.UploadedTo != nil {
		builder = builder.Where(sq.LtOrEq{"uploaded_at": *filter.UploadedTo})
	}
	return builder
}

// scanDocument reads one document row from either pgx.Row or pgx.Rows
func (r *DocumentRepository) scanDocument(row pgx.Row) (*document.Document, error) {
	var doc document.Document
	err := row.Scan(
		&doc.ID,
		&doc.UserID,
		&doc.ClientID,
		&doc.BusinessID,
		&doc.BlobKey,
		&doc.FileName,
		&doc.FileSize,
		&doc.ContentType,
		&doc.DocumentTypes,
		&doc.Status,
		&doc.ProcessingStatus,
		&doc.ExtractedCount,
		&doc.ConfidenceScore,
		&doc.Candidates,
		&doc.UploadedAt,
		&doc.ProcessedAt,
		&doc.SubmittedAt,
		&doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}
