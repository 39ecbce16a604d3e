package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/platform/persistence"
)

// FolderRepository implements the document.FolderRepository interface for PostgreSQL
type FolderRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewFolderRepository creates a new PostgreSQL folder repository
func NewFolderRepository(logger *slog.Logger, db *persistence.PostgresDB) document.FolderRepository {
	return &FolderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *FolderRepository) WithTx(tx pgx.Tx) document.FolderRepository {
	return &FolderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateFolder stores a new folder
func (r *FolderRepository) CreateFolder(ctx context.Context, folder *document.Folder) error {
	query := `INSERT INTO folders (id, user_id, name, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.querier.Exec(ctx, query, folder.ID, folder.UserID, folder.Name, folder.CreatedAt)
	if err != nil {
		r.logger.Error("Failed to create folder", "id", folder.ID.String(), "error", err)
		return fmt.Errorf("failed to create folder: %w", err)
	}

	return nil
}

// GetFolder retrieves a folder by its ID
func (r *FolderRepository) GetFolder(ctx context.Context, id uuid.UUID) (*document.Folder, error) {
	query := `SELECT id, user_id, name, created_at FROM folders WHERE id = $1`

	var folder document.Folder
	err := r.querier.QueryRow(ctx, query, id).Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, document.ErrFolderNotFound{FolderID: id}
		}
		r.logger.Error("Failed to get folder", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get folder: %w", err)
	}

	return &folder, nil
}

// ListFolders retrieves all folders owned by a user
func (r *FolderRepository) ListFolders(ctx context.Context, userID uuid.UUID) ([]*document.Folder, error) {
	query := `SELECT id, user_id, name, created_at FROM folders WHERE user_id = $1 ORDER BY name ASC`

	rows, err := r.querier.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to list folders", "user_id", userID.String(), "error", err)
		return nil, fmt.Errorf("failed to list folders: %w", err)
	}
	defer rows.Close()

	var folders []*document.Folder
	for rows.Next() {
		var folder document.Folder
		if err := rows.Scan(&folder.ID, &folder.UserID, &folder.Name, &folder.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan folder row: %w", err)
		}
		folders = append(folders, &folder)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate folder rows: %w", err)
	}

	return folders, nil
}

// AssignDocument links a document to a folder. Re-assigning an existing pair
// is a no-op, not an error.
func (r *FolderRepository) AssignDocument(ctx context.Context, documentID, folderID uuid.UUID) error {
	query := `
		INSERT INTO folder_documents (folder_id, document_id, assigned_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (folder_id, document_id) DO NOTHING
	`

	_, err := r.querier.Exec(ctx, query, folderID, documentID)
	if err != nil {
		r.logger.Error("Failed to assign document to folder",
			"document_id", documentID.String(),
			"folder_id", folderID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to assign document to folder: %w", err)
	}

	return nil
}

// RemoveDocument unlinks a document from a folder
func (r *FolderRepository) RemoveDocument(ctx context.Context, documentID, folderID uuid.UUID) error {
	query := `DELETE FROM folder_documents WHERE folder_id = $1 AND document_id = $2`

	result, err := r.querier.Exec(ctx, query, folderID, documentID)
	if err != nil {
		r.logger.Error("Failed to remove document from folder",
			"document_id", documentID.String(),
			"folder_id", folderID.String(),
			"error", err,
		)
		return fmt.Errorf("failed to remove document from folder: %w", err)
	}

	if result.RowsAffected() == 0 {
		return document.ErrFolderNotFound{FolderID: folderID}
	}

	return nil
}
