package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	"github.com/taxdocs-pipeline/internal/platform/persistence"
)

const transactionColumns = `id, document_id, client_id, business_id, date, description, category,
		amount::text, currency, status, is_ai_generated, confidence_score, notes, created_at, updated_at`

// transactionColumnsQualified disambiguates the select list when joining
// against documents
const transactionColumnsQualified = `t.id, t.document_id, t.client_id, t.business_id, t.date, t.description, t.category,
		t.amount::text, t.currency, t.status, t.is_ai_generated, t.confidence_score, t.notes, t.created_at, t.updated_at`

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls.
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// CreateBatch bulk-inserts all rows in a single statement. Under the caller's
// transaction this makes the batch all-or-nothing.
func (r *TransactionRepository) CreateBatch(ctx context.Context, transactions []*transaction.Transaction) error {
	if len(transactions) == 0 {
		return transaction.ErrEmptyBatch
	}

	builder := sq.Insert("transactions").
		Columns("id", "document_id", "client_id", "business_id", "date", "description", "category",
			"amount", "currency", "status", "is_ai_generated", "confidence_score", "notes",
			"created_at", "updated_at").
		PlaceholderFormat(sq.Dollar)

	for _, t := range transactions {
		builder = builder.Values(
			t.ID,
			t.DocumentID,
			t.ClientID,
			t.BusinessID,
			t.Date,
			t.Description,
			t.Category,
			t.Amount.String(),
			t.Currency,
			t.Status,
			t.IsAIGenerated,
			t.ConfidenceScore,
			t.Notes,
			t.CreatedAt,
			t.UpdatedAt,
		)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build transaction batch insert: %w", err)
	}

	if _, err := r.querier.Exec(ctx, query, args...); err != nil {
		r.logger.Error("Failed to create transaction batch", "count", len(transactions), "error", err)
		return fmt.Errorf("failed to create transaction batch: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE id = $1`, transactionColumns)

	t, err := r.scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return t, nil
}

// GetByDocumentID retrieves all transactions belonging to a document,
// ordered by date then creation time for stable submission ordering.
func (r *TransactionRepository) GetByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*transaction.Transaction, error) {
	query := fmt.Sprintf(`SELECT %s FROM transactions WHERE document_id = $1 ORDER BY date ASC, created_at ASC`, transactionColumns)

	rows, err := r.querier.Query(ctx, query, documentID)
	if err != nil {
		r.logger.Error("Failed to get transactions by document", "document_id", documentID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transactions by document: %w", err)
	}
	defer rows.Close()

	return r.collectTransactions(rows)
}

// List retrieves transactions matching the filter conjunction. Rows are
// joined to their parent document and scoped to its owner; another user's
// transactions never appear, whatever the filter says.
func (r *TransactionRepository) List(ctx context.Context, userID uuid.UUID, filter transaction.Filter) ([]*transaction.Transaction, error) {
	builder := sq.Select(transactionColumnsQualified).
		From("transactions t").
		Join("documents d ON d.id = t.document_id").
		Where(sq.Eq{"d.user_id": userID}).
		OrderBy("t.date DESC", "t.created_at DESC").
		PlaceholderFormat(sq.Dollar)

	if filter.DocumentID != nil {
		builder = builder.Where(sq.Eq{"t.document_id": *filter.DocumentID})
	}
	if filter.ClientID != nil {
		builder = builder.Where(sq.Eq{"t.client_id": *filter.ClientID})
	}
	if filter.BusinessID != nil {
		builder = builder.Where(sq.Eq{"t.business_id": *filter.BusinessID})
	}
	if filter.Status != nil {
		builder = builder.Where(sq.Eq{"t.status": *filter.Status})
	}
	if filter.DateFrom != nil {
		builder = builder.Where(sq.GtOrEq{"t.date": *filter.DateFrom})
	}
	if filter.DateTo != nil {
		builder = builder.Where(sq.LtOrEq{"t.date": *filter.DateTo})
	}
	if filter.Limit > 0 {
		builder = builder.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		builder = builder.Offset(uint64(filter.Offset))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction list query: %w", err)
	}

	rows, err := r.querier.Query(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list transactions", "error", err)
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	return r.collectTransactions(rows)
}

// Update persists the full mutable state of a transaction row
func (r *TransactionRepository) Update(ctx context.Context, t *transaction.Transaction) error {
	query := `
		UPDATE transactions
		SET date = $2, description = $3, category = $4, amount = $5, currency = $6,
			status = $7, notes = $8, updated_at = $9
		WHERE id = $1
	`

	result, err := r.querier.Exec(ctx, query,
		t.ID,
		t.Date,
		t.Description,
		t.Category,
		t.Amount.String(),
		t.Currency,
		t.Status,
		t.Notes,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to update transaction", "id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransactionNotFound{TransactionID: t.ID}
	}

	return nil
}

// UpdateStatusBatch moves all given rows to the status in one statement
func (r *TransactionRepository) UpdateStatusBatch(ctx context.Context, ids []uuid.UUID, status transaction.Status) error {
	if len(ids) == 0 {
		return transaction.ErrEmptyBatch
	}

	query := `UPDATE transactions SET status = $1, updated_at = NOW() WHERE id = ANY($2)`

	result, err := r.querier.Exec(ctx, query, status, ids)
	if err != nil {
		r.logger.Error("Failed to update transaction statuses", "count", len(ids), "error", err)
		return fmt.Errorf("failed to update transaction statuses: %w", err)
	}

	if result.RowsAffected() != int64(len(ids)) {
		return fmt.Errorf("status update affected %d of %d transactions", result.RowsAffected(), len(ids))
	}

	return nil
}

// DeleteBatch removes the given rows except those already submitted.
// Submitted rows are part of the external authority record and must survive.
func (r *TransactionRepository) DeleteBatch(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, transaction.ErrEmptyBatch
	}

	query := `DELETE FROM transactions WHERE id = ANY($1) AND status <> $2`

	result, err := r.querier.Exec(ctx, query, ids, transaction.StatusSubmitted)
	if err != nil {
		r.logger.Error("Failed to delete transactions", "count", len(ids), "error", err)
		return 0, fmt.Errorf("failed to delete transactions: %w", err)
	}

	return result.RowsAffected(), nil
}

// CountByDocumentID returns the number of transactions tied to a document
func (r *TransactionRepository) CountByDocumentID(ctx context.Context, documentID uuid.UUID) (int64, error) {
	var count int64
	err := r.querier.QueryRow(ctx, `SELECT COUNT(*) FROM transactions WHERE document_id = $1`, documentID).Scan(&count)
	if err != nil {
		r.logger.Error("Failed to count transactions", "document_id", documentID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

func (r *TransactionRepository) collectTransactions(rows pgx.Rows) ([]*transaction.Transaction, error) {
	var transactions []*transaction.Transaction
	for rows.Next() {
		t, err := r.scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transaction rows: %w", err)
	}
	return transactions, nil
}

// scanTransaction reads one row; amounts travel as text to keep fixed-point
// precision intact across the driver boundary.
func (r *TransactionRepository) scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var t transaction.Transaction
	var amount string
	err := row.Scan(
		&t.ID,
		&t.DocumentID,
		&t.ClientID,
		&t.BusinessID,
		&t.Date,
		&t.Description,
		&t.Category,
		&amount,
		&t.Currency,
		&t.Status,
		&t.IsAIGenerated,
		&t.ConfidenceScore,
		&t.Notes,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	t.Amount, err = decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse transaction amount %q: %w", amount, err)
	}

	return &t, nil
}
