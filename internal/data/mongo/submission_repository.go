// Package mongo provides MongoDB implementations of the submission audit
// repositories. Submission records and the per-transaction external rows live
// here rather than PostgreSQL: they are append-heavy audit data that must
// survive even when the relational transaction around an approval rolls back.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/taxdocs-pipeline/internal/domain/submission"
)

const (
	// SubmissionCollectionName is the name of the submission records collection
	SubmissionCollectionName = "submission_records"
	// ExternalTxCollectionName is the name of the external transaction rows collection
	ExternalTxCollectionName = "external_transactions"
)

// SubmissionRepository implements the submission.Repository interface for MongoDB
type SubmissionRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewSubmissionRepository creates a new MongoDB submission repository
func NewSubmissionRepository(logger *slog.Logger, db *mongo.Database) submission.Repository {
	return &SubmissionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateRecord stores a new submission record. Callers write the record in
// draft status before the first external call.
func (r *SubmissionRepository) CreateRecord(ctx context.Context, record *submission.Record) error {
	collection := r.db.Collection(SubmissionCollectionName)

	_, err := collection.InsertOne(ctx, record)
	if err != nil {
		r.logger.Error("Failed to create submission record",
			"record_id", record.ID.String(),
			"document_id", record.DocumentID.String(),
			"error", err)
		return fmt.Errorf("failed to create submission record: %w", err)
	}

	return nil
}

// GetRecord retrieves a submission record by its ID.
// Returns ErrRecordNotFound if no record exists.
func (r *SubmissionRepository) GetRecord(ctx context.Context, id uuid.UUID) (*submission.Record, error) {
	collection := r.db.Collection(SubmissionCollectionName)

	filter := bson.M{"_id": id}
	var record submission.Record
	err := collection.FindOne(ctx, filter).Decode(&record)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, submission.ErrRecordNotFound{RecordID: id}
		}
		r.logger.Error("Failed to get submission record",
			"record_id", id.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get submission record: %w", err)
	}

	return &record, nil
}

// GetRecordsByDocumentID retrieves all submission records for a document,
// newest first. Multiple records mean multiple submission attempts.
func (r *SubmissionRepository) GetRecordsByDocumentID(ctx context.Context, documentID uuid.UUID) ([]*submission.Record, error) {
	collection := r.db.Collection(SubmissionCollectionName)

	filter := bson.M{"document_id": documentID}
	opts := options.Find().SetSort(bson.M{"created_at": -1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get submission records",
			"document_id", documentID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get submission records: %w", err)
	}
	defer cursor.Close(ctx)

	var records []*submission.Record
	if err := cursor.All(ctx, &records); err != nil {
		r.logger.Error("Failed to decode submission records",
			"document_id", documentID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode submission records: %w", err)
	}

	return records, nil
}

// UpdateRecordStatus moves a record to its terminal status. The authority
// error is stored verbatim; it is the only trace of WHY an attempt failed.
func (r *SubmissionRepository) UpdateRecordStatus(ctx context.Context, id uuid.UUID, status submission.Status, authorityError string) error {
	collection := r.db.Collection(SubmissionCollectionName)

	filter := bson.M{"_id": id}
	update := bson.M{
		"$set": bson.M{
			"status":          status,
			"authority_error": authorityError,
			"completed_at":    time.Now(),
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to update submission record status",
			"record_id", id.String(),
			"status", string(status),
			"error", err)
		return fmt.Errorf("failed to update submission record status: %w", err)
	}

	if result.MatchedCount == 0 {
		return submission.ErrRecordNotFound{RecordID: id}
	}

	return nil
}

// CreateExternalTransaction stores one accepted authority transaction.
// Rows are written immediately after each successful external call, never
// batched, so a partial failure leaves every prior acceptance on record.
func (r *SubmissionRepository) CreateExternalTransaction(ctx context.Context, ext *submission.ExternalTransaction) error {
	collection := r.db.Collection(ExternalTxCollectionName)

	_, err := collection.InsertOne(ctx, ext)
	if err != nil {
		r.logger.Error("Failed to create external transaction row",
			"submission_id", ext.SubmissionID.String(),
			"transaction_id", ext.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to create external transaction row: %w", err)
	}

	return nil
}

// GetExternalTransactions retrieves the accepted rows for a submission in
// acceptance order.
func (r *SubmissionRepository) GetExternalTransactions(ctx context.Context, submissionID uuid.UUID) ([]*submission.ExternalTransaction, error) {
	collection := r.db.Collection(ExternalTxCollectionName)

	filter := bson.M{"submission_id": submissionID}
	opts := options.Find().SetSort(bson.M{"submitted_at": 1})

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to get external transactions",
			"submission_id", submissionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get external transactions: %w", err)
	}
	defer cursor.Close(ctx)

	var rows []*submission.ExternalTransaction
	if err := cursor.All(ctx, &rows); err != nil {
		r.logger.Error("Failed to decode external transactions",
			"submission_id", submissionID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to decode external transactions: %w", err)
	}

	return rows, nil
}

// CountExternalTransactions counts accepted rows for a submission
func (r *SubmissionRepository) CountExternalTransactions(ctx context.Context, submissionID uuid.UUID) (int64, error) {
	collection := r.db.Collection(ExternalTxCollectionName)

	filter := bson.M{"submission_id": submissionID}
	count, err := collection.CountDocuments(ctx, filter)
	if err != nil {
		r.logger.Error("Failed to count external transactions",
			"submission_id", submissionID.String(),
			"error", err)
		return 0, fmt.Errorf("failed to count external transactions: %w", err)
	}

	return count, nil
}
