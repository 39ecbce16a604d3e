package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/taxdocs-pipeline/internal/domain/document"
	"github.com/taxdocs-pipeline/internal/domain/submission"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
	"github.com/taxdocs-pipeline/internal/hmrc"
)

// isoDate is the date layout the authority expects
const isoDate = "2006-01-02"

// SubmissionServiceImpl implements the SubmissionService interface.
//
// The protocol is draft-first: a durable draft record exists in Mongo before
// the first external call, every authority acceptance writes its own external
// row immediately, and the terminal status lands last. A crash at any point
// leaves a reconstructible trail.
type SubmissionServiceImpl struct {
	docRepo document.Repository
	txRepo  transaction.Repository
	subRepo submission.Repository
	client  hmrc.SubmissionClient
	txExec  TxExecutor
	logger  *slog.Logger
}

// NewSubmissionService creates a new submission service
func NewSubmissionService(
	logger *slog.Logger,
	docRepo document.Repository,
	txRepo transaction.Repository,
	subRepo submission.Repository,
	client hmrc.SubmissionClient,
	txExec TxExecutor,
) SubmissionService {
	return &SubmissionServiceImpl{
		docRepo: docRepo,
		txRepo:  txRepo,
		subRepo: subRepo,
		client:  client,
		txExec:  txExec,
		logger:  logger,
	}
}

// SubmitToHMRC submits every approved transaction of the document, one
// authority call per transaction, in stable order. The first rejection stops
// the run: prior acceptances stay on record as external rows, the record
// flips to failed with the authority's payload verbatim, and nothing is
// rolled back. A repeat call opens a fresh draft and resubmits everything;
// the deterministic external reference lets the authority detect repeats.
func (s *SubmissionServiceImpl) SubmitToHMRC(ctx context.Context, input *SubmitInput) (*submission.Record, error) {
	doc, err := s.docRepo.GetByID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != input.UserID {
		return nil, document.ErrDocumentNotFound{DocumentID: input.DocumentID}
	}

	all, err := s.txRepo.GetByDocumentID(ctx, input.DocumentID)
	if err != nil {
		return nil, err
	}

	var approved []*transaction.Transaction
	for _, t := range all {
		if t.Status == transaction.StatusApproved {
			approved = append(approved, t)
		}
	}
	if len(approved) == 0 {
		return nil, transaction.ErrEmptyBatch
	}

	// Durable draft before the first external call
	record := submission.NewRecord(doc.UserID, doc.ClientID, doc.BusinessID, doc.ID, input.TaxYear, input.PeriodKey, len(approved))
	if err := s.subRepo.CreateRecord(ctx, record); err != nil {
		return nil, err
	}

	s.logger.Info("Submission started",
		"submission_id", record.ID.String(),
		"document_id", doc.ID.String(),
		"transaction_count", len(approved),
	)

	for i, t := range approved {
		result, err := s.client.SubmitTransaction(ctx, &hmrc.TransactionSubmission{
			ExternalReference: submission.ExternalReference(doc.ID, t.ID),
			BusinessID:        submissionBusinessID(doc, t),
			TaxYear:           input.TaxYear,
			PeriodKey:         input.PeriodKey,
			Direction:         string(t.Direction()),
			Amount:            t.Amount.String(),
			Currency:          t.Currency,
			Date:              t.Date.Format(isoDate),
			Description:       t.Description,
			Category:          t.Category,
		})
		if err != nil {
			return record, s.failRecord(ctx, record, t.ID, i, err)
		}

		ext := &submission.ExternalTransaction{
			ID:                uuid.New(),
			SubmissionID:      record.ID,
			TransactionID:     t.ID,
			DocumentID:        doc.ID,
			AuthorityID:       result.AuthorityID,
			ExternalReference: submission.ExternalReference(doc.ID, t.ID),
			Direction:         string(t.Direction()),
			Amount:            t.Amount.String(),
			Date:              t.Date,
			Description:       t.Description,
			SubmittedAt:       time.Now(),
		}
		if err := s.subRepo.CreateExternalTransaction(ctx, ext); err != nil {
			// The authority accepted this transaction but we could not
			// record it. Fail the run; the acceptance is recoverable via
			// the external reference.
			return record, s.failRecord(ctx, record, t.ID, i, err)
		}
	}

	// Every call succeeded: move the relational state in one transaction
	ids := make([]uuid.UUID, len(approved))
	for i, t := range approved {
		ids[i] = t.ID
	}
	now := time.Now()
	err = s.txExec.ExecuteTx(ctx, func(tx pgx.Tx) error {
		if err := s.txRepo.WithTx(tx).UpdateStatusBatch(ctx, ids, transaction.StatusSubmitted); err != nil {
			return err
		}
		status := document.StatusSubmittedToHMRC
		return s.docRepo.WithTx(tx).ApplyPatch(ctx, doc.ID, document.Patch{
			Status:      &status,
			SubmittedAt: &now,
		})
	})
	if err != nil {
		return record, s.failRecord(ctx, record, uuid.Nil, len(approved), err)
	}

	record.MarkSubmitted()
	if err := s.subRepo.UpdateRecordStatus(ctx, record.ID, submission.StatusSubmitted, ""); err != nil {
		// The submission itself succeeded; only the audit status lagged
		s.logger.Error("Failed to finalize submission record",
			"submission_id", record.ID.String(),
			"error", err,
		)
		return record, err
	}

	s.logger.Info("Submission completed",
		"submission_id", record.ID.String(),
		"document_id", doc.ID.String(),
	)

	return record, nil
}

// failRecord flips the record to failed, keeping an authority payload
// verbatim when one exists, and returns the original error.
func (s *SubmissionServiceImpl) failRecord(ctx context.Context, record *submission.Record, txID uuid.UUID, accepted int, cause error) error {
	reason := cause.Error()
	var authorityErr *hmrc.AuthorityError
	if errors.As(cause, &authorityErr) {
		reason = authorityErr.Body
	}

	record.MarkFailed(reason)
	if err := s.subRepo.UpdateRecordStatus(ctx, record.ID, submission.StatusFailed, reason); err != nil {
		s.logger.Error("Failed to mark submission record as failed",
			"submission_id", record.ID.String(),
			"error", err,
		)
	}

	s.logger.Warn("Submission failed",
		"submission_id", record.ID.String(),
		"failed_transaction_id", txID.String(),
		"accepted_before_failure", accepted,
		"error", cause,
	)

	return cause
}

// GetSubmissions lists submission records for a document, newest first
func (s *SubmissionServiceImpl) GetSubmissions(ctx context.Context, userID, documentID uuid.UUID) ([]*submission.Record, error) {
	doc, err := s.docRepo.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if doc.UserID != userID {
		return nil, document.ErrDocumentNotFound{DocumentID: documentID}
	}

	return s.subRepo.GetRecordsByDocumentID(ctx, documentID)
}

// GetSubmissionRows lists the accepted external transaction rows for a
// submission in acceptance order.
func (s *SubmissionServiceImpl) GetSubmissionRows(ctx context.Context, submissionID uuid.UUID) ([]*submission.ExternalTransaction, error) {
	return s.subRepo.GetExternalTransactions(ctx, submissionID)
}

// submissionBusinessID resolves the business the authority call is filed
// under. The row's own business wins; rows without one inherit the
// document's. Personal filings carry no business at all.
func submissionBusinessID(doc *document.Document, t *transaction.Transaction) string {
	if t.BusinessID != nil {
		return t.BusinessID.String()
	}
	if doc.BusinessID != nil {
		return doc.BusinessID.String()
	}
	return ""
}
