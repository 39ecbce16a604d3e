package submission

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status defines submission record states
type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusFailed    Status = "failed"
)

// Record is the audit anchor for a submission attempt. It is written in
// draft status before any external call so a crash mid-submission still
// leaves a durable trace.
type Record struct {
	ID               uuid.UUID  `json:"id" bson:"_id"`
	UserID           uuid.UUID  `json:"user_id" bson:"user_id"`
	ClientID         uuid.UUID  `json:"client_id" bson:"client_id"`
	BusinessID       *uuid.UUID `json:"business_id,omitempty" bson:"business_id,omitempty"`
	DocumentID       uuid.UUID  `json:"document_id" bson:"document_id"`
	TaxYear          string     `json:"tax_year" bson:"tax_year"`
	PeriodKey        string     `json:"period_key,omitempty" bson:"period_key,omitempty"`
	Status           Status     `json:"status" bson:"status"`
	AuthorityError   string     `json:"authority_error,omitempty" bson:"authority_error,omitempty"` // Verbatim failure payload
	TransactionCount int        `json:"transaction_count" bson:"transaction_count"`
	CreatedAt        time.Time  `json:"created_at" bson:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
}

// NewRecord creates a draft submission record for a document
func NewRecord(userID, clientID uuid.UUID, businessID *uuid.UUID, documentID uuid.UUID, taxYear, periodKey string, transactionCount int) *Record {
	return &Record{
		ID:               uuid.New(),
		UserID:           userID,
		ClientID:         clientID,
		BusinessID:       businessID,
		DocumentID:       documentID,
		TaxYear:          taxYear,
		PeriodKey:        periodKey,
		Status:           StatusDraft,
		TransactionCount: transactionCount,
		CreatedAt:        time.Now(),
	}
}

// MarkSubmitted finalizes the record after every external call succeeded
func (r *Record) MarkSubmitted() {
	r.Status = StatusSubmitted
	now := time.Now()
	r.CompletedAt = &now
}

// MarkFailed finalizes the record with the authority's error captured verbatim
func (r *Record) MarkFailed(authorityError string) {
	r.Status = StatusFailed
	r.AuthorityError = authorityError
	now := time.Now()
	r.CompletedAt = &now
}

// ExternalTransaction records one transaction accepted by the tax authority.
// These rows accumulate as individual calls succeed; on a partial failure
// they are the recovery ledger for manual reconciliation.
type ExternalTransaction struct {
	ID                uuid.UUID `json:"id" bson:"_id"`
	SubmissionID      uuid.UUID `json:"submission_id" bson:"submission_id"`
	TransactionID     uuid.UUID `json:"transaction_id" bson:"transaction_id"`
	DocumentID        uuid.UUID `json:"document_id" bson:"document_id"`
	AuthorityID       string    `json:"authority_id" bson:"authority_id"`
	ExternalReference string    `json:"external_reference" bson:"external_reference"` // Deterministic, for content-level idempotency
	Direction         string    `json:"direction" bson:"direction"`
	Amount            string    `json:"amount" bson:"amount"` // Fixed-point decimal string
	Date              time.Time `json:"date" bson:"date"`
	Description       string    `json:"description" bson:"description"`
	SubmittedAt       time.Time `json:"submitted_at" bson:"submitted_at"`
}

// ExternalReference derives the deterministic reference a transaction carries
// to the authority, so redelivery is detectable by content.
func ExternalReference(documentID, transactionID uuid.UUID) string {
	return fmt.Sprintf("%s-%s", documentID, transactionID)
}
