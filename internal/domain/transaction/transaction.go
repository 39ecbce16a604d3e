package transaction

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrEmptyDescription      = errors.New("description cannot be empty")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
	ErrSubmittedImmutable    = errors.New("amount, category and date are immutable once submitted")
	ErrEmptyBatch            = errors.New("transaction batch cannot be empty")
)

// DefaultCurrency is applied when a transaction carries no currency
const DefaultCurrency = "GBP"

// ProvisionalIDPrefix marks candidate transactions that exist only
// client-side. Ids with this prefix are never written to storage.
const ProvisionalIDPrefix = "prov_"

// Status defines transaction lifecycle states
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusSubmitted Status = "submitted"
)

// Direction classifies a transaction by its amount sign
type Direction string

const (
	DirectionIncome  Direction = "income"
	DirectionExpense Direction = "expense"
)

// Transaction is a persisted financial transaction tied to a document
type Transaction struct {
	ID              uuid.UUID       `json:"id"`
	DocumentID      uuid.UUID       `json:"document_id"`
	ClientID        uuid.UUID       `json:"client_id"`
	BusinessID      *uuid.UUID      `json:"business_id,omitempty"`
	Date            time.Time       `json:"date"`
	Description     string          `json:"description"`
	Category        string          `json:"category"`
	Amount          decimal.Decimal `json:"amount"` // Signed; stored as fixed-point string
	Currency        string          `json:"currency"`
	Status          Status          `json:"status"`
	IsAIGenerated   bool            `json:"is_ai_generated"`
	ConfidenceScore float64         `json:"confidence_score"`
	Notes           string          `json:"notes,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// New creates a transaction row in the given status. Currency defaults to
// DefaultCurrency when empty.
func New(documentID, clientID uuid.UUID, businessID *uuid.UUID, date time.Time, description, category string, amount decimal.Decimal, currency string, status Status) (*Transaction, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}

	now := time.Now()
	return &Transaction{
		ID:          uuid.New(),
		DocumentID:  documentID,
		ClientID:    clientID,
		BusinessID:  businessID,
		Date:        date,
		Description: description,
		Category:    category,
		Amount:      amount,
		Currency:    currency,
		Status:      status,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Direction classifies the transaction by its amount sign; zero counts as income
func (t *Transaction) Direction() Direction {
	if t.Amount.IsNegative() {
		return DirectionExpense
	}
	return DirectionIncome
}

// IsProvisionalID reports whether an id names a client-side candidate
// transaction rather than a persisted row.
func IsProvisionalID(id string) bool {
	return strings.HasPrefix(id, ProvisionalIDPrefix)
}

// ApplyPatch mutates the transaction with the fields present in the patch.
// Submitted rows refuse changes to amount, category and date.
func (t *Transaction) ApplyPatch(patch Patch) error {
	if t.Status == StatusSubmitted && (patch.Amount != nil || patch.Category != nil || patch.Date != nil) {
		return ErrSubmittedImmutable
	}
	if patch.Date != nil {
		t.Date = *patch.Date
	}
	if patch.Description != nil {
		t.Description = *patch.Description
	}
	if patch.Category != nil {
		t.Category = *patch.Category
	}
	if patch.Amount != nil {
		t.Amount = *patch.Amount
	}
	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Notes != nil {
		t.Notes = *patch.Notes
	}
	t.UpdatedAt = time.Now()
	return nil
}

// Patch is a partial transaction update; only non-nil fields are applied
type Patch struct {
	Date        *time.Time
	Description *string
	Category    *string
	Amount      *decimal.Decimal
	Status      *Status
	Notes       *string
}

// Filter narrows transaction listings; nil fields match all
type Filter struct {
	DocumentID *uuid.UUID
	ClientID   *uuid.UUID
	BusinessID *uuid.UUID
	Status     *Status
	DateFrom   *time.Time
	DateTo     *time.Time
	Limit      int
	Offset     int
}
