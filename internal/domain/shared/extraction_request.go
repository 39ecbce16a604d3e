package shared

import (
	"time"

	"github.com/google/uuid"
)

// ExtractionRequest defines a Kafka message asking the document processor to
// run content extraction for an uploaded document.
type ExtractionRequest struct {
	DocumentID    uuid.UUID `json:"document_id"`
	UserID        uuid.UUID `json:"user_id"`
	ClientID      uuid.UUID `json:"client_id"`
	BlobKey       string    `json:"blob_key"`
	ContentType   string    `json:"content_type"`
	CorrelationID string    `json:"correlation_id"`
	Timestamp     time.Time `json:"timestamp"`
}

// CandidateTransaction is one extracted line item. Candidates are provisional:
// they carry a prov_-prefixed id and are never stored as transaction rows.
type CandidateTransaction struct {
	ProvisionalID string  `json:"provisional_id"`
	Date          string  `json:"date"` // ISO 8601 date
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Amount        string  `json:"amount"` // Signed fixed-point decimal string
	Confidence    float64 `json:"confidence"`
}
