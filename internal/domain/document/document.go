package document

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrEmptyFileName     = errors.New("file name cannot be empty")
	ErrEmptyBlobKey      = errors.New("blob key cannot be empty")
	ErrBlobKeyImmutable  = errors.New("blob key cannot be changed once set")
	ErrUnsupportedFormat = errors.New("unsupported document format")
)

// Status is the submission-facing lifecycle axis of a document
type Status string

const (
	StatusUploaded        Status = "uploaded"
	StatusProcessed       Status = "processed"
	StatusSubmittedToHMRC Status = "submitted_to_hmrc"
)

// ProcessingStatus is the extraction lifecycle axis, independent of Status
type ProcessingStatus string

const (
	ProcessingPending    ProcessingStatus = "pending"
	ProcessingInProgress ProcessingStatus = "processing"
	ProcessingCompleted  ProcessingStatus = "completed"
	ProcessingError      ProcessingStatus = "error"
)

// statusRank orders the submission axis; transitions only ever move forward
var statusRank = map[Status]int{
	StatusUploaded:        0,
	StatusProcessed:       1,
	StatusSubmittedToHMRC: 2,
}

// processingTransitions lists the legal moves on the processing axis.
// error -> in_progress allows a re-run after a failed extraction;
// error -> completed lets an approval with manually entered transactions
// close out a document whose extraction never succeeded.
var processingTransitions = map[ProcessingStatus][]ProcessingStatus{
	ProcessingPending:    {ProcessingInProgress, ProcessingCompleted},
	ProcessingInProgress: {ProcessingCompleted, ProcessingError},
	ProcessingError:      {ProcessingInProgress, ProcessingCompleted},
}

// ErrInvalidTransition indicates an illegal state machine move
type ErrInvalidTransition struct {
	From string
	To   string
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid document state transition: %s -> %s", e.From, e.To)
}

// allowedExtensions maps accepted file extensions to their MIME types
var allowedExtensions = map[string]string{
	".pdf":  "application/pdf",
	".doc":  "application/msword",
	".docx": "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
	".xls":  "application/vnd.ms-excel",
	".xlsx": "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".tif":  "image/tiff",
	".tiff": "image/tiff",
}

// ContentTypeForFileName returns the MIME type for an accepted file name.
// Returns ErrUnsupportedFormat when the extension is not on the allow-list.
func ContentTypeForFileName(fileName string) (string, error) {
	idx := strings.LastIndex(fileName, ".")
	if idx < 0 {
		return "", ErrUnsupportedFormat
	}
	ext := strings.ToLower(fileName[idx:])
	contentType, ok := allowedExtensions[ext]
	if !ok {
		return "", ErrUnsupportedFormat
	}
	return contentType, nil
}

// Document represents a stored source file plus its metadata and lifecycle
type Document struct {
	ID               uuid.UUID        `json:"id"`
	UserID           uuid.UUID        `json:"user_id"`
	ClientID         uuid.UUID        `json:"client_id"`
	BusinessID       *uuid.UUID       `json:"business_id,omitempty"`
	BlobKey          string           `json:"blob_key"`
	FileName         string           `json:"file_name"`
	FileSize         int64            `json:"file_size"`
	ContentType      string           `json:"content_type"`
	DocumentTypes    []string         `json:"document_types"`
	Status           Status           `json:"status"`
	ProcessingStatus ProcessingStatus `json:"processing_status"`
	ExtractedCount   int              `json:"ai_extracted_transactions"`
	ConfidenceScore  float64          `json:"confidence_score"`
	Candidates       json.RawMessage  `json:"extraction_candidates,omitempty"`
	UploadedAt       time.Time        `json:"uploaded_at"`
	ProcessedAt      *time.Time       `json:"processed_at,omitempty"`
	SubmittedAt      *time.Time       `json:"submitted_at,omitempty"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// NewDocument creates a document record for a completed blob upload.
// The document starts in uploaded/pending per the ingestion contract.
func NewDocument(userID, clientID uuid.UUID, businessID *uuid.UUID, blobKey, fileName string, fileSize int64, contentType string) (*Document, error) {
	if fileName == "" {
		return nil, ErrEmptyFileName
	}
	if blobKey == "" {
		return nil, ErrEmptyBlobKey
	}

	now := time.Now()
	return &Document{
		ID:               uuid.New(),
		UserID:           userID,
		ClientID:         clientID,
		BusinessID:       businessID,
		BlobKey:          blobKey,
		FileName:         fileName,
		FileSize:         fileSize,
		ContentType:      contentType,
		DocumentTypes:    []string{},
		Status:           StatusUploaded,
		ProcessingStatus: ProcessingPending,
		UploadedAt:       now,
		UpdatedAt:        now,
	}, nil
}

// AdvanceStatus moves the submission axis forward. Backward moves are rejected.
func (d *Document) AdvanceStatus(to Status) error {
	if statusRank[to] <= statusRank[d.Status] && d.Status != to {
		return ErrInvalidTransition{From: string(d.Status), To: string(to)}
	}
	d.Status = to
	d.UpdatedAt = time.Now()
	return nil
}

// SetProcessingStatus applies a processing-axis transition, enforcing the
// legal moves in processingTransitions. Setting the current value is a no-op.
func (d *Document) SetProcessingStatus(to ProcessingStatus) error {
	if d.ProcessingStatus == to {
		return nil
	}
	for _, next := range processingTransitions[d.ProcessingStatus] {
		if next == to {
			d.ProcessingStatus = to
			d.UpdatedAt = time.Now()
			return nil
		}
	}
	return ErrInvalidTransition{From: string(d.ProcessingStatus), To: string(to)}
}

// Patch is a partial update where only non-nil fields are applied.
// The blob key is deliberately absent: it is immutable once set.
type Patch struct {
	DocumentTypes    *[]string
	Status           *Status
	ProcessingStatus *ProcessingStatus
	ExtractedCount   *int
	ConfidenceScore  *float64
	Candidates       *json.RawMessage
	ProcessedAt      *time.Time
	SubmittedAt      *time.Time
}

// IsEmpty reports whether the patch carries no changes
func (p Patch) IsEmpty() bool {
	return p.DocumentTypes == nil && p.Status == nil && p.ProcessingStatus == nil &&
		p.ExtractedCount == nil && p.ConfidenceScore == nil && p.Candidates == nil &&
		p.ProcessedAt == nil && p.SubmittedAt == nil
}

// Filter is a conjunction of optional query dimensions; a nil field means
// "match all" for that dimension.
type Filter struct {
	ClientID         *uuid.UUID
	BusinessID       *uuid.UUID
	DocumentType     *string
	Status           *Status
	ProcessingStatus *ProcessingStatus
	Search           *string // substring match over the stored blob key/path
	UploadedFrom     *time.Time
	UploadedTo       *time.Time
	Limit            int
	Offset           int
}

// Stats aggregates document counts for a user
type Stats struct {
	TotalDocuments     int64            `json:"total_documents"`
	TotalBytes         int64            `json:"total_bytes"`
	ByStatus           map[string]int64 `json:"by_status"`
	ByProcessingStatus map[string]int64 `json:"by_processing_status"`
}
