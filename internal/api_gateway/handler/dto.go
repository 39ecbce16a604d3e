package handler

// InitiateUploadRequest opens a chunked upload session
type InitiateUploadRequest struct {
	FileName   string `json:"file_name" binding:"required"`
	FileSize   int64  `json:"file_size" binding:"required,gt=0"`
	ClientID   string `json:"client_id" binding:"required,uuid"`
	BusinessID string `json:"business_id,omitempty" binding:"omitempty,uuid"`
}

// SessionResponse represents a chunked upload session in API responses
type SessionResponse struct {
	SessionID       string  `json:"session_id"`
	FileName        string  `json:"file_name"`
	DeclaredSize    int64   `json:"declared_size"`
	ChunkSize       int64   `json:"chunk_size"`
	TotalParts      int     `json:"total_parts"`
	UploadedParts   int     `json:"uploaded_parts"`
	MissingParts    []int   `json:"missing_parts,omitempty"`
	PercentComplete float64 `json:"percent_complete"`
	Status          string  `json:"status"`
}

// DocumentResponse represents a document in API responses
type DocumentResponse struct {
	ID               string      `json:"id"`
	ClientID         string      `json:"client_id"`
	BusinessID       string      `json:"business_id,omitempty"`
	FileName         string      `json:"file_name"`
	FileSize         int64       `json:"file_size"`
	ContentType      string      `json:"content_type"`
	DocumentTypes    []string    `json:"document_types"`
	Status           string      `json:"status"`
	ProcessingStatus string      `json:"processing_status"`
	ExtractedCount   int         `json:"ai_extracted_transactions"`
	ConfidenceScore  float64     `json:"confidence_score"`
	Candidates       interface{} `json:"extraction_candidates,omitempty"`
	DownloadURL      string      `json:"download_url,omitempty"`
	UploadedAt       string      `json:"uploaded_at"`
	ProcessedAt      string      `json:"processed_at,omitempty"`
	SubmittedAt      string      `json:"submitted_at,omitempty"`
}

// ListDocumentsQuery carries the optional document list filters
type ListDocumentsQuery struct {
	ClientID         string `form:"client_id" binding:"omitempty,uuid"`
	BusinessID       string `form:"business_id" binding:"omitempty,uuid"`
	DocumentType     string `form:"document_type"`
	Status           string `form:"status"`
	ProcessingStatus string `form:"processing_status"`
	Search           string `form:"search"`
	UploadedFrom     string `form:"uploaded_from"` // RFC 3339
	UploadedTo       string `form:"uploaded_to"`   // RFC 3339
	PaginationParams
}

// ApprovedTransactionRequest is one reviewed line item in an approval batch.
// Amounts arrive as fixed-point decimal strings; floats are never accepted.
type ApprovedTransactionRequest struct {
	Date            string  `json:"date" binding:"required"` // RFC 3339 or 2006-01-02
	Description     string  `json:"description" binding:"required"`
	Category        string  `json:"category"`
	Amount          string  `json:"amount" binding:"required"`
	Currency        string  `json:"currency" binding:"omitempty,len=3"`
	IsAIGenerated   bool    `json:"is_ai_generated"`
	ConfidenceScore float64 `json:"confidence_score" binding:"omitempty,min=0,max=1"`
	Notes           string  `json:"notes"`
}

// ApproveRequest finalizes a reviewed extraction batch for a document
type ApproveRequest struct {
	DocumentTypes []string                     `json:"document_types"`
	Transactions  []ApprovedTransactionRequest `json:"transactions" binding:"required"`
}

// UpdateTransactionRequest is a partial transaction edit; absent fields are
// left untouched
type UpdateTransactionRequest struct {
	Date        *string `json:"date,omitempty"`
	Description *string `json:"description,omitempty"`
	Category    *string `json:"category,omitempty"`
	Amount      *string `json:"amount,omitempty"`
	Status      *string `json:"status,omitempty"`
	Notes       *string `json:"notes,omitempty"`
}

// DeleteTransactionsRequest names the rows to remove in bulk
type DeleteTransactionsRequest struct {
	IDs []string `json:"ids" binding:"required,min=1,dive,uuid"`
}

// TransactionResponse represents a transaction in API responses
type TransactionResponse struct {
	ID              string  `json:"id"`
	DocumentID      string  `json:"document_id"`
	ClientID        string  `json:"client_id"`
	BusinessID      string  `json:"business_id,omitempty"`
	Date            string  `json:"date"`
	Description     string  `json:"description"`
	Category        string  `json:"category"`
	Amount          string  `json:"amount"`
	Currency        string  `json:"currency"`
	Direction       string  `json:"direction"`
	Status          string  `json:"status"`
	IsAIGenerated   bool    `json:"is_ai_generated"`
	ConfidenceScore float64 `json:"confidence_score"`
	Notes           string  `json:"notes,omitempty"`
	CreatedAt       string  `json:"created_at"`
	UpdatedAt       string  `json:"updated_at"`
}

// ListTransactionsQuery carries the optional transaction list filters
type ListTransactionsQuery struct {
	DocumentID string `form:"document_id" binding:"omitempty,uuid"`
	ClientID   string `form:"client_id" binding:"omitempty,uuid"`
	BusinessID string `form:"business_id" binding:"omitempty,uuid"`
	Status     string `form:"status"`
	DateFrom   string `form:"date_from"` // 2006-01-02
	DateTo     string `form:"date_to"`   // 2006-01-02
	PaginationParams
}

// CreateFolderRequest creates a named folder
type CreateFolderRequest struct {
	Name string `json:"name" binding:"required"`
}

// FolderResponse represents a folder in API responses
type FolderResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// SubmitRequest starts an HMRC submission run for a document
type SubmitRequest struct {
	TaxYear   string `json:"tax_year" binding:"required"`
	PeriodKey string `json:"period_key"`
}

// SubmissionResponse represents a submission record in API responses
type SubmissionResponse struct {
	ID               string `json:"id"`
	DocumentID       string `json:"document_id"`
	TaxYear          string `json:"tax_year"`
	PeriodKey        string `json:"period_key,omitempty"`
	Status           string `json:"status"`
	AuthorityError   string `json:"authority_error,omitempty"`
	TransactionCount int    `json:"transaction_count"`
	CreatedAt        string `json:"created_at"`
	CompletedAt      string `json:"completed_at,omitempty"`
}

// ExternalTransactionResponse represents one authority-accepted transaction
type ExternalTransactionResponse struct {
	TransactionID     string `json:"transaction_id"`
	AuthorityID       string `json:"authority_id"`
	ExternalReference string `json:"external_reference"`
	Direction         string `json:"direction"`
	Amount            string `json:"amount"`
	Date              string `json:"date"`
	Description       string `json:"description"`
	SubmittedAt       string `json:"submitted_at"`
}

// StatsResponse aggregates document counts for the caller
type StatsResponse struct {
	TotalDocuments     int64            `json:"total_documents"`
	TotalBytes         int64            `json:"total_bytes"`
	ByStatus           map[string]int64 `json:"by_status"`
	ByProcessingStatus map[string]int64 `json:"by_processing_status"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=20" binding:"min=1,max=100"`
}
