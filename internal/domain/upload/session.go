package upload

import (
	"fmt"
	"sort"
	"time"
)

// Status defines upload session states
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusUploading Status = "uploading"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusAborted   Status = "aborted"
)

// Session tracks the progress of one chunked upload. The id is the
// provider-issued multipart upload id.
type Session struct {
	ID           string         `json:"id"`
	BlobKey      string         `json:"blob_key"`
	FileName     string         `json:"file_name"`
	ContentType  string         `json:"content_type"`
	DeclaredSize int64          `json:"declared_size"`
	ChunkSize    int64          `json:"chunk_size"`
	TotalParts   int            `json:"total_parts"`
	Parts        map[int]string `json:"parts"` // part number -> content hash (etag)
	Status       Status         `json:"status"`
	LastActivity time.Time      `json:"last_activity"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NewSession creates a session in initiated state.
// TotalParts is ceil(declaredSize / chunkSize).
func NewSession(id, blobKey, fileName, contentType string, declaredSize, chunkSize int64) *Session {
	totalParts := int((declaredSize + chunkSize - 1) / chunkSize)
	now := time.Now()
	return &Session{
		ID:           id,
		BlobKey:      blobKey,
		FileName:     fileName,
		ContentType:  contentType,
		DeclaredSize: declaredSize,
		ChunkSize:    chunkSize,
		TotalParts:   totalParts,
		Parts:        make(map[int]string, totalParts),
		Status:       StatusInitiated,
		LastActivity: now,
		CreatedAt:    now,
	}
}

// RecordPart stores the content hash for a completed part and refreshes
// the activity timestamp
func (s *Session) RecordPart(partNumber int, etag string) {
	s.Parts[partNumber] = etag
	s.Status = StatusUploading
	s.LastActivity = time.Now()
}

// PercentComplete is completedParts/totalParts * 100
func (s *Session) PercentComplete() float64 {
	if s.TotalParts == 0 {
		return 0
	}
	return float64(len(s.Parts)) / float64(s.TotalParts) * 100
}

// MissingParts returns declared part numbers not yet uploaded, ascending
func (s *Session) MissingParts() []int {
	var missing []int
	for n := 1; n <= s.TotalParts; n++ {
		if _, ok := s.Parts[n]; !ok {
			missing = append(missing, n)
		}
	}
	return missing
}

// SortedParts returns (partNumber, etag) pairs in part order for the
// provider completion call
func (s *Session) SortedParts() []CompletedPart {
	parts := make([]CompletedPart, 0, len(s.Parts))
	for n, etag := range s.Parts {
		parts = append(parts, CompletedPart{PartNumber: n, ETag: etag})
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].PartNumber < parts[j].PartNumber })
	return parts
}

// CompletedPart pairs a part number with its provider-returned content hash
type CompletedPart struct {
	PartNumber int    `json:"part_number"`
	ETag       string `json:"etag"`
}

// ErrSessionNotFound indicates an unknown or already-discarded session
type ErrSessionNotFound struct {
	SessionID string
}

func (e ErrSessionNotFound) Error() string {
	return "upload session not found: " + e.SessionID
}

// Is implements the errors.Is interface for ErrSessionNotFound
func (e ErrSessionNotFound) Is(target error) bool {
	t, ok := target.(ErrSessionNotFound)
	if !ok {
		return false
	}
	return t.SessionID == "" || e.SessionID == t.SessionID
}

// ErrFileTooLarge indicates a declared size over the upload ceiling
type ErrFileTooLarge struct {
	Size  int64
	Limit int64
}

func (e ErrFileTooLarge) Error() string {
	return fmt.Sprintf("file size %d exceeds limit of %d bytes", e.Size, e.Limit)
}

// ErrPartTooSmall indicates a non-final part below the provider size floor
type ErrPartTooSmall struct {
	PartNumber int
	Size       int64
	MinSize    int64
}

func (e ErrPartTooSmall) Error() string {
	return fmt.Sprintf("part %d is %d bytes; all parts except the last must be at least %d bytes", e.PartNumber, e.Size, e.MinSize)
}

// ErrInvalidPartNumber indicates a part number outside 1..TotalParts
type ErrInvalidPartNumber struct {
	PartNumber int
	TotalParts int
}

func (e ErrInvalidPartNumber) Error() string {
	return fmt.Sprintf("part number %d out of range 1..%d", e.PartNumber, e.TotalParts)
}

// ErrIncompleteUpload indicates a completion attempt with parts missing
type ErrIncompleteUpload struct {
	SessionID    string
	MissingParts []int
}

func (e ErrIncompleteUpload) Error() string {
	return fmt.Sprintf("upload session %s is missing parts %v", e.SessionID, e.MissingParts)
}
