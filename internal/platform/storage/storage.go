// Package storage wraps the object store behind a capability interface so the
// pipeline never talks to a provider SDK directly. The MinIO implementation
// covers both whole-object puts and the multipart upload primitives.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrStorageUnavailable is the opaque failure surfaced for any provider error.
// Callers must not assume retries happen transparently.
var ErrStorageUnavailable = errors.New("object storage unavailable")

// PutResult describes a stored object
type PutResult struct {
	Key  string
	URL  string
	Size int64
	ETag string
}

// PartResult describes one uploaded multipart part
type PartResult struct {
	ETag string
	Size int64
}

// Metadata describes an existing object without fetching its content
type Metadata struct {
	Size         int64
	LastModified time.Time
	ContentType  string
	ETag         string
}

// Part pairs a part number with its content hash for the completion call
type Part struct {
	PartNumber int
	ETag       string
}

// BlobStore is the object store gateway contract. All calls may fail with an
// error wrapping ErrStorageUnavailable.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) (*PutResult, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Head(ctx context.Context, key string) (*Metadata, error)
	Delete(ctx context.Context, key string) error

	InitiateMultipart(ctx context.Context, key, contentType string) (string, error)
	UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (*PartResult, error)
	CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (*PutResult, error)

	// AbortMultipart is best-effort; it may legitimately race with an
	// already-completed upload.
	AbortMultipart(ctx context.Context, key, uploadID string) error

	PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error)
}
