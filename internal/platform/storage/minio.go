package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/taxdocs-pipeline/internal/config"
)

// MinioStore implements BlobStore against a MinIO/S3-compatible endpoint.
// Multipart primitives go through the low-level Core client.
type MinioStore struct {
	core   *minio.Core
	bucket string
	region string
	logger *slog.Logger
}

// NewMinioStore creates a MinIO-backed blob store from the Config
func NewMinioStore(logger *slog.Logger, cfg *config.StorageConfig) (*MinioStore, error) {
	core, err := minio.NewCore(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("init minio: %w", err)
	}
	return &MinioStore{
		core:   core,
		bucket: cfg.Bucket,
		region: cfg.Region,
		logger: logger,
	}, nil
}

// EnsureBucket makes sure the document bucket exists before use
func (s *MinioStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.core.Client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", s.bucket, err)
	}
	if !exists {
		if err := s.core.Client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{Region: s.region}); err != nil {
			return fmt.Errorf("make bucket %s: %w", s.bucket, err)
		}
	}
	return nil
}

func (s *MinioStore) Put(ctx context.Context, key string, data []byte, contentType string) (*PutResult, error) {
	opts := minio.PutObjectOptions{ContentType: contentType}
	info, err := s.core.Client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), opts)
	if err != nil {
		s.logger.Error("Failed to put object", "key", key, "error", err)
		return nil, fmt.Errorf("put object %s: %w", key, ErrStorageUnavailable)
	}
	return &PutResult{
		Key:  key,
		URL:  s.objectURL(key),
		Size: info.Size,
		ETag: info.ETag,
	}, nil
}

func (s *MinioStore) Get(ctx context.Context, key string) ([]byte, error) {
	obj, err := s.core.Client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		s.logger.Error("Failed to get object", "key", key, "error", err)
		return nil, fmt.Errorf("get object %s: %w", key, ErrStorageUnavailable)
	}
	defer obj.Close()
	buf, err := io.ReadAll(obj)
	if err != nil {
		s.logger.Error("Failed to read object", "key", key, "error", err)
		return nil, fmt.Errorf("read object %s: %w", key, ErrStorageUnavailable)
	}
	return buf, nil
}

func (s *MinioStore) Head(ctx context.Context, key string) (*Metadata, error) {
	info, err := s.core.Client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		s.logger.Error("Failed to stat object", "key", key, "error", err)
		return nil, fmt.Errorf("stat object %s: %w", key, ErrStorageUnavailable)
	}
	return &Metadata{
		Size:         info.Size,
		LastModified: info.LastModified,
		ContentType:  info.ContentType,
		ETag:         info.ETag,
	}, nil
}

func (s *MinioStore) Delete(ctx context.Context, key string) error {
	if err := s.core.Client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{}); err != nil {
		s.logger.Error("Failed to delete object", "key", key, "error", err)
		return fmt.Errorf("delete object %s: %w", key, ErrStorageUnavailable)
	}
	return nil
}

func (s *MinioStore) InitiateMultipart(ctx context.Context, key, contentType string) (string, error) {
	uploadID, err := s.core.NewMultipartUpload(ctx, s.bucket, key, minio.PutObjectOptions{ContentType: contentType})
	if err != nil {
		s.logger.Error("Failed to initiate multipart upload", "key", key, "error", err)
		return "", fmt.Errorf("initiate multipart for %s: %w", key, ErrStorageUnavailable)
	}
	return uploadID, nil
}

func (s *MinioStore) UploadPart(ctx context.Context, key, uploadID string, partNumber int, data []byte) (*PartResult, error) {
	part, err := s.core.PutObjectPart(ctx, s.bucket, key, uploadID, partNumber,
		bytes.NewReader(data), int64(len(data)), minio.PutObjectPartOptions{})
	if err != nil {
		s.logger.Error("Failed to upload part",
			"key", key,
			"upload_id", uploadID,
			"part_number", partNumber,
			"error", err)
		return nil, fmt.Errorf("upload part %d for %s: %w", partNumber, key, ErrStorageUnavailable)
	}
	return &PartResult{ETag: part.ETag, Size: part.Size}, nil
}

func (s *MinioStore) CompleteMultipart(ctx context.Context, key, uploadID string, parts []Part) (*PutResult, error) {
	completeParts := make([]minio.CompletePart, len(parts))
	for i, p := range parts {
		completeParts[i] = minio.CompletePart{PartNumber: p.PartNumber, ETag: p.ETag}
	}

	info, err := s.core.CompleteMultipartUpload(ctx, s.bucket, key, uploadID, completeParts, minio.PutObjectOptions{})
	if err != nil {
		s.logger.Error("Failed to complete multipart upload",
			"key", key,
			"upload_id", uploadID,
			"parts", len(parts),
			"error", err)
		return nil, fmt.Errorf("complete multipart for %s: %w", key, ErrStorageUnavailable)
	}
	return &PutResult{
		Key:  key,
		URL:  s.objectURL(key),
		Size: info.Size,
		ETag: info.ETag,
	}, nil
}

func (s *MinioStore) AbortMultipart(ctx context.Context, key, uploadID string) error {
	if err := s.core.AbortMultipartUpload(ctx, s.bucket, key, uploadID); err != nil {
		s.logger.Error("Failed to abort multipart upload", "key", key, "upload_id", uploadID, "error", err)
		return fmt.Errorf("abort multipart for %s: %w", key, ErrStorageUnavailable)
	}
	return nil
}

func (s *MinioStore) PresignedGetURL(ctx context.Context, key string, expiry time.Duration) (string, error) {
	u, err := s.core.Client.PresignedGetObject(ctx, s.bucket, key, expiry, url.Values{})
	if err != nil {
		s.logger.Error("Failed to presign object", "key", key, "error", err)
		return "", fmt.Errorf("presign object %s: %w", key, ErrStorageUnavailable)
	}
	return u.String(), nil
}

func (s *MinioStore) objectURL(key string) string {
	return fmt.Sprintf("%s/%s/%s", s.core.Client.EndpointURL(), s.bucket, key)
}
