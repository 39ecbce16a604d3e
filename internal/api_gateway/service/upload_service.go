package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/taxdocs-pipeline/internal/domain/document"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

// SessionTracker is the chunked-session capability the upload service builds
// on. Satisfied by upload.Tracker.
type SessionTracker interface {
	Initiate(ctx context.Context, blobKey, fileName, contentType string, declaredSize int64) (*domainupload.Session, error)
	UploadPart(ctx context.Context, sessionID string, partNumber int, data []byte) (*domainupload.Session, error)
	Progress(sessionID string) (*domainupload.Session, error)
	Complete(ctx context.Context, sessionID string) (*storage.PutResult, *domainupload.Session, error)
	Abort(ctx context.Context, sessionID string) error
}

// sessionOwner pins a session to the caller that opened it. The tracker knows
// nothing about users; ownership lives here.
type sessionOwner struct {
	userID     uuid.UUID
	clientID   uuid.UUID
	businessID *uuid.UUID
}

// UploadServiceImpl implements the UploadService interface
type UploadServiceImpl struct {
	tracker SessionTracker
	docRepo document.Repository
	store   storage.BlobStore
	logger  *slog.Logger

	mu     sync.Mutex
	owners map[string]sessionOwner
}

// NewUploadService creates a new chunked upload service
func NewUploadService(logger *slog.Logger, tracker SessionTracker, docRepo document.Repository, store storage.BlobStore) UploadService {
	return &UploadServiceImpl{
		tracker: tracker,
		docRepo: docRepo,
		store:   store,
		logger:  logger,
		owners:  make(map[string]sessionOwner),
	}
}

// Initiate validates the file name and opens a chunked session
func (s *UploadServiceImpl) Initiate(ctx context.Context, input *ChunkedUploadInput) (*domainupload.Session, error) {
	contentType, err := document.ContentTypeForFileName(input.FileName)
	if err != nil {
		return nil, err
	}

	blobKey := BuildBlobKey(input.UserID, input.ClientID, input.FileName)

	session, err := s.tracker.Initiate(ctx, blobKey, input.FileName, contentType, input.DeclaredSize)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.owners[session.ID] = sessionOwner{
		userID:     input.UserID,
		clientID:   input.ClientID,
		businessID: input.BusinessID,
	}
	s.mu.Unlock()

	return session, nil
}

// UploadPart forwards one part after an ownership check
func (s *UploadServiceImpl) UploadPart(ctx context.Context, userID uuid.UUID, sessionID string, partNumber int, data []byte) (*domainupload.Session, error) {
	if _, err := s.owner(userID, sessionID); err != nil {
		return nil, err
	}
	return s.tracker.UploadPart(ctx, sessionID, partNumber, data)
}

// Progress reports session progress after an ownership check
func (s *UploadServiceImpl) Progress(ctx context.Context, userID uuid.UUID, sessionID string) (*domainupload.Session, error) {
	if _, err := s.owner(userID, sessionID); err != nil {
		return nil, err
	}
	return s.tracker.Progress(sessionID)
}

// Complete assembles the blob and hands it over to the document lifecycle.
// The document row is created only after the provider confirms assembly.
func (s *UploadServiceImpl) Complete(ctx context.Context, userID uuid.UUID, sessionID string) (*document.Document, error) {
	owner, err := s.owner(userID, sessionID)
	if err != nil {
		return nil, err
	}

	result, session, err := s.tracker.Complete(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s.forget(sessionID)

	doc, err := document.NewDocument(owner.userID, owner.clientID, owner.businessID, session.BlobKey, session.FileName, result.Size, session.ContentType)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.Create(ctx, doc); err != nil {
		// The assembled blob would be orphaned; reclaim it best-effort
		if delErr := s.store.Delete(ctx, session.BlobKey); delErr != nil {
			s.logger.Warn("Failed to clean up assembled blob after row insert failure",
				"blob_key", session.BlobKey,
				"error", delErr,
			)
		}
		return nil, err
	}

	s.logger.Info("Chunked upload completed",
		"session_id", sessionID,
		"document_id", doc.ID.String(),
		"size", result.Size,
	)

	return doc, nil
}

// Abort cancels a session after an ownership check
func (s *UploadServiceImpl) Abort(ctx context.Context, userID uuid.UUID, sessionID string) error {
	if _, err := s.owner(userID, sessionID); err != nil {
		return err
	}
	s.forget(sessionID)
	return s.tracker.Abort(ctx, sessionID)
}

// owner resolves the session's owner; foreign and unknown sessions are both
// reported as not found.
func (s *UploadServiceImpl) owner(userID uuid.UUID, sessionID string) (sessionOwner, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	owner, ok := s.owners[sessionID]
	if !ok || owner.userID != userID {
		return sessionOwner{}, domainupload.ErrSessionNotFound{SessionID: sessionID}
	}
	return owner, nil
}

func (s *UploadServiceImpl) forget(sessionID string) {
	s.mu.Lock()
	delete(s.owners, sessionID)
	s.mu.Unlock()
}
