// Package upload tracks chunked upload sessions in memory. Sessions mirror
// provider-side multipart uploads: the provider owns the bytes, the tracker
// owns progress accounting and idle reclamation. A process restart loses the
// tracker state; the orphaned provider uploads are reclaimed by the provider's
// own lifecycle rules.
package upload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taxdocs-pipeline/internal/config"
	domain "github.com/taxdocs-pipeline/internal/domain/upload"
	"github.com/taxdocs-pipeline/internal/platform/storage"
)

// Tracker manages in-flight chunked upload sessions
type Tracker struct {
	store  storage.BlobStore
	cfg    *config.UploadConfig
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*sessionEntry
}

// sessionEntry guards one session with its own lock so concurrent part
// uploads for different sessions never contend.
type sessionEntry struct {
	mu      sync.Mutex
	session *domain.Session
}

// NewTracker creates an upload tracker backed by the given blob store
func NewTracker(logger *slog.Logger, cfg *config.UploadConfig, store storage.BlobStore) *Tracker {
	return &Tracker{
		store:    store,
		cfg:      cfg,
		logger:   logger,
		sessions: make(map[string]*sessionEntry),
	}
}

// Initiate opens a provider multipart upload and registers a session for it.
// The provider-issued upload id doubles as the session id.
func (t *Tracker) Initiate(ctx context.Context, blobKey, fileName, contentType string, declaredSize int64) (*domain.Session, error) {
	if declaredSize > t.cfg.MaxChunkedSize {
		return nil, domain.ErrFileTooLarge{Size: declaredSize, Limit: t.cfg.MaxChunkedSize}
	}
	if declaredSize <= 0 {
		return nil, fmt.Errorf("declared size must be positive, got %d", declaredSize)
	}

	uploadID, err := t.store.InitiateMultipart(ctx, blobKey, contentType)
	if err != nil {
		return nil, fmt.Errorf("failed to initiate multipart upload: %w", err)
	}

	session := domain.NewSession(uploadID, blobKey, fileName, contentType, declaredSize, t.cfg.ChunkSize)

	t.mu.Lock()
	t.sessions[session.ID] = &sessionEntry{session: session}
	t.mu.Unlock()

	t.logger.Info("Initiated chunked upload session",
		"session_id", session.ID,
		"blob_key", blobKey,
		"declared_size", declaredSize,
		"total_parts", session.TotalParts,
	)

	return session, nil
}

// UploadPart validates and forwards one part to the provider, then records
// its content hash. Re-uploading a part number overwrites the previous hash;
// the provider keeps the latest bytes.
func (t *Tracker) UploadPart(ctx context.Context, sessionID string, partNumber int, data []byte) (*domain.Session, error) {
	entry, err := t.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	session := entry.session

	if partNumber < 1 || partNumber > session.TotalParts {
		return nil, domain.ErrInvalidPartNumber{PartNumber: partNumber, TotalParts: session.TotalParts}
	}
	// Every part except the final one must meet the provider's size floor
	if partNumber != session.TotalParts && int64(len(data)) < t.cfg.MinPartSize {
		return nil, domain.ErrPartTooSmall{PartNumber: partNumber, Size: int64(len(data)), MinSize: t.cfg.MinPartSize}
	}

	result, err := t.store.UploadPart(ctx, session.BlobKey, session.ID, partNumber, data)
	if err != nil {
		return nil, fmt.Errorf("failed to upload part %d: %w", partNumber, err)
	}

	session.RecordPart(partNumber, result.ETag)

	t.logger.Debug("Recorded upload part",
		"session_id", sessionID,
		"part_number", partNumber,
		"percent_complete", session.PercentComplete(),
	)

	return session, nil
}

// Progress returns a point-in-time view of the session
func (t *Tracker) Progress(sessionID string) (*domain.Session, error) {
	entry, err := t.lookup(sessionID)
	if err != nil {
		return nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	copied := *entry.session
	return &copied, nil
}

// Complete assembles the object from its parts. All declared parts must be
// present; a missing part fails the call without touching the provider.
// On success the session is discarded.
func (t *Tracker) Complete(ctx context.Context, sessionID string) (*storage.PutResult, *domain.Session, error) {
	entry, err := t.lookup(sessionID)
	if err != nil {
		return nil, nil, err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	session := entry.session

	if missing := session.MissingParts(); len(missing) > 0 {
		return nil, nil, domain.ErrIncompleteUpload{SessionID: sessionID, MissingParts: missing}
	}

	parts := make([]storage.Part, 0, len(session.Parts))
	for _, p := range session.SortedParts() {
		parts = append(parts, storage.Part{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	result, err := t.store.CompleteMultipart(ctx, session.BlobKey, session.ID, parts)
	if err != nil {
		session.Status = domain.StatusFailed
		return nil, nil, fmt.Errorf("failed to complete multipart upload: %w", err)
	}

	session.Status = domain.StatusCompleted
	t.remove(sessionID)

	t.logger.Info("Completed chunked upload session",
		"session_id", sessionID,
		"blob_key", session.BlobKey,
		"size", result.Size,
	)

	return result, session, nil
}

// Abort cancels the provider upload and discards the session. Aborting an
// unknown session returns ErrSessionNotFound.
func (t *Tracker) Abort(ctx context.Context, sessionID string) error {
	entry, err := t.lookup(sessionID)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	session := entry.session

	if err := t.store.AbortMultipart(ctx, session.BlobKey, session.ID); err != nil {
		t.logger.Warn("Failed to abort provider multipart upload",
			"session_id", sessionID,
			"error", err,
		)
	}

	session.Status = domain.StatusAborted
	t.remove(sessionID)

	t.logger.Info("Aborted chunked upload session", "session_id", sessionID)
	return nil
}

// StartSweeper reclaims idle sessions on a timer until the context is
// canceled. A session counts as idle when no part arrived within the TTL.
func (t *Tracker) StartSweeper(ctx context.Context) {
	ticker := time.NewTicker(t.cfg.SweepInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				t.logger.Info("Context canceled, stopping upload session sweeper")
				return
			case <-ticker.C:
				t.sweep(ctx)
			}
		}
	}()
}

// sweep aborts every session idle past the TTL
func (t *Tracker) sweep(ctx context.Context) {
	cutoff := time.Now().Add(-t.cfg.SessionTTL)

	// Snapshot the ids without holding entry locks; Abort and Complete take
	// the outer lock while holding an entry lock, so the scan must not nest
	// the two in the other order.
	t.mu.RLock()
	ids := make([]string, 0, len(t.sessions))
	for id := range t.sessions {
		ids = append(ids, id)
	}
	t.mu.RUnlock()

	for _, id := range ids {
		t.abortIfIdle(ctx, id, cutoff)
	}
}

// abortIfIdle aborts one swept session, re-checking idleness under the entry
// lock first. A part upload may have refreshed the session between the scan
// and this call; such a session is left alone.
func (t *Tracker) abortIfIdle(ctx context.Context, sessionID string, cutoff time.Time) {
	entry, err := t.lookup(sessionID)
	if err != nil {
		return
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	session := entry.session

	if !session.LastActivity.Before(cutoff) {
		return
	}

	t.logger.Info("Sweeping idle upload session", "session_id", sessionID, "ttl", t.cfg.SessionTTL)

	if err := t.store.AbortMultipart(ctx, session.BlobKey, session.ID); err != nil {
		t.logger.Warn("Failed to abort provider multipart upload",
			"session_id", sessionID,
			"error", err,
		)
	}

	session.Status = domain.StatusAborted
	t.remove(sessionID)
}

// ActiveSessions reports the number of tracked sessions
func (t *Tracker) ActiveSessions() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

func (t *Tracker) lookup(sessionID string) (*sessionEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	entry, ok := t.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound{SessionID: sessionID}
	}
	return entry, nil
}

func (t *Tracker) remove(sessionID string) {
	t.mu.Lock()
	delete(t.sessions, sessionID)
	t.mu.Unlock()
}
