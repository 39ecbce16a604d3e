package handler

import (
	"errors"
	"io"
	"log/slog"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
	"github.com/taxdocs-pipeline/internal/api_gateway/service"
	"github.com/taxdocs-pipeline/internal/domain/document"
	domainupload "github.com/taxdocs-pipeline/internal/domain/upload"
)

// UploadHandler handles HTTP requests for chunked upload sessions
type UploadHandler struct {
	uploadService service.UploadService
	logger        *slog.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(logger *slog.Logger, uploadService service.UploadService) *UploadHandler {
	return &UploadHandler{
		uploadService: uploadService,
		logger:        logger,
	}
}

// Initiate opens a chunked upload session for a large file
func (h *UploadHandler) Initiate(c *gin.Context) {
	var req InitiateUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	clientID, err := uuid.Parse(req.ClientID)
	if err != nil {
		RespondBadRequest(c, "Invalid client_id")
		return
	}

	var businessID *uuid.UUID
	if req.BusinessID != "" {
		id, err := uuid.Parse(req.BusinessID)
		if err != nil {
			RespondBadRequest(c, "Invalid business_id")
			return
		}
		businessID = &id
	}

	session, err := h.uploadService.Initiate(c.Request.Context(), &service.ChunkedUploadInput{
		UserID:       middleware.GetUserID(c),
		ClientID:     clientID,
		BusinessID:   businessID,
		FileName:     req.FileName,
		DeclaredSize: req.FileSize,
	})
	if err != nil {
		var tooLarge domainupload.ErrFileTooLarge
		switch {
		case errors.Is(err, document.ErrUnsupportedFormat):
			RespondBadRequest(c, "Unsupported document format")
		case errors.As(err, &tooLarge):
			RespondPayloadTooLarge(c, tooLarge.Error())
		default:
			h.logger.Error("Failed to initiate chunked upload", "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapSessionToResponse(session))
}

// UploadPart receives one raw part body. Parts are 1-indexed and may arrive
// in any order; all but the final part must meet the provider size floor.
func (h *UploadHandler) UploadPart(c *gin.Context) {
	sessionID := c.Param("id")

	partNumber, err := strconv.Atoi(c.Param("partNumber"))
	if err != nil {
		RespondBadRequest(c, "Invalid part number")
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.logger.Error("Failed to read part body", "session_id", sessionID, "error", err)
		RespondBadRequest(c, "Unreadable part body")
		return
	}
	if len(data) == 0 {
		RespondBadRequest(c, "Empty part body")
		return
	}

	session, err := h.uploadService.UploadPart(c.Request.Context(), middleware.GetUserID(c), sessionID, partNumber, data)
	if err != nil {
		var invalidPart domainupload.ErrInvalidPartNumber
		var tooSmall domainupload.ErrPartTooSmall
		switch {
		case errors.Is(err, domainupload.ErrSessionNotFound{}):
			RespondNotFound(c, "Upload session not found")
		case errors.As(err, &invalidPart):
			RespondBadRequest(c, invalidPart.Error())
		case errors.As(err, &tooSmall):
			RespondBadRequest(c, tooSmall.Error())
		default:
			h.logger.Error("Failed to upload part",
				"session_id", sessionID,
				"part_number", partNumber,
				"error", err,
			)
			RespondInternalError(c)
		}
		return
	}

	RespondOK(c, mapSessionToResponse(session))
}

// Progress reports how much of the session has been uploaded
func (h *UploadHandler) Progress(c *gin.Context) {
	sessionID := c.Param("id")

	session, err := h.uploadService.Progress(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, domainupload.ErrSessionNotFound{}) {
			RespondNotFound(c, "Upload session not found")
			return
		}
		h.logger.Error("Failed to get upload progress", "session_id", sessionID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, mapSessionToResponse(session))
}

// Complete assembles the uploaded parts into a document. Sessions with
// missing parts are refused and stay open for retry.
func (h *UploadHandler) Complete(c *gin.Context) {
	sessionID := c.Param("id")

	doc, err := h.uploadService.Complete(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		var incomplete domainupload.ErrIncompleteUpload
		switch {
		case errors.Is(err, domainupload.ErrSessionNotFound{}):
			RespondNotFound(c, "Upload session not found")
		case errors.As(err, &incomplete):
			RespondConflict(c, incomplete.Error())
		default:
			h.logger.Error("Failed to complete chunked upload", "session_id", sessionID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapDocumentToResponse(doc, ""))
}

// Abort cancels a session and releases its provider resources
func (h *UploadHandler) Abort(c *gin.Context) {
	sessionID := c.Param("id")

	err := h.uploadService.Abort(c.Request.Context(), middleware.GetUserID(c), sessionID)
	if err != nil {
		if errors.Is(err, domainupload.ErrSessionNotFound{}) {
			RespondNotFound(c, "Upload session not found")
			return
		}
		h.logger.Error("Failed to abort upload session", "session_id", sessionID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondNoContent(c)
}

// mapSessionToResponse maps an upload session to a session response DTO
func mapSessionToResponse(session *domainupload.Session) SessionResponse {
	return SessionResponse{
		SessionID:       session.ID,
		FileName:        session.FileName,
		DeclaredSize:    session.DeclaredSize,
		ChunkSize:       session.ChunkSize,
		TotalParts:      session.TotalParts,
		UploadedParts:   len(session.Parts),
		MissingParts:    session.MissingParts(),
		PercentComplete: session.PercentComplete(),
		Status:          string(session.Status),
	}
}
