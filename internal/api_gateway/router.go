package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/taxdocs-pipeline/internal/api_gateway/handler"
	"github.com/taxdocs-pipeline/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	documentHandler *handler.DocumentHandler,
	uploadHandler *handler.UploadHandler,
	transactionHandler *handler.TransactionHandler,
	submissionHandler *handler.SubmissionHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints; every route below requires a caller identity
	v1 := r.Group("/api/v1")
	v1.Use(middleware.Identity())
	{
		// Document lifecycle
		documents := v1.Group("/documents")
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.GET("/stats", documentHandler.Stats)
			documents.GET("/:id", documentHandler.GetByID)
			documents.DELETE("/:id", documentHandler.Delete)
			documents.POST("/:id/process", documentHandler.Process)
			documents.POST("/:id/approve", documentHandler.Approve)
			documents.POST("/:id/submit", submissionHandler.Submit)
			documents.GET("/:id/submissions", submissionHandler.ListByDocument)
		}

		// Chunked upload sessions
		uploads := v1.Group("/uploads")
		{
			uploads.POST("", uploadHandler.Initiate)
			uploads.GET("/:id", uploadHandler.Progress)
			uploads.PUT("/:id/parts/:partNumber", uploadHandler.UploadPart)
			uploads.POST("/:id/complete", uploadHandler.Complete)
			uploads.DELETE("/:id", uploadHandler.Abort)
		}

		// Persisted transaction rows
		transactions := v1.Group("/transactions")
		{
			transactions.GET("", transactionHandler.List)
			transactions.GET("/:id", transactionHandler.GetByID)
			transactions.PATCH("/:id", transactionHandler.Update)
			transactions.DELETE("", transactionHandler.Delete)
		}

		// Folder organization
		folders := v1.Group("/folders")
		{
			folders.POST("", documentHandler.CreateFolder)
			folders.GET("", documentHandler.ListFolders)
			folders.PUT("/:id/documents/:documentId", documentHandler.AssignToFolder)
			folders.DELETE("/:id/documents/:documentId", documentHandler.RemoveFromFolder)
		}

		// Submission audit trail
		submissions := v1.Group("/submissions")
		{
			submissions.GET("/:id/transactions", submissionHandler.GetRows)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
