// Package extract holds the pluggable content extraction capability of the
// document processor. An Extractor turns a raw document blob into candidate
// transactions for client-side review; candidates carry provisional ids and
// are never persisted as transaction rows.
package extract

import (
	"context"
	"errors"

	"github.com/taxdocs-pipeline/internal/domain/shared"
)

// ErrNoContent indicates a document from which no text could be read
var ErrNoContent = errors.New("document contains no extractable content")

// Result is the outcome of one extraction run
type Result struct {
	Candidates []shared.CandidateTransaction
	// Confidence is the mean confidence over all candidates, 0 when empty
	Confidence float64
}

// Extractor derives candidate transactions from raw document content
type Extractor interface {
	// Extract parses the document content. Returning ErrNoContent (or any
	// other error) marks the document's processing as failed; it does not
	// stop the processor.
	Extract(ctx context.Context, content []byte, contentType string) (*Result, error)
}
