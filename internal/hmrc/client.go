// Package hmrc is the adapter for the tax authority's transaction API. Each
// transaction travels in its own call; the caller owns ordering and failure
// compensation.
package hmrc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/taxdocs-pipeline/internal/config"
)

// AuthorityError carries a non-success authority response. The body is kept
// verbatim; the audit trail stores it unmodified.
type AuthorityError struct {
	StatusCode int
	Body       string
}

func (e *AuthorityError) Error() string {
	return fmt.Sprintf("authority rejected submission with status %d: %s", e.StatusCode, e.Body)
}

// TransactionSubmission is the payload for one authority call
type TransactionSubmission struct {
	ExternalReference string `json:"external_reference"`
	BusinessID        string `json:"business_id,omitempty"`
	TaxYear           string `json:"tax_year"`
	PeriodKey         string `json:"period_key,omitempty"`
	Direction         string `json:"direction"`
	Amount            string `json:"amount"` // Fixed-point decimal string
	Currency          string `json:"currency"`
	Date              string `json:"date"` // ISO 8601 date
	Description       string `json:"description"`
	Category          string `json:"category,omitempty"`
}

// SubmissionResult is the authority's acceptance of one transaction
type SubmissionResult struct {
	AuthorityID string `json:"transaction_id"`
}

// SubmissionClient submits individual transactions to the tax authority
type SubmissionClient interface {
	SubmitTransaction(ctx context.Context, sub *TransactionSubmission) (*SubmissionResult, error)
}

// Client is the HTTP implementation of SubmissionClient
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates an authority client from configuration
func NewClient(logger *slog.Logger, cfg *config.HMRCConfig) *Client {
	return &Client{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// SubmitTransaction posts one transaction to the authority. A 2xx response
// yields the authority-issued transaction id. Any other status is returned as
// an *AuthorityError with the response body untouched; transport failures are
// returned as plain errors and carry no authority payload.
func (c *Client) SubmitTransaction(ctx context.Context, sub *TransactionSubmission) (*SubmissionResult, error) {
	payload, err := json.Marshal(sub)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal transaction submission: %w", err)
	}

	url := c.baseURL + "/transactions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build submission request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Authority call failed at transport level",
			"external_reference", sub.ExternalReference,
			"error", err,
		)
		return nil, fmt.Errorf("authority call failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read authority response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Warn("Authority rejected transaction",
			"external_reference", sub.ExternalReference,
			"status_code", resp.StatusCode,
		)
		return nil, &AuthorityError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var result SubmissionResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode authority response: %w", err)
	}
	if result.AuthorityID == "" {
		return nil, fmt.Errorf("authority response carries no transaction id")
	}

	c.logger.Debug("Authority accepted transaction",
		"external_reference", sub.ExternalReference,
		"authority_id", result.AuthorityID,
	)

	return &result, nil
}
