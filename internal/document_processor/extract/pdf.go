package extract

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	pdf "github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"
	"github.com/taxdocs-pipeline/internal/domain/shared"
	"github.com/taxdocs-pipeline/internal/domain/transaction"
)

// amountPattern matches a trailing signed amount, with optional currency
// symbol and thousands separators, e.g. "-1,249.99" or "£45.00"
var amountPattern = regexp.MustCompile(`[-+]?[£$€]?\s?(?:\d{1,3}(?:,\d{3})+|\d+)(?:\.\d{1,2})?$`)

// dateLayouts are the date shapes seen in bank statements and receipts
var dateLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 Jan 2006",
	"Jan 2, 2006",
}

// categoryKeywords maps description substrings to a coarse category guess
var categoryKeywords = map[string]string{
	"fuel":      "travel",
	"train":     "travel",
	"taxi":      "travel",
	"hotel":     "travel",
	"software":  "software",
	"hosting":   "software",
	"insurance": "insurance",
	"rent":      "premises",
	"salary":    "income",
	"invoice":   "income",
	"payment":   "income",
	"supplies":  "supplies",
	"office":    "supplies",
}

// PDFExtractor parses transaction-like lines out of PDF text. It is the
// baseline capability; richer extractors plug in behind the same interface.
type PDFExtractor struct{}

// NewPDFExtractor creates the baseline PDF line extractor
func NewPDFExtractor() *PDFExtractor {
	return &PDFExtractor{}
}

// Extract reads the PDF text and parses date/description/amount lines into
// candidate transactions
func (e *PDFExtractor) Extract(ctx context.Context, content []byte, contentType string) (*Result, error) {
	if contentType != "application/pdf" {
		return nil, fmt.Errorf("pdf extractor cannot read %s content", contentType)
	}

	text, err := readText(content)
	if err != nil {
		return nil, fmt.Errorf("read pdf text: %w", err)
	}
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoContent
	}

	var candidates []shared.CandidateTransaction
	var confidenceSum float64

	for _, line := range strings.Split(text, "\n") {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidate, ok := parseLine(line)
		if !ok {
			continue
		}
		candidates = append(candidates, candidate)
		confidenceSum += candidate.Confidence
	}

	if len(candidates) == 0 {
		return nil, ErrNoContent
	}

	return &Result{
		Candidates: candidates,
		Confidence: confidenceSum / float64(len(candidates)),
	}, nil
}

// readText concatenates the plain text of every page
func readText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	for page := 1; page <= reader.NumPage(); page++ {
		p := reader.Page(page)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return "", fmt.Errorf("page %d: %w", page, err)
		}
		builder.WriteString(content)
		builder.WriteString("\n")
	}

	return builder.String(), nil
}

// parseLine attempts to read one "date description amount" line. Lines
// without both a leading date and a trailing amount are skipped.
func parseLine(line string) (shared.CandidateTransaction, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return shared.CandidateTransaction{}, false
	}

	date, rest, ok := leadingDate(line)
	if !ok {
		return shared.CandidateTransaction{}, false
	}

	match := amountPattern.FindString(rest)
	if match == "" {
		return shared.CandidateTransaction{}, false
	}

	amount, err := parseAmount(match)
	if err != nil {
		return shared.CandidateTransaction{}, false
	}

	description := strings.TrimSpace(strings.TrimSuffix(rest, match))
	if description == "" {
		return shared.CandidateTransaction{}, false
	}

	confidence := 0.85
	category := guessCategory(description)
	if category == "" {
		// A line we could parse but not classify is a weaker candidate
		confidence = 0.6
	}

	return shared.CandidateTransaction{
		ProvisionalID: transaction.ProvisionalIDPrefix + uuid.New().String(),
		Date:          date.Format("2006-01-02"),
		Description:   description,
		Category:      category,
		Amount:        amount.String(),
		Confidence:    confidence,
	}, true
}

// leadingDate parses a date off the front of the line and returns the rest
func leadingDate(line string) (time.Time, string, bool) {
	fields := strings.Fields(line)
	// Try progressively longer prefixes; "2 Jan 2006" spans three fields
	for n := 1; n <= 3 && n <= len(fields); n++ {
		prefix := strings.Join(fields[:n], " ")
		for _, layout := range dateLayouts {
			if date, err := time.Parse(layout, prefix); err == nil {
				return date, strings.TrimSpace(strings.TrimPrefix(line, prefix)), true
			}
		}
	}
	return time.Time{}, "", false
}

// parseAmount normalizes currency symbols and separators into a decimal
func parseAmount(raw string) (decimal.Decimal, error) {
	cleaned := strings.NewReplacer("£", "", "$", "", "€", "", ",", "", " ", "").Replace(raw)
	return decimal.NewFromString(cleaned)
}

// guessCategory returns a coarse category from description keywords
func guessCategory(description string) string {
	lower := strings.ToLower(description)
	for keyword, category := range categoryKeywords {
		if strings.Contains(lower, keyword) {
			return category
		}
	}
	return ""
}
