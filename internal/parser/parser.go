// Package parser turns uploaded statement files into RawTransaction
// candidates. Parsing is tolerant and best-effort: a malformed row is
// dropped and counted, never fatal; only whole-file unreadability is
// surfaced to the caller.
package parser

import (
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/domain"
)

// Result is the outcome of parsing one statement file.
type Result struct {
	Transactions []domain.RawTransaction
	SkippedRows  int  // malformed rows or lines dropped during extraction
	Placeholder  bool // true when nothing was extracted and a synthetic record was emitted
}

// StatementParser dispatches a file to the CSV or PDF extraction pipeline
// based on its declared MIME type or filename suffix. Unsupported types
// degrade to a single placeholder record instead of failing.
type StatementParser struct {
	log zerolog.Logger
	now func() time.Time
}

// New creates a statement parser.
func New(log zerolog.Logger) *StatementParser {
	return &StatementParser{log: log, now: time.Now}
}

// Parse extracts transaction candidates from file bytes. The only error it
// returns is whole-file unreadability (a corrupt PDF); everything else is
// handled row by row.
func (p *StatementParser) Parse(filename, mimeType string, data []byte) (*Result, error) {
	switch {
	case isCSV(filename, mimeType):
		return p.parseCSV(data), nil
	case isPDF(filename, mimeType):
		return p.parsePDF(data)
	default:
		p.log.Warn().
			Str("filename", filename).
			Str("mime_type", mimeType).
			Msg("Unsupported statement type, emitting placeholder")
		return &Result{
			Transactions: []domain.RawTransaction{p.placeholder("Unsupported file type")},
			Placeholder:  true,
		}, nil
	}
}

func isCSV(filename, mimeType string) bool {
	if strings.Contains(strings.ToLower(mimeType), "csv") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".csv")
}

func isPDF(filename, mimeType string) bool {
	if strings.Contains(strings.ToLower(mimeType), "pdf") {
		return true
	}
	return strings.EqualFold(filepath.Ext(filename), ".pdf")
}

// placeholder is the synthetic "nothing extracted" record. Amount 0 and
// category "other" signal downstream consumers that the file produced no
// usable content.
func (p *StatementParser) placeholder(message string) domain.RawTransaction {
	return domain.RawTransaction{
		Date:        p.now(),
		Merchant:    "Unknown Merchant",
		Description: message,
		Amount:      0,
		Category:    "other",
	}
}
