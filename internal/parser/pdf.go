package parser

import (
	"bytes"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/normalize"
)

// A line shorter than this is never a transaction line.
const minPDFLineLen = 10

var (
	// First currency token on a line: -?$ followed by digits with optional
	// thousands separators and at most two decimals.
	currencyPattern = regexp.MustCompile(`-?\$\d+(?:,\d{3})*(?:\.\d{1,2})?`)

	// Leading "DD Mon YYYY" date token.
	leadingDatePattern = regexp.MustCompile(`^(\d{1,2} (?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec) \d{4})\b`)
)

// parsePDF runs the heuristic line-oriented PDF pipeline. The only fatal
// condition is an unreadable document; individual lines that do not look
// like transactions are skipped. A readable document that yields nothing
// produces one placeholder record, so callers can tell "empty file" from
// "unparseable content".
func (p *StatementParser) parsePDF(data []byte) (*Result, error) {
	text, err := extractPDFText(data)
	if err != nil {
		return nil, fmt.Errorf("parsePDF: extracting text: %w", err)
	}

	result := &Result{}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if len(line) < minPDFLineLen {
			continue
		}

		tx, ok, candidate := p.parsePDFLine(line)
		if candidate && !ok {
			result.SkippedRows++
			continue
		}
		if ok {
			result.Transactions = append(result.Transactions, tx)
		}
	}

	if len(result.Transactions) == 0 {
		result.Transactions = []domain.RawTransaction{p.placeholder("No transactions extracted")}
		result.Placeholder = true
	}

	return result, nil
}

// parsePDFLine scans one line of statement text. candidate reports whether
// the line contained a currency token at all; ok reports whether it parsed
// into a usable transaction.
func (p *StatementParser) parsePDFLine(line string) (tx domain.RawTransaction, ok, candidate bool) {
	loc := currencyPattern.FindStringIndex(line)
	if loc == nil {
		return domain.RawTransaction{}, false, false
	}

	// The sign must be explicit in the text: a leading "-$" marks an
	// outflow, anything else is an inflow. Keywords never infer the sign.
	amount := normalize.Amount(line[loc[0]:loc[1]])
	if amount == 0 || math.IsNaN(amount) {
		return domain.RawTransaction{}, false, true
	}

	date := p.now()
	descStart := 0
	if m := leadingDatePattern.FindStringSubmatch(line); m != nil {
		if parsed, err := time.Parse("2 Jan 2006", m[1]); err == nil {
			date = parsed
			descStart = len(m[0])
		}
	}

	source := strings.TrimSpace(line[descStart:loc[0]])

	return domain.RawTransaction{
		Date:        date,
		Merchant:    normalize.Merchant(source),
		Description: source,
		Amount:      amount,
		Category:    normalize.Category(source),
	}, true, true
}

// extractPDFText pulls the plain text out of a PDF document. The pdf
// library panics on some malformed files, so the recover converts that
// into a regular whole-file error.
func extractPDFText(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("extractPDFText: malformed document: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extractPDFText: open: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extractPDFText: plain text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("extractPDFText: read: %w", err)
	}

	return buf.String(), nil
}
