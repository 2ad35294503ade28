package parser

import (
	"math"
	"strings"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/normalize"
)

// Expected column layout: Date, Description, Credit, Debit, Balance.
// Balance is parsed positionally but ignored.
const csvFieldCount = 5

// Words whose presence (case-insensitive) marks the first line as a header.
var headerKeywords = []string{
	"date", "amount", "description", "merchant", "transaction", "debit", "credit", "balance",
}

// parseCSV runs the line-oriented CSV pipeline. One malformed row never
// aborts the file; it is dropped and counted.
func (p *StatementParser) parseCSV(data []byte) *Result {
	result := &Result{}

	lines := make([]string, 0, 64)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}

	for i, line := range lines {
		if i == 0 && isHeaderLine(line) {
			continue
		}

		tx, ok := p.parseCSVRow(line)
		if !ok {
			result.SkippedRows++
			continue
		}
		result.Transactions = append(result.Transactions, tx)
	}

	if result.SkippedRows > 0 {
		p.log.Debug().
			Int("skipped_rows", result.SkippedRows).
			Int("parsed_rows", len(result.Transactions)).
			Msg("CSV rows dropped during parsing")
	}

	return result
}

// isHeaderLine reports whether the line looks like a column header rather
// than data. Only the first line of the file is ever tested.
func isHeaderLine(line string) bool {
	lower := strings.ToLower(line)
	for _, kw := range headerKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// parseCSVRow converts one data line into a candidate. Any deviation from
// the expected shape rejects the row.
func (p *StatementParser) parseCSVRow(line string) (domain.RawTransaction, bool) {
	fields := splitQuoted(line)
	if len(fields) != csvFieldCount {
		return domain.RawTransaction{}, false
	}

	dateRaw, description := fields[0], fields[1]
	credit := normalize.Amount(fields[2])
	debit := normalize.Amount(fields[3])

	var amount float64
	switch {
	case credit != 0:
		amount = credit
	case debit != 0:
		amount = -debit
	default:
		return domain.RawTransaction{}, false
	}
	if math.IsNaN(amount) {
		return domain.RawTransaction{}, false
	}

	date, ok := normalize.Date(dateRaw)
	if !ok {
		return domain.RawTransaction{}, false
	}

	return domain.RawTransaction{
		Date:        date,
		Merchant:    normalize.Merchant(description),
		Description: description,
		Amount:      amount,
		Category:    normalize.Category(description),
	}, true
}

// splitQuoted splits a CSV line on commas while honoring double quotes:
// a '"' toggles an in-quotes state that suppresses splitting, and quote
// characters themselves are stripped from the resulting fields.
func splitQuoted(line string) []string {
	var (
		fields   []string
		current  strings.Builder
		inQuotes bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			inQuotes = !inQuotes
		case r == ',' && !inQuotes:
			fields = append(fields, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	fields = append(fields, strings.TrimSpace(current.String()))

	return fields
}
