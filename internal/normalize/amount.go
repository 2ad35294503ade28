// Package normalize holds the stateless text and number cleanup shared by
// the CSV and PDF statement pipelines. Every function is pure and total:
// malformed input degrades to a zero value, never to an error or a panic.
package normalize

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Amount converts a loosely formatted currency string into a float64.
// Currency symbols, thousands separators and whitespace are stripped.
// A parenthesized value is negative, in addition to a leading minus sign.
// Empty or unparseable input returns 0.
func Amount(raw string) float64 {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	parenthesized := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		parenthesized = true
		s = s[1 : len(s)-1]
	}

	s = strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', ',', ' ', '\t':
			return -1
		}
		return r
	}, s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0
	}

	if parenthesized {
		d = d.Abs().Neg()
	}

	f, _ := d.Float64()
	return f
}
