package normalize

import (
	"regexp"
	"strings"
)

const maxMerchantLen = 50

// Transaction-type prefixes banks prepend to the merchant name.
var merchantPrefixes = []string{"PURCHASE", "PAYMENT", "DEBIT", "CREDIT", "POS", "ATM"}

var (
	embeddedDatePattern = regexp.MustCompile(`\b\d{1,2}[/-]\d{1,2}[/-]\d{2,4}\b`)
	referencePattern    = regexp.MustCompile(`#\S+`)
)

// Merchant derives a merchant name from a raw statement description.
// It strips known transaction-type prefixes, embedded dates and #reference
// tokens, truncates at the first separator, and caps the result at 50
// characters. An empty result falls back to "Unknown Merchant".
func Merchant(description string) string {
	s := strings.TrimSpace(description)

	for stripped := true; stripped; {
		stripped = false
		upper := strings.ToUpper(s)
		for _, p := range merchantPrefixes {
			if upper == p {
				s = ""
				stripped = true
				break
			}
			if strings.HasPrefix(upper, p+" ") {
				s = strings.TrimSpace(s[len(p):])
				stripped = true
				break
			}
		}
	}

	s = embeddedDatePattern.ReplaceAllString(s, "")
	s = referencePattern.ReplaceAllString(s, "")

	// Truncate at the first of " - ", " | ", double-space or tab.
	cut := len(s)
	for _, sep := range []string{" - ", " | ", "  ", "\t"} {
		if i := strings.Index(s, sep); i >= 0 && i < cut {
			cut = i
		}
	}
	s = strings.TrimSpace(s[:cut])

	if runes := []rune(s); len(runes) > maxMerchantLen {
		s = strings.TrimSpace(string(runes[:maxMerchantLen]))
	}

	if s == "" {
		return "Unknown Merchant"
	}
	return s
}
