package normalize

import (
	"strings"
	"time"
)

// Date layouts attempted in order. Day-first is deliberately preferred over
// the US month-first form: most statements this service sees are day-first,
// so MM/DD/YYYY is only reached when the day-first read is impossible.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2 Jan 2006",
	"02 Jan 2006",
	"02/01/2006", // DD/MM/YYYY, preferred
	"2006-01-02",
	"01/02/2006", // MM/DD/YYYY, last resort
}

// Date parses a statement date string. The second return value reports
// whether any layout matched; when it is false the returned time is "now".
// Falling back to "now" silently mislabels undateable records - a known
// accuracy limitation of the format-guessing approach.
func Date(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Now(), false
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}

	return time.Now(), false
}
