package normalize

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"
)

func TestAmount(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want float64
	}{
		{"plain", "4.50", 4.50},
		{"dollar sign", "$4.50", 4.50},
		{"pound sign", "£1200.00", 1200.00},
		{"thousands separators", "$1,234.56", 1234.56},
		{"leading minus", "-4.50", -4.50},
		{"minus after symbol", "$-4.50", -4.50},
		{"parenthesized is negative", "(4.50)", -4.50},
		{"parenthesized with symbol", "($1,000.00)", -1000.00},
		{"parenthesized negative stays negative", "(-4.50)", -4.50},
		{"internal whitespace", " 1 234.56 ", 1234.56},
		{"empty", "", 0},
		{"whitespace only", "   ", 0},
		{"garbage", "N/A", 0},
		{"double decimal point", "1.2.3", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Amount(tt.in); got != tt.want {
				t.Errorf("Amount(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestDate(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		want   time.Time
		wantOK bool
	}{
		{"ISO date", "2024-03-01", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"RFC3339", "2024-03-01T10:30:00Z", time.Date(2024, 3, 1, 10, 30, 0, 0, time.UTC), true},
		{"day-first preferred", "01/03/2024", time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), true},
		{"month-first fallback", "03/25/2024", time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC), true},
		{"statement style", "15 Mar 2024", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC), true},
		{"unparseable", "not a date", time.Time{}, false},
		{"empty", "", time.Time{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Date(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("Date(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if tt.wantOK && !got.Equal(tt.want) {
				t.Errorf("Date(%q) = %v, want %v", tt.in, got, tt.want)
			}
			if !tt.wantOK && time.Since(got) > time.Minute {
				t.Errorf("Date(%q) fallback should be now, got %v", tt.in, got)
			}
		})
	}
}

func TestMerchant(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "COFFEE SHOP", "COFFEE SHOP"},
		{"purchase prefix", "PURCHASE COFFEE SHOP", "COFFEE SHOP"},
		{"stacked prefixes", "POS DEBIT COFFEE SHOP", "COFFEE SHOP"},
		{"prefix not stripped mid-word", "POSITANO RESTAURANT", "POSITANO RESTAURANT"},
		{"embedded date removed", "COFFEE SHOP 01/03/2024", "COFFEE SHOP"},
		{"reference token removed", "COFFEE SHOP #A1B2C3", "COFFEE SHOP"},
		{"dash separator truncates", "COFFEE SHOP - CARD 1234", "COFFEE SHOP"},
		{"pipe separator truncates", "COFFEE SHOP | REF 99", "COFFEE SHOP"},
		{"double space truncates", "COFFEE SHOP  LONDON", "COFFEE SHOP"},
		{"tab truncates", "COFFEE SHOP\tGB", "COFFEE SHOP"},
		{"caps at fifty chars", "AAAAAAAAAABBBBBBBBBBCCCCCCCCCCDDDDDDDDDDEEEEEEEEEEFFFFF", "AAAAAAAAAABBBBBBBBBBCCCCCCCCCCDDDDDDDDDDEEEEEEEEEE"},
		{"cap counts runes not bytes", strings.Repeat("Ü", 60), strings.Repeat("Ü", 50)},
		{"empty falls back", "", "Unknown Merchant"},
		{"prefix only falls back", "ATM", "Unknown Merchant"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Merchant(tt.in)
			if got != tt.want {
				t.Errorf("Merchant(%q) = %q, want %q", tt.in, got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("Merchant(%q) produced invalid UTF-8: %q", tt.in, got)
			}
		})
	}
}

func TestCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"STARBUCKS COFFEE 123", "dining"},
		{"WOOLWORTHS SUPERMARKET", "groceries"},
		{"UBER TRIP HELP.UBER.COM", "transport"},
		{"AMAZON MARKETPLACE", "groceries"}, // "market" wins on table order
		{"IKEA WAREHOUSE", "shopping"},
		{"BRITISH GAS BILL", "utilities"},
		{"NETFLIX.COM", "entertainment"},
		{"MYSTERY VENDOR", "other"},
		{"", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := Category(tt.in); got != tt.want {
				t.Errorf("Category(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
