package parser

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestParser() *StatementParser {
	return New(zerolog.Nop())
}

func TestParse_UnsupportedTypeDegradesToPlaceholder(t *testing.T) {
	p := newTestParser()

	result, err := p.Parse("statement.docx", "application/msword", []byte("whatever"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if !result.Placeholder {
		t.Error("expected placeholder result")
	}
	if len(result.Transactions) != 1 {
		t.Fatalf("expected exactly one placeholder transaction, got %d", len(result.Transactions))
	}

	tx := result.Transactions[0]
	if tx.Amount != 0 {
		t.Errorf("placeholder amount = %v, want 0", tx.Amount)
	}
	if tx.Category != "other" {
		t.Errorf("placeholder category = %q, want %q", tx.Category, "other")
	}
}

func TestParse_DispatchByMIMEAndSuffix(t *testing.T) {
	p := newTestParser()

	tests := []struct {
		name     string
		filename string
		mimeType string
		wantCSV  bool
	}{
		{"csv mime", "upload.bin", "text/csv", true},
		{"csv suffix", "statement.CSV", "application/octet-stream", true},
		{"neither", "statement.txt", "text/plain", false},
	}

	csvData := []byte(`01/03/2024,COFFEE SHOP,,4.50,1000.00`)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse(tt.filename, tt.mimeType, csvData)
			if err != nil {
				t.Fatalf("Parse failed: %v", err)
			}
			gotCSV := !result.Placeholder
			if gotCSV != tt.wantCSV {
				t.Errorf("parsed as CSV = %v, want %v", gotCSV, tt.wantCSV)
			}
		})
	}
}

func TestParseCSV_DebitRow(t *testing.T) {
	p := newTestParser()

	result := p.parseCSV([]byte(`01/03/2024,"COFFEE SHOP",,4.50,1000.00`))

	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d (skipped %d)", len(result.Transactions), result.SkippedRows)
	}

	tx := result.Transactions[0]
	want := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	if !tx.Date.Equal(want) {
		t.Errorf("date = %v, want %v (day-first)", tx.Date, want)
	}
	if tx.Merchant != "COFFEE SHOP" {
		t.Errorf("merchant = %q, want %q", tx.Merchant, "COFFEE SHOP")
	}
	if tx.Amount != -4.50 {
		t.Errorf("amount = %v, want -4.50 (debit is an outflow)", tx.Amount)
	}
}

func TestParseCSV_CreditRow(t *testing.T) {
	p := newTestParser()

	result := p.parseCSV([]byte(`01/03/2024,SALARY MARCH,2500.00,,3500.00`))

	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(result.Transactions))
	}
	if got := result.Transactions[0].Amount; got != 2500.00 {
		t.Errorf("amount = %v, want 2500.00 (credit is an inflow)", got)
	}
}

func TestParseCSV_QuotedCommaStaysOneField(t *testing.T) {
	p := newTestParser()

	result := p.parseCSV([]byte(`01/03/2024,"Shop, Inc.",,10.00,500.00`))

	if len(result.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d (skipped %d)", len(result.Transactions), result.SkippedRows)
	}
	if got := result.Transactions[0].Merchant; got != "Shop, Inc." {
		t.Errorf("merchant = %q, want %q", got, "Shop, Inc.")
	}
}

func TestParseCSV_HeaderSkippedFirstLineOnly(t *testing.T) {
	p := newTestParser()

	data := []byte("Date,Description,Credit,Debit,Balance\n" +
		"01/03/2024,COFFEE SHOP,,4.50,1000.00\n" +
		"02/03/2024,GROCERY MART,,52.10,947.90\n")

	result := p.parseCSV(data)

	if len(result.Transactions) != 2 {
		t.Fatalf("expected 2 transactions after header skip, got %d", len(result.Transactions))
	}
	if result.SkippedRows != 0 {
		t.Errorf("header must not count as a skipped row, got %d", result.SkippedRows)
	}
}

func TestParseCSV_NoHeaderFirstRowParsed(t *testing.T) {
	p := newTestParser()

	result := p.parseCSV([]byte("01/03/2024,COFFEE SHOP,,4.50,1000.00\n"))

	if len(result.Transactions) != 1 {
		t.Fatalf("first data line must not be treated as a header, got %d transactions", len(result.Transactions))
	}
}

func TestParseCSV_MalformedRowsDroppedNotFatal(t *testing.T) {
	p := newTestParser()

	data := []byte("Date,Description,Credit,Debit,Balance\n" +
		"01/03/2024,COFFEE SHOP,,4.50,1000.00\n" +
		"too,few,fields\n" + // wrong field count
		"not-a-date,SHOP,,5.00,100.00\n" + // unparseable date
		"02/03/2024,ZERO SHOP,,,100.00\n" + // both credit and debit zero
		"03/03/2024,GROCERY MART,,52.10,947.90\n")

	result := p.parseCSV(data)

	if len(result.Transactions) != 2 {
		t.Fatalf("expected 2 good transactions, got %d", len(result.Transactions))
	}
	if result.SkippedRows != 3 {
		t.Errorf("skipped rows = %d, want 3", result.SkippedRows)
	}
}

func TestParseCSV_EmptyFile(t *testing.T) {
	p := newTestParser()

	result := p.parseCSV([]byte("\n\n"))
	if len(result.Transactions) != 0 || result.SkippedRows != 0 {
		t.Errorf("empty CSV should yield nothing, got %d transactions, %d skipped",
			len(result.Transactions), result.SkippedRows)
	}
}

func TestSplitQuoted(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"plain", "a,b,c", []string{"a", "b", "c"}},
		{"quoted comma", `a,"b,c",d`, []string{"a", "b,c", "d"}},
		{"quotes stripped", `"a","b"`, []string{"a", "b"}},
		{"empty fields", "a,,c", []string{"a", "", "c"}},
		{"trailing empty", "a,b,", []string{"a", "b", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitQuoted(tt.in)
			if len(got) != len(tt.want) {
				t.Fatalf("splitQuoted(%q) = %v, want %v", tt.in, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("field %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParsePDFLine(t *testing.T) {
	p := newTestParser()

	t.Run("dated outflow", func(t *testing.T) {
		tx, ok, candidate := p.parsePDFLine("12 Mar 2024 COFFEE SHOP LTD -$4.50")
		if !candidate || !ok {
			t.Fatalf("expected parsed candidate, ok=%v candidate=%v", ok, candidate)
		}
		if want := time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC); !tx.Date.Equal(want) {
			t.Errorf("date = %v, want %v", tx.Date, want)
		}
		if tx.Amount != -4.50 {
			t.Errorf("amount = %v, want -4.50", tx.Amount)
		}
		if tx.Merchant != "COFFEE SHOP LTD" {
			t.Errorf("merchant = %q, want %q", tx.Merchant, "COFFEE SHOP LTD")
		}
	})

	t.Run("inflow without explicit sign", func(t *testing.T) {
		tx, ok, _ := p.parsePDFLine("12 Mar 2024 REFUND ACME STORE $120.00")
		if !ok {
			t.Fatal("expected parsed candidate")
		}
		if tx.Amount != 120.00 {
			t.Errorf("amount = %v, want 120.00 (sign is never inferred from keywords)", tx.Amount)
		}
	})

	t.Run("thousands separators", func(t *testing.T) {
		tx, ok, _ := p.parsePDFLine("01 Feb 2024 RENT PAYMENT -$1,250.00")
		if !ok {
			t.Fatal("expected parsed candidate")
		}
		if tx.Amount != -1250.00 {
			t.Errorf("amount = %v, want -1250.00", tx.Amount)
		}
	})

	t.Run("missing date falls back to now", func(t *testing.T) {
		tx, ok, _ := p.parsePDFLine("SUBSCRIPTION SERVICE -$9.99")
		if !ok {
			t.Fatal("expected parsed candidate")
		}
		if time.Since(tx.Date) > time.Minute {
			t.Errorf("date should default to now, got %v", tx.Date)
		}
		if tx.Merchant != "SUBSCRIPTION SERVICE" {
			t.Errorf("merchant = %q, want %q", tx.Merchant, "SUBSCRIPTION SERVICE")
		}
	})

	t.Run("no currency token is not a candidate", func(t *testing.T) {
		_, ok, candidate := p.parsePDFLine("Statement period 01 Mar 2024 through 31 Mar 2024")
		if ok || candidate {
			t.Errorf("ok=%v candidate=%v, want false/false", ok, candidate)
		}
	})

	t.Run("zero amount skipped", func(t *testing.T) {
		_, ok, candidate := p.parsePDFLine("12 Mar 2024 PENDING HOLD $0.00")
		if ok || !candidate {
			t.Errorf("ok=%v candidate=%v, want false/true", ok, candidate)
		}
	})
}

func TestParsePDF_UnreadableDocumentIsFatal(t *testing.T) {
	p := newTestParser()

	_, err := p.Parse("statement.pdf", "application/pdf", []byte("this is not a pdf"))
	if err == nil {
		t.Fatal("expected whole-file error for unreadable PDF")
	}
}
