package ingest

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/dedup"
	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/parser"
	"github.com/dkovalev/spendlens/internal/policy"
	"github.com/dkovalev/spendlens/internal/store"
	"github.com/dkovalev/spendlens/internal/store/memory"
)

const statementCSV = `Date,Description,Credit,Debit,Balance
01/03/2024,"COFFEE SHOP",,4.50,1000.00
02/03/2024,"SUPERMARKET",,82.10,917.90
05/03/2024,"EMPLOYER LTD",2500.00,,3417.90
`

func newService(s *memory.Store, pol policy.Service) *Service {
	log := zerolog.Nop()
	return New(parser.New(log), dedup.New(s, log), s, s, pol, log)
}

func upload(name, body string) Upload {
	return Upload{Filename: name, MimeType: "text/csv", Data: []byte(body)}
}

func TestIngest_CSVStatement(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	result, err := svc.Ingest(ctx, "u1", upload("march.csv", statementCSV))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if !result.Success {
		t.Fatalf("success = false: %s", result.Message)
	}
	if result.TransactionCount != 3 || len(result.Transactions) != 3 {
		t.Fatalf("transactionCount = %d, want 3", result.TransactionCount)
	}
	if result.DuplicatesSkipped != 0 {
		t.Errorf("duplicatesSkipped = %d, want 0", result.DuplicatesSkipped)
	}

	// Default permissive policy marks everything compliant.
	for _, tx := range result.Transactions {
		if tx.PolicyStatus != domain.PolicyCompliant {
			t.Errorf("%s: policyStatus = %q, want compliant", tx.Merchant, tx.PolicyStatus)
		}
	}

	docs, err := s.ListDocuments(ctx, "u1")
	if err != nil || len(docs) != 1 {
		t.Fatalf("documents: %v, %v", docs, err)
	}
	if docs[0].Status != store.DocumentSuccess {
		t.Errorf("document status = %q, want SUCCESS", docs[0].Status)
	}
}

func TestIngest_SameContentDifferentFile(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	if _, err := svc.Ingest(ctx, "u1", upload("march.csv", statementCSV)); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	// Same rows in a byte-different file: the checksum short-circuit does
	// not fire, so every row must be caught by transaction dedup instead.
	result, err := svc.Ingest(ctx, "u1", upload("march-copy.csv", statementCSV+"\n"))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if result.TransactionCount != 0 {
		t.Errorf("transactionCount = %d, want 0", result.TransactionCount)
	}
	if result.DuplicatesSkipped != 3 {
		t.Errorf("duplicatesSkipped = %d, want 3", result.DuplicatesSkipped)
	}
	if !result.Success {
		t.Errorf("re-importing known rows is not a failure: %s", result.Message)
	}
}

func TestIngest_IdenticalFileShortCircuits(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	if _, err := svc.Ingest(ctx, "u1", upload("march.csv", statementCSV)); err != nil {
		t.Fatalf("first Ingest: %v", err)
	}

	result, err := svc.Ingest(ctx, "u1", upload("march.csv", statementCSV))
	if err != nil {
		t.Fatalf("second Ingest: %v", err)
	}

	if !result.Success || !strings.Contains(result.Message, "already processed") {
		t.Errorf("identical file should short-circuit: %+v", result)
	}
	if result.TransactionCount != 0 {
		t.Errorf("short-circuit inserted transactions: %d", result.TransactionCount)
	}
	// Every row of the re-upload is already in the ledger and must be
	// reported as a skipped duplicate.
	if result.DuplicatesSkipped != 3 {
		t.Errorf("duplicatesSkipped = %d, want 3", result.DuplicatesSkipped)
	}

	// Still exactly one document on record.
	docs, _ := s.ListDocuments(ctx, "u1")
	if len(docs) != 1 {
		t.Errorf("documents = %d, want 1", len(docs))
	}
}

func TestIngest_RepeatedRowsInOneFile(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	// Two identical literal rows: the statement really does record two
	// 4.50 coffees on the same day, so both must be persisted.
	data := "Date,Description,Credit,Debit,Balance\n" +
		`01/03/2024,"COFFEE SHOP",,4.50,1000.00` + "\n" +
		`01/03/2024,"COFFEE SHOP",,4.50,995.50` + "\n"

	result, err := svc.Ingest(ctx, "u1", upload("march.csv", data))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	if result.TransactionCount != 2 {
		t.Fatalf("transactionCount = %d, want 2 (message: %s)", result.TransactionCount, result.Message)
	}
	if result.DuplicatesSkipped != 0 {
		t.Errorf("duplicatesSkipped = %d, want 0", result.DuplicatesSkipped)
	}

	persisted, err := s.ListTransactions(ctx, "u1", store.ListFilter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(persisted) != 2 {
		t.Errorf("persisted rows = %d, want 2", len(persisted))
	}
}

func TestIngest_UsersAreIsolated(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	if _, err := svc.Ingest(ctx, "u1", upload("march.csv", statementCSV)); err != nil {
		t.Fatalf("u1 Ingest: %v", err)
	}

	result, err := svc.Ingest(ctx, "u2", upload("march.csv", statementCSV))
	if err != nil {
		t.Fatalf("u2 Ingest: %v", err)
	}
	if result.TransactionCount != 3 || result.DuplicatesSkipped != 0 {
		t.Errorf("another user's identical statement must import cleanly: %+v", result)
	}
}

func TestIngest_PolicyPass(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, &policy.Limits{
		Soft: map[string]float64{"personal": 50},
	})

	up := upload("march.csv", statementCSV)
	up.AccountType = "personal"

	result, err := svc.Ingest(ctx, "u1", up)
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}

	byMerchant := map[string]*domain.Transaction{}
	for _, tx := range result.Transactions {
		byMerchant[tx.Merchant] = tx
	}

	if tx := byMerchant["SUPERMARKET"]; tx == nil || tx.PolicyStatus != domain.PolicyWarning {
		t.Errorf("82.10 outflow should warn on a 50 soft limit: %+v", tx)
	}
	if tx := byMerchant["COFFEE SHOP"]; tx == nil || tx.PolicyStatus != domain.PolicyCompliant {
		t.Errorf("4.50 outflow should be compliant: %+v", tx)
	}

	// Policy verdicts are persisted, and anomaly state is untouched.
	persisted, _ := s.GetTransaction(ctx, "u1", byMerchant["SUPERMARKET"].ID)
	if persisted.PolicyStatus != domain.PolicyWarning {
		t.Error("policy status not persisted")
	}
	if persisted.Anomaly != domain.AnomalyUnanalyzed {
		t.Error("ingestion must not touch anomaly state")
	}
}

func TestIngest_UnparseableStatement(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	// An unreadable PDF is a fatal parse: the run fails but the pipeline
	// itself did its job.
	result, err := svc.Ingest(ctx, "u1", Upload{
		Filename: "broken.pdf",
		MimeType: "application/pdf",
		Data:     []byte("not a pdf"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if result.Success {
		t.Error("unparseable statement should report success=false")
	}

	docs, _ := s.ListDocuments(ctx, "u1")
	if len(docs) != 1 || docs[0].Status != store.DocumentFailed {
		t.Errorf("document should be marked FAILED: %+v", docs)
	}
}

func TestIngest_HeaderOnlyCSV(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	result, err := svc.Ingest(ctx, "u1", upload("empty.csv", "Date,Description,Credit,Debit,Balance\n"))
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Success {
		t.Fatalf("empty statement is not a failure: %s", result.Message)
	}
	if result.TransactionCount != 0 {
		t.Errorf("header-only file should import nothing: %+v", result)
	}
}

func TestIngest_UnsupportedTypeRecordsPlaceholder(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	svc := newService(s, nil)

	result, err := svc.Ingest(ctx, "u1", Upload{
		Filename: "notes.txt",
		MimeType: "text/plain",
		Data:     []byte("not a statement"),
	})
	if err != nil {
		t.Fatalf("Ingest: %v", err)
	}
	if !result.Success {
		t.Fatalf("unsupported type degrades, never fails: %s", result.Message)
	}
	if result.TransactionCount != 1 {
		t.Fatalf("placeholder should be recorded: %+v", result)
	}
	if result.Transactions[0].Merchant != "Unknown Merchant" || result.Transactions[0].Amount != 0 {
		t.Errorf("unexpected placeholder: %+v", result.Transactions[0])
	}
	if !strings.Contains(result.Message, "placeholder") {
		t.Errorf("message should mention the placeholder: %q", result.Message)
	}
}
