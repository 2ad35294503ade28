// Package ingest orchestrates statement processing: document bookkeeping,
// parsing, deduplication, persistence and the policy pass.
package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/dedup"
	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/parser"
	"github.com/dkovalev/spendlens/internal/policy"
	"github.com/dkovalev/spendlens/internal/store"
)

const defaultAccountType = "personal"

// Service runs the ingestion pipeline for one uploaded statement:
//
//  1. checksum the file and short-circuit if it was already processed
//  2. record the document and start a parsing run
//  3. parse and normalize the statement
//  4. drop candidates that duplicate persisted transactions
//  5. insert the survivors
//  6. run the policy pass over what was inserted
//  7. close out the parsing run
type Service struct {
	parser       *parser.StatementParser
	dedup        *dedup.Deduplicator
	transactions store.TransactionStore
	documents    store.DocumentStore
	policy       policy.Service
	log          zerolog.Logger
}

// New wires the pipeline together. A nil policy service defaults to
// approving everything.
func New(p *parser.StatementParser, d *dedup.Deduplicator,
	transactions store.TransactionStore, documents store.DocumentStore,
	pol policy.Service, log zerolog.Logger) *Service {

	if pol == nil {
		pol = policy.Permissive{}
	}
	return &Service{
		parser:       p,
		dedup:        d,
		transactions: transactions,
		documents:    documents,
		policy:       pol,
		log:          log,
	}
}

// Upload is one statement file handed to the pipeline.
type Upload struct {
	Filename    string
	MimeType    string
	Data        []byte
	StorageURI  string
	AccountType string
}

// Result is the wire-shaped outcome of one ingestion.
type Result struct {
	Success           bool                  `json:"success"`
	Message           string                `json:"message"`
	TransactionCount  int                   `json:"transactionCount"`
	Transactions      []*domain.Transaction `json:"transactions"`
	DuplicatesSkipped int                   `json:"duplicatesSkipped"`
}

// Ingest processes one uploaded statement for the user. It returns an error
// only when the pipeline itself could not run; a statement that parses to
// nothing useful is still a non-error Result.
func (s *Service) Ingest(ctx context.Context, userID string, up Upload) (*Result, error) {
	checksum := sha256.Sum256(up.Data)
	checksumHex := hex.EncodeToString(checksum[:])

	existing, err := s.documents.FindDocumentByChecksum(ctx, userID, checksumHex)
	if err != nil && err != store.ErrNotFound {
		return nil, fmt.Errorf("Ingest: checksum lookup: %w", err)
	}
	if existing != nil && existing.Status == store.DocumentSuccess {
		// Nothing is inserted, but the caller still gets a per-row
		// account of the re-upload: every row that is already in the
		// ledger counts as a skipped duplicate.
		duplicates := 0
		if parsed, perr := s.parser.Parse(up.Filename, up.MimeType, up.Data); perr == nil && !parsed.Placeholder {
			duplicates = s.dedup.Filter(ctx, userID, parsed.Transactions).DuplicateCount
		}

		s.log.Info().
			Str("user_id", userID).
			Str("document_id", existing.ID).
			Str("filename", up.Filename).
			Int("duplicates_skipped", duplicates).
			Msg("Document already processed, skipping")
		return &Result{
			Success:           true,
			Message:           fmt.Sprintf("File %q was already processed", up.Filename),
			Transactions:      []*domain.Transaction{},
			DuplicatesSkipped: duplicates,
		}, nil
	}

	doc := existing
	if doc == nil {
		doc = &store.Document{
			UserID:         userID,
			Filename:       up.Filename,
			MimeType:       up.MimeType,
			StorageURI:     up.StorageURI,
			ChecksumSHA256: checksumHex,
			Status:         store.DocumentPending,
		}
		if err := s.documents.InsertDocument(ctx, doc); err != nil {
			return nil, fmt.Errorf("Ingest: recording document: %w", err)
		}
	}

	runID, err := s.documents.StartParsingRun(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("Ingest: starting parsing run: %w", err)
	}

	parsed, err := s.parser.Parse(up.Filename, up.MimeType, up.Data)
	if err != nil {
		s.documents.MarkParsingRunFailed(ctx, runID, err)
		return &Result{
			Success:      false,
			Message:      fmt.Sprintf("Could not parse %q: %v", up.Filename, err),
			Transactions: []*domain.Transaction{},
		}, nil
	}

	filtered := s.dedup.Filter(ctx, userID, parsed.Transactions)

	inserted := make([]*domain.Transaction, 0, len(filtered.Admitted))
	duplicates := filtered.DuplicateCount
	for _, cand := range filtered.Admitted {
		tx := &domain.Transaction{
			UserID:      userID,
			DedupKey:    store.DedupKey(userID, checksumHex, cand.Ordinal),
			Date:        cand.Date,
			Merchant:    cand.Merchant,
			Description: cand.Description,
			Amount:      cand.Amount,
			Category:    cand.Category,
		}
		ok, err := s.transactions.InsertTransaction(ctx, tx)
		if err != nil {
			s.log.Error().Err(err).
				Str("user_id", userID).
				Str("merchant", tx.Merchant).
				Msg("Failed to insert transaction")
			continue
		}
		if !ok {
			// Lost the bucket to a concurrent upload of the same document.
			duplicates++
			continue
		}
		inserted = append(inserted, tx)
	}

	s.applyPolicy(ctx, userID, up.AccountType, inserted)

	if err := s.documents.MarkParsingRunSucceeded(ctx, runID); err != nil {
		s.log.Error().Err(err).
			Str("parsing_run_id", runID).
			Msg("Failed to close parsing run")
	}

	result := &Result{
		Success:           true,
		Message:           resultMessage(up.Filename, parsed, len(inserted), duplicates),
		TransactionCount:  len(inserted),
		Transactions:      inserted,
		DuplicatesSkipped: duplicates,
	}

	s.log.Info().
		Str("user_id", userID).
		Str("document_id", doc.ID).
		Str("filename", up.Filename).
		Int("inserted", len(inserted)).
		Int("duplicates_skipped", duplicates).
		Int("rows_skipped", parsed.SkippedRows).
		Msg("Statement ingested")

	return result, nil
}

// applyPolicy runs the compliance check over freshly inserted transactions.
// Policy failures are logged and skipped; they never fail the ingestion.
func (s *Service) applyPolicy(ctx context.Context, userID, accountType string, txs []*domain.Transaction) {
	if len(txs) == 0 {
		return
	}
	if accountType == "" {
		accountType = defaultAccountType
	}

	history, err := s.transactions.ListTransactions(ctx, userID, store.ListFilter{})
	if err != nil {
		s.log.Error().Err(err).Str("user_id", userID).Msg("Policy pass: loading history failed")
		return
	}

	for _, tx := range txs {
		verdict, err := s.policy.CheckCompliance(ctx, tx, accountType, history, userID)
		if err != nil {
			s.log.Error().Err(err).
				Str("transaction_id", tx.ID).
				Msg("Policy check failed")
			continue
		}
		if err := s.transactions.SetPolicyStatus(ctx, userID, tx.ID, verdict.Status, verdict.Rule); err != nil {
			s.log.Error().Err(err).
				Str("transaction_id", tx.ID).
				Msg("Failed to persist policy status")
			continue
		}
		tx.PolicyStatus = verdict.Status
		tx.PolicyRule = verdict.Rule
	}
}

func resultMessage(filename string, parsed *parser.Result, inserted, duplicates int) string {
	switch {
	case parsed.Placeholder:
		return fmt.Sprintf("No transactions could be extracted from %q; a placeholder was recorded", filename)
	case inserted == 0 && duplicates > 0:
		return fmt.Sprintf("All %d transactions in %q were already recorded", duplicates, filename)
	case parsed.SkippedRows > 0:
		return fmt.Sprintf("Imported %d transactions from %q (%d rows skipped)", inserted, filename, parsed.SkippedRows)
	default:
		return fmt.Sprintf("Imported %d transactions from %q", inserted, filename)
	}
}
