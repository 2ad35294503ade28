// Package memory is an in-memory implementation of the persistence
// interfaces. It backs tests and single-process local runs; data is lost
// on restart. It provides the same per-bucket uniqueness guarantee as the
// BigQuery store, enforced under one mutex.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/store"
)

// Store holds transactions, documents and parsing runs in maps.
// Safe for concurrent use.
type Store struct {
	mu           sync.RWMutex
	transactions map[string]*domain.Transaction // id -> row
	dedupKeys    map[string]string              // dedup bucket -> transaction id
	documents    map[string]*store.Document
	runs         map[string]*store.ParsingRun
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		transactions: make(map[string]*domain.Transaction),
		dedupKeys:    make(map[string]string),
		documents:    make(map[string]*store.Document),
		runs:         make(map[string]*store.ParsingRun),
	}
}

// InsertTransaction implements store.TransactionStore. The bucket check and
// the insert happen under one lock, making check-then-insert atomic per
// candidate key.
func (s *Store) InsertTransaction(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx.UserID == "" {
		return false, fmt.Errorf("InsertTransaction: user ID is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := tx.DedupKey
	if key == "" {
		key = uuid.NewString()
	}
	if _, taken := s.dedupKeys[key]; taken {
		return false, nil
	}

	row := *tx
	row.DedupKey = key
	if row.ID == "" {
		row.ID = uuid.NewString()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	s.transactions[row.ID] = &row
	s.dedupKeys[key] = row.ID
	tx.ID = row.ID
	tx.DedupKey = row.DedupKey
	tx.CreatedAt = row.CreatedAt

	return true, nil
}

// GetTransaction implements store.TransactionStore.
func (s *Store) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, ok := s.transactions[id]
	if !ok || row.UserID != userID {
		return nil, store.ErrNotFound
	}

	cp := *row
	return &cp, nil
}

// ListTransactions implements store.TransactionStore.
func (s *Store) ListTransactions(ctx context.Context, userID string, filter store.ListFilter) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, row := range s.transactions {
		if row.UserID != userID {
			continue
		}
		if row.IsDeleted && !filter.IncludeDeleted {
			continue
		}
		if !filter.From.IsZero() && row.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && row.Date.After(filter.To) {
			continue
		}
		if filter.Category != "" && row.Category != filter.Category {
			continue
		}
		cp := *row
		result = append(result, &cp)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// FindMatching implements store.TransactionStore.
func (s *Store) FindMatching(ctx context.Context, userID, merchant string, amount float64, from, to time.Time) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, row := range s.transactions {
		if row.UserID != userID || row.IsDeleted {
			continue
		}
		if row.Merchant != merchant || row.Amount != amount {
			continue
		}
		if row.Date.Before(from) || row.Date.After(to) {
			continue
		}
		cp := *row
		result = append(result, &cp)
	}

	return result, nil
}

// SetAnomaly implements store.TransactionStore.
func (s *Store) SetAnomaly(ctx context.Context, userID, id string, status domain.AnomalyStatus, reason, comparison string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.transactions[id]
	if !ok || row.UserID != userID {
		return store.ErrNotFound
	}

	row.Anomaly = status
	row.AnomalyReason = reason
	row.AnomalyComparison = comparison
	row.UpdatedAt = time.Now()

	return nil
}

// SetPolicyStatus implements store.TransactionStore.
func (s *Store) SetPolicyStatus(ctx context.Context, userID, id, status, rule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.transactions[id]
	if !ok || row.UserID != userID {
		return store.ErrNotFound
	}

	row.PolicyStatus = status
	row.PolicyRule = rule
	row.UpdatedAt = time.Now()

	return nil
}

// SoftDelete implements store.TransactionStore.
func (s *Store) SoftDelete(ctx context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.transactions[id]
	if !ok || row.UserID != userID {
		return store.ErrNotFound
	}

	row.IsDeleted = true
	row.UpdatedAt = time.Now()

	return nil
}

// InsertDocument implements store.DocumentStore.
func (s *Store) InsertDocument(ctx context.Context, doc *store.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *doc
	s.documents[doc.ID] = &cp

	return nil
}

// FindDocumentByChecksum implements store.DocumentStore.
func (s *Store) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.documents {
		if doc.UserID == userID && doc.ChecksumSHA256 == checksum {
			cp := *doc
			return &cp, nil
		}
	}

	return nil, store.ErrNotFound
}

// ListDocuments implements store.DocumentStore.
func (s *Store) ListDocuments(ctx context.Context, userID string) ([]*store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*store.Document
	for _, doc := range s.documents {
		if doc.UserID == userID {
			cp := *doc
			result = append(result, &cp)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UploadedAt.Before(result[j].UploadedAt)
	})

	return result, nil
}

// StartParsingRun implements store.DocumentStore.
func (s *Store) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := &store.ParsingRun{
		ID:         uuid.NewString(),
		DocumentID: documentID,
		Status:     "RUNNING",
		StartedAt:  time.Now(),
	}
	s.runs[run.ID] = run

	return run.ID, nil
}

// MarkParsingRunSucceeded implements store.DocumentStore.
func (s *Store) MarkParsingRunSucceeded(ctx context.Context, runID string) error {
	return s.finishRun(runID, store.DocumentSuccess, "")
}

// MarkParsingRunFailed implements store.DocumentStore. Best effort: a
// bookkeeping failure here must not mask the original parse error.
func (s *Store) MarkParsingRunFailed(ctx context.Context, runID string, parseErr error) {
	msg := ""
	if parseErr != nil {
		msg = parseErr.Error()
	}
	_ = s.finishRun(runID, store.DocumentFailed, msg)
}

func (s *Store) finishRun(runID, status, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	run, ok := s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}

	now := time.Now()
	run.Status = status
	run.Error = errMsg
	run.FinishedAt = &now

	if doc, ok := s.documents[run.DocumentID]; ok {
		doc.Status = status
		doc.ProcessedAt = &now
	}

	return nil
}

var (
	_ store.TransactionStore = (*Store)(nil)
	_ store.DocumentStore    = (*Store)(nil)
)
