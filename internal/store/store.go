// Package store defines the persistence interfaces consumed by the
// ingestion pipeline and the anomaly engine, plus the dedup bucket key
// that both implementations use as their uniqueness guard.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/dkovalev/spendlens/internal/domain"
)

// ErrNotFound is returned when a row does not exist for the given user.
var ErrNotFound = errors.New("store: not found")

// ListFilter narrows ListTransactions. Zero times mean unbounded.
type ListFilter struct {
	From           time.Time
	To             time.Time
	Category       string
	IncludeDeleted bool
}

// TransactionStore is the transaction ledger. All reads are scoped by user
// and, unless IncludeDeleted is set, exclude soft-deleted rows.
type TransactionStore interface {
	// InsertTransaction persists a transaction. The insert is atomic per
	// dedup bucket: it reports false, without error, when another row
	// already claimed the transaction's DedupKey. This is the guard
	// against duplicate rows under concurrent uploads of the same
	// document. A transaction without a DedupKey gets a unique one and
	// always inserts.
	InsertTransaction(ctx context.Context, tx *domain.Transaction) (bool, error)

	GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error)

	ListTransactions(ctx context.Context, userID string, filter ListFilter) ([]*domain.Transaction, error)

	// FindMatching returns non-deleted transactions for the user with an
	// identical merchant string, identical signed amount, and a date in
	// [from, to]. This is the ±24h duplicate-window query.
	FindMatching(ctx context.Context, userID, merchant string, amount float64, from, to time.Time) ([]*domain.Transaction, error)

	// SetAnomaly updates the analysis state of one transaction.
	SetAnomaly(ctx context.Context, userID, id string, status domain.AnomalyStatus, reason, comparison string) error

	// SetPolicyStatus updates the compliance fields of one transaction.
	SetPolicyStatus(ctx context.Context, userID, id, status, rule string) error

	// SoftDelete marks a transaction deleted. Rows are never purged.
	SoftDelete(ctx context.Context, userID, id string) error
}

// Document parsing statuses.
const (
	DocumentPending = "PENDING"
	DocumentSuccess = "SUCCESS"
	DocumentFailed  = "FAILED"
)

// Document is one uploaded statement file.
type Document struct {
	ID             string
	UserID         string
	Filename       string
	MimeType       string
	StorageURI     string
	ChecksumSHA256 string
	Status         string
	UploadedAt     time.Time
	ProcessedAt    *time.Time
}

// ParsingRun records one attempt at parsing a document.
type ParsingRun struct {
	ID         string
	DocumentID string
	Status     string
	Error      string
	StartedAt  time.Time
	FinishedAt *time.Time
}

// DocumentStore tracks uploaded statement files and their parsing runs.
type DocumentStore interface {
	InsertDocument(ctx context.Context, doc *Document) error

	// FindDocumentByChecksum returns the user's document with the given
	// content checksum, or ErrNotFound. Used to short-circuit re-uploads
	// of a file that was already processed.
	FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*Document, error)

	ListDocuments(ctx context.Context, userID string) ([]*Document, error)

	StartParsingRun(ctx context.Context, documentID string) (string, error)
	MarkParsingRunSucceeded(ctx context.Context, runID string) error
	MarkParsingRunFailed(ctx context.Context, runID string, parseErr error)
}

// DedupKey is the uniqueness bucket for one row of one source document:
// (userID, document checksum, row ordinal). Re-submissions of the same
// document map to the same keys, so concurrent uploads of one file insert
// each row exactly once, while repeated literal rows inside a document
// occupy distinct ordinals and are all admitted. Cross-document duplicate
// semantics live in FindMatching, not here.
func DedupKey(userID, docChecksum string, ordinal int) string {
	h := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%d", userID, docChecksum, ordinal)))
	return hex.EncodeToString(h[:])
}
