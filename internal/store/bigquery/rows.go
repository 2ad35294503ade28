// Package bigquery implements the persistence interfaces on top of a
// BigQuery dataset. Inserts into the ledger go through a MERGE keyed on
// the dedup bucket, which is what makes check-then-insert atomic under
// concurrent uploads.
package bigquery

import (
	"time"

	bq "cloud.google.com/go/bigquery"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/store"
)

const (
	transactionsTable = "transactions"
	documentsTable    = "documents"
	parsingRunsTable  = "parsing_runs"
)

// TransactionRow maps domain.Transaction onto the transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"`
	UserID        string `bigquery:"user_id"`
	DedupKey      string `bigquery:"dedup_key"`

	TransactionTS time.Time `bigquery:"transaction_ts"`
	Merchant      string    `bigquery:"merchant"`
	Description   string    `bigquery:"description"`
	Amount        float64   `bigquery:"amount"`
	Category      string    `bigquery:"category"`

	IsDeleted bool `bigquery:"is_deleted"`

	AnomalyStatus     string        `bigquery:"anomaly_status"`
	AnomalyReason     bq.NullString `bigquery:"anomaly_reason"`
	AnomalyComparison bq.NullString `bigquery:"anomaly_comparison"`

	PolicyStatus bq.NullString `bigquery:"policy_status"`
	PolicyRule   bq.NullString `bigquery:"policy_rule"`

	CreatedTS time.Time        `bigquery:"created_ts"`
	UpdatedTS bq.NullTimestamp `bigquery:"updated_ts"`
}

func (r *TransactionRow) toDomain() *domain.Transaction {
	tx := &domain.Transaction{
		ID:          r.TransactionID,
		UserID:      r.UserID,
		DedupKey:    r.DedupKey,
		Date:        r.TransactionTS,
		Merchant:    r.Merchant,
		Description: r.Description,
		Amount:      r.Amount,
		Category:    r.Category,
		IsDeleted:   r.IsDeleted,
		Anomaly:     domain.ParseAnomalyStatus(r.AnomalyStatus),
		CreatedAt:   r.CreatedTS,
	}
	if r.AnomalyReason.Valid {
		tx.AnomalyReason = r.AnomalyReason.StringVal
	}
	if r.AnomalyComparison.Valid {
		tx.AnomalyComparison = r.AnomalyComparison.StringVal
	}
	if r.PolicyStatus.Valid {
		tx.PolicyStatus = r.PolicyStatus.StringVal
	}
	if r.PolicyRule.Valid {
		tx.PolicyRule = r.PolicyRule.StringVal
	}
	if r.UpdatedTS.Valid {
		tx.UpdatedAt = r.UpdatedTS.Timestamp
	}
	return tx
}

// DocumentRow maps store.Document onto the documents table.
type DocumentRow struct {
	DocumentID       string           `bigquery:"document_id"`
	UserID           string           `bigquery:"user_id"`
	OriginalFilename string           `bigquery:"original_filename"`
	FileMimeType     string           `bigquery:"file_mime_type"`
	StorageURI       string           `bigquery:"storage_uri"`
	ChecksumSHA256   string           `bigquery:"checksum_sha256"`
	ParsingStatus    string           `bigquery:"parsing_status"`
	UploadTS         time.Time        `bigquery:"upload_ts"`
	ProcessedTS      bq.NullTimestamp `bigquery:"processed_ts"`
}

func (r *DocumentRow) toDomain() *store.Document {
	doc := &store.Document{
		ID:             r.DocumentID,
		UserID:         r.UserID,
		Filename:       r.OriginalFilename,
		MimeType:       r.FileMimeType,
		StorageURI:     r.StorageURI,
		ChecksumSHA256: r.ChecksumSHA256,
		Status:         r.ParsingStatus,
		UploadedAt:     r.UploadTS,
	}
	if r.ProcessedTS.Valid {
		ts := r.ProcessedTS.Timestamp
		doc.ProcessedAt = &ts
	}
	return doc
}
