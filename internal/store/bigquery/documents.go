package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dkovalev/spendlens/internal/store"
)

// InsertDocument implements store.DocumentStore.
func (r *Repository) InsertDocument(ctx context.Context, doc *store.Document) error {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = time.Now()
	}
	if doc.Status == "" {
		doc.Status = store.DocumentPending
	}

	row := &DocumentRow{
		DocumentID:       doc.ID,
		UserID:           doc.UserID,
		OriginalFilename: doc.Filename,
		FileMimeType:     doc.MimeType,
		StorageURI:       doc.StorageURI,
		ChecksumSHA256:   doc.ChecksumSHA256,
		ParsingStatus:    doc.Status,
		UploadTS:         doc.UploadedAt,
	}

	inserter := r.client.Dataset(r.dataset).Table(documentsTable).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("InsertDocument: inserting row: %w", err)
	}

	return nil
}

// FindDocumentByChecksum implements store.DocumentStore.
func (r *Repository) FindDocumentByChecksum(ctx context.Context, userID, checksum string) (*store.Document, error) {
	query := fmt.Sprintf(`
		SELECT document_id, user_id, original_filename, file_mime_type,
		       storage_uri, checksum_sha256, parsing_status, upload_ts, processed_ts
		FROM %s
		WHERE user_id = @user_id AND checksum_sha256 = @checksum
		ORDER BY upload_ts DESC
		LIMIT 1
	`, r.table(documentsTable))

	docs, err := r.queryDocuments(ctx, query, []bq.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "checksum", Value: checksum},
	})
	if err != nil {
		return nil, fmt.Errorf("FindDocumentByChecksum: %w", err)
	}
	if len(docs) == 0 {
		return nil, store.ErrNotFound
	}

	return docs[0], nil
}

// ListDocuments implements store.DocumentStore.
func (r *Repository) ListDocuments(ctx context.Context, userID string) ([]*store.Document, error) {
	query := fmt.Sprintf(`
		SELECT document_id, user_id, original_filename, file_mime_type,
		       storage_uri, checksum_sha256, parsing_status, upload_ts, processed_ts
		FROM %s
		WHERE user_id = @user_id
		ORDER BY upload_ts
	`, r.table(documentsTable))

	docs, err := r.queryDocuments(ctx, query, []bq.QueryParameter{
		{Name: "user_id", Value: userID},
	})
	if err != nil {
		return nil, fmt.Errorf("ListDocuments: %w", err)
	}
	return docs, nil
}

// StartParsingRun implements store.DocumentStore: creates a parsing_runs
// row with status RUNNING and returns its ID.
func (r *Repository) StartParsingRun(ctx context.Context, documentID string) (string, error) {
	runID := uuid.NewString()

	query := fmt.Sprintf(`
		INSERT %s (parsing_run_id, document_id, status, started_ts)
		VALUES (@parsing_run_id, @document_id, 'RUNNING', @started_ts)
	`, r.table(parsingRunsTable))

	_, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "parsing_run_id", Value: runID},
		{Name: "document_id", Value: documentID},
		{Name: "started_ts", Value: time.Now()},
	})
	if err != nil {
		return "", fmt.Errorf("StartParsingRun: %w", err)
	}

	return runID, nil
}

// MarkParsingRunSucceeded implements store.DocumentStore.
func (r *Repository) MarkParsingRunSucceeded(ctx context.Context, runID string) error {
	if err := r.finishRun(ctx, runID, store.DocumentSuccess, ""); err != nil {
		return fmt.Errorf("MarkParsingRunSucceeded: %w", err)
	}
	return nil
}

// MarkParsingRunFailed implements store.DocumentStore. Best effort: the
// caller is already handling the parse error, so a bookkeeping failure is
// only logged by the caller's defer, never returned.
func (r *Repository) MarkParsingRunFailed(ctx context.Context, runID string, parseErr error) {
	msg := ""
	if parseErr != nil {
		msg = parseErr.Error()
	}
	_ = r.finishRun(ctx, runID, store.DocumentFailed, msg)
}

func (r *Repository) finishRun(ctx context.Context, runID, status, errMsg string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET status = @status,
		    error_message = @error_message,
		    finished_ts = CURRENT_TIMESTAMP()
		WHERE parsing_run_id = @parsing_run_id
	`, r.table(parsingRunsTable))

	if _, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "status", Value: status},
		{Name: "error_message", Value: errMsg},
		{Name: "parsing_run_id", Value: runID},
	}); err != nil {
		return err
	}

	// Keep the owning document's status in sync with its latest run.
	docQuery := fmt.Sprintf(`
		UPDATE %s
		SET parsing_status = @status,
		    processed_ts = CURRENT_TIMESTAMP()
		WHERE document_id = (
			SELECT document_id FROM %s WHERE parsing_run_id = @parsing_run_id
		)
	`, r.table(documentsTable), r.table(parsingRunsTable))

	if _, err := r.runDML(ctx, docQuery, []bq.QueryParameter{
		{Name: "status", Value: status},
		{Name: "parsing_run_id", Value: runID},
	}); err != nil {
		return err
	}

	return nil
}

func (r *Repository) queryDocuments(ctx context.Context, query string, params []bq.QueryParameter) ([]*store.Document, error) {
	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryDocuments: query read: %w", err)
	}

	var result []*store.Document
	for {
		var row DocumentRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryDocuments: iter next: %w", err)
		}
		result = append(result, row.toDomain())
	}

	return result, nil
}

var _ store.DocumentStore = (*Repository)(nil)
