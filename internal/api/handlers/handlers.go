// Package handlers implements the HTTP endpoints of the API service.
package handlers

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/anomaly"
	"github.com/dkovalev/spendlens/internal/api/middleware"
	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/ingest"
	"github.com/dkovalev/spendlens/internal/jobs"
	"github.com/dkovalev/spendlens/internal/storage"
	"github.com/dkovalev/spendlens/internal/store"
)

const maxUploadBytes = 32 << 20

// StatementsHandler handles statement upload and document endpoints.
type StatementsHandler struct {
	ingest    *ingest.Service
	blobs     storage.BlobStore
	publisher jobs.Publisher
	documents store.DocumentStore
	log       zerolog.Logger
}

// NewStatementsHandler creates a new statements handler.
func NewStatementsHandler(svc *ingest.Service, blobs storage.BlobStore, publisher jobs.Publisher,
	documents store.DocumentStore, log zerolog.Logger) *StatementsHandler {
	return &StatementsHandler{
		ingest:    svc,
		blobs:     blobs,
		publisher: publisher,
		documents: documents,
		log:       log,
	}
}

// readUpload pulls the statement file out of a multipart request.
func readUpload(r *http.Request) (ingest.Upload, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return ingest.Upload{}, fmt.Errorf("parsing multipart form: %w", err)
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("missing file field: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return ingest.Upload{}, fmt.Errorf("reading file: %w", err)
	}

	return ingest.Upload{
		Filename:    header.Filename,
		MimeType:    header.Header.Get("Content-Type"),
		Data:        data,
		AccountType: r.FormValue("accountType"),
	}, nil
}

// Upload handles POST /api/statements: synchronous ingestion of one
// statement file.
func (h *StatementsHandler) Upload(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	up, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := h.ingest.Ingest(r.Context(), userID, up)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Ingestion failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to process statement")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// UploadAsync handles POST /api/statements/async: stages the file in object
// storage and enqueues a processing job.
func (h *StatementsHandler) UploadAsync(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	up, err := readUpload(r)
	if err != nil {
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	objectName := fmt.Sprintf("statements/%s/%s/%s",
		userID, time.Now().Format("2006/01/02"), uuid.NewString()+"-"+up.Filename)

	uri, err := h.blobs.Upload(r.Context(), objectName, up.MimeType, up.Data)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to stage statement")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to store file")
		return
	}

	job := &jobs.ParseStatementJob{
		UserID:      userID,
		StorageURI:  uri,
		Filename:    up.Filename,
		ContentType: up.MimeType,
		AccountType: up.AccountType,
	}
	if err := h.publisher.PublishParseStatement(r.Context(), job); err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to enqueue statement job")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to enqueue job")
		return
	}

	h.log.Info().
		Str("job_id", job.JobID).
		Str("user_id", userID).
		Str("storage_uri", uri).
		Msg("Statement job enqueued")

	middleware.WriteJSON(w, http.StatusAccepted, map[string]string{
		"jobId":      job.JobID,
		"storageUri": uri,
		"status":     string(job.Status),
	})
}

// ListDocuments handles GET /api/documents.
func (h *StatementsHandler) ListDocuments(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	docs, err := h.documents.ListDocuments(r.Context(), userID)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list documents")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list documents")
		return
	}

	type documentDTO struct {
		ID       string `json:"id"`
		Filename string `json:"filename"`
		Status   string `json:"status"`
		Uploaded string `json:"uploadedAt"`
	}
	out := make([]documentDTO, 0, len(docs))
	for _, d := range docs {
		out = append(out, documentDTO{
			ID:       d.ID,
			Filename: d.Filename,
			Status:   d.Status,
			Uploaded: d.UploadedAt.Format(time.RFC3339),
		})
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"documents": out,
		"count":     len(out),
	})
}

// TransactionsHandler handles transaction endpoints.
type TransactionsHandler struct {
	store store.TransactionStore
	log   zerolog.Logger
}

// NewTransactionsHandler creates a new transactions handler.
func NewTransactionsHandler(s store.TransactionStore, log zerolog.Logger) *TransactionsHandler {
	return &TransactionsHandler{store: s, log: log}
}

// List handles GET /api/transactions with optional from/to/category filters.
func (h *TransactionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	query := r.URL.Query()
	filter := store.ListFilter{Category: query.Get("category")}

	if from := query.Get("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid from date, want YYYY-MM-DD")
			return
		}
		filter.From = t
	}
	if to := query.Get("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid to date, want YYYY-MM-DD")
			return
		}
		filter.To = t
	}

	txs, err := h.store.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Failed to list transactions")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list transactions")
		return
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}

	middleware.WriteJSON(w, http.StatusOK, txs)
}

// DismissAnomaly handles POST /api/transactions/{id}/dismiss: the user-set
// override that no later scan may undo.
func (h *TransactionsHandler) DismissAnomaly(w http.ResponseWriter, r *http.Request, txID string) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	tx, err := h.store.GetTransaction(r.Context(), userID, txID)
	if err == store.ErrNotFound {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to load transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}

	// Keep the reason texts: the user dismissed the verdict, not the
	// explanation of why it was raised.
	err = h.store.SetAnomaly(r.Context(), userID, txID, domain.AnomalyDismissed, tx.AnomalyReason, tx.AnomalyComparison)
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to dismiss anomaly")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to dismiss anomaly")
		return
	}

	updated, err := h.store.GetTransaction(r.Context(), userID, txID)
	if err != nil {
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, updated)
}

// Delete handles DELETE /api/transactions/{id}. Rows are soft-deleted.
func (h *TransactionsHandler) Delete(w http.ResponseWriter, r *http.Request, txID string) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	err := h.store.SoftDelete(r.Context(), userID, txID)
	if err == store.ErrNotFound {
		middleware.WriteError(w, http.StatusNotFound, "Transaction not found")
		return
	}
	if err != nil {
		h.log.Error().Err(err).Str("transaction_id", txID).Msg("Failed to delete transaction")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to delete transaction")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted", "id": txID})
}

// AnomaliesHandler handles anomaly-scan endpoints.
type AnomaliesHandler struct {
	engine     *anomaly.Engine
	windowDays int
	log        zerolog.Logger
}

// NewAnomaliesHandler creates a new anomalies handler. windowDays is the
// default analysis window when the request does not specify one.
func NewAnomaliesHandler(engine *anomaly.Engine, windowDays int, log zerolog.Logger) *AnomaliesHandler {
	return &AnomaliesHandler{engine: engine, windowDays: windowDays, log: log}
}

// Scan handles POST /api/anomalies/scan.
func (h *AnomaliesHandler) Scan(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r)
	if userID == "" {
		middleware.WriteError(w, http.StatusBadRequest, "X-User-ID header is required")
		return
	}

	opts := anomaly.Options{WindowDays: h.windowDays}
	if days := r.URL.Query().Get("windowDays"); days != "" {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			middleware.WriteError(w, http.StatusBadRequest, "windowDays must be a positive integer")
			return
		}
		opts.WindowDays = n
	}

	result, err := h.engine.Scan(r.Context(), userID, opts)
	if err != nil {
		h.log.Error().Err(err).Str("user_id", userID).Msg("Anomaly scan failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Anomaly scan failed")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, result)
}

// JobsHandler handles job-status endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(s jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: s, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := jobs.JobFilter{
		UserID: middleware.UserID(r),
		Status: jobs.JobStatus(query.Get("status")),
	}
	if limit := query.Get("limit"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil {
			filter.Limit = n
		}
	}
	if offset := query.Get("offset"); offset != "" {
		if n, err := strconv.Atoi(offset); err == nil {
			filter.Offset = n
		}
	}

	jobsList, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
