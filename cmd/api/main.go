// Command api serves the HTTP API and processes statement jobs in-process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dkovalev/spendlens/internal/anomaly"
	"github.com/dkovalev/spendlens/internal/api"
	"github.com/dkovalev/spendlens/internal/api/handlers"
	"github.com/dkovalev/spendlens/internal/config"
	"github.com/dkovalev/spendlens/internal/dedup"
	"github.com/dkovalev/spendlens/internal/ingest"
	"github.com/dkovalev/spendlens/internal/jobs"
	"github.com/dkovalev/spendlens/internal/jobs/inmemory"
	"github.com/dkovalev/spendlens/internal/logger"
	"github.com/dkovalev/spendlens/internal/parser"
	"github.com/dkovalev/spendlens/internal/storage"
	"github.com/dkovalev/spendlens/internal/store"
	"github.com/dkovalev/spendlens/internal/store/bigquery"
	"github.com/dkovalev/spendlens/internal/store/memory"
)

func main() {
	log := logger.New("api")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	var (
		transactions store.TransactionStore
		documents    store.DocumentStore
	)
	if cfg.BigQueryProject != "" {
		repo, err := bigquery.NewRepository(ctx, cfg.BigQueryProject, cfg.BigQueryDataset)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create BigQuery repository")
		}
		defer repo.Close()
		transactions, documents = repo, repo
		log.Info().
			Str("project", cfg.BigQueryProject).
			Str("dataset", cfg.BigQueryDataset).
			Msg("Using BigQuery persistence")
	} else {
		mem := memory.New()
		transactions, documents = mem, mem
		log.Warn().Msg("No BigQuery project configured, using in-memory persistence")
	}

	var blobs storage.BlobStore
	if cfg.StorageBucket != "" {
		gcsBlobs, err := storage.NewGCS(ctx, cfg.StorageBucket)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer gcsBlobs.Close()
		blobs = gcsBlobs
	} else {
		blobs = storage.NewMemory("spendlens-local")
		log.Warn().Msg("No storage bucket configured, staging uploads in memory")
	}

	ingestSvc := ingest.New(parser.New(log), dedup.New(transactions, log), transactions, documents, nil, log)
	engine := anomaly.New(transactions, log)

	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	workerCtx, cancelWorker := context.WithCancel(ctx)
	defer cancelWorker()

	jobHandler := func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		data, err := blobs.Fetch(ctx, parseJob.StorageURI)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", parseJob.StorageURI, err)
		}

		_, err = ingestSvc.Ingest(ctx, parseJob.UserID, ingest.Upload{
			Filename:    parseJob.Filename,
			MimeType:    parseJob.ContentType,
			Data:        data,
			StorageURI:  parseJob.StorageURI,
			AccountType: parseJob.AccountType,
		})
		return err
	}

	go func() {
		log.Info().Msg("Starting statement job worker")
		if err := jobQueue.Start(workerCtx, jobHandler); err != nil {
			log.Error().Err(err).Msg("Job worker stopped with error")
		}
	}()

	router := api.NewRouter(api.Handlers{
		Statements:   handlers.NewStatementsHandler(ingestSvc, blobs, jobQueue, documents, log),
		Transactions: handlers.NewTransactionsHandler(transactions, log),
		Anomalies:    handlers.NewAnomaliesHandler(engine, cfg.ScanWindowDays, log),
		Jobs:         handlers.NewJobsHandler(jobStore, log),
	}, log)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Port).Msg("Starting API server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	cancelWorker()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}
	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error stopping job queue")
	}

	log.Info().Msg("Server exited")
}
