// Command worker consumes statement jobs from the queue and runs the
// ingestion pipeline for each.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	log := logger.New("worker")

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	}

	ingestSvc := ingest.New(parser.New(log), dedup.New(transactions, log), transactions, documents, nil, log)

	// A standalone worker needs a distributed queue (Cloud Tasks, Pub/Sub)
	// to receive jobs from the API process; the in-memory queue here only
	// serves single-binary deployments and smoke tests.
	jobStore := inmemory.NewStore()
	jobQueue := inmemory.NewQueue(cfg.QueueBuffer, cfg.QueueWorkers, jobStore)

	handler := func(ctx context.Context, job jobs.Job) error {
		parseJob, ok := job.(*jobs.ParseStatementJob)
		if !ok {
			return fmt.Errorf("unexpected job type: %T", job)
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Str("user_id", parseJob.UserID).
			Str("storage_uri", parseJob.StorageURI).
			Msg("Processing statement job")

		data, err := blobs.Fetch(ctx, parseJob.StorageURI)
		if err != nil {
			return fmt.Errorf("fetching %s: %w", parseJob.StorageURI, err)
		}

		result, err := ingestSvc.Ingest(ctx, parseJob.UserID, ingest.Upload{
			Filename:    parseJob.Filename,
			MimeType:    parseJob.ContentType,
			Data:        data,
			StorageURI:  parseJob.StorageURI,
			AccountType: parseJob.AccountType,
		})
		if err != nil {
			return err
		}

		log.Info().
			Str("job_id", parseJob.JobID).
			Int("transactions", result.TransactionCount).
			Int("duplicates_skipped", result.DuplicatesSkipped).
			Msg("Statement job completed")

		return nil
	}

	if err := jobQueue.Start(ctx, handler); err != nil {
		log.Fatal().Err(err).Msg("Failed to start job consumer")
	}

	log.Info().Msg("Worker service started, waiting for jobs...")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down worker service...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := jobQueue.Stop(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during graceful shutdown")
	}

	log.Info().Msg("Worker service exited")
}
