// Command ingest runs the ingestion pipeline once for a local statement
// file or a staged object. Useful for backfills and debugging.
package main

import (
	"context"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"time"

	"github.com/dkovalev/spendlens/internal/config"
	"github.com/dkovalev/spendlens/internal/dedup"
	"github.com/dkovalev/spendlens/internal/ingest"
	"github.com/dkovalev/spendlens/internal/logger"
	"github.com/dkovalev/spendlens/internal/parser"
	"github.com/dkovalev/spendlens/internal/storage"
	"github.com/dkovalev/spendlens/internal/store"
	"github.com/dkovalev/spendlens/internal/store/bigquery"
	"github.com/dkovalev/spendlens/internal/store/memory"
)

func main() {
	log := logger.New("ingest")

	var (
		file       = flag.String("file", "", "Path to a local statement file (CSV or PDF)")
		storageURI = flag.String("storage-uri", "", "Staged object URI (e.g. gs://bucket/file.pdf), alternative to -file")
		userID     = flag.String("user", "", "User the statement belongs to (required)")
	)
	flag.Parse()

	if *userID == "" {
		log.Fatal().Msg("Error: -user is required")
	}
	if (*file == "") == (*storageURI == "") {
		log.Fatal().Msg("Error: exactly one of -file or -storage-uri is required")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

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
		log.Warn().Msg("No BigQuery project configured, results will not be persisted")
	}

	var (
		filename string
		data     []byte
	)
	switch {
	case *file != "":
		data, err = os.ReadFile(*file)
		if err != nil {
			log.Fatal().Err(err).Str("file", *file).Msg("Failed to read statement file")
		}
		filename = filepath.Base(*file)
	default:
		blobs, err := storage.NewGCS(ctx, "")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create storage client")
		}
		defer blobs.Close()

		data, err = blobs.Fetch(ctx, *storageURI)
		if err != nil {
			log.Fatal().Err(err).Str("storage_uri", *storageURI).Msg("Failed to fetch statement")
		}
		filename = storage.FilenameFromURI(*storageURI)
	}

	svc := ingest.New(parser.New(log), dedup.New(transactions, log), transactions, documents, nil, log)

	log.Info().Str("filename", filename).Str("user_id", *userID).Msg("Starting ingestion")

	result, err := svc.Ingest(ctx, *userID, ingest.Upload{
		Filename:    filename,
		MimeType:    mime.TypeByExtension(filepath.Ext(filename)),
		Data:        data,
		StorageURI:  *storageURI,
		AccountType: cfg.DefaultAccountType,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("Ingestion failed")
	}

	fmt.Println(result.Message)
}
