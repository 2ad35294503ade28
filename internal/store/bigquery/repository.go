package bigquery

import (
	"context"
	"fmt"

	bq "cloud.google.com/go/bigquery"
)

// Repository holds a shared BigQuery client so each operation does not pay
// for a fresh connection. It implements store.TransactionStore and
// store.DocumentStore.
type Repository struct {
	client  *bq.Client
	dataset string
}

// NewRepository creates a repository against the given project and dataset.
// It assumes Application Default Credentials are configured.
func NewRepository(ctx context.Context, projectID, datasetID string) (*Repository, error) {
	client, err := bq.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("NewRepository: creating client: %w", err)
	}
	return &Repository{client: client, dataset: datasetID}, nil
}

// Close closes the underlying BigQuery client.
func (r *Repository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

func (r *Repository) table(name string) string {
	return fmt.Sprintf("`%s.%s`", r.dataset, name)
}

// runDML executes a DML statement and returns the number of affected rows.
func (r *Repository) runDML(ctx context.Context, query string, params []bq.QueryParameter) (int64, error) {
	q := r.client.Query(query)
	q.Parameters = params

	job, err := q.Run(ctx)
	if err != nil {
		return 0, fmt.Errorf("runDML: running query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return 0, fmt.Errorf("runDML: waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return 0, fmt.Errorf("runDML: job error: %w", err)
	}

	if stats, ok := status.Statistics.Details.(*bq.QueryStatistics); ok {
		return stats.NumDMLAffectedRows, nil
	}
	return 0, nil
}
