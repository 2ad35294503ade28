package bigquery

import (
	"context"
	"fmt"
	"time"

	bq "cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/store"
)

const transactionColumns = `
	transaction_id, user_id, dedup_key, transaction_ts, merchant, description,
	amount, category, is_deleted, anomaly_status, anomaly_reason,
	anomaly_comparison, policy_status, policy_rule, created_ts, updated_ts`

// InsertTransaction implements store.TransactionStore. The MERGE on
// (user_id, dedup_key) makes the check-then-insert one atomic statement,
// so two concurrent uploads of the same document insert each row exactly
// once. Returns false when the bucket was already occupied.
func (r *Repository) InsertTransaction(ctx context.Context, tx *domain.Transaction) (bool, error) {
	if tx.UserID == "" {
		return false, fmt.Errorf("InsertTransaction: user ID is required")
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.DedupKey == "" {
		tx.DedupKey = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	query := fmt.Sprintf(`
		MERGE %s t
		USING (SELECT @user_id AS user_id, @dedup_key AS dedup_key) s
		ON t.user_id = s.user_id AND t.dedup_key = s.dedup_key
		WHEN NOT MATCHED THEN
		  INSERT (transaction_id, user_id, dedup_key, transaction_ts, merchant,
		          description, amount, category, is_deleted, anomaly_status, created_ts)
		  VALUES (@transaction_id, @user_id, @dedup_key, @transaction_ts, @merchant,
		          @description, @amount, @category, FALSE, @anomaly_status, @created_ts)
	`, r.table(transactionsTable))

	affected, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "transaction_id", Value: tx.ID},
		{Name: "user_id", Value: tx.UserID},
		{Name: "dedup_key", Value: tx.DedupKey},
		{Name: "transaction_ts", Value: tx.Date},
		{Name: "merchant", Value: tx.Merchant},
		{Name: "description", Value: tx.Description},
		{Name: "amount", Value: tx.Amount},
		{Name: "category", Value: tx.Category},
		{Name: "anomaly_status", Value: tx.Anomaly.String()},
		{Name: "created_ts", Value: tx.CreatedAt},
	})
	if err != nil {
		return false, fmt.Errorf("InsertTransaction: %w", err)
	}

	return affected > 0, nil
}

// GetTransaction implements store.TransactionStore.
func (r *Repository) GetTransaction(ctx context.Context, userID, id string) (*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, transactionColumns, r.table(transactionsTable))

	rows, err := r.queryTransactions(ctx, query, []bq.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return nil, fmt.Errorf("GetTransaction: %w", err)
	}
	if len(rows) == 0 {
		return nil, store.ErrNotFound
	}

	return rows[0], nil
}

// ListTransactions implements store.TransactionStore.
func (r *Repository) ListTransactions(ctx context.Context, userID string, filter store.ListFilter) ([]*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
	`, transactionColumns, r.table(transactionsTable))

	params := []bq.QueryParameter{{Name: "user_id", Value: userID}}

	if !filter.IncludeDeleted {
		query += " AND is_deleted = FALSE"
	}
	if !filter.From.IsZero() {
		query += " AND transaction_ts >= @from_ts"
		params = append(params, bq.QueryParameter{Name: "from_ts", Value: filter.From})
	}
	if !filter.To.IsZero() {
		query += " AND transaction_ts <= @to_ts"
		params = append(params, bq.QueryParameter{Name: "to_ts", Value: filter.To})
	}
	if filter.Category != "" {
		query += " AND category = @category"
		params = append(params, bq.QueryParameter{Name: "category", Value: filter.Category})
	}

	query += " ORDER BY transaction_ts, created_ts"

	rows, err := r.queryTransactions(ctx, query, params)
	if err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	return rows, nil
}

// FindMatching implements store.TransactionStore: the ±24h duplicate-window
// query used by the Deduplicator.
func (r *Repository) FindMatching(ctx context.Context, userID, merchant string, amount float64, from, to time.Time) ([]*domain.Transaction, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM %s
		WHERE user_id = @user_id
		  AND is_deleted = FALSE
		  AND merchant = @merchant
		  AND amount = @amount
		  AND transaction_ts BETWEEN @from_ts AND @to_ts
	`, transactionColumns, r.table(transactionsTable))

	rows, err := r.queryTransactions(ctx, query, []bq.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "merchant", Value: merchant},
		{Name: "amount", Value: amount},
		{Name: "from_ts", Value: from},
		{Name: "to_ts", Value: to},
	})
	if err != nil {
		return nil, fmt.Errorf("FindMatching: %w", err)
	}
	return rows, nil
}

// SetAnomaly implements store.TransactionStore.
func (r *Repository) SetAnomaly(ctx context.Context, userID, id string, status domain.AnomalyStatus, reason, comparison string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET anomaly_status = @status,
		    anomaly_reason = @reason,
		    anomaly_comparison = @comparison,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, r.table(transactionsTable))

	affected, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "status", Value: status.String()},
		{Name: "reason", Value: reason},
		{Name: "comparison", Value: comparison},
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("SetAnomaly: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SetPolicyStatus implements store.TransactionStore.
func (r *Repository) SetPolicyStatus(ctx context.Context, userID, id, status, rule string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET policy_status = @status,
		    policy_rule = @rule,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, r.table(transactionsTable))

	affected, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "status", Value: status},
		{Name: "rule", Value: rule},
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("SetPolicyStatus: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// SoftDelete implements store.TransactionStore.
func (r *Repository) SoftDelete(ctx context.Context, userID, id string) error {
	query := fmt.Sprintf(`
		UPDATE %s
		SET is_deleted = TRUE,
		    updated_ts = CURRENT_TIMESTAMP()
		WHERE user_id = @user_id AND transaction_id = @transaction_id
	`, r.table(transactionsTable))

	affected, err := r.runDML(ctx, query, []bq.QueryParameter{
		{Name: "user_id", Value: userID},
		{Name: "transaction_id", Value: id},
	})
	if err != nil {
		return fmt.Errorf("SoftDelete: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r *Repository) queryTransactions(ctx context.Context, query string, params []bq.QueryParameter) ([]*domain.Transaction, error) {
	q := r.client.Query(query)
	q.Parameters = params

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("queryTransactions: query read: %w", err)
	}

	var result []*domain.Transaction
	for {
		var row TransactionRow
		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("queryTransactions: iter next: %w", err)
		}
		result = append(result, row.toDomain())
	}

	return result, nil
}

var _ store.TransactionStore = (*Repository)(nil)
