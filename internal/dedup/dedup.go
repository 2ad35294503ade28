// Package dedup filters parsed transaction candidates against the
// already-persisted ledger before insertion.
package dedup

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/store"
)

// Window is the date tolerance of the duplicate key: a candidate matches an
// existing row when merchant and signed amount are identical and the dates
// are within ±24h of each other.
const Window = 24 * time.Hour

// Deduplicator is a pure filter over candidates. It never mutates existing
// rows and does no cross-candidate suppression within one batch: identical
// literal rows inside a single file are all admitted, matching the source
// document's content.
type Deduplicator struct {
	store store.TransactionStore
	log   zerolog.Logger
}

// New creates a deduplicator backed by the given ledger.
func New(s store.TransactionStore, log zerolog.Logger) *Deduplicator {
	return &Deduplicator{store: s, log: log}
}

// Candidate is an admitted row plus its ordinal position in the parsed
// batch. The ordinal feeds the insert-time bucket key, keeping repeated
// literal rows within one document distinct.
type Candidate struct {
	domain.RawTransaction
	Ordinal int
}

// Result is the outcome of filtering one batch.
type Result struct {
	Admitted       []Candidate
	DuplicateCount int
}

// Filter checks each candidate against the user's persisted, non-deleted
// transactions. A failed lookup aborts only that candidate.
func (d *Deduplicator) Filter(ctx context.Context, userID string, candidates []domain.RawTransaction) *Result {
	result := &Result{}

	for i, c := range candidates {
		matches, err := d.store.FindMatching(ctx, userID, c.Merchant, c.Amount,
			c.Date.Add(-Window), c.Date.Add(Window))
		if err != nil {
			d.log.Error().Err(err).
				Str("user_id", userID).
				Str("merchant", c.Merchant).
				Msg("Duplicate lookup failed, dropping candidate")
			continue
		}

		if len(matches) > 0 {
			result.DuplicateCount++
			continue
		}

		result.Admitted = append(result.Admitted, Candidate{RawTransaction: c, Ordinal: i})
	}

	return result
}
