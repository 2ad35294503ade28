// Package anomaly scores a user's recent outflows against their own
// historical spending and persists the verdicts back onto the ledger.
package anomaly

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/dkovalev/spendlens/internal/domain"
	"github.com/dkovalev/spendlens/internal/store"
)

const (
	// defaultWindowDays is the analysis window when the caller doesn't
	// specify one.
	defaultWindowDays = 30

	// baselineMonths is how far before the analysis window the historical
	// baseline reaches.
	baselineMonths = 6

	defaultWorkers = 4
)

// Engine runs anomaly scans. Baselines are computed once per scan from the
// historical window; scoring of individual transactions then runs in
// parallel against those read-only baselines.
type Engine struct {
	store   store.TransactionStore
	log     zerolog.Logger
	workers int
}

// New creates an engine over the given ledger.
func New(s store.TransactionStore, log zerolog.Logger) *Engine {
	return &Engine{store: s, log: log, workers: defaultWorkers}
}

// Options tunes one scan. Zero values mean defaults: a 30-day window ending
// now.
type Options struct {
	WindowDays int
	Reference  time.Time
}

// Anomaly pairs a flagged transaction with its verdict. On the wire the
// transaction fields are flattened alongside an anomalyDetails object.
type Anomaly struct {
	Transaction *domain.Transaction
	Details     Details
}

// MarshalJSON merges the transaction's own wire shape with the verdict.
func (a Anomaly) MarshalJSON() ([]byte, error) {
	txJSON, err := json.Marshal(a.Transaction)
	if err != nil {
		return nil, err
	}

	var m map[string]json.RawMessage
	if err := json.Unmarshal(txJSON, &m); err != nil {
		return nil, err
	}

	details, err := json.Marshal(a.Details)
	if err != nil {
		return nil, err
	}
	m["anomalyDetails"] = details

	return json.Marshal(m)
}

// Summary counts anomalies by severity.
type Summary struct {
	Total    int `json:"total"`
	Major    int `json:"major"`
	Moderate int `json:"moderate"`
	Minor    int `json:"minor"`
}

// ScanResult is the outcome of one scan, anomalies ranked by severity and
// then by absolute amount, largest first.
type ScanResult struct {
	Anomalies []Anomaly `json:"anomalies"`
	Summary   Summary   `json:"summary"`
	Period    string    `json:"period"`
}

// Scan analyzes the user's outflows in the analysis window.
//
// Inflows, income-category transactions and user-dismissed transactions are
// never analyzed: they get no verdict and no write-back. Everything else is
// scored and its status persisted, flagged or clean, so that re-running the
// scan over unchanged data is idempotent.
func (e *Engine) Scan(ctx context.Context, userID string, opts Options) (*ScanResult, error) {
	days := opts.WindowDays
	if days <= 0 {
		days = defaultWindowDays
	}
	end := opts.Reference
	if end.IsZero() {
		end = time.Now()
	}
	start := end.AddDate(0, 0, -days)
	historyStart := start.AddDate(0, -baselineMonths, 0)

	history, err := e.store.ListTransactions(ctx, userID, store.ListFilter{
		From: historyStart,
		To:   start.Add(-time.Nanosecond),
	})
	if err != nil {
		return nil, fmt.Errorf("Scan: loading history: %w", err)
	}

	candidates, err := e.store.ListTransactions(ctx, userID, store.ListFilter{
		From: start,
		To:   end,
	})
	if err != nil {
		return nil, fmt.Errorf("Scan: loading analysis window: %w", err)
	}

	baselines := buildBaselines(history)
	overall := overallBaseline(history)

	eligible := make([]*domain.Transaction, 0, len(candidates))
	for _, tx := range candidates {
		if !tx.IsOutflow() || domain.IncomeCategories[tx.Category] || tx.Anomaly == domain.AnomalyDismissed {
			continue
		}
		eligible = append(eligible, tx)
	}

	verdicts := make([]Details, len(eligible))
	e.scoreAll(ctx, userID, eligible, baselines, overall, verdicts)

	result := &ScanResult{
		Anomalies: []Anomaly{},
		Period:    fmt.Sprintf("%s to %s", start.Format("2006-01-02"), end.Format("2006-01-02")),
	}
	for i, tx := range eligible {
		d := verdicts[i]
		if !d.IsAnomaly {
			continue
		}
		result.Anomalies = append(result.Anomalies, Anomaly{Transaction: tx, Details: d})
		result.Summary.Total++
		switch d.Severity {
		case SeverityMajor:
			result.Summary.Major++
		case SeverityModerate:
			result.Summary.Moderate++
		case SeverityMinor:
			result.Summary.Minor++
		}
	}

	sort.SliceStable(result.Anomalies, func(i, j int) bool {
		ri, rj := severityRank(result.Anomalies[i].Details.Severity), severityRank(result.Anomalies[j].Details.Severity)
		if ri != rj {
			return ri > rj
		}
		return math.Abs(result.Anomalies[i].Transaction.Amount) > math.Abs(result.Anomalies[j].Transaction.Amount)
	})

	e.log.Info().
		Str("user_id", userID).
		Str("period", result.Period).
		Int("analyzed", len(eligible)).
		Int("flagged", result.Summary.Total).
		Msg("Anomaly scan complete")

	return result, nil
}

// scoreAll fans the eligible transactions out over a bounded worker pool.
// Each worker writes only its own verdict slot, and the baselines it reads
// were fully built before any worker started.
func (e *Engine) scoreAll(ctx context.Context, userID string, txs []*domain.Transaction,
	baselines map[string]domain.CategoryBaseline, overall domain.CategoryBaseline, verdicts []Details) {

	workers := e.workers
	if workers > len(txs) {
		workers = len(txs)
	}
	if workers < 1 {
		return
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				tx := txs[i]
				verdicts[i] = score(tx, baselines, overall)
				e.persist(ctx, userID, tx, verdicts[i])
			}
		}()
	}
	for i := range txs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()
}

// persist writes the verdict back onto the transaction. A write failure is
// logged but does not abort the scan; the in-memory verdict still stands.
func (e *Engine) persist(ctx context.Context, userID string, tx *domain.Transaction, d Details) {
	status := domain.AnomalyClean
	reason, comparison := "", ""
	if d.IsAnomaly {
		status = domain.AnomalyFlagged
		reason = d.Reason
		comparison = d.Comparison
	}

	if err := e.store.SetAnomaly(ctx, userID, tx.ID, status, reason, comparison); err != nil {
		e.log.Error().Err(err).
			Str("user_id", userID).
			Str("transaction_id", tx.ID).
			Msg("Failed to persist anomaly verdict")
		return
	}

	tx.Anomaly = status
	tx.AnomalyReason = reason
	tx.AnomalyComparison = comparison
}
