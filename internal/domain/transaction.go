package domain

import (
	"encoding/json"
	"time"
)

// RawTransaction is one candidate record extracted from a statement file.
// It is transient: it only becomes a Transaction after surviving
// deduplication and being persisted.
type RawTransaction struct {
	Date        time.Time `json:"date"`
	Merchant    string    `json:"merchant"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"` // signed: positive = inflow, negative = outflow
	Category    string    `json:"category"`
}

// IsOutflow reports whether the candidate is an expense. Only outflows
// participate in baselines and anomaly scoring.
func (r RawTransaction) IsOutflow() bool {
	return r.Amount < 0
}

// AnomalyStatus is the analysis state of a transaction. The legacy schema
// encoded this as a nullable boolean (true / false / null / column unset);
// all four observable states are preserved, including the JSON shape.
type AnomalyStatus int

const (
	// AnomalyUnanalyzed means no scan has ever looked at this transaction.
	AnomalyUnanalyzed AnomalyStatus = iota
	// AnomalyFlagged means the last scan marked this transaction anomalous.
	AnomalyFlagged
	// AnomalyDismissed is the terminal, user-set override. Automated scans
	// must never move a dismissed transaction back to flagged.
	AnomalyDismissed
	// AnomalyClean means a scan ran and found nothing anomalous.
	AnomalyClean
)

// String returns the storage representation of the status.
func (s AnomalyStatus) String() string {
	switch s {
	case AnomalyFlagged:
		return "flagged"
	case AnomalyDismissed:
		return "dismissed"
	case AnomalyClean:
		return "clean"
	default:
		return "unanalyzed"
	}
}

// ParseAnomalyStatus converts a storage string back into an AnomalyStatus.
// Unknown values map to AnomalyUnanalyzed.
func ParseAnomalyStatus(s string) AnomalyStatus {
	switch s {
	case "flagged":
		return AnomalyFlagged
	case "dismissed":
		return AnomalyDismissed
	case "clean":
		return AnomalyClean
	default:
		return AnomalyUnanalyzed
	}
}

// Policy compliance statuses produced by the PolicyService collaborator.
// PolicyStatus and AnomalyStatus are orthogonal: they are set by separate
// passes and neither pass reads the other's field.
const (
	PolicyCompliant = "compliant"
	PolicyWarning   = "warning"
	PolicyViolation = "violation"
)

// IncomeCategories are never analyzed for anomalies, regardless of sign.
var IncomeCategories = map[string]bool{
	"salary":      true,
	"wage":        true,
	"income":      true,
	"refund":      true,
	"deposit":     true,
	"transfer-in": true,
}

// Transaction is the persisted form of a RawTransaction. Rows are only ever
// soft-deleted; nothing in this service physically purges them.
type Transaction struct {
	ID     string
	UserID string

	// DedupKey names the source-document row this transaction came from.
	// Stores treat it as a uniqueness bucket on insert; empty means
	// "no bucket", and the store assigns a unique one.
	DedupKey string

	Date        time.Time
	Merchant    string
	Description string
	Amount      float64
	Category    string

	IsDeleted bool

	Anomaly           AnomalyStatus
	AnomalyReason     string
	AnomalyComparison string

	PolicyStatus string
	PolicyRule   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOutflow reports whether the transaction is an expense.
func (t *Transaction) IsOutflow() bool {
	return t.Amount < 0
}

// MarshalJSON emits the wire shape consumed by the analytics and coaching
// collaborators. hasAnomaly keeps the legacy nullable-boolean contract:
// the key is absent when the transaction was never analyzed, true when
// flagged, false when user-dismissed, and null when analyzed clean.
func (t *Transaction) MarshalJSON() ([]byte, error) {
	m := map[string]interface{}{
		"id":          t.ID,
		"userId":      t.UserID,
		"date":        t.Date.Format("2006-01-02"),
		"merchant":    t.Merchant,
		"description": t.Description,
		"amount":      t.Amount,
		"category":    t.Category,
		"isDeleted":   t.IsDeleted,
	}

	switch t.Anomaly {
	case AnomalyFlagged:
		m["hasAnomaly"] = true
	case AnomalyDismissed:
		m["hasAnomaly"] = false
	case AnomalyClean:
		m["hasAnomaly"] = nil
	}

	if t.AnomalyReason != "" {
		m["anomalyReason"] = t.AnomalyReason
	}
	if t.AnomalyComparison != "" {
		m["anomalyComparison"] = t.AnomalyComparison
	}
	if t.PolicyStatus != "" {
		m["policyStatus"] = t.PolicyStatus
	}
	if t.PolicyRule != "" {
		m["policyRule"] = t.PolicyRule
	}

	return json.Marshal(m)
}

// CategoryBaseline is the per-user, per-category statistical profile derived
// from a trailing window of historical outflows. It is computed per analysis
// run and never persisted or shared across runs.
type CategoryBaseline struct {
	Category    string
	Mean        float64
	StdDev      float64
	SampleCount int
}
