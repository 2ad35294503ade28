package anomaly

import (
	"fmt"
	"math"

	"github.com/dkovalev/spendlens/internal/domain"
)

// Severity tiers, weakest to strongest.
const (
	SeverityMinor    = "minor"
	SeverityModerate = "moderate"
	SeverityMajor    = "major"
)

const (
	// minSamples is the smallest category history that supports a
	// per-category baseline. Below it the overall fallback applies.
	minSamples = 3

	// fallbackRatio and fallbackFloor gate the overall-baseline path: a
	// transaction without enough category history is only flagged when it
	// exceeds both 3x the user's overall average outflow and an absolute
	// floor, so that sparse new categories don't light up on noise.
	fallbackRatio = 3.0
	fallbackFloor = 100.0

	// smallAmountCeiling and smallDeviationCeiling suppress flags on
	// trivial expenses: a $12 coffee two sigmas above a $6 mean is not
	// worth anyone's attention.
	smallAmountCeiling    = 20.0
	smallDeviationCeiling = 10.0
)

// ExpectedRange is the band a transaction was compared against.
type ExpectedRange struct {
	Min     float64 `json:"min"`
	Max     float64 `json:"max"`
	Average float64 `json:"average"`
}

// Details is the per-transaction verdict.
type Details struct {
	IsAnomaly     bool          `json:"isAnomaly"`
	Severity      string        `json:"severity,omitempty"`
	Reason        string        `json:"reason,omitempty"`
	Comparison    string        `json:"comparison,omitempty"`
	ZScore        float64       `json:"zScore"`
	ExpectedRange ExpectedRange `json:"expectedRange"`
}

func severityRank(s string) int {
	switch s {
	case SeverityMajor:
		return 3
	case SeverityModerate:
		return 2
	case SeverityMinor:
		return 1
	default:
		return 0
	}
}

// score evaluates one outflow against the precomputed baselines. It is pure:
// all store access happens before and after, never inside.
func score(tx *domain.Transaction, baselines map[string]domain.CategoryBaseline, overall domain.CategoryBaseline) Details {
	current := math.Abs(tx.Amount)

	b, ok := baselines[tx.Category]
	if ok && b.SampleCount >= minSamples {
		return scoreAgainst(current, tx.Category, b)
	}
	return scoreFallback(current, overall)
}

// scoreAgainst applies the severity ladder to a well-sampled category
// baseline. The z-score denominator is clamped at 1 so that a tightly
// clustered history (sigma near zero) doesn't turn every deviation into
// an outlier.
func scoreAgainst(current float64, category string, b domain.CategoryBaseline) Details {
	z := (current - b.Mean) / math.Max(b.StdDev, 1)

	d := Details{
		ZScore:        z,
		ExpectedRange: expectedRange(b),
	}

	if current < smallAmountCeiling && math.Abs(current-b.Mean) < smallDeviationCeiling {
		return d
	}

	var severity string
	switch {
	case math.Abs(z) > 3.5 && current > 3*b.Mean:
		severity = SeverityMajor
	case math.Abs(z) > 2.5 && current > 2.5*b.Mean:
		severity = SeverityModerate
	case current > 2*b.Mean && current > b.Mean+2*b.StdDev:
		severity = SeverityMinor
	default:
		return d
	}

	d.IsAnomaly = true
	d.Severity = severity
	d.Reason = fmt.Sprintf("Unusually high %s spending: $%.2f is %.1fx your typical $%.2f",
		category, current, current/b.Mean, b.Mean)
	d.Comparison = fmt.Sprintf("Typical %s expense: $%.2f, this transaction: $%.2f",
		category, b.Mean, current)
	return d
}

// scoreFallback handles categories with fewer than minSamples historical
// outflows by comparing against the user's overall spending profile. When
// even the overall history is too thin, the result is simply not anomalous.
func scoreFallback(current float64, overall domain.CategoryBaseline) Details {
	d := Details{
		ExpectedRange: expectedRange(overall),
	}
	if overall.SampleCount < minSamples {
		return d
	}

	z := (current - overall.Mean) / math.Max(overall.StdDev, 1)
	d.ZScore = z

	if current <= fallbackRatio*overall.Mean || current <= fallbackFloor {
		return d
	}

	severity := SeverityMinor
	switch {
	case math.Abs(z) > 3.5 && current > 3*overall.Mean:
		severity = SeverityMajor
	case math.Abs(z) > 2.5 && current > 2.5*overall.Mean:
		severity = SeverityModerate
	}

	d.IsAnomaly = true
	d.Severity = severity
	d.Reason = fmt.Sprintf("Unusually high overall spending: $%.2f is %.1fx your typical $%.2f",
		current, current/overall.Mean, overall.Mean)
	d.Comparison = fmt.Sprintf("Typical overall expense: $%.2f, this transaction: $%.2f",
		overall.Mean, current)
	return d
}

func expectedRange(b domain.CategoryBaseline) ExpectedRange {
	return ExpectedRange{
		Min:     math.Max(0, b.Mean-2*b.StdDev),
		Max:     b.Mean + 2*b.StdDev,
		Average: b.Mean,
	}
}
