package anomaly

import (
	"math"

	"github.com/dkovalev/spendlens/internal/domain"
)

// buildBaselines computes one CategoryBaseline per category from the
// historical window. Only outflows participate; amounts enter the
// statistics as absolute values.
func buildBaselines(history []*domain.Transaction) map[string]domain.CategoryBaseline {
	amounts := make(map[string][]float64)
	for _, tx := range history {
		if !tx.IsOutflow() {
			continue
		}
		amounts[tx.Category] = append(amounts[tx.Category], math.Abs(tx.Amount))
	}

	baselines := make(map[string]domain.CategoryBaseline, len(amounts))
	for category, values := range amounts {
		mean, stdDev := meanStdDev(values)
		baselines[category] = domain.CategoryBaseline{
			Category:    category,
			Mean:        mean,
			StdDev:      stdDev,
			SampleCount: len(values),
		}
	}

	return baselines
}

// overallBaseline computes the cross-category fallback baseline over all of
// the user's outflows in the historical window.
func overallBaseline(history []*domain.Transaction) domain.CategoryBaseline {
	var values []float64
	for _, tx := range history {
		if !tx.IsOutflow() {
			continue
		}
		values = append(values, math.Abs(tx.Amount))
	}

	mean, stdDev := meanStdDev(values)
	return domain.CategoryBaseline{
		Category:    "overall",
		Mean:        mean,
		StdDev:      stdDev,
		SampleCount: len(values),
	}
}

// meanStdDev returns the mean and population standard deviation.
func meanStdDev(values []float64) (float64, float64) {
	if len(values) == 0 {
		return 0, 0
	}

	var sum float64
	for _, v := range values {
		sum += v
	}
	mean := sum / float64(len(values))

	var sqDiff float64
	for _, v := range values {
		d := v - mean
		sqDiff += d * d
	}
	stdDev := math.Sqrt(sqDiff / float64(len(values)))

	return mean, stdDev
}
