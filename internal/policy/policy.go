// Package policy decides spending-policy compliance for individual
// transactions. The engine treats it as an opaque collaborator: whatever
// implementation is wired in, its verdicts land in the transaction's policy
// fields and never touch the anomaly fields.
package policy

import (
	"context"
	"fmt"
	"math"

	"github.com/dkovalev/spendlens/internal/domain"
)

// Result is a compliance verdict. Rule names the rule that produced a
// non-compliant status and is empty for compliant transactions.
type Result struct {
	Status string
	Rule   string
}

// Service checks one transaction against the account's spending policy.
// The full transaction history is provided for rules that need context,
// such as cumulative limits.
type Service interface {
	CheckCompliance(ctx context.Context, tx *domain.Transaction, accountType string, history []*domain.Transaction, userID string) (Result, error)
}

// Permissive approves everything. It is the default when no policy is
// configured.
type Permissive struct{}

func (Permissive) CheckCompliance(context.Context, *domain.Transaction, string, []*domain.Transaction, string) (Result, error) {
	return Result{Status: domain.PolicyCompliant}, nil
}

// Limits flags single outflows above per-account-type ceilings: a warning
// past the soft limit, a violation past the hard limit. Account types
// without configured limits are always compliant.
type Limits struct {
	// Soft and Hard map account type to ceiling amounts.
	Soft map[string]float64
	Hard map[string]float64
}

func (l *Limits) CheckCompliance(_ context.Context, tx *domain.Transaction, accountType string, _ []*domain.Transaction, _ string) (Result, error) {
	if !tx.IsOutflow() {
		return Result{Status: domain.PolicyCompliant}, nil
	}
	amount := math.Abs(tx.Amount)

	if hard, ok := l.Hard[accountType]; ok && amount > hard {
		return Result{
			Status: domain.PolicyViolation,
			Rule:   fmt.Sprintf("single-transaction-limit:%s:%.2f", accountType, hard),
		}, nil
	}
	if soft, ok := l.Soft[accountType]; ok && amount > soft {
		return Result{
			Status: domain.PolicyWarning,
			Rule:   fmt.Sprintf("single-transaction-limit:%s:%.2f", accountType, soft),
		}, nil
	}

	return Result{Status: domain.PolicyCompliant}, nil
}

var (
	_ Service = Permissive{}
	_ Service = (*Limits)(nil)
)
