package policy

import (
	"context"
	"testing"

	"github.com/dkovalev/spendlens/internal/domain"
)

func TestLimits(t *testing.T) {
	l := &Limits{
		Soft: map[string]float64{"personal": 500},
		Hard: map[string]float64{"personal": 2000},
	}

	tests := []struct {
		name        string
		amount      float64
		accountType string
		wantStatus  string
	}{
		{"under soft limit", -100, "personal", domain.PolicyCompliant},
		{"over soft limit", -700, "personal", domain.PolicyWarning},
		{"over hard limit", -2500, "personal", domain.PolicyViolation},
		{"inflow ignored", 9999, "personal", domain.PolicyCompliant},
		{"unconfigured account type", -9999, "business", domain.PolicyCompliant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := l.CheckCompliance(context.Background(),
				&domain.Transaction{Amount: tt.amount}, tt.accountType, nil, "u1")
			if err != nil {
				t.Fatalf("CheckCompliance: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %q, want %q", got.Status, tt.wantStatus)
			}
			if tt.wantStatus == domain.PolicyCompliant && got.Rule != "" {
				t.Errorf("compliant result should carry no rule, got %q", got.Rule)
			}
			if tt.wantStatus != domain.PolicyCompliant && got.Rule == "" {
				t.Error("non-compliant result should name its rule")
			}
		})
	}
}

func TestPermissive(t *testing.T) {
	got, err := Permissive{}.CheckCompliance(context.Background(),
		&domain.Transaction{Amount: -1e9}, "personal", nil, "u1")
	if err != nil {
		t.Fatalf("CheckCompliance: %v", err)
	}
	if got.Status != domain.PolicyCompliant {
		t.Errorf("permissive policy must always be compliant, got %q", got.Status)
	}
}
