package domain

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestAnomalyStatusRoundTrip(t *testing.T) {
	statuses := []AnomalyStatus{AnomalyUnanalyzed, AnomalyFlagged, AnomalyDismissed, AnomalyClean}
	for _, s := range statuses {
		if got := ParseAnomalyStatus(s.String()); got != s {
			t.Errorf("ParseAnomalyStatus(%q) = %v, want %v", s.String(), got, s)
		}
	}

	if got := ParseAnomalyStatus("garbage"); got != AnomalyUnanalyzed {
		t.Errorf("ParseAnomalyStatus(garbage) = %v, want AnomalyUnanalyzed", got)
	}
}

func TestTransactionMarshalJSON_TriState(t *testing.T) {
	base := Transaction{
		ID:       "tx-1",
		UserID:   "u-1",
		Date:     time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		Merchant: "COFFEE SHOP",
		Amount:   -4.50,
		Category: "dining",
	}

	tests := []struct {
		name    string
		status  AnomalyStatus
		present bool
		want    string // raw JSON value of hasAnomaly when present
	}{
		{"unanalyzed omits the key", AnomalyUnanalyzed, false, ""},
		{"flagged is true", AnomalyFlagged, true, "true"},
		{"dismissed is false", AnomalyDismissed, true, "false"},
		{"clean is null", AnomalyClean, true, "null"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tx := base
			tx.Anomaly = tt.status

			data, err := json.Marshal(&tx)
			if err != nil {
				t.Fatalf("Marshal failed: %v", err)
			}

			var m map[string]json.RawMessage
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("Unmarshal failed: %v", err)
			}

			raw, ok := m["hasAnomaly"]
			if ok != tt.present {
				t.Fatalf("hasAnomaly present = %v, want %v (json: %s)", ok, tt.present, data)
			}
			if tt.present && string(raw) != tt.want {
				t.Errorf("hasAnomaly = %s, want %s", raw, tt.want)
			}
		})
	}
}

func TestTransactionMarshalJSON_OptionalFields(t *testing.T) {
	tx := Transaction{ID: "tx-1", UserID: "u-1", Date: time.Now()}

	data, err := json.Marshal(&tx)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	for _, key := range []string{"anomalyReason", "anomalyComparison", "policyStatus"} {
		if strings.Contains(string(data), key) {
			t.Errorf("expected %s to be omitted when empty, got: %s", key, data)
		}
	}

	tx.AnomalyReason = "reason"
	tx.AnomalyComparison = "comparison"
	tx.PolicyStatus = PolicyWarning

	data, err = json.Marshal(&tx)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	for _, key := range []string{"anomalyReason", "anomalyComparison", "policyStatus"} {
		if !strings.Contains(string(data), key) {
			t.Errorf("expected %s in output, got: %s", key, data)
		}
	}
}

func TestIsOutflow(t *testing.T) {
	if (RawTransaction{Amount: -10}).IsOutflow() != true {
		t.Error("negative amount should be an outflow")
	}
	if (RawTransaction{Amount: 10}).IsOutflow() {
		t.Error("positive amount should not be an outflow")
	}
	if (RawTransaction{Amount: 0}).IsOutflow() {
		t.Error("zero amount should not be an outflow")
	}
}
