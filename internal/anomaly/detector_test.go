package anomaly

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insight/internal/model"
)

func group(amounts ...float64) []model.CategorizedTransaction {
	txns := make([]model.CategorizedTransaction, len(amounts))
	for i, amt := range amounts {
		txns[i] = model.CategorizedTransaction{
			Transaction: model.Transaction{
				ID:     fmt.Sprintf("t%d", i+1),
				Date:   time.Date(2024, 2, i+1, 0, 0, 0, 0, time.UTC),
				Amount: amt,
			},
		}
	}
	return txns
}

func TestDetect_SingleOutlier(t *testing.T) {
	flags := NewDetector(0).Detect("CAFE", group(20, 22, 19, 21, 500))

	require.Len(t, flags, 1)
	assert.Equal(t, "t5", flags[0].TransactionID)
	assert.Equal(t, "CAFE", flags[0].Merchant)
	assert.Greater(t, flags[0].ZScore, 2.0)
	assert.InDelta(t, flags[0].ZScore/3, flags[0].Confidence, 1e-9)
	assert.Equal(t, "Amount $500.00 is 2.5σ from this merchant's mean of $20.50", flags[0].Reason)
}

func TestDetect_OutflowsUseMagnitude(t *testing.T) {
	flags := NewDetector(0).Detect("CAFE", group(-20, -22, -19, -21, -500))
	require.Len(t, flags, 1)
	assert.InDelta(t, -500, flags[0].Amount, 1e-9)
}

func TestDetect_NoFlags(t *testing.T) {
	d := NewDetector(0)

	tests := []struct {
		name string
		txns []model.CategorizedTransaction
	}{
		{"identical amounts", group(50, 50, 50)},
		{"single transaction", group(50)},
		{"empty", nil},
		{"small spread", group(10, 11, 12, 13)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Empty(t, d.Detect("M", tt.txns))
		})
	}
}

func TestDetect_ConfidenceScalesWithZ(t *testing.T) {
	flags := NewDetector(0).Detect("M", group(10, 10, 10, 10, 30))
	require.Len(t, flags, 1)
	assert.InDelta(t, 2.5, flags[0].ZScore, 1e-9)
	assert.InDelta(t, 2.5/3, flags[0].Confidence, 1e-9)

	// A far larger outlier saturates the confidence.
	flags = NewDetector(0).Detect("M", group(10, 10, 10, 10, 10, 10, 10, 10, 10, 200))
	require.Len(t, flags, 1)
	assert.Greater(t, flags[0].ZScore, 2.85)
	assert.InDelta(t, 0.95, flags[0].Confidence, 1e-9)
}

func TestDetectAll(t *testing.T) {
	groups := map[string][]model.CategorizedTransaction{
		"A": group(20, 22, 19, 21, 500),
		"B": group(5, 5, 5),
	}
	flags := NewDetector(0).DetectAll(groups, []string{"B", "A"})
	require.Len(t, flags, 1)
	assert.Equal(t, "A", flags[0].Merchant)
}
