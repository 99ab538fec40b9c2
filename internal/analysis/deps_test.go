package analysis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insight/internal/classification"
	"github.com/Veraticus/spice-insight/internal/config"
	"github.com/Veraticus/spice-insight/internal/insight"
	"github.com/Veraticus/spice-insight/internal/llm"
	"github.com/Veraticus/spice-insight/internal/metrics"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/quality"
)

func offlineAdapter(t *testing.T) *llm.Adapter {
	t.Helper()
	adapter := llm.NewAdapter(nil, llm.AdapterConfig{}, nil, nil)
	t.Cleanup(func() { _ = adapter.Close() })
	return adapter
}

// householdTransactions is one quarter of a small household's account.
func householdTransactions() []model.Transaction {
	start := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	var txns []model.Transaction
	for i := 0; i < 4; i++ {
		txns = append(txns, model.Transaction{
			ID:          fmt.Sprintf("netflix-%d", i),
			Date:        start.AddDate(0, 0, 30*i),
			Description: "NETFLIX.COM",
			Amount:      -15.99,
		})
	}
	for i, amount := range []float64{-20, -22, -19, -21, -500} {
		txns = append(txns, model.Transaction{
			ID:          fmt.Sprintf("grocery-%d", i),
			Date:        start.AddDate(0, 0, 7*i+2),
			Description: "WHOLE FOODS MARKET #123",
			Amount:      amount,
		})
	}
	txns = append(txns,
		model.Transaction{ID: "pay-1", Date: start.AddDate(0, 0, 10), Description: "PAYROLL ACME CORP", Amount: 3000},
		model.Transaction{ID: "xfer-1", Date: start.AddDate(0, 0, 12), Description: "TRANSFER FROM SAVINGS", Amount: 400},
		model.Transaction{ID: "misc-1", Date: start.AddDate(0, 0, 14), Description: "", Amount: -42},
	)
	return txns
}

func TestDeps_Validate(t *testing.T) {
	deps := Deps{Config: config.Default()}
	assert.Error(t, deps.Validate())

	deps.Adapter = offlineAdapter(t)
	assert.NoError(t, deps.Validate())

	deps.Config.Clustering.SimilarityThreshold = 2
	assert.Error(t, deps.Validate())
}

func TestNewPipeline_EndToEndOffline(t *testing.T) {
	recorder := metrics.NewRecorder()
	o, err := NewPipeline(Deps{
		Adapter: offlineAdapter(t),
		Metrics: recorder,
		Config:  config.Default(),
	})
	require.NoError(t, err)

	result := o.Run(context.Background(), "household", householdTransactions())

	require.NoError(t, result.Err)
	assert.Equal(t, PhaseComplete, result.Phase)
	assert.False(t, result.Degraded())
	assert.Equal(t, []string{StageNameCategory, StageNameSpending, StageNameSavings, StageNameRisk}, stageNames(result))
	assert.NotEmpty(t, result.Narrative)
	assert.NotEqual(t, FallbackNarrative, result.Narrative)

	require.Len(t, result.Categorized, 12)
	for _, txn := range result.Categorized {
		assert.GreaterOrEqual(t, txn.Confidence, 0.0)
		assert.LessOrEqual(t, txn.Confidence, 1.0)
		if txn.Amount > 0 {
			assert.Contains(t, []model.Category{model.CategoryIncome, model.CategoryTransfers}, txn.Category, txn.ID)
		}
	}

	var netflix *model.RecurringPattern
	for i := range result.Patterns {
		if result.Patterns[i].Merchant == "NETFLIX.COM" {
			netflix = &result.Patterns[i]
		}
	}
	require.NotNil(t, netflix)
	assert.True(t, netflix.IsRecurring)
	assert.Equal(t, model.FrequencyMonthly, netflix.Frequency)

	require.Len(t, result.Anomalies, 1)
	assert.Equal(t, "grocery-4", result.Anomalies[0].TransactionID)

	assert.Equal(t, 12, result.Quality.Total)

	runs, err := testutil.GatherAndCount(recorder.Registry(), "spice_insight_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 1, runs)
	stages, err := testutil.GatherAndCount(recorder.Registry(), "spice_insight_stage_runs_total")
	require.NoError(t, err)
	assert.Equal(t, 5, stages)
}

func TestCategoryOutputRoundTripsThroughScorerAndSynthesizer(t *testing.T) {
	assigner, err := classification.NewDefaultAssigner(nil)
	require.NoError(t, err)

	batches := map[string][]model.Transaction{
		"all other": {
			{ID: "a", Date: time.Now(), Description: "", Amount: -5},
			{ID: "b", Date: time.Now(), Description: "   ", Amount: -7},
		},
		"empty":     nil,
		"household": householdTransactions(),
	}

	for name, txns := range batches {
		t.Run(name, func(t *testing.T) {
			categorized := assigner.AssignBatch(context.Background(), txns, nil)
			assert.NotPanics(t, func() {
				score := quality.Score(categorized)
				records := insight.Synthesize(insight.Input{Categorized: categorized, Quality: score})
				assert.NotEmpty(t, records)
			})
		})
	}
}
