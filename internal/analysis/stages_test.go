package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/spice-insight/internal/model"
)

func categorized(day int, category model.Category, amount float64, desc string) model.CategorizedTransaction {
	return model.CategorizedTransaction{
		Transaction: model.Transaction{
			ID:          desc,
			Date:        time.Date(2024, 1, day, 0, 0, 0, 0, time.UTC),
			Description: desc,
			Amount:      amount,
		},
		Category:    category,
		MerchantKey: desc,
		Confidence:  0.85,
	}
}

func findRecord(t *testing.T, records []model.InsightRecord, title string) model.InsightRecord {
	t.Helper()
	for _, r := range records {
		if r.Title == title {
			return r
		}
	}
	require.Failf(t, "record not found", "no record titled %q in %v", title, records)
	return model.InsightRecord{}
}

func TestSpendingStage_Run(t *testing.T) {
	batch := &Batch{Categorized: []model.CategorizedTransaction{
		categorized(1, model.CategoryGroceries, -100, "KROGER"),
		categorized(10, model.CategoryDining, -50, "CHIPOTLE"),
		categorized(10, model.CategoryIncome, 1000, "PAYROLL"),
		categorized(10, model.CategoryTransfers, 200, "TRANSFER FROM SAVINGS"),
	}}

	out, err := (&SpendingStage{}).Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out.Insights, 2)

	summary := out.Insights[0]
	assert.Equal(t, "Spending summary", summary.Title)
	assert.Equal(t, model.SentimentPositive, summary.Sentiment)
	assert.Equal(t, map[string]float64{
		"total_spent":   150,
		"total_income":  1000,
		"net_flow":      850,
		"daily_average": 15,
	}, summary.KeyNumbers)
	assert.Contains(t, summary.Description, "Jan 1, 2024")

	top := out.Insights[1]
	assert.Equal(t, "Groceries & Food $100.00 (67%), Dining & Restaurants $50.00 (33%).", top.Description)
	assert.Len(t, top.Recommendations, 1)

	assert.Equal(t, map[string]float64{
		string(model.CategoryGroceries): 100,
		string(model.CategoryDining):    50,
	}, out.Metadata["by_category"])
}

func TestSpendingStage_NegativeNetFlow(t *testing.T) {
	batch := &Batch{Categorized: []model.CategorizedTransaction{
		categorized(1, model.CategoryShopping, -300, "TARGET"),
		categorized(2, model.CategoryIncome, 100, "PAYROLL"),
	}}

	out, err := (&SpendingStage{}).Run(context.Background(), batch)
	require.NoError(t, err)
	assert.Equal(t, model.SentimentNegative, out.Insights[0].Sentiment)
	assert.Contains(t, out.Insights[0].Description, "a net of -$200.00")
}

func TestSpendingStage_Empty(t *testing.T) {
	out, err := (&SpendingStage{}).Run(context.Background(), &Batch{})
	require.NoError(t, err)
	require.Len(t, out.Insights, 1)
	assert.Equal(t, "No spending recorded", out.Insights[0].Title)
}

func TestSavingsStage_Run(t *testing.T) {
	batch := &Batch{
		Categorized: []model.CategorizedTransaction{
			categorized(1, model.CategoryDining, -300, "CHIPOTLE"),
			categorized(2, model.CategoryGroceries, -700, "KROGER"),
			categorized(3, model.CategoryIncome, 1000, "PAYROLL"),
		},
		Patterns: []model.RecurringPattern{
			{Merchant: "NETFLIX", Frequency: model.FrequencyMonthly, MeanAmount: 15.99, IsRecurring: true},
			{Merchant: "SPOTIFY", Frequency: model.FrequencyMonthly, MeanAmount: 9.99, IsRecurring: true},
			{Merchant: "GYM", MeanAmount: 40},
		},
	}

	out, err := (&SavingsStage{}).Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out.Insights, 3)

	subs := findRecord(t, out.Insights, "Review recurring charges")
	assert.InDelta(t, 25.98, subs.KeyNumbers["monthly_recurring"], 1e-9)
	assert.Contains(t, subs.Recommendations[0], "SPOTIFY")

	dining := findRecord(t, out.Insights, "Trim Dining & Restaurants")
	assert.InDelta(t, 60, dining.KeyNumbers["potential_savings"], 1e-9)

	rate := findRecord(t, out.Insights, "Low savings rate")
	assert.Equal(t, model.SentimentNegative, rate.Sentiment)

	assert.InDelta(t, 69.99, out.Metadata["potential_savings"], 1e-9)
}

func TestSavingsStage_NothingToSuggest(t *testing.T) {
	batch := &Batch{Categorized: []model.CategorizedTransaction{
		categorized(1, model.CategoryGroceries, -200, "KROGER"),
		categorized(2, model.CategoryIncome, 1000, "PAYROLL"),
	}}

	out, err := (&SavingsStage{}).Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out.Insights, 1)
	assert.Equal(t, "No obvious savings opportunities", out.Insights[0].Title)
	assert.Equal(t, model.SentimentPositive, out.Insights[0].Sentiment)
}

func TestRiskStage_Run(t *testing.T) {
	stage, err := NewRiskStage()
	require.NoError(t, err)

	batch := &Batch{
		Categorized: []model.CategorizedTransaction{
			categorized(1, model.CategoryGroceries, -20, "KROGER"),
			categorized(2, model.CategoryGroceries, -22, "KROGER"),
			categorized(3, model.CategoryGroceries, -19, "KROGER"),
			categorized(4, model.CategoryGroceries, -21, "KROGER"),
			categorized(5, model.CategoryShopping, -900, "BEST BUY"),
			categorized(6, model.CategoryOther, -35, "OVERDRAFT FEE"),
			categorized(7, model.CategoryIncome, 100, "PAYROLL"),
		},
		Anomalies: []model.AnomalyFlag{{TransactionID: "x", Merchant: "KROGER", Amount: -500}},
	}

	out, err := stage.Run(context.Background(), batch)
	require.NoError(t, err)
	require.Len(t, out.Insights, 4)

	assert.Equal(t, "Unusual charges", out.Insights[0].Title)
	assert.InDelta(t, 500, out.Insights[0].KeyNumbers["anomaly_amount"], 1e-9)

	shortfall := findRecord(t, out.Insights, "Spending exceeded income")
	assert.InDelta(t, 917, shortfall.KeyNumbers["shortfall"], 1e-9)

	large := findRecord(t, out.Insights, "Large expenses")
	assert.InDelta(t, 900, large.KeyNumbers["largest"], 1e-9)
	assert.InDelta(t, 500, large.KeyNumbers["large_cutoff"], 1e-9)
	assert.Contains(t, large.Description, "BEST BUY")

	fees := findRecord(t, out.Insights, "Bank fees")
	assert.InDelta(t, 35, fees.KeyNumbers["fee_total"], 1e-9)
}

func TestRiskStage_NoRisks(t *testing.T) {
	stage, err := NewRiskStage()
	require.NoError(t, err)

	out, err := stage.Run(context.Background(), &Batch{Categorized: []model.CategorizedTransaction{
		categorized(1, model.CategoryGroceries, -20, "KROGER"),
		categorized(2, model.CategoryIncome, 100, "PAYROLL"),
	}})
	require.NoError(t, err)
	require.Len(t, out.Insights, 1)
	assert.Equal(t, "No risks detected", out.Insights[0].Title)
}
