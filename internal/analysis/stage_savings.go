package analysis

import (
	"context"
	"fmt"

	"github.com/Veraticus/spice-insight/internal/insight"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/pattern"
)

// Discretionary spending shares above which a cut is suggested, and the
// fraction of the category assumed recoverable.
const (
	diningShareLimit   = 0.15
	diningCut          = 0.2
	shoppingShareLimit = 0.2
	shoppingCut        = 0.15
	minSavingsRate     = 0.1
)

// SavingsStage looks for money the user could keep.
type SavingsStage struct{}

// Name implements Stage.
func (s *SavingsStage) Name() string { return StageNameSavings }

// Run implements Stage.
func (s *SavingsStage) Run(_ context.Context, batch *Batch) (StageOutput, error) {
	f := summarizeFlow(batch.Categorized)
	totals := insight.SpendByCategory(batch.Categorized)

	var records []model.InsightRecord
	potential := 0.0

	if r, save, ok := subscriptionOpportunity(batch.Patterns); ok {
		records = append(records, r)
		potential += save
	}
	if r, save, ok := categoryOpportunity(totals, f.spent, model.CategoryDining, diningShareLimit, diningCut); ok {
		records = append(records, r)
		potential += save
	}
	if r, save, ok := categoryOpportunity(totals, f.spent, model.CategoryShopping, shoppingShareLimit, shoppingCut); ok {
		records = append(records, r)
		potential += save
	}

	rate := 0.0
	if f.income > 0 {
		rate = f.net() / f.income
		if rate < minSavingsRate {
			records = append(records, model.InsightRecord{
				Stage:       StageNameSavings,
				Title:       "Low savings rate",
				Description: fmt.Sprintf("You kept %.0f%% of your income this period.", rate*100),
				Sentiment:   model.SentimentNegative,
				KeyNumbers:  map[string]float64{"savings_rate": round2(rate)},
				Recommendations: []string{
					fmt.Sprintf("Aim to set aside at least %.0f%% of income, starting with an automatic transfer on payday.", minSavingsRate*100),
				},
			})
		}
	}

	if len(records) == 0 {
		records = append(records, model.InsightRecord{
			Stage:       StageNameSavings,
			Title:       "No obvious savings opportunities",
			Description: "Your discretionary spending and recurring charges look under control.",
			Sentiment:   model.SentimentPositive,
		})
	}

	return StageOutput{
		Insights: records,
		Metadata: map[string]any{
			"potential_savings": round2(potential),
			"savings_rate":      round2(rate),
			"opportunities":     len(records),
		},
	}, nil
}

func subscriptionOpportunity(patterns []model.RecurringPattern) (model.InsightRecord, float64, bool) {
	recurring := pattern.Recurring(patterns)
	if len(recurring) == 0 {
		return model.InsightRecord{}, 0, false
	}

	monthly := 0.0
	smallest := recurring[0]
	for _, p := range recurring {
		monthly += insight.MonthlyEquivalent(p)
		if insight.MonthlyEquivalent(p) < insight.MonthlyEquivalent(smallest) {
			smallest = p
		}
	}
	save := insight.MonthlyEquivalent(smallest)

	return model.InsightRecord{
		Stage:       StageNameSavings,
		Title:       "Review recurring charges",
		Description: fmt.Sprintf("%d recurring charges cost about $%.2f a month.", len(recurring), monthly),
		Sentiment:   model.SentimentNeutral,
		KeyNumbers: map[string]float64{
			"monthly_recurring": round2(monthly),
			"smallest_monthly":  round2(save),
		},
		Recommendations: []string{
			fmt.Sprintf("Dropping even %s would save about $%.2f a month.", smallest.Merchant, save),
		},
	}, save, true
}

func categoryOpportunity(totals map[model.Category]float64, spent float64, c model.Category, limit, cut float64) (model.InsightRecord, float64, bool) {
	if spent <= 0 {
		return model.InsightRecord{}, 0, false
	}
	share := totals[c] / spent
	if share <= limit {
		return model.InsightRecord{}, 0, false
	}
	save := totals[c] * cut

	return model.InsightRecord{
		Stage:       StageNameSavings,
		Title:       fmt.Sprintf("Trim %s", c),
		Description: fmt.Sprintf("%s took %.0f%% of your spending ($%.2f).", c, share*100, totals[c]),
		Sentiment:   model.SentimentNeutral,
		KeyNumbers: map[string]float64{
			"category_spend":    round2(totals[c]),
			"share":             round2(share),
			"potential_savings": round2(save),
		},
		Recommendations: []string{
			fmt.Sprintf("Cutting %s by %.0f%% would free up about $%.2f.", c, cut*100, save),
		},
	}, save, true
}
