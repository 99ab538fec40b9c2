// Package insight turns detector output into InsightRecords.
package insight

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/Veraticus/spice-insight/internal/model"
)

// StageCategory is the stage name stamped on synthesized records.
const StageCategory = "category"

// Input is everything the synthesizer reads.
type Input struct {
	Categorized []model.CategorizedTransaction
	Patterns    []model.RecurringPattern
	Anomalies   []model.AnomalyFlag
	Quality     model.DataQualityScore
}

// Synthesize builds the category stage's records: data quality first, then
// recurring payments, anomalies and the top spending category when present.
func Synthesize(in Input) []model.InsightRecord {
	records := []model.InsightRecord{qualityRecord(in.Quality)}

	if r, ok := recurringRecord(in.Patterns); ok {
		records = append(records, r)
	}
	if r, ok := anomalyRecord(in.Anomalies); ok {
		records = append(records, r)
	}
	if r, ok := topCategoryRecord(in.Categorized); ok {
		records = append(records, r)
	}
	return records
}

func qualityRecord(q model.DataQualityScore) model.InsightRecord {
	record := model.InsightRecord{
		Stage: StageCategory,
		Title: fmt.Sprintf("Data quality is %s", q.Grade()),
		KeyNumbers: map[string]float64{
			"score":               round2(q.Score),
			"completeness":        round2(q.Completeness),
			"categorization_rate": round2(q.CategorizationRate),
			"transactions":        float64(q.Total),
		},
	}

	if q.Total == 0 {
		record.Description = "No transactions were available to analyze."
		record.Sentiment = model.SentimentNeutral
		record.Recommendations = []string{"Import a statement with at least a few weeks of activity."}
		return record
	}

	record.Description = fmt.Sprintf("%.0f%% of %d transactions were categorized with high confidence and %.0f%% landed in a specific category.",
		q.Completeness*100, q.Total, q.CategorizationRate*100)
	switch {
	case q.Score >= 0.7:
		record.Sentiment = model.SentimentPositive
	case q.Score >= 0.5:
		record.Sentiment = model.SentimentNeutral
	default:
		record.Sentiment = model.SentimentNegative
		record.Recommendations = []string{"Use clearer transaction descriptions or enable a classifier provider to improve categorization."}
	}
	return record
}

func recurringRecord(patterns []model.RecurringPattern) (model.InsightRecord, bool) {
	var recurring []model.RecurringPattern
	for _, p := range patterns {
		if p.IsRecurring {
			recurring = append(recurring, p)
		}
	}
	if len(recurring) == 0 {
		return model.InsightRecord{}, false
	}

	monthly := 0.0
	names := make([]string, 0, len(recurring))
	for _, p := range recurring {
		monthly += MonthlyEquivalent(p)
		names = append(names, p.Merchant)
	}

	return model.InsightRecord{
		Stage:       StageCategory,
		Title:       fmt.Sprintf("%d recurring payment%s", len(recurring), plural(len(recurring))),
		Description: fmt.Sprintf("Regular charges from %s add up to about $%.2f a month.", joinNames(names, 3), monthly),
		Sentiment:   model.SentimentNeutral,
		KeyNumbers: map[string]float64{
			"recurring_count":   float64(len(recurring)),
			"monthly_recurring": round2(monthly),
		},
		Recommendations: []string{"Review recurring charges and cancel any you no longer use."},
	}, true
}

func anomalyRecord(flags []model.AnomalyFlag) (model.InsightRecord, bool) {
	if len(flags) == 0 {
		return model.InsightRecord{}, false
	}

	largest := flags[0]
	for _, f := range flags[1:] {
		if f.ZScore > largest.ZScore {
			largest = f
		}
	}

	return model.InsightRecord{
		Stage:       StageCategory,
		Title:       fmt.Sprintf("%d unusual transaction%s", len(flags), plural(len(flags))),
		Description: fmt.Sprintf("The most unusual was at %s: %s.", largest.Merchant, largest.Reason),
		Sentiment:   model.SentimentNegative,
		KeyNumbers: map[string]float64{
			"anomaly_count": float64(len(flags)),
			"max_z_score":   round2(largest.ZScore),
		},
		Recommendations: []string{"Confirm the flagged transactions are ones you recognize."},
	}, true
}

func topCategoryRecord(txns []model.CategorizedTransaction) (model.InsightRecord, bool) {
	totals := SpendByCategory(txns)
	if len(totals) == 0 {
		return model.InsightRecord{}, false
	}

	ranked := RankCategories(totals)
	top := ranked[0]
	spent := 0.0
	for _, v := range totals {
		spent += v
	}

	return model.InsightRecord{
		Stage:       StageCategory,
		Title:       fmt.Sprintf("Most spending went to %s", top),
		Description: fmt.Sprintf("$%.2f of $%.2f in outflows (%.0f%%) was categorized as %s.", totals[top], spent, 100*totals[top]/spent, top),
		Sentiment:   model.SentimentNeutral,
		KeyNumbers: map[string]float64{
			"top_category_spend": round2(totals[top]),
			"total_spend":        round2(spent),
		},
	}, true
}

// SpendByCategory sums outflow magnitudes per category.
func SpendByCategory(txns []model.CategorizedTransaction) map[model.Category]float64 {
	totals := make(map[model.Category]float64)
	for _, txn := range txns {
		if txn.Amount < 0 {
			totals[txn.Category] += -txn.Amount
		}
	}
	return totals
}

// RankCategories orders categories by descending total, breaking ties by
// taxonomy order so the result is deterministic.
func RankCategories(totals map[model.Category]float64) []model.Category {
	position := make(map[model.Category]int)
	for i, c := range model.Taxonomy() {
		position[c] = i
	}

	ranked := make([]model.Category, 0, len(totals))
	for c := range totals {
		ranked = append(ranked, c)
	}
	sort.Slice(ranked, func(i, j int) bool {
		if totals[ranked[i]] != totals[ranked[j]] {
			return totals[ranked[i]] > totals[ranked[j]]
		}
		return position[ranked[i]] < position[ranked[j]]
	})
	return ranked
}

// MonthlyEquivalent converts a recurring pattern's mean amount into a monthly
// cost. Patterns without a frequency count once a month.
func MonthlyEquivalent(p model.RecurringPattern) float64 {
	switch p.Frequency {
	case model.FrequencyDaily:
		return p.MeanAmount * 30
	case model.FrequencyWeekly:
		return p.MeanAmount * 52 / 12
	case model.FrequencyQuarterly:
		return p.MeanAmount / 3
	case model.FrequencyYearly:
		return p.MeanAmount / 12
	default:
		return p.MeanAmount
	}
}

func joinNames(names []string, limit int) string {
	if len(names) <= limit {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:limit], ", "), len(names)-limit)
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
