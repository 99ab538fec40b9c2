package analysis

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/Veraticus/spice-insight/internal/insight"
	"github.com/Veraticus/spice-insight/internal/model"
)

// flow summarizes money in and out of a batch.
type flow struct {
	first    time.Time
	last     time.Time
	income   float64
	spent    float64
	outflows int
}

func (f flow) net() float64 { return f.income - f.spent }

// days is the inclusive span of the batch in days.
func (f flow) days() float64 {
	if f.first.IsZero() {
		return 0
	}
	return math.Floor(f.last.Sub(f.first).Hours()/24) + 1
}

func summarizeFlow(txns []model.CategorizedTransaction) flow {
	var f flow
	for _, txn := range txns {
		if f.first.IsZero() || txn.Date.Before(f.first) {
			f.first = txn.Date
		}
		if txn.Date.After(f.last) {
			f.last = txn.Date
		}
		switch {
		case txn.Amount < 0:
			f.spent += -txn.Amount
			f.outflows++
		case txn.Category == model.CategoryIncome:
			// Inbound transfers are the user's own money moving and do not count as income.
			f.income += txn.Amount
		}
	}
	return f
}

// SpendingStage summarizes where money went.
type SpendingStage struct {
	// TopN is how many categories to list. Zero means 3.
	TopN int
}

// Name implements Stage.
func (s *SpendingStage) Name() string { return StageNameSpending }

// Run implements Stage.
func (s *SpendingStage) Run(_ context.Context, batch *Batch) (StageOutput, error) {
	f := summarizeFlow(batch.Categorized)
	if f.outflows == 0 && f.income == 0 {
		return StageOutput{
			Insights: []model.InsightRecord{{
				Stage:       StageNameSpending,
				Title:       "No spending recorded",
				Description: "There were no categorized inflows or outflows to summarize.",
				Sentiment:   model.SentimentNeutral,
			}},
			Metadata: map[string]any{"transactions": len(batch.Categorized)},
		}, nil
	}

	dailyAverage := 0.0
	if d := f.days(); d > 0 {
		dailyAverage = f.spent / d
	}

	sentiment := model.SentimentPositive
	if f.net() < 0 {
		sentiment = model.SentimentNegative
	}

	summary := model.InsightRecord{
		Stage: StageNameSpending,
		Title: "Spending summary",
		Description: fmt.Sprintf("You spent $%.2f and received $%.2f between %s and %s, a net of %s.",
			f.spent, f.income, f.first.Format("Jan 2, 2006"), f.last.Format("Jan 2, 2006"), signedDollars(f.net())),
		Sentiment: sentiment,
		KeyNumbers: map[string]float64{
			"total_spent":   round2(f.spent),
			"total_income":  round2(f.income),
			"net_flow":      round2(f.net()),
			"daily_average": round2(dailyAverage),
		},
	}
	records := []model.InsightRecord{summary}

	totals := insight.SpendByCategory(batch.Categorized)
	byCategory := make(map[string]float64, len(totals))
	for c, v := range totals {
		byCategory[string(c)] = round2(v)
	}

	if len(totals) > 0 {
		records = append(records, s.topCategories(totals, f.spent))
	}

	return StageOutput{
		Insights: records,
		Metadata: map[string]any{
			"by_category":   byCategory,
			"days":          f.days(),
			"outflow_count": f.outflows,
		},
	}, nil
}

func (s *SpendingStage) topCategories(totals map[model.Category]float64, spent float64) model.InsightRecord {
	n := s.TopN
	if n <= 0 {
		n = 3
	}
	ranked := insight.RankCategories(totals)
	if len(ranked) > n {
		ranked = ranked[:n]
	}

	parts := make([]string, 0, len(ranked))
	keyNumbers := make(map[string]float64, len(ranked))
	for _, c := range ranked {
		share := totals[c] / spent
		parts = append(parts, fmt.Sprintf("%s $%.2f (%.0f%%)", c, totals[c], share*100))
		keyNumbers[string(c)] = round2(totals[c])
	}

	record := model.InsightRecord{
		Stage:       StageNameSpending,
		Title:       "Top spending categories",
		Description: strings.Join(parts, ", ") + ".",
		Sentiment:   model.SentimentNeutral,
		KeyNumbers:  keyNumbers,
	}
	if totals[ranked[0]]/spent > 0.5 {
		record.Recommendations = []string{fmt.Sprintf("%s makes up more than half of your spending; set a budget for it.", ranked[0])}
	}
	return record
}

func signedDollars(v float64) string {
	if v < 0 {
		return fmt.Sprintf("-$%.2f", -v)
	}
	return fmt.Sprintf("$%.2f", v)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
