package analysis

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"sort"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// largeExpenseFloor is the smallest outflow ever reported as large.
const largeExpenseFloor = 500.0

var feeVocabulary = []string{
	"overdraft", "nsf", "insufficient funds", "late fee", "penalty", "service charge",
	"maintenance fee", "atm fee", "returned item",
}

// RiskStage flags anomalies, overspending, large expenses and bank fees.
type RiskStage struct {
	fees *regexp.Regexp
}

// NewRiskStage creates a RiskStage.
func NewRiskStage() (*RiskStage, error) {
	fees, err := common.CompileWordPattern(feeVocabulary)
	if err != nil {
		return nil, fmt.Errorf("failed to compile fee vocabulary: %w", err)
	}
	return &RiskStage{fees: fees}, nil
}

// Name implements Stage.
func (s *RiskStage) Name() string { return StageNameRisk }

// Run implements Stage.
func (s *RiskStage) Run(_ context.Context, batch *Batch) (StageOutput, error) {
	var records []model.InsightRecord

	if len(batch.Anomalies) > 0 {
		total := 0.0
		for _, a := range batch.Anomalies {
			total += math.Abs(a.Amount)
		}
		records = append(records, model.InsightRecord{
			Stage:       StageNameRisk,
			Title:       "Unusual charges",
			Description: fmt.Sprintf("%d transactions totaling $%.2f were far outside their merchant's usual range.", len(batch.Anomalies), total),
			Sentiment:   model.SentimentNegative,
			KeyNumbers: map[string]float64{
				"anomaly_count":  float64(len(batch.Anomalies)),
				"anomaly_amount": round2(total),
			},
			Recommendations: []string{"Check these charges against your receipts and dispute any you don't recognize."},
		})
	}

	f := summarizeFlow(batch.Categorized)
	if f.net() < 0 && f.spent > 0 {
		records = append(records, model.InsightRecord{
			Stage:       StageNameRisk,
			Title:       "Spending exceeded income",
			Description: fmt.Sprintf("Outflows were $%.2f more than income this period.", -f.net()),
			Sentiment:   model.SentimentNegative,
			KeyNumbers:  map[string]float64{"shortfall": round2(-f.net())},
			Recommendations: []string{
				"Identify one or two categories to cut until income covers spending again.",
			},
		})
	}

	if r, ok := largeExpenses(batch.Categorized); ok {
		records = append(records, r)
	}
	if r, ok := s.bankFees(batch.Categorized); ok {
		records = append(records, r)
	}

	if len(records) == 0 {
		records = append(records, model.InsightRecord{
			Stage:       StageNameRisk,
			Title:       "No risks detected",
			Description: "No unusual charges, fees or overspending showed up in this period.",
			Sentiment:   model.SentimentPositive,
		})
	}

	return StageOutput{
		Insights: records,
		Metadata: map[string]any{
			"anomalies": len(batch.Anomalies),
			"net_flow":  round2(f.net()),
			"findings":  len(records),
		},
	}, nil
}

// largeExpenses reports outflows above three times the median outflow, and never
// below largeExpenseFloor.
func largeExpenses(txns []model.CategorizedTransaction) (model.InsightRecord, bool) {
	var magnitudes []float64
	for _, txn := range txns {
		if txn.Amount < 0 {
			magnitudes = append(magnitudes, -txn.Amount)
		}
	}
	if len(magnitudes) == 0 {
		return model.InsightRecord{}, false
	}

	sorted := append([]float64(nil), magnitudes...)
	sort.Float64s(sorted)
	limit := math.Max(largeExpenseFloor, 3*sorted[len(sorted)/2])

	var large []model.CategorizedTransaction
	for _, txn := range txns {
		if txn.Amount < 0 && -txn.Amount > limit {
			large = append(large, txn)
		}
	}
	if len(large) == 0 {
		return model.InsightRecord{}, false
	}

	biggest := large[0]
	total := 0.0
	for _, txn := range large {
		total += -txn.Amount
		if txn.Amount < biggest.Amount {
			biggest = txn
		}
	}

	return model.InsightRecord{
		Stage: StageNameRisk,
		Title: "Large expenses",
		Description: fmt.Sprintf("%d expenses over $%.2f totaled $%.2f; the largest was $%.2f at %s.",
			len(large), limit, total, -biggest.Amount, biggest.MerchantKey),
		Sentiment: model.SentimentNeutral,
		KeyNumbers: map[string]float64{
			"large_count":  float64(len(large)),
			"large_total":  round2(total),
			"largest":      round2(-biggest.Amount),
			"large_cutoff": round2(limit),
		},
	}, true
}

func (s *RiskStage) bankFees(txns []model.CategorizedTransaction) (model.InsightRecord, bool) {
	count := 0
	total := 0.0
	for _, txn := range txns {
		if txn.Amount < 0 && s.fees.MatchString(txn.Description) {
			count++
			total += -txn.Amount
		}
	}
	if count == 0 {
		return model.InsightRecord{}, false
	}

	return model.InsightRecord{
		Stage:       StageNameRisk,
		Title:       "Bank fees",
		Description: fmt.Sprintf("You paid $%.2f across %d fee or penalty charges.", total, count),
		Sentiment:   model.SentimentNegative,
		KeyNumbers: map[string]float64{
			"fee_count": float64(count),
			"fee_total": round2(total),
		},
		Recommendations: []string{"Set up low-balance alerts or overdraft protection to avoid repeat fees."},
	}, true
}
