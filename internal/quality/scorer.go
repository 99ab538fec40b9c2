// Package quality scores how trustworthy a batch's categorization is.
package quality

import "github.com/Veraticus/spice-insight/internal/model"

// DefaultConfidentThreshold is the confidence a categorization must exceed to
// count as complete.
const DefaultConfidentThreshold = 0.8

// Scorer computes DataQualityScores.
type Scorer struct {
	threshold float64
}

// NewScorer creates a Scorer. A threshold outside (0,1) takes the default.
func NewScorer(threshold float64) *Scorer {
	if threshold <= 0 || threshold >= 1 {
		threshold = DefaultConfidentThreshold
	}
	return &Scorer{threshold: threshold}
}

// Score averages the share of confident categorizations and the share of
// categorizations other than Other. An empty batch scores 0.
func (s *Scorer) Score(txns []model.CategorizedTransaction) model.DataQualityScore {
	total := len(txns)
	if total == 0 {
		return model.DataQualityScore{}
	}

	confident, categorized := 0, 0
	for _, txn := range txns {
		if txn.Confidence > s.threshold {
			confident++
		}
		if txn.Category != model.CategoryOther {
			categorized++
		}
	}

	completeness := float64(confident) / float64(total)
	rate := float64(categorized) / float64(total)
	return model.DataQualityScore{
		Completeness:       completeness,
		CategorizationRate: rate,
		Score:              (completeness + rate) / 2,
		Total:              total,
	}
}

// Score is a convenience wrapper using the default threshold.
func Score(txns []model.CategorizedTransaction) model.DataQualityScore {
	return NewScorer(DefaultConfidentThreshold).Score(txns)
}
