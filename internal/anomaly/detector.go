// Package anomaly flags transactions whose amount is an outlier for their merchant.
package anomaly

import (
	"fmt"
	"math"

	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/stats"
)

// DefaultZScore is the z-score a transaction must exceed to be flagged.
const DefaultZScore = 2.0

// maxConfidence caps the reported confidence of a flag.
const maxConfidence = 0.95

// Detector flags amount outliers with a population z-score.
type Detector struct {
	threshold float64
}

// NewDetector creates a Detector. A non-positive threshold takes DefaultZScore.
func NewDetector(threshold float64) *Detector {
	if threshold <= 0 {
		threshold = DefaultZScore
	}
	return &Detector{threshold: threshold}
}

// Detect returns the flags for one merchant's transactions, in input order.
// Amounts are compared by magnitude. Each amount is measured against the mean
// of the merchant's other transactions, in units of the group's population
// standard deviation, which is the group z-score scaled by n/(n-1). A group
// with no spread yields no flags.
func (d *Detector) Detect(merchant string, txns []model.CategorizedTransaction) []model.AnomalyFlag {
	if len(txns) < 2 {
		return nil
	}

	signed := make([]float64, len(txns))
	for i, txn := range txns {
		signed[i] = txn.Amount
	}
	amounts := stats.Abs(signed)

	sd := stats.StdDev(amounts)
	if sd == 0 {
		return nil
	}
	total := stats.Mean(amounts) * float64(len(amounts))

	var flags []model.AnomalyFlag
	for i, txn := range txns {
		mean := (total - amounts[i]) / float64(len(amounts)-1)
		z := math.Abs(amounts[i]-mean) / sd
		if z <= d.threshold {
			continue
		}
		flags = append(flags, model.AnomalyFlag{
			TransactionID: txn.ID,
			Merchant:      merchant,
			Amount:        txn.Amount,
			ZScore:        z,
			Confidence:    math.Min(maxConfidence, z/3),
			Reason:        fmt.Sprintf("Amount $%.2f is %.1fσ from this merchant's mean of $%.2f", amounts[i], z, mean),
		})
	}
	return flags
}

// DetectAll runs Detect over every merchant group, in order.
func (d *Detector) DetectAll(groups map[string][]model.CategorizedTransaction, order []string) []model.AnomalyFlag {
	var flags []model.AnomalyFlag
	for _, merchant := range order {
		flags = append(flags, d.Detect(merchant, groups[merchant])...)
	}
	return flags
}
