// Package pattern detects recurring payments within one merchant's transactions.
package pattern

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/stats"
)

// Descriptions reported on a RecurringPattern.
const (
	DescInsufficientData = "Insufficient data"
	DescIrregularAmounts = "Irregular amounts"
	DescIrregularTiming  = "Irregular timing"
)

// Default coefficient-of-variation limits.
const (
	DefaultAmountVariation   = 0.1
	DefaultIntervalVariation = 0.2
)

const hoursPerDay = 24

// band is an inclusive range of mean intervals, in days, for one frequency.
type band struct {
	frequency model.Frequency
	min, max  float64
}

var frequencyBands = []band{
	{model.FrequencyDaily, 1, 2},
	{model.FrequencyWeekly, 6, 8},
	{model.FrequencyMonthly, 28, 31},
	{model.FrequencyQuarterly, 89, 92},
	{model.FrequencyYearly, 364, 366},
}

// Config configures a Detector.
type Config struct {
	AmountVariation   float64
	IntervalVariation float64
}

// Detector decides whether a merchant's payments recur.
type Detector struct {
	amountVariation   float64
	intervalVariation float64
}

// NewDetector creates a Detector. Non-positive limits take the defaults.
func NewDetector(cfg Config) *Detector {
	if cfg.AmountVariation <= 0 {
		cfg.AmountVariation = DefaultAmountVariation
	}
	if cfg.IntervalVariation <= 0 {
		cfg.IntervalVariation = DefaultIntervalVariation
	}
	return &Detector{
		amountVariation:   cfg.AmountVariation,
		intervalVariation: cfg.IntervalVariation,
	}
}

// AmountCheck is the outcome of the amount-consistency sub-check.
type AmountCheck struct {
	Variation  float64
	Confidence float64
	Consistent bool
	Sufficient bool
}

// DateCheck is the outcome of the date-regularity sub-check.
type DateCheck struct {
	Frequency    model.Frequency
	MeanInterval float64
	Variation    float64
	Confidence   float64
	Regular      bool
	Sufficient   bool
}

// AnalyzeAmounts checks that amounts stay within the variation limit. It needs
// at least two amounts.
func (d *Detector) AnalyzeAmounts(amounts []float64) AmountCheck {
	if len(amounts) < 2 {
		return AmountCheck{}
	}
	cv := stats.CoefficientOfVariation(amounts)
	return AmountCheck{
		Variation:  cv,
		Confidence: confidenceFromVariation(cv),
		Consistent: cv < d.amountVariation,
		Sufficient: true,
	}
}

// AnalyzeDates checks that the gaps between dates are regular. It needs at least
// three dates. Dates need not be sorted.
func (d *Detector) AnalyzeDates(dates []time.Time) DateCheck {
	if len(dates) < 3 {
		return DateCheck{}
	}

	sorted := make([]time.Time, len(dates))
	copy(sorted, dates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

	intervals := make([]float64, 0, len(sorted)-1)
	for i := 1; i < len(sorted); i++ {
		intervals = append(intervals, sorted[i].Sub(sorted[i-1]).Hours()/hoursPerDay)
	}

	cv := stats.CoefficientOfVariation(intervals)
	check := DateCheck{
		MeanInterval: stats.Mean(intervals),
		Variation:    cv,
		Confidence:   confidenceFromVariation(cv),
		Regular:      cv < d.intervalVariation,
		Sufficient:   true,
	}
	// Same-day duplicates have no cadence.
	if check.MeanInterval == 0 {
		check.Regular = false
		check.Confidence = 0
	}
	if check.Regular {
		check.Frequency = FrequencyFor(check.MeanInterval)
	}
	return check
}

// FrequencyFor labels a mean interval in days, or returns FrequencyNone when it
// fits no band.
func FrequencyFor(days float64) model.Frequency {
	for _, b := range frequencyBands {
		if days >= b.min && days <= b.max {
			return b.frequency
		}
	}
	return model.FrequencyNone
}

// Detect evaluates one canonical merchant's transactions.
func (d *Detector) Detect(merchant string, txns []model.CategorizedTransaction) model.RecurringPattern {
	amounts := make([]float64, len(txns))
	dates := make([]time.Time, len(txns))
	for i, txn := range txns {
		amounts[i] = txn.Amount
		dates[i] = txn.Date
	}

	pattern := model.RecurringPattern{
		Merchant:         merchant,
		TransactionCount: len(txns),
		MeanAmount:       math.Abs(stats.Mean(amounts)),
		Description:      DescInsufficientData,
	}

	amountCheck := d.AnalyzeAmounts(amounts)
	dateCheck := d.AnalyzeDates(dates)
	if !amountCheck.Sufficient || !dateCheck.Sufficient {
		return pattern
	}

	pattern.Confidence = model.ClampConfidence((amountCheck.Confidence + dateCheck.Confidence) / 2)
	pattern.Frequency = dateCheck.Frequency

	switch {
	case !amountCheck.Consistent:
		pattern.Description = DescIrregularAmounts
	case !dateCheck.Regular:
		pattern.Description = DescIrregularTiming
	default:
		pattern.IsRecurring = true
		pattern.Description = recurringDescription(dateCheck.Frequency)
	}
	return pattern
}

// DetectAll evaluates every merchant group, in order.
func (d *Detector) DetectAll(groups map[string][]model.CategorizedTransaction, order []string) []model.RecurringPattern {
	patterns := make([]model.RecurringPattern, 0, len(order))
	for _, merchant := range order {
		patterns = append(patterns, d.Detect(merchant, groups[merchant]))
	}
	return patterns
}

// Recurring filters patterns down to the recurring ones.
func Recurring(patterns []model.RecurringPattern) []model.RecurringPattern {
	var out []model.RecurringPattern
	for _, p := range patterns {
		if p.IsRecurring {
			out = append(out, p)
		}
	}
	return out
}

func recurringDescription(f model.Frequency) string {
	if f == model.FrequencyNone {
		return "Recurring payment"
	}
	return fmt.Sprintf("Recurring %s payment", f)
}

// confidenceFromVariation maps a coefficient of variation to 1-cv floored at 0.
func confidenceFromVariation(cv float64) float64 {
	if math.IsInf(cv, 0) || math.IsNaN(cv) {
		return 0
	}
	return model.ClampConfidence(1 - cv)
}
