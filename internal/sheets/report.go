package sheets

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/model"
)

// BuildReport flattens a run result into spreadsheet rows. Amounts are
// carried as decimals so category totals do not pick up float drift.
func BuildReport(result *analysis.Result, now time.Time) Report {
	report := Report{
		SessionID:    result.SessionID,
		Phase:        string(result.Phase),
		Narrative:    result.Narrative,
		QualityScore: result.Quality.Score,
		QualityGrade: result.Quality.Grade(),
		GeneratedAt:  now,
	}

	totals := make(map[string]decimal.Decimal)
	counts := make(map[string]int)

	for i, txn := range result.Categorized {
		amount := decimal.NewFromFloat(txn.Amount).Round(2)
		if i == 0 || txn.Date.Before(report.DateRange.Start) {
			report.DateRange.Start = txn.Date
		}
		if txn.Date.After(report.DateRange.End) {
			report.DateRange.End = txn.Date
		}

		switch {
		case txn.Category == model.CategoryIncome && amount.IsPositive():
			report.TotalIncome = report.TotalIncome.Add(amount)
		case amount.IsNegative():
			report.TotalSpent = report.TotalSpent.Add(amount.Neg())
		}

		category := string(txn.Category)
		totals[category] = totals[category].Add(amount)
		counts[category]++

		report.Transactions = append(report.Transactions, TransactionRow{
			Date:       txn.Date,
			Amount:     amount,
			ID:         txn.ID,
			Merchant:   txn.MerchantKey,
			Category:   category,
			Source:     string(txn.Source),
			Confidence: txn.Confidence,
		})
	}

	for category, total := range totals {
		report.Categories = append(report.Categories, CategorySummaryRow{
			CategoryName:     category,
			TotalAmount:      total,
			TransactionCount: counts[category],
		})
	}
	// Biggest outflow first.
	sort.Slice(report.Categories, func(i, j int) bool {
		ci, cj := report.Categories[i], report.Categories[j]
		if !ci.TotalAmount.Equal(cj.TotalAmount) {
			return ci.TotalAmount.LessThan(cj.TotalAmount)
		}
		return ci.CategoryName < cj.CategoryName
	})

	// Newest first.
	sort.SliceStable(report.Transactions, func(i, j int) bool {
		return report.Transactions[i].Date.After(report.Transactions[j].Date)
	})

	for _, rec := range result.Insights() {
		report.Insights = append(report.Insights, InsightRow{
			Stage:           rec.Stage,
			Title:           rec.Title,
			Description:     rec.Description,
			Sentiment:       string(rec.Sentiment),
			Recommendations: strings.Join(rec.Recommendations, "; "),
		})
	}

	for _, p := range result.Patterns {
		if !p.IsRecurring {
			continue
		}
		report.Recurring = append(report.Recurring, RecurringRow{
			Merchant:         p.Merchant,
			Frequency:        string(p.Frequency),
			Description:      p.Description,
			MeanAmount:       decimal.NewFromFloat(p.MeanAmount).Round(2),
			Confidence:       p.Confidence,
			TransactionCount: p.TransactionCount,
		})
	}

	for _, a := range result.Anomalies {
		report.Anomalies = append(report.Anomalies, AnomalyRow{
			TransactionID: a.TransactionID,
			Merchant:      a.Merchant,
			Reason:        a.Reason,
			Amount:        decimal.NewFromFloat(a.Amount).Round(2),
			ZScore:        a.ZScore,
		})
	}

	return report
}

// Tabs renders the report into cell values, one Tab per sheet.
func (r Report) Tabs() []Tab {
	return []Tab{
		{Title: TabSummary, Values: r.summaryValues()},
		{Title: TabInsights, Values: r.insightValues()},
		{Title: TabTransactions, Values: r.transactionValues()},
		{Title: TabRecurring, Values: r.recurringValues()},
		{Title: TabAnomalies, Values: r.anomalyValues()},
	}
}

func (r Report) summaryValues() [][]any {
	values := make([][]any, 0, 12+len(r.Categories))
	dateRange := "no transactions"
	if !r.DateRange.Start.IsZero() {
		dateRange = fmt.Sprintf("%s - %s",
			r.DateRange.Start.Format("Jan 2, 2006"), r.DateRange.End.Format("Jan 2, 2006"))
	}

	values = append(values,
		[]any{"Transaction Insights", dateRange},
		[]any{},
		[]any{"Session", r.SessionID},
		[]any{"Phase", r.Phase},
		[]any{"Generated", r.GeneratedAt.Format(time.RFC3339)},
		[]any{"Data Quality", fmt.Sprintf("%.1f%% (%s)", r.QualityScore*100, r.QualityGrade)},
		[]any{"Total Income", r.TotalIncome.InexactFloat64()},
		[]any{"Total Spent", r.TotalSpent.InexactFloat64()},
		[]any{"Summary", r.Narrative},
		[]any{},
		[]any{"Category", "Count", "Net Amount"},
	)
	for _, c := range r.Categories {
		values = append(values, []any{c.CategoryName, c.TransactionCount, c.TotalAmount.InexactFloat64()})
	}
	return values
}

func (r Report) insightValues() [][]any {
	values := [][]any{{"Stage", "Title", "Description", "Sentiment", "Recommendations"}}
	for _, row := range r.Insights {
		values = append(values, []any{row.Stage, row.Title, row.Description, row.Sentiment, row.Recommendations})
	}
	return values
}

func (r Report) transactionValues() [][]any {
	values := [][]any{{"Date", "ID", "Merchant", "Amount", "Category", "Source", "Confidence"}}
	for _, row := range r.Transactions {
		values = append(values, []any{
			row.Date.Format(time.DateOnly),
			row.ID,
			row.Merchant,
			row.Amount.InexactFloat64(),
			row.Category,
			row.Source,
			fmt.Sprintf("%.2f", row.Confidence),
		})
	}
	return values
}

func (r Report) recurringValues() [][]any {
	values := [][]any{{"Merchant", "Frequency", "Average Amount", "Payments", "Confidence", "Description"}}
	for _, row := range r.Recurring {
		values = append(values, []any{
			row.Merchant,
			row.Frequency,
			row.MeanAmount.InexactFloat64(),
			row.TransactionCount,
			fmt.Sprintf("%.2f", row.Confidence),
			row.Description,
		})
	}
	return values
}

func (r Report) anomalyValues() [][]any {
	values := [][]any{{"Transaction", "Merchant", "Amount", "Z-Score", "Reason"}}
	for _, row := range r.Anomalies {
		values = append(values, []any{
			row.TransactionID,
			row.Merchant,
			row.Amount.InexactFloat64(),
			fmt.Sprintf("%.1f", row.ZScore),
			row.Reason,
		})
	}
	return values
}
