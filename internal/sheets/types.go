package sheets

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tab names, in the order they appear in the spreadsheet.
const (
	TabSummary      = "Summary"
	TabInsights     = "Insights"
	TabTransactions = "Transactions"
	TabRecurring    = "Recurring"
	TabAnomalies    = "Anomalies"
)

// TransactionRow represents a single row in the Transactions tab.
type TransactionRow struct {
	Date       time.Time
	Amount     decimal.Decimal
	ID         string
	Merchant   string
	Category   string
	Source     string
	Confidence float64
}

// CategorySummaryRow represents a single row in the Summary tab's category breakdown.
type CategorySummaryRow struct {
	CategoryName     string
	TotalAmount      decimal.Decimal
	TransactionCount int
}

// InsightRow represents a single row in the Insights tab.
type InsightRow struct {
	Stage           string
	Title           string
	Description     string
	Sentiment       string
	Recommendations string
}

// RecurringRow represents a single row in the Recurring tab.
type RecurringRow struct {
	Merchant         string
	Frequency        string
	Description      string
	MeanAmount       decimal.Decimal
	Confidence       float64
	TransactionCount int
}

// AnomalyRow represents a single row in the Anomalies tab.
type AnomalyRow struct {
	TransactionID string
	Merchant      string
	Reason        string
	Amount        decimal.Decimal
	ZScore        float64
}

// Report holds all the data for one spreadsheet export.
type Report struct {
	DateRange    DateRange
	GeneratedAt  time.Time
	TotalIncome  decimal.Decimal
	TotalSpent   decimal.Decimal
	SessionID    string
	Phase        string
	Narrative    string
	QualityGrade string
	Categories   []CategorySummaryRow
	Insights     []InsightRow
	Transactions []TransactionRow
	Recurring    []RecurringRow
	Anomalies    []AnomalyRow
	QualityScore float64
}

// DateRange represents the time period covered by the report.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Tab is one sheet's worth of cell values.
type Tab struct {
	Title  string
	Values [][]any
}
