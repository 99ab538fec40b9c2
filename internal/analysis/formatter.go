package analysis

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/Veraticus/spice-insight/internal/model"
)

// CLIFormatter implements ReportFormatter for terminal display.
type CLIFormatter struct {
	styles *Styles
}

// NewCLIFormatter creates a new CLI formatter with default styles.
func NewCLIFormatter() *CLIFormatter {
	return &CLIFormatter{
		styles: NewStyles(),
	}
}

// NewCLIFormatterWithWidth creates a formatter sized for the terminal width.
func NewCLIFormatterWithWidth(width int) *CLIFormatter {
	return &CLIFormatter{
		styles: NewStyles().WithWidth(width),
	}
}

// FormatSummary renders a run result.
func (f *CLIFormatter) FormatSummary(result *Result) string {
	if result == nil {
		return f.styles.Error.Render("No result available")
	}

	sections := []string{
		f.formatHeader(result),
		f.formatQuality(result.Quality),
	}

	if result.Narrative != "" {
		sections = append(sections, f.styles.RenderBox(result.Narrative, "Summary", f.styles.Box))
	}

	if categories := f.formatCategories(result.Categorized); categories != "" {
		sections = append(sections, categories)
	}

	for _, stage := range result.Stages {
		if len(stage.Insights) > 0 {
			sections = append(sections, f.formatStage(stage))
		}
	}

	if recurring := f.formatRecurring(result.Patterns); recurring != "" {
		sections = append(sections, recurring)
	}
	if len(result.Anomalies) > 0 {
		sections = append(sections, f.formatAnomalies(result.Anomalies))
	}

	return strings.Join(sections, "\n\n")
}

// FormatStatus renders one line per stage.
func (f *CLIFormatter) FormatStatus(statuses []StageState) string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		icon := statusIcon(s.Status)
		line := fmt.Sprintf("%s %-10s %s", icon, s.Name, s.Status)
		lines = append(lines, f.styles.ForStatus(s.Status).Render(line))
	}
	return strings.Join(lines, "\n")
}

// FormatInsight renders a single insight record.
func (f *CLIFormatter) FormatInsight(record model.InsightRecord) string {
	style := f.styles.ForSentiment(record.Sentiment)
	icon := sentimentIcon(record.Sentiment)
	if record.Degraded {
		style = f.styles.Degraded
		icon = "❌"
	}

	parts := []string{
		style.Render(fmt.Sprintf("%s %s", icon, record.Title)),
		f.styles.Normal.Render(record.Description),
	}

	if len(record.KeyNumbers) > 0 {
		keys := make([]string, 0, len(record.KeyNumbers))
		for k := range record.KeyNumbers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		numbers := make([]string, 0, len(keys))
		for _, k := range keys {
			numbers = append(numbers, fmt.Sprintf("%s=%s", k, formatNumber(record.KeyNumbers[k])))
		}
		parts = append(parts, f.styles.Subtle.Render(strings.Join(numbers, "  ")))
	}

	for _, rec := range record.Recommendations {
		parts = append(parts, fmt.Sprintf("%s %s", f.styles.Info.Render("→"), rec))
	}

	return strings.Join(parts, "\n")
}

func (f *CLIFormatter) formatHeader(result *Result) string {
	title := f.styles.Title.Render("📊 Transaction Insights")

	session := f.styles.Subtitle.Render(fmt.Sprintf("Session: %s", result.SessionID))

	state := fmt.Sprintf("Phase: %s", result.Phase)
	stateStyle := f.styles.Success
	switch {
	case result.Phase == PhaseError:
		stateStyle = f.styles.Error
	case result.Degraded():
		stateStyle = f.styles.Warning
		state += " (degraded)"
	}

	generated := f.styles.Subtle.Render(fmt.Sprintf("Generated: %s in %s",
		result.CompletedAt.Format(time.RFC3339),
		result.CompletedAt.Sub(result.StartedAt).Round(time.Millisecond)))

	return fmt.Sprintf("%s\n%s\n%s\n%s", title, session, stateStyle.Render(state), generated)
}

func (f *CLIFormatter) formatQuality(q model.DataQualityScore) string {
	style := f.styles.ForScore(q.Score)
	text := fmt.Sprintf("Data Quality: %.1f%% (%s)", q.Score*100, q.Grade())
	detail := f.styles.Subtle.Render(fmt.Sprintf("%d transactions, %.0f%% confident, %.0f%% categorized",
		q.Total, q.Completeness*100, q.CategorizationRate*100))
	bar := style.Render(f.styles.RenderProgressBar(q.Score, 30))
	return fmt.Sprintf("%s\n%s\n%s", style.Render(text), bar, detail)
}

// formatCategories renders outflow totals per category, largest first.
func (f *CLIFormatter) formatCategories(txns []model.CategorizedTransaction) string {
	type row struct {
		category model.Category
		total    float64
		count    int
	}
	byCategory := make(map[model.Category]*row)
	for _, txn := range txns {
		r, ok := byCategory[txn.Category]
		if !ok {
			r = &row{category: txn.Category}
			byCategory[txn.Category] = r
		}
		r.count++
		r.total += txn.Amount
	}
	if len(byCategory) == 0 {
		return ""
	}

	rows := make([]*row, 0, len(byCategory))
	for _, r := range byCategory {
		rows = append(rows, r)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].total != rows[j].total {
			return rows[i].total < rows[j].total
		}
		return rows[i].category < rows[j].category
	})

	const (
		nameWidth  = 28
		countWidth = 14
	)
	header := fmt.Sprintf("%-*s %-*s %s", nameWidth, "Category", countWidth, "Transactions", "Net")
	lines := []string{
		f.styles.Subtitle.Render("Categories:"),
		f.styles.Subtle.Bold(true).Render(header),
		f.styles.Subtle.Render(strings.Repeat("─", len(header))),
	}
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("%-*s %-*d %s", nameWidth, r.category, countWidth, r.count, signedDollars(r.total)))
	}
	return strings.Join(lines, "\n")
}

func (f *CLIFormatter) formatStage(stage StageResult) string {
	records := make([]string, 0, len(stage.Insights))
	for _, record := range stage.Insights {
		records = append(records, f.FormatInsight(record))
	}
	title := fmt.Sprintf("%s (%s)", displayStage(stage.Name), stage.Status)
	return f.styles.RenderBox(strings.Join(records, "\n\n"), title, f.styles.InsightBox)
}

func (f *CLIFormatter) formatRecurring(patterns []model.RecurringPattern) string {
	var lines []string
	for _, p := range patterns {
		if !p.IsRecurring {
			continue
		}
		freq := string(p.Frequency)
		if freq == "" {
			freq = "Irregular cadence"
		}
		lines = append(lines, fmt.Sprintf("%-28s %-10s $%8.2f  %3.0f%%  (%d payments)",
			p.Merchant, freq, p.MeanAmount, p.Confidence*100, p.TransactionCount))
	}
	if len(lines) == 0 {
		return ""
	}
	return f.styles.RenderBox(strings.Join(lines, "\n"), "🔁 Recurring Payments", f.styles.PatternBox)
}

func (f *CLIFormatter) formatAnomalies(flags []model.AnomalyFlag) string {
	lines := make([]string, 0, len(flags))
	for _, a := range flags {
		lines = append(lines, fmt.Sprintf("%s %s: %s",
			f.styles.Negative.Render("⚠"), a.Merchant, a.Reason))
	}
	return f.styles.RenderBox(strings.Join(lines, "\n"), "Unusual Charges", f.styles.AnomalyBox)
}

func displayStage(name string) string {
	if name == "" {
		return name
	}
	return strings.ToUpper(name[:1]) + name[1:]
}

func statusIcon(status StageStatus) string {
	switch status {
	case StageComplete:
		return "✅"
	case StageProcessing:
		return "⏳"
	case StageErrored:
		return "❌"
	default:
		return "·"
	}
}

func sentimentIcon(sentiment model.Sentiment) string {
	switch sentiment {
	case model.SentimentPositive:
		return "✅"
	case model.SentimentNegative:
		return "⚠️"
	default:
		return "💡"
	}
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
