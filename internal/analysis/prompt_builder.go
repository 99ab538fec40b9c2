package analysis

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/pattern"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// Template names.
const (
	templateNarrativeSystem  = "narrative_system"
	templateNarrativePrompt  = "narrative_prompt"
	templateNarrativeSummary = "narrative_summary"
)

// defaultMaxWords bounds the generated narrative.
const defaultMaxWords = 180

// TemplatePromptBuilder renders narrative prompts and summaries from embedded templates.
type TemplatePromptBuilder struct {
	templates map[string]*template.Template
}

// NewTemplatePromptBuilder creates a new TemplatePromptBuilder with loaded templates.
func NewTemplatePromptBuilder() (*TemplatePromptBuilder, error) {
	pb := &TemplatePromptBuilder{
		templates: make(map[string]*template.Template),
	}

	funcMap := template.FuncMap{
		"formatAmount": formatAmount,
		"formatDate":   formatDate,
		"percent":      percent,
		"truncate":     truncate,
		"join":         strings.Join,
	}

	for _, name := range []string{templateNarrativeSystem, templateNarrativePrompt, templateNarrativeSummary} {
		filename := fmt.Sprintf("templates/%s.tmpl", name)
		tmpl, err := template.New(fmt.Sprintf("%s.tmpl", name)).Funcs(funcMap).ParseFS(templateFS, filename)
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", name, err)
		}
		pb.templates[name] = tmpl
	}

	return pb, nil
}

// PromptData contains everything the narrative templates read.
type PromptData struct {
	Start            time.Time
	End              time.Time
	QualityGrade     string
	Insights         []model.InsightRecord
	Recurring        []model.RecurringPattern
	Highlights       []model.InsightRecord
	Recommendations  []string
	QualityScore     float64
	TransactionCount int
	MaxWords         int
	HasRange         bool
}

// NewPromptData collects template data from a batch and its aggregated insights.
func NewPromptData(batch *Batch, insights []model.InsightRecord) PromptData {
	data := PromptData{
		Insights: insights,
		MaxWords: defaultMaxWords,
	}
	if batch == nil {
		data.QualityGrade = model.DataQualityScore{}.Grade()
		return data
	}

	data.TransactionCount = len(batch.Transactions)
	data.QualityScore = batch.Quality.Score
	data.QualityGrade = batch.Quality.Grade()
	data.Recurring = pattern.Recurring(batch.Patterns)

	for _, txn := range batch.Transactions {
		if data.Start.IsZero() || txn.Date.Before(data.Start) {
			data.Start = txn.Date
		}
		if txn.Date.After(data.End) {
			data.End = txn.Date
		}
	}
	data.HasRange = !data.Start.IsZero()

	for _, record := range insights {
		if record.Sentiment != model.SentimentNeutral || record.Degraded {
			data.Highlights = append(data.Highlights, record)
		}
		data.Recommendations = append(data.Recommendations, record.Recommendations...)
	}
	if len(data.Highlights) > 3 {
		data.Highlights = data.Highlights[:3]
	}

	return data
}

// BuildSystemPrompt renders the narrator's system prompt.
func (pb *TemplatePromptBuilder) BuildSystemPrompt(data PromptData) (string, error) {
	return pb.execute(templateNarrativeSystem, data)
}

// BuildNarrativePrompt renders the user prompt listing every insight.
func (pb *TemplatePromptBuilder) BuildNarrativePrompt(data PromptData) (string, error) {
	return pb.execute(templateNarrativePrompt, data)
}

// BuildSummary renders a deterministic narrative without any external call.
func (pb *TemplatePromptBuilder) BuildSummary(data PromptData) (string, error) {
	return pb.execute(templateNarrativeSummary, data)
}

func (pb *TemplatePromptBuilder) execute(name string, data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := pb.templates[name].ExecuteTemplate(&buf, name+".tmpl", data); err != nil {
		return "", fmt.Errorf("failed to execute %s template: %w", name, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Template helper functions

func formatAmount(amount float64) string {
	return fmt.Sprintf("$%.2f", amount)
}

func formatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
