package analysis

import (
	"context"

	"github.com/Veraticus/spice-insight/internal/model"
)

// Stage produces InsightRecords from a batch. Analysis stages run concurrently
// and must treat the Batch as read-only.
type Stage interface {
	Name() string
	Run(ctx context.Context, batch *Batch) (StageOutput, error)
}

// Narrator turns the aggregated insights into conversational prose.
type Narrator interface {
	Narrate(ctx context.Context, batch *Batch, insights []model.InsightRecord) (string, error)
}

// TextGenerator is the external free-text capability used by LLMNarrator.
type TextGenerator interface {
	Narrate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// ReportFormatter formats run results for display.
type ReportFormatter interface {
	// FormatSummary renders the full result.
	FormatSummary(result *Result) string
	// FormatStatus renders the per-stage status line.
	FormatStatus(statuses []StageState) string
}
