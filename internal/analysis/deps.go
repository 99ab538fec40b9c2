// Package analysis runs the multi-stage transaction analysis pipeline.
package analysis

import (
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-insight/internal/anomaly"
	"github.com/Veraticus/spice-insight/internal/classification"
	"github.com/Veraticus/spice-insight/internal/config"
	"github.com/Veraticus/spice-insight/internal/llm"
	"github.com/Veraticus/spice-insight/internal/merchant"
	"github.com/Veraticus/spice-insight/internal/metrics"
	"github.com/Veraticus/spice-insight/internal/pattern"
	"github.com/Veraticus/spice-insight/internal/quality"
)

// Deps contains everything needed to assemble the default pipeline.
type Deps struct {
	// Adapter provides the optional classification, embedding and generation
	// capabilities. An adapter without a client degrades every call.
	Adapter *llm.Adapter
	// Metrics records run, stage and fallback counts. May be nil.
	Metrics *metrics.Recorder
	// Logger is shared by every component. Nil means slog.Default().
	Logger *slog.Logger
	// Config carries thresholds and timeouts.
	Config config.Pipeline
}

// Validate ensures all required dependencies are provided.
func (d *Deps) Validate() error {
	if d.Adapter == nil {
		return fmt.Errorf("adapter dependency is required")
	}
	if err := d.Config.Validate(); err != nil {
		return fmt.Errorf("pipeline config: %w", err)
	}
	return nil
}

// NewPipeline wires the category stage, the spending, savings and risk stages
// and the narrator into an Orchestrator.
func NewPipeline(deps Deps) (*Orchestrator, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	cfg := deps.Config

	assigner, err := classification.NewDefaultAssigner(deps.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create assigner: %w", err)
	}

	category, err := NewCategoryStage(CategoryStageDeps{
		Assigner: assigner,
		Signals:  deps.Adapter,
		Normalizer: merchant.NewNormalizer(deps.Adapter, merchant.Config{
			SimilarityThreshold: cfg.Clustering.SimilarityThreshold,
			Dimension:           cfg.Clustering.EmbeddingDimension,
		}, deps.Logger),
		Patterns: pattern.NewDetector(pattern.Config{
			AmountVariation:   cfg.Thresholds.AmountVariation,
			IntervalVariation: cfg.Thresholds.IntervalVariation,
		}),
		Anomalies: anomaly.NewDetector(cfg.Thresholds.AnomalyZScore),
		Scorer:    quality.NewScorer(cfg.Thresholds.ConfidentCategorization),
		Fallbacks: deps.Metrics,
		Logger:    deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	risk, err := NewRiskStage()
	if err != nil {
		return nil, err
	}

	prompts, err := NewTemplatePromptBuilder()
	if err != nil {
		return nil, fmt.Errorf("failed to load narrative templates: %w", err)
	}

	var generator TextGenerator
	if deps.Adapter.Available() {
		generator = deps.Adapter
	}
	narrator := NewLLMNarrator(generator, prompts, NewTemplateNarrator(prompts), deps.Logger)

	return NewOrchestrator(category,
		[]Stage{&SpendingStage{}, &SavingsStage{}, risk},
		narrator,
		WithLogger(deps.Logger),
		WithObserver(deps.Metrics),
		WithStageTimeout(cfg.StageTimeout),
	)
}
