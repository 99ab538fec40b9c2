package analysis

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Veraticus/spice-insight/internal/anomaly"
	"github.com/Veraticus/spice-insight/internal/classification"
	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/insight"
	"github.com/Veraticus/spice-insight/internal/merchant"
	"github.com/Veraticus/spice-insight/internal/model"
	"github.com/Veraticus/spice-insight/internal/pattern"
	"github.com/Veraticus/spice-insight/internal/quality"
)

// FallbackObserver is told how many merchant keys used a hash vector.
type FallbackObserver interface {
	ObserveEmbeddingFallbacks(n int)
}

// CategoryStage categorizes the batch and runs the per-merchant detectors. It
// is the only stage that writes to the Batch.
type CategoryStage struct {
	assigner   *classification.Assigner
	signals    classification.SignalSource
	normalizer *merchant.Normalizer
	patterns   *pattern.Detector
	anomalies  *anomaly.Detector
	scorer     *quality.Scorer
	fallbacks  FallbackObserver
	logger     *slog.Logger
}

// CategoryStageDeps holds the collaborators of a CategoryStage. Signals and
// Fallbacks may be nil.
type CategoryStageDeps struct {
	Assigner   *classification.Assigner
	Signals    classification.SignalSource
	Normalizer *merchant.Normalizer
	Patterns   *pattern.Detector
	Anomalies  *anomaly.Detector
	Scorer     *quality.Scorer
	Fallbacks  FallbackObserver
	Logger     *slog.Logger
}

// Validate ensures the required collaborators are present.
func (d CategoryStageDeps) Validate() error {
	if d.Assigner == nil {
		return fmt.Errorf("assigner dependency is required")
	}
	if d.Normalizer == nil {
		return fmt.Errorf("merchant normalizer dependency is required")
	}
	if d.Patterns == nil {
		return fmt.Errorf("pattern detector dependency is required")
	}
	if d.Anomalies == nil {
		return fmt.Errorf("anomaly detector dependency is required")
	}
	if d.Scorer == nil {
		return fmt.Errorf("quality scorer dependency is required")
	}
	return nil
}

// NewCategoryStage creates a CategoryStage.
func NewCategoryStage(deps CategoryStageDeps) (*CategoryStage, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	return &CategoryStage{
		assigner:   deps.Assigner,
		signals:    deps.Signals,
		normalizer: deps.Normalizer,
		patterns:   deps.Patterns,
		anomalies:  deps.Anomalies,
		scorer:     deps.Scorer,
		fallbacks:  deps.Fallbacks,
		logger:     common.LoggerOrDefault(deps.Logger),
	}, nil
}

// Name implements Stage.
func (s *CategoryStage) Name() string { return StageNameCategory }

// Run implements Stage.
func (s *CategoryStage) Run(ctx context.Context, batch *Batch) (StageOutput, error) {
	valid := make([]model.Transaction, 0, len(batch.Transactions))
	for _, txn := range batch.Transactions {
		if err := txn.Validate(); err != nil {
			s.logger.Warn("skipping invalid transaction",
				"session_id", batch.SessionID,
				"error", err)
			continue
		}
		valid = append(valid, txn)
	}
	skipped := len(batch.Transactions) - len(valid)

	batch.Categorized = s.assigner.AssignBatch(ctx, valid, s.signals)

	merchants := s.normalizer.Normalize(ctx, batch.Categorized)
	if s.fallbacks != nil {
		s.fallbacks.ObserveEmbeddingFallbacks(merchants.FallbackCount)
	}
	batch.Clusters = merchants.Clusters
	batch.Merchants = merchants.Groups
	batch.MerchantOrder = merchants.Order

	batch.Patterns = s.patterns.DetectAll(merchants.Groups, merchants.Order)
	batch.Anomalies = s.anomalies.DetectAll(merchants.Groups, merchants.Order)
	batch.Quality = s.scorer.Score(batch.Categorized)

	s.logger.Debug("categorized batch",
		"session_id", batch.SessionID,
		"transactions", len(batch.Categorized),
		"merchants", len(batch.Clusters),
		"recurring", len(pattern.Recurring(batch.Patterns)),
		"anomalies", len(batch.Anomalies),
		"quality", batch.Quality.Score)

	insights := insight.Synthesize(insight.Input{
		Categorized: batch.Categorized,
		Patterns:    batch.Patterns,
		Anomalies:   batch.Anomalies,
		Quality:     batch.Quality,
	})
	if skipped > 0 {
		insights = append(insights, insight.Skipped(skipped))
	}

	return StageOutput{
		Insights: insights,
		Metadata: map[string]any{
			"transactions":        len(batch.Categorized),
			"skipped":             skipped,
			"merchants":           len(batch.Clusters),
			"embedding_fallbacks": merchants.FallbackCount,
			"recurring":           len(pattern.Recurring(batch.Patterns)),
			"anomalies":           len(batch.Anomalies),
			"quality_score":       batch.Quality.Score,
			"quality_grade":       batch.Quality.Grade(),
		},
	}, nil
}
