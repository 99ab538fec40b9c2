package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insight/internal/analysis"
	"github.com/Veraticus/spice-insight/internal/cli"
	"github.com/Veraticus/spice-insight/internal/config"
	"github.com/Veraticus/spice-insight/internal/llm"
	"github.com/Veraticus/spice-insight/internal/metrics"
	"github.com/Veraticus/spice-insight/internal/storage"
)

const defaultDBPath = "~/.local/share/spice-insight/insight.db"

// newAdapter builds the classifier adapter. Provider "none" yields an adapter
// that degrades every call.
func newAdapter(cfg config.Pipeline, recorder *metrics.Recorder) (*llm.Adapter, error) {
	client, err := llm.NewClient(llm.Config{
		Provider:       cfg.Classifier.Provider,
		BaseURL:        cfg.Classifier.BaseURL,
		APIKey:         cfg.Classifier.APIKey,
		Model:          cfg.Classifier.ClassificationModel,
		EmbeddingModel: cfg.Classifier.EmbeddingModel,
		NarrativeModel: cfg.Classifier.NarrativeModel,
		HTTPTimeout:    cfg.Retry.AttemptTimeout,
		Temperature:    cfg.Classifier.Temperature,
		MaxTokens:      cfg.Classifier.MaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	return llm.NewAdapter(client, llm.AdapterConfig{
		Breaker: llm.BreakerSettings{
			Enabled:         cfg.Breaker.Enabled,
			MinRequests:     cfg.Breaker.MinRequests,
			FailureRatio:    cfg.Breaker.FailureRatio,
			OpenTimeout:     cfg.Breaker.OpenTimeout,
			HalfOpenMaxCall: cfg.Breaker.HalfOpenMaxCall,
		},
		Retry:     cfg.Retry,
		CacheTTL:  cfg.Classifier.CacheTTL,
		RateLimit: cfg.Classifier.RateLimit,
	}, slog.Default(), recorder), nil
}

// openStore opens and migrates the results database.
func openStore(ctx context.Context) (*storage.SQLiteStorage, error) {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = defaultDBPath
	}

	store, err := storage.NewSQLiteStorage(config.ExpandPath(dbPath))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

// stageProgress adapts orchestrator status for the progress display.
func stageProgress(orch *analysis.Orchestrator) cli.ProgressSource {
	return func() []cli.StageProgress {
		states := orch.Status()
		out := make([]cli.StageProgress, len(states))
		for i, s := range states {
			out[i] = cli.StageProgress{
				Name:    s.Name,
				Running: s.Status == analysis.StageProcessing,
				Done:    s.Status == analysis.StageComplete || s.Status == analysis.StageErrored,
			}
		}
		return out
	}
}
