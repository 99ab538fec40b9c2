package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Veraticus/spice-insight/internal/common"
)

// Pipeline holds every tunable of one analysis run.
type Pipeline struct {
	Classifier Classifier
	Clustering Clustering
	Thresholds Thresholds
	Breaker    Breaker
	Retry      common.RetryPolicy
	// StageTimeout bounds each concurrent analysis stage. Zero disables it.
	StageTimeout time.Duration
}

// Classifier configures the external classification and embedding capability.
type Classifier struct {
	Provider            string
	BaseURL             string
	APIKey              string
	ClassificationModel string
	EmbeddingModel      string
	NarrativeModel      string
	CacheTTL            time.Duration
	RateLimit           int
	MaxTokens           int
	Temperature         float64
}

// Clustering configures merchant normalization.
type Clustering struct {
	SimilarityThreshold float64
	EmbeddingDimension  int
}

// Thresholds configures the statistical detectors and the quality scorer.
type Thresholds struct {
	ConfidentCategorization float64
	AnomalyZScore           float64
	AmountVariation         float64
	IntervalVariation       float64
}

// Breaker configures the circuit breaker around external calls.
type Breaker struct {
	OpenTimeout     time.Duration
	FailureRatio    float64
	MinRequests     uint32
	HalfOpenMaxCall uint32
	Enabled         bool
}

// Default returns the configuration used when nothing is set.
func Default() Pipeline {
	return Pipeline{
		Classifier: Classifier{
			Provider:  "none",
			CacheTTL:  15 * time.Minute,
			RateLimit: 60,
			MaxTokens: 300,
		},
		Clustering: Clustering{
			SimilarityThreshold: 0.8,
			EmbeddingDimension:  256,
		},
		Thresholds: Thresholds{
			ConfidentCategorization: 0.8,
			AnomalyZScore:           2.0,
			AmountVariation:         0.1,
			IntervalVariation:       0.2,
		},
		Breaker: Breaker{
			Enabled:         true,
			MinRequests:     5,
			FailureRatio:    0.5,
			OpenTimeout:     30 * time.Second,
			HalfOpenMaxCall: 1,
		},
		Retry:        common.DefaultRetryPolicy(),
		StageTimeout: 2 * time.Minute,
	}
}

// SetDefaults registers Default() with v so config files only need overrides.
func SetDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("classifier.provider", d.Classifier.Provider)
	v.SetDefault("classifier.cache_ttl", d.Classifier.CacheTTL)
	v.SetDefault("classifier.rate_limit", d.Classifier.RateLimit)
	v.SetDefault("classifier.max_tokens", d.Classifier.MaxTokens)
	v.SetDefault("clustering.similarity_threshold", d.Clustering.SimilarityThreshold)
	v.SetDefault("clustering.embedding_dimension", d.Clustering.EmbeddingDimension)
	v.SetDefault("thresholds.confident_categorization", d.Thresholds.ConfidentCategorization)
	v.SetDefault("thresholds.anomaly_z_score", d.Thresholds.AnomalyZScore)
	v.SetDefault("thresholds.amount_variation", d.Thresholds.AmountVariation)
	v.SetDefault("thresholds.interval_variation", d.Thresholds.IntervalVariation)
	v.SetDefault("breaker.enabled", d.Breaker.Enabled)
	v.SetDefault("breaker.min_requests", d.Breaker.MinRequests)
	v.SetDefault("breaker.failure_ratio", d.Breaker.FailureRatio)
	v.SetDefault("breaker.open_timeout", d.Breaker.OpenTimeout)
	v.SetDefault("breaker.half_open_max_calls", d.Breaker.HalfOpenMaxCall)
	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_delay", d.Retry.InitialDelay)
	v.SetDefault("retry.max_delay", d.Retry.MaxDelay)
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)
	v.SetDefault("retry.attempt_timeout", d.Retry.AttemptTimeout)
	v.SetDefault("pipeline.stage_timeout", d.StageTimeout)
}

// Load reads a Pipeline from v. Keys missing from v fall back to Default().
func Load(v *viper.Viper) (Pipeline, error) {
	SetDefaults(v)

	cfg := Pipeline{
		Classifier: Classifier{
			Provider:            strings.ToLower(v.GetString("classifier.provider")),
			BaseURL:             v.GetString("classifier.base_url"),
			APIKey:              v.GetString("classifier.api_key"),
			ClassificationModel: v.GetString("classifier.classification_model"),
			EmbeddingModel:      v.GetString("classifier.embedding_model"),
			NarrativeModel:      v.GetString("classifier.narrative_model"),
			CacheTTL:            v.GetDuration("classifier.cache_ttl"),
			RateLimit:           v.GetInt("classifier.rate_limit"),
			MaxTokens:           v.GetInt("classifier.max_tokens"),
			Temperature:         v.GetFloat64("classifier.temperature"),
		},
		Clustering: Clustering{
			SimilarityThreshold: v.GetFloat64("clustering.similarity_threshold"),
			EmbeddingDimension:  v.GetInt("clustering.embedding_dimension"),
		},
		Thresholds: Thresholds{
			ConfidentCategorization: v.GetFloat64("thresholds.confident_categorization"),
			AnomalyZScore:           v.GetFloat64("thresholds.anomaly_z_score"),
			AmountVariation:         v.GetFloat64("thresholds.amount_variation"),
			IntervalVariation:       v.GetFloat64("thresholds.interval_variation"),
		},
		Breaker: Breaker{
			Enabled:         v.GetBool("breaker.enabled"),
			MinRequests:     v.GetUint32("breaker.min_requests"),
			FailureRatio:    v.GetFloat64("breaker.failure_ratio"),
			OpenTimeout:     v.GetDuration("breaker.open_timeout"),
			HalfOpenMaxCall: v.GetUint32("breaker.half_open_max_calls"),
		},
		Retry: common.RetryPolicy{
			MaxAttempts:    v.GetInt("retry.max_attempts"),
			InitialDelay:   v.GetDuration("retry.initial_delay"),
			MaxDelay:       v.GetDuration("retry.max_delay"),
			Multiplier:     v.GetFloat64("retry.multiplier"),
			AttemptTimeout: v.GetDuration("retry.attempt_timeout"),
		},
		StageTimeout: v.GetDuration("pipeline.stage_timeout"),
	}

	if cfg.Classifier.APIKey == "" && cfg.Classifier.Provider == "openai" {
		cfg.Classifier.APIKey = v.GetString("openai_api_key")
	}

	if err := cfg.Validate(); err != nil {
		return Pipeline{}, err
	}
	return cfg, nil
}

// Validate checks ranges and provider-specific requirements.
func (p Pipeline) Validate() error {
	switch p.Classifier.Provider {
	case "none", "":
	case "openai":
		if p.Classifier.APIKey == "" {
			return fmt.Errorf("%w: openai provider requires classifier.api_key", common.ErrInvalidConfig)
		}
	case "ollama":
		if p.Classifier.BaseURL == "" {
			return fmt.Errorf("%w: ollama provider requires classifier.base_url", common.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported classifier provider %q", common.ErrInvalidConfig, p.Classifier.Provider)
	}

	if p.Clustering.SimilarityThreshold <= 0 || p.Clustering.SimilarityThreshold > 1 {
		return fmt.Errorf("%w: similarity threshold must be in (0,1], got %.2f", common.ErrInvalidConfig, p.Clustering.SimilarityThreshold)
	}
	if p.Clustering.EmbeddingDimension <= 0 {
		return fmt.Errorf("%w: embedding dimension must be positive", common.ErrInvalidConfig)
	}
	if p.Thresholds.ConfidentCategorization < 0 || p.Thresholds.ConfidentCategorization > 1 {
		return fmt.Errorf("%w: confident categorization threshold must be in [0,1]", common.ErrInvalidConfig)
	}
	if p.Thresholds.AnomalyZScore <= 0 {
		return fmt.Errorf("%w: anomaly z-score threshold must be positive", common.ErrInvalidConfig)
	}
	if p.Breaker.FailureRatio < 0 || p.Breaker.FailureRatio > 1 {
		return fmt.Errorf("%w: breaker failure ratio must be in [0,1]", common.ErrInvalidConfig)
	}
	return nil
}
