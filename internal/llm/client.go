package llm

import (
	"context"
	"time"
)

// Client defines the interface for external capability providers.
type Client interface {
	ClassifyText(ctx context.Context, text string) (TextClassification, error)
	Embed(ctx context.Context, text string) ([]float64, error)
	Generate(ctx context.Context, systemPrompt, prompt string) (string, error)
}

// TextClassification is the classifier's verdict for one piece of text.
type TextClassification struct {
	Scores     map[string]float64
	Label      string
	Confidence float64
}

// Config holds configuration for a provider client.
type Config struct {
	Provider string
	BaseURL  string
	APIKey   string
	// Model is used for classification, EmbeddingModel for vectors and
	// NarrativeModel for free-text generation. There is no package-level default:
	// callers thread the model names in from configuration.
	Model          string
	EmbeddingModel string
	NarrativeModel string
	HTTPTimeout    time.Duration
	Temperature    float64
	MaxTokens      int
}
