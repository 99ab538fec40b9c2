package llm

import (
	"fmt"
	"strings"
)

// NewClient creates a provider client from cfg. The "none" provider returns a
// nil Client and no error; callers treat that as a permanently unavailable capability.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none":
		return nil, nil //nolint:nilnil // no provider configured is a valid state
	case "openai":
		return newOpenAIClient(cfg)
	case "ollama":
		return newOllamaClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
