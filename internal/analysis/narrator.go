package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Veraticus/spice-insight/internal/common"
	"github.com/Veraticus/spice-insight/internal/model"
)

// TemplateNarrator writes the narrative from embedded templates.
type TemplateNarrator struct {
	prompts *TemplatePromptBuilder
}

// NewTemplateNarrator creates a TemplateNarrator.
func NewTemplateNarrator(prompts *TemplatePromptBuilder) *TemplateNarrator {
	return &TemplateNarrator{prompts: prompts}
}

// Narrate implements Narrator.
func (n *TemplateNarrator) Narrate(_ context.Context, batch *Batch, insights []model.InsightRecord) (string, error) {
	return n.prompts.BuildSummary(NewPromptData(batch, insights))
}

// LLMNarrator asks the text generator for the narrative and falls back to a
// template summary when generation is unavailable.
type LLMNarrator struct {
	generator TextGenerator
	fallback  Narrator
	prompts   *TemplatePromptBuilder
	logger    *slog.Logger
}

// NewLLMNarrator creates an LLMNarrator. A nil generator always uses the fallback.
func NewLLMNarrator(generator TextGenerator, prompts *TemplatePromptBuilder, fallback Narrator, logger *slog.Logger) *LLMNarrator {
	return &LLMNarrator{
		generator: generator,
		fallback:  fallback,
		prompts:   prompts,
		logger:    common.LoggerOrDefault(logger),
	}
}

// Narrate implements Narrator.
func (n *LLMNarrator) Narrate(ctx context.Context, batch *Batch, insights []model.InsightRecord) (string, error) {
	text, err := n.generate(ctx, batch, insights)
	if err == nil {
		return text, nil
	}
	if n.fallback == nil {
		return "", err
	}

	if !errors.Is(err, common.ErrCapabilityUnavailable) {
		n.logger.Warn("narrative generation failed, using template summary", "error", err)
	}
	return n.fallback.Narrate(ctx, batch, insights)
}

func (n *LLMNarrator) generate(ctx context.Context, batch *Batch, insights []model.InsightRecord) (string, error) {
	if n.generator == nil {
		return "", common.ErrCapabilityUnavailable
	}

	data := NewPromptData(batch, insights)
	system, err := n.prompts.BuildSystemPrompt(data)
	if err != nil {
		return "", err
	}
	prompt, err := n.prompts.BuildNarrativePrompt(data)
	if err != nil {
		return "", err
	}

	text, err := n.generator.Narrate(ctx, system, prompt)
	if err != nil {
		return "", fmt.Errorf("failed to generate narrative: %w", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("%w: empty narrative", common.ErrCapabilityUnavailable)
	}
	return text, nil
}
