package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/spice-insight/internal/model"
)

const classificationSystemPrompt = "You are a financial transaction sentiment classifier. You MUST respond with ONLY a valid JSON object. Do not include any explanatory text, markdown formatting, or commentary before or after the JSON. Start your response directly with { and end with }."

// buildClassificationPrompt creates the prompt for description classification.
func buildClassificationPrompt(text string) string {
	return fmt.Sprintf(`Classify the financial sentiment of this bank transaction description.

Description: %s

Labels:
- positive: saving, investing, paying down debt, income-like activity
- negative: fees, penalties, bills, overdrafts, collections
- neutral: ordinary purchases

Respond with this JSON shape:
{"label": "<positive|negative|neutral>", "confidence": <0.0-1.0>, "scores": {"positive": <0.0-1.0>, "negative": <0.0-1.0>, "neutral": <0.0-1.0>}}`,
		strings.TrimSpace(text))
}

// parseTextClassification extracts the label and scores from a model response.
func parseTextClassification(content string) (TextClassification, error) {
	var jsonResp struct {
		Scores     map[string]float64 `json:"scores"`
		Label      string             `json:"label"`
		Confidence float64            `json:"confidence"`
	}

	content = cleanMarkdownWrapper(content)

	if err := json.Unmarshal([]byte(content), &jsonResp); err != nil {
		return TextClassification{}, fmt.Errorf("failed to parse JSON response: %w", err)
	}

	label := normalizeLabel(jsonResp.Label)
	if label == "" {
		return TextClassification{}, fmt.Errorf("unrecognized label %q", jsonResp.Label)
	}

	scores := make(map[string]float64, len(jsonResp.Scores))
	for k, v := range jsonResp.Scores {
		if nk := normalizeLabel(k); nk != "" {
			scores[nk] = model.ClampConfidence(v)
		}
	}

	confidence := jsonResp.Confidence
	if confidence == 0 {
		confidence = scores[label]
	}

	return TextClassification{
		Label:      label,
		Confidence: model.ClampConfidence(confidence),
		Scores:     scores,
	}, nil
}

// normalizeLabel maps provider label spellings onto the three known labels.
func normalizeLabel(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "label_2":
		return model.LabelPositive
	case "negative", "neg", "label_0":
		return model.LabelNegative
	case "neutral", "neu", "label_1":
		return model.LabelNeutral
	default:
		return ""
	}
}

// cleanMarkdownWrapper strips ```json fences and any text around the outer object.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		return content[start : end+1]
	}
	return content
}
