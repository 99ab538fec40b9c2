package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ollamaClient implements the Client interface against a local Ollama server.
type ollamaClient struct {
	httpClient     *http.Client
	baseURL        string
	model          string
	embeddingModel string
	narrativeModel string
}

// newOllamaClient creates a new Ollama client.
func newOllamaClient(cfg Config) (Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama base URL is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama classification model is required")
	}

	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	narrativeModel := cfg.NarrativeModel
	if narrativeModel == "" {
		narrativeModel = cfg.Model
	}

	return &ollamaClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		narrativeModel: narrativeModel,
		httpClient:     &http.Client{Timeout: timeout},
	}, nil
}

// ClassifyText asks the model for a JSON-formatted sentiment classification.
func (c *ollamaClient) ClassifyText(ctx context.Context, text string) (TextClassification, error) {
	respText, err := c.generate(ctx, map[string]any{
		"model":  c.model,
		"system": classificationSystemPrompt,
		"prompt": buildClassificationPrompt(text),
		"stream": false,
		"format": "json",
	})
	if err != nil {
		return TextClassification{}, err
	}
	return parseTextClassification(respText)
}

// Embed returns the embedding vector for text via /api/embed.
func (c *ollamaClient) Embed(ctx context.Context, text string) ([]float64, error) {
	embedModel := c.embeddingModel
	if embedModel == "" {
		embedModel = c.model
	}

	var response struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, "/api/embed", map[string]any{
		"model": embedModel,
		"input": []string{text},
	}, &response); err != nil {
		return nil, err
	}

	if len(response.Embeddings) == 0 || len(response.Embeddings[0]) == 0 {
		return nil, fmt.Errorf("empty embedding result")
	}
	return response.Embeddings[0], nil
}

// Generate produces free text for the narrative stage.
func (c *ollamaClient) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	text, err := c.generate(ctx, map[string]any{
		"model":  c.narrativeModel,
		"system": systemPrompt,
		"prompt": prompt,
		"stream": false,
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *ollamaClient) generate(ctx context.Context, reqBody map[string]any) (string, error) {
	var response struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, "/api/generate", reqBody, &response); err != nil {
		return "", err
	}
	return response.Response, nil
}

func (c *ollamaClient) postJSON(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := statusError("Ollama", resp.StatusCode, respBody); err != nil {
		return err
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
