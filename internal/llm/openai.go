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

	"github.com/Veraticus/spice-insight/internal/common"
)

const openAIDefaultBaseURL = "https://api.openai.com/v1"

// openAIClient implements the Client interface for the OpenAI API.
type openAIClient struct {
	httpClient     *http.Client
	baseURL        string
	apiKey         string
	model          string
	embeddingModel string
	narrativeModel string
	temperature    float64
	maxTokens      int
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("OpenAI classification model is required")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIDefaultBaseURL
	}

	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = 300
	}

	timeout := cfg.HTTPTimeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	narrativeModel := cfg.NarrativeModel
	if narrativeModel == "" {
		narrativeModel = cfg.Model
	}

	return &openAIClient{
		baseURL:        baseURL,
		apiKey:         cfg.APIKey,
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		narrativeModel: narrativeModel,
		temperature:    cfg.Temperature,
		maxTokens:      maxTokens,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}, nil
}

// openAIResponse represents the OpenAI chat completion response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
}

// openAIEmbeddingResponse represents the OpenAI embeddings response structure.
type openAIEmbeddingResponse struct {
	Data []struct {
		Embedding []float64 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
}

// ClassifyText asks the chat model for a sentiment label over a transaction description.
func (c *openAIClient) ClassifyText(ctx context.Context, text string) (TextClassification, error) {
	content, err := c.chat(ctx, c.model, classificationSystemPrompt, buildClassificationPrompt(text), c.maxTokens)
	if err != nil {
		return TextClassification{}, err
	}
	return parseTextClassification(content)
}

// Embed returns the embedding vector for text.
func (c *openAIClient) Embed(ctx context.Context, text string) ([]float64, error) {
	if c.embeddingModel == "" {
		return nil, &common.RetryableError{Err: fmt.Errorf("%w: no embedding model configured", common.ErrCapabilityUnavailable)}
	}

	requestBody := map[string]any{
		"model": c.embeddingModel,
		"input": text,
	}

	var response openAIEmbeddingResponse
	if err := c.postJSON(ctx, "/embeddings", requestBody, &response); err != nil {
		return nil, err
	}

	if len(response.Data) == 0 || len(response.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return response.Data[0].Embedding, nil
}

// Generate produces free text, used by the narrative stage.
func (c *openAIClient) Generate(ctx context.Context, systemPrompt, prompt string) (string, error) {
	maxTokens := 1000
	if c.maxTokens > maxTokens {
		maxTokens = c.maxTokens
	}
	content, err := c.chat(ctx, c.narrativeModel, systemPrompt, prompt, maxTokens)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func (c *openAIClient) chat(ctx context.Context, model, systemPrompt, prompt string, maxTokens int) (string, error) {
	requestBody := map[string]any{
		"model": model,
		"messages": []map[string]string{
			{
				"role":    "system",
				"content": systemPrompt,
			},
			{
				"role":    "user",
				"content": prompt,
			},
		},
		"temperature": c.temperature,
		"max_tokens":  maxTokens,
	}

	var response openAIResponse
	if err := c.postJSON(ctx, "/chat/completions", requestBody, &response); err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("no completion choices returned")
	}

	return response.Choices[0].Message.Content, nil
}

func (c *openAIClient) postJSON(ctx context.Context, path string, requestBody any, out any) error {
	jsonBody, err := json.Marshal(requestBody)
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(jsonBody))
	if err != nil {
		return &common.RetryableError{Err: fmt.Errorf("failed to create request: %w", err)}
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := statusError("OpenAI", resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}

// statusError maps non-2xx responses to errors the retry policy understands.
func statusError(provider string, status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}
	err := fmt.Errorf("%s API error (status %d): %s", provider, status, truncate(string(body), 200))
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: %w", common.ErrRateLimit, err)
	case status >= 500:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return &common.RetryableError{Err: err, Retryable: false}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
