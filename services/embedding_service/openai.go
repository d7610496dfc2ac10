package embedding_service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const openAIEmbeddingsURL = "https://api.openai.com/v1/embeddings"

type embeddingRequest struct {
	Input string `json:"input"`
	Model string `json:"model"`
}

type embeddingResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
}

// OpenAIEmbedder calls the OpenAI embeddings API. Transport-level failures
// are retried with bounded exponential backoff inside the adapter; this is
// independent of the self-correction retry budget.
type OpenAIEmbedder struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiURL     string
	apiKey     string
	model      string
	dimension  int
}

func NewOpenAIEmbedder(apiKey, model string, dimension int, logger *slog.Logger) *OpenAIEmbedder {
	return &OpenAIEmbedder{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
		apiURL:     openAIEmbeddingsURL,
		apiKey:     apiKey,
		model:      model,
		dimension:  dimension,
	}
}

func (e *OpenAIEmbedder) Dimension() int { return e.dimension }

func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	maxRetries := 3
	retryDelay := 1 * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		vector, retryable, err := e.callOpenAI(ctx, text)
		if err == nil {
			if len(vector) != e.dimension {
				return nil, &DimensionMismatchError{Want: e.dimension, Got: len(vector)}
			}
			return vector, nil
		}
		lastErr = err

		if !retryable || attempt == maxRetries {
			break
		}
		e.logger.Warn("Embedding attempt failed, retrying",
			slog.Int("attempt", attempt),
			slog.Duration("retry_delay", retryDelay),
			slog.String("error", err.Error()))

		select {
		case <-time.After(retryDelay):
		case <-ctx.Done():
			return nil, &ServiceError{Provider: "openai", Err: ctx.Err()}
		}
		retryDelay *= 2
	}

	e.logger.Error("Embedding request failed",
		slog.String("model", e.model),
		slog.String("error", lastErr.Error()))
	return nil, &ServiceError{Provider: "openai", Err: lastErr}
}

func (e *OpenAIEmbedder) callOpenAI(ctx context.Context, text string) ([]float32, bool, error) {
	if e.apiKey == "" {
		return nil, false, fmt.Errorf("OPENAI_API_KEY not set")
	}

	jsonData, err := json.Marshal(embeddingRequest{Input: text, Model: e.model})
	if err != nil {
		return nil, false, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", e.apiURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("embedding service returned status %d: %s", resp.StatusCode, string(body))
	}

	var embeddingResp embeddingResponse
	if err := json.NewDecoder(resp.Body).Decode(&embeddingResp); err != nil {
		return nil, false, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(embeddingResp.Data) == 0 {
		return nil, false, fmt.Errorf("no embedding data received")
	}

	return embeddingResp.Data[0].Embedding, false, nil
}
