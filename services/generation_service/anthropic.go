package generation_service

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

const anthropicMessagesURL = "https://api.anthropic.com/v1/messages"

// AnthropicService generates answers through the Anthropic messages API.
type AnthropicService struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiURL     string
	apiKey     string
	model      string
	maxTokens  int
}

func NewAnthropicService(apiKey, model string, logger *slog.Logger) *AnthropicService {
	return &AnthropicService{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		apiURL:     anthropicMessagesURL,
		apiKey:     apiKey,
		model:      model,
		maxTokens:  1024,
	}
}

func (s *AnthropicService) Complete(ctx context.Context, query string, contexts []string, includeCitations bool) (string, error) {
	if s.apiKey == "" {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("ANTHROPIC_API_KEY not set")}
	}

	prompt := buildPrompt(query, contexts, includeCitations)
	requestBody, err := json.Marshal(map[string]interface{}{
		"model":  s.model,
		"system": systemPrompt,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens": s.maxTokens,
	})
	if err != nil {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("error marshaling request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("x-api-key", s.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("error making request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		svcErr := ServiceError{
			Provider:   "anthropic",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(body)),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Warn("Anthropic API rate limited",
				slog.String("model", s.model),
				slog.Int("status_code", resp.StatusCode))
			return "", &RateLimitedError{ServiceError: svcErr}
		}
		s.logger.Error("Anthropic API error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("raw_body", string(body)))
		return "", &svcErr
	}

	var result struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("error decoding response: %w", err)}
	}
	if len(result.Content) == 0 {
		return "", &ServiceError{Provider: "anthropic", Err: fmt.Errorf("unexpected response format from Anthropic API")}
	}

	return result.Content[0].Text, nil
}
