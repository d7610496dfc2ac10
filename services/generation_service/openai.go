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

const openAIChatURL = "https://api.openai.com/v1/chat/completions"

// OpenAIService generates answers through the OpenAI chat completions API.
type OpenAIService struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiURL     string
	apiKey     string
	model      string
}

func NewOpenAIService(apiKey, model string, logger *slog.Logger) *OpenAIService {
	return &OpenAIService{
		httpClient: &http.Client{Timeout: 120 * time.Second},
		logger:     logger,
		apiURL:     openAIChatURL,
		apiKey:     apiKey,
		model:      model,
	}
}

func (s *OpenAIService) Complete(ctx context.Context, query string, contexts []string, includeCitations bool) (string, error) {
	if s.apiKey == "" {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("OPENAI_API_KEY not set")}
	}

	prompt := buildPrompt(query, contexts, includeCitations)
	messages := []map[string]string{
		{"role": "system", "content": systemPrompt},
		{"role": "user", "content": prompt},
	}

	requestBody, err := json.Marshal(map[string]interface{}{
		"model":       s.model,
		"messages":    messages,
		"temperature": 0.0,
	})
	if err != nil {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("error marshaling request body: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.apiURL, bytes.NewBuffer(requestBody))
	if err != nil {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("error creating request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("error making request: %w", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		svcErr := ServiceError{
			Provider:   "openai",
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("unexpected status: %s", string(body)),
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			s.logger.Warn("OpenAI API rate limited",
				slog.String("model", s.model),
				slog.Int("status_code", resp.StatusCode))
			return "", &RateLimitedError{ServiceError: svcErr}
		}
		s.logger.Error("OpenAI API error",
			slog.Int("status_code", resp.StatusCode),
			slog.String("raw_body", string(body)))
		return "", &svcErr
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("error decoding response: %w", err)}
	}
	if len(result.Choices) == 0 {
		return "", &ServiceError{Provider: "openai", Err: fmt.Errorf("unexpected response format from OpenAI API")}
	}

	return result.Choices[0].Message.Content, nil
}
