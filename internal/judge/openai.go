package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIJudge calls an OpenAI-compatible chat completions endpoint and parses
// the structured judgment from the response.
type OpenAIJudge struct {
	baseURL    string
	apiKey     string
	model      string
	maxRetries int
	limiter    *rate.Limiter
	client     *http.Client
}

// OpenAIJudgeConfig configures the judge client.
type OpenAIJudgeConfig struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewOpenAIJudge creates a judge client. The API key is read from the
// environment variable named in cfg.APIKeyEnv.
func NewOpenAIJudge(cfg OpenAIJudgeConfig) (*OpenAIJudge, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	return &OpenAIJudge{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		maxRetries: 3,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Judge evaluates one summary against its source text.
func (j *OpenAIJudge) Judge(ctx context.Context, summary, source string) (Judgment, error) {
	req := chatRequest{
		Model: j.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(summary, source)},
		},
	}
	req.ResponseFormat.Type = "json_object"
	body, err := json.Marshal(req)
	if err != nil {
		return Judgment{}, err
	}

	content, err := j.complete(ctx, body)
	if err != nil {
		return Judgment{}, err
	}
	var verdict Judgment
	if err := json.Unmarshal([]byte(content), &verdict); err != nil {
		return Judgment{}, fmt.Errorf("%w: parse judgment: %v", ErrExternalCall, err)
	}
	if verdict.Confidence < 0 || verdict.Confidence > 1 {
		return Judgment{}, fmt.Errorf("%w: confidence %v out of range", ErrExternalCall, verdict.Confidence)
	}
	return verdict, nil
}

func (j *OpenAIJudge) complete(ctx context.Context, body []byte) (string, error) {
	url := j.baseURL + "/chat/completions"

	var lastErr error
	for attempt := 0; attempt <= j.maxRetries; attempt++ {
		if err := j.limiter.Wait(ctx); err != nil {
			return "", err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return "", err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+j.apiKey)

		resp, err := j.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			sleepBackoff(ctx, attempt)
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			_, _ = io.Copy(io.Discard, resp.Body)
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("provider status %s", resp.Status)
			sleepBackoff(ctx, attempt)
			continue
		}
		if resp.StatusCode >= 300 {
			payload, _ := io.ReadAll(resp.Body)
			_ = resp.Body.Close()
			return "", fmt.Errorf("%w: %s: %s", ErrExternalCall, resp.Status, string(payload))
		}

		var parsed chatResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		_ = resp.Body.Close()
		if err != nil {
			return "", fmt.Errorf("%w: decode response: %v", ErrExternalCall, err)
		}
		if len(parsed.Choices) == 0 {
			return "", fmt.Errorf("%w: empty response", ErrExternalCall)
		}
		return parsed.Choices[0].Message.Content, nil
	}
	return "", fmt.Errorf("%w: %v", ErrExternalCall, lastErr)
}

func sleepBackoff(ctx context.Context, attempt int) {
	d := time.Duration(1<<uint(attempt)) * 250 * time.Millisecond
	if d > 8*time.Second {
		d = 8 * time.Second
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}

// Close is a no-op for the HTTP client.
func (j *OpenAIJudge) Close() error {
	return nil
}
