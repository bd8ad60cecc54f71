package embedding

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

// OpenAIClient is an OpenAI-compatible embeddings client. One EmbedBatch call
// issues one request per batch of up to maxBatch inputs, rate-limited and
// retried on transient provider errors.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxBatch   int
	maxRetries int
	limiter    *rate.Limiter
	client     *http.Client
}

// OpenAIConfig configures the embeddings client.
type OpenAIConfig struct {
	BaseURL           string
	APIKeyEnv         string
	Model             string
	Dimensions        int
	Timeout           time.Duration
	MaxBatch          int
	RequestsPerSecond float64
}

// NewOpenAIClient creates an embeddings client. The API key is read from the
// environment variable named in cfg.APIKeyEnv.
func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Dimensions == 0 {
		cfg.Dimensions = 1536
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBatch == 0 {
		cfg.MaxBatch = 256
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 2
	}
	return &OpenAIClient{
		baseURL:    cfg.BaseURL,
		apiKey:     key,
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		maxBatch:   cfg.MaxBatch,
		maxRetries: 5,
		limiter:    rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		client:     &http.Client{Timeout: cfg.Timeout},
	}, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

// Embed returns an embedding vector for one text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch returns embeddings for texts, preserving input order.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += c.maxBatch {
		end := start + c.maxBatch
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := c.embedOnce(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (c *OpenAIClient) embedOnce(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: c.model})
	if err != nil {
		return nil, err
	}
	url := c.baseURL + "/embeddings"

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+c.apiKey)

		resp, err := c.client.Do(req)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
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
			return nil, fmt.Errorf("%w: %s: %s", ErrExternalCall, resp.Status, string(payload))
		}

		var parsed embeddingsResponse
		err = json.NewDecoder(resp.Body).Decode(&parsed)
		_ = resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: decode response: %v", ErrExternalCall, err)
		}
		if len(parsed.Data) != len(texts) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrExternalCall, len(parsed.Data), len(texts))
		}
		vecs := make([][]float32, len(texts))
		for _, item := range parsed.Data {
			if item.Index < 0 || item.Index >= len(vecs) {
				return nil, fmt.Errorf("%w: embedding index %d out of range", ErrExternalCall, item.Index)
			}
			vecs[item.Index] = item.Embedding
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrExternalCall, lastErr)
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

// Dimensions returns the embedding dimension.
func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

// Close is a no-op for the HTTP client.
func (c *OpenAIClient) Close() error {
	return nil
}
