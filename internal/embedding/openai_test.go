package embedding

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func embeddingsHandler(t *testing.T, requests *atomic.Int64, failuresBeforeSuccess int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		if int(n) <= failuresBeforeSuccess {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		var req embeddingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		var resp embeddingsResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Index     int       `json:"index"`
				Embedding []float32 `json:"embedding"`
			}{Index: i, Embedding: []float32{float32(i), 1}})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func newTestClient(t *testing.T, serverURL string, maxBatch int) *OpenAIClient {
	t.Setenv("TEST_EMBED_KEY", "test-key")
	client, err := NewOpenAIClient(OpenAIConfig{
		BaseURL:           serverURL,
		APIKeyEnv:         "TEST_EMBED_KEY",
		Dimensions:        2,
		MaxBatch:          maxBatch,
		RequestsPerSecond: 1000,
	})
	if err != nil {
		t.Fatal(err)
	}
	return client
}

func TestOpenAIClient_EmbedBatchSplitsBatches(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(embeddingsHandler(t, &requests, 0))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 2)
	vecs, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c", "d", "e"})
	if err != nil {
		t.Fatal(err)
	}
	if len(vecs) != 5 {
		t.Fatalf("got %d vectors, want 5", len(vecs))
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3 for 5 inputs with batch size 2", requests.Load())
	}
}

func TestOpenAIClient_RetriesRateLimit(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(embeddingsHandler(t, &requests, 2))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 16)
	vec, err := client.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if len(vec) != 2 {
		t.Fatalf("vector length = %d, want 2", len(vec))
	}
	if requests.Load() != 3 {
		t.Errorf("requests = %d, want 3 (two 429s then success)", requests.Load())
	}
}

func TestOpenAIClient_ClientErrorFailsFast(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		http.Error(w, `{"error":"invalid input"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	client := newTestClient(t, srv.URL, 16)
	_, err := client.Embed(context.Background(), "hello")
	if !errors.Is(err, ErrExternalCall) {
		t.Fatalf("want ErrExternalCall, got %v", err)
	}
	if requests.Load() != 1 {
		t.Errorf("requests = %d, want 1 (4xx is not retried)", requests.Load())
	}
}

func TestOpenAIClient_MissingAPIKey(t *testing.T) {
	t.Setenv("TEST_EMBED_KEY", "")
	_, err := NewOpenAIClient(OpenAIConfig{APIKeyEnv: "TEST_EMBED_KEY"})
	if err == nil {
		t.Fatal("expected error for missing API key")
	}
}
