package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/mastidea/mastidea-server/internal/port"
)

// embedTimeout bounds every outbound embeddings call. The upstream default
// is no timeout at all; a hung provider must degrade within one request
// cycle instead of pinning the connection.
const embedTimeout = 15 * time.Second

// EmbeddingsConfig holds the configuration for one OpenAI-compatible
// embeddings endpoint.
type EmbeddingsConfig struct {
	BaseURL string // e.g. https://api.openai.com/v1
	APIKey  string
	Model   string // e.g. text-embedding-3-small
}

// EmbeddingsClient calls an OpenAI-compatible /embeddings endpoint.
// It reports failures as errors; graceful degradation is the job of the
// FallbackEmbedder composed on top of it.
type EmbeddingsClient struct {
	cfg        EmbeddingsConfig
	httpClient *http.Client
}

// NewEmbeddingsClient creates a client for one embeddings endpoint.
// Callers wire a client into the fallback chain only when an API key is
// configured.
func NewEmbeddingsClient(cfg EmbeddingsConfig) *EmbeddingsClient {
	return &EmbeddingsClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: embedTimeout},
	}
}

// Name identifies the provider endpoint and model for logging.
func (c *EmbeddingsClient) Name() string {
	return c.cfg.Model
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

// Embed generates a vector embedding for the given text.
func (c *EmbeddingsClient) Embed(ctx context.Context, text string) ([]float32, error) {
	body, err := c.post(ctx, map[string]interface{}{
		"model": c.cfg.Model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}

	var resp struct {
		Data []embeddingData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("embed decode: %w", err)
	}
	if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("embed: empty response")
	}

	return resp.Data[0].Embedding, nil
}

// EmbedBatch generates embeddings for multiple texts in one call. The
// provider returns data entries with explicit indices; output order follows
// input order.
func (c *EmbeddingsClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := c.post(ctx, map[string]interface{}{
		"model": c.cfg.Model,
		"input": texts,
	})
	if err != nil {
		return nil, fmt.Errorf("embed batch: %w", err)
	}

	var resp struct {
		Data []embeddingData `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("embed batch decode: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embed batch: got %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(vectors) {
			return nil, fmt.Errorf("embed batch: index %d out of range", d.Index)
		}
		vectors[d.Index] = d.Embedding
	}
	return vectors, nil
}

// post sends a JSON payload to the embeddings endpoint with bearer auth.
func (c *EmbeddingsClient) post(ctx context.Context, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/embeddings", bytes.NewReader(payloadBytes))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s: %w", c.cfg.Model, port.ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("embeddings API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
