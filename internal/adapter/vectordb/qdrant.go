// Package vectordb provides the Qdrant-backed vector index for semantic
// similarity search over ideas.
package vectordb

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

const requestTimeout = 15 * time.Second

// Config holds the connection settings for one Qdrant collection.
type Config struct {
	URL        string // e.g. http://localhost:6333
	APIKey     string
	Collection string
	VectorSize int // dimensionality, fixed per collection
}

// QdrantClient owns a single named Qdrant collection: idempotent
// upsert-by-id, cosine nearest-neighbor search, delete-by-id. The
// collection is provisioned lazily on first use.
//
// Semantic search is an enhancement, not a correctness-critical path, so
// every method logs and swallows backend errors instead of propagating
// them; callers see empty results or silent no-ops when Qdrant is down.
type QdrantClient struct {
	cfg        Config
	httpClient *http.Client

	mu          sync.Mutex
	initialized bool
}

// NewQdrantClient creates a client for the configured collection. Nothing
// is provisioned until the first operation.
func NewQdrantClient(cfg Config) *QdrantClient {
	return &QdrantClient{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: requestTimeout},
	}
}

// ensureCollection creates the collection if it does not exist yet.
// Safe to call concurrently; after the first success it is a cheap no-op.
// Returns false when the backend is unreachable so the caller can bail out
// of the individual operation without crashing anything.
func (q *QdrantClient) ensureCollection(ctx context.Context) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.initialized {
		return true
	}

	body, err := q.do(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		slog.Error("qdrant: list collections failed", "error", err)
		return false
	}

	var listing struct {
		Result struct {
			Collections []struct {
				Name string `json:"name"`
			} `json:"collections"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &listing); err != nil {
		slog.Error("qdrant: decode collections failed", "error", err)
		return false
	}

	exists := false
	for _, c := range listing.Result.Collections {
		if c.Name == q.cfg.Collection {
			exists = true
			break
		}
	}

	if !exists {
		slog.Info("qdrant: creating collection", "collection", q.cfg.Collection, "size", q.cfg.VectorSize)
		payload := map[string]interface{}{
			"vectors": map[string]interface{}{
				"size":     q.cfg.VectorSize,
				"distance": "Cosine",
			},
		}
		if _, err := q.do(ctx, http.MethodPut, "/collections/"+q.cfg.Collection, payload); err != nil {
			slog.Error("qdrant: create collection failed", "collection", q.cfg.Collection, "error", err)
			return false
		}
	}

	q.initialized = true
	return true
}

// Upsert inserts or overwrites the record with point.ID. The caller is
// responsible for never passing an empty vector; degenerate records are
// skipped upstream and never stored.
func (q *QdrantClient) Upsert(ctx context.Context, point port.VectorPoint) error {
	if !q.ensureCollection(ctx) {
		return nil
	}

	payload := map[string]interface{}{
		"points": []map[string]interface{}{
			{
				"id":     point.ID,
				"vector": point.Vector,
				"payload": map[string]string{
					"title":     point.Title,
					"content":   point.Content,
					"createdAt": point.CreatedAt,
				},
			},
		},
	}

	if _, err := q.do(ctx, http.MethodPut, "/collections/"+q.cfg.Collection+"/points?wait=true", payload); err != nil {
		slog.Error("qdrant: upsert failed", "id", point.ID, "error", err)
		return nil
	}

	slog.Debug("qdrant: point upserted", "id", point.ID)
	return nil
}

// Search returns up to limit nearest neighbors by cosine similarity. When
// excludeID is set, limit+1 results are requested so that filtering out the
// self-match still leaves a full page whenever enough candidates exist.
func (q *QdrantClient) Search(ctx context.Context, vector []float32, limit int, excludeID string) []domain.SimilarIdea {
	if !q.ensureCollection(ctx) {
		return nil
	}

	fetch := limit
	if excludeID != "" {
		fetch++
	}

	payload := map[string]interface{}{
		"vector":       vector,
		"limit":        fetch,
		"with_payload": true,
	}

	body, err := q.do(ctx, http.MethodPost, "/collections/"+q.cfg.Collection+"/points/search", payload)
	if err != nil {
		slog.Error("qdrant: search failed", "error", err)
		return nil
	}

	var parsed struct {
		Result []struct {
			ID      string  `json:"id"`
			Score   float64 `json:"score"`
			Payload struct {
				Title     string `json:"title"`
				Content   string `json:"content"`
				CreatedAt string `json:"createdAt"`
			} `json:"payload"`
		} `json:"result"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		slog.Error("qdrant: decode search failed", "error", err)
		return nil
	}

	matches := make([]domain.SimilarIdea, 0, limit)
	for _, r := range parsed.Result {
		if r.ID == excludeID {
			continue
		}
		if len(matches) == limit {
			break
		}
		matches = append(matches, domain.SimilarIdea{
			ID:        r.ID,
			Title:     r.Payload.Title,
			Content:   r.Payload.Content,
			Score:     r.Score,
			CreatedAt: r.Payload.CreatedAt,
		})
	}
	return matches
}

// Delete removes the record with the given id. Deleting an id that was
// never indexed is not an error.
func (q *QdrantClient) Delete(ctx context.Context, id string) error {
	if !q.ensureCollection(ctx) {
		return nil
	}

	payload := map[string]interface{}{
		"points": []string{id},
	}
	if _, err := q.do(ctx, http.MethodPost, "/collections/"+q.cfg.Collection+"/points/delete?wait=true", payload); err != nil {
		slog.Error("qdrant: delete failed", "id", id, "error", err)
		return nil
	}

	slog.Debug("qdrant: point deleted", "id", id)
	return nil
}

// do sends one JSON request to the Qdrant REST API.
func (q *QdrantClient) do(ctx context.Context, method, path string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		payloadBytes, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal payload: %w", err)
		}
		reqBody = bytes.NewReader(payloadBytes)
	}

	req, err := http.NewRequestWithContext(ctx, method, q.cfg.URL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if q.cfg.APIKey != "" {
		req.Header.Set("api-key", q.cfg.APIKey)
	}

	resp, err := q.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("qdrant API error (%d): %s", resp.StatusCode, string(body))
	}

	return io.ReadAll(resp.Body)
}
