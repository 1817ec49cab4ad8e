package vectordb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/port"
)

// fakeQdrant is an in-memory stand-in for the Qdrant REST API, recording
// collection-management and search traffic.
type fakeQdrant struct {
	collections   []string
	createCalls   atomic.Int32
	listCalls     atomic.Int32
	searchLimits  []int
	searchResults []map[string]interface{}
	points        map[string]map[string]interface{}
}

func newFakeQdrant(existing ...string) *fakeQdrant {
	return &fakeQdrant{
		collections: existing,
		points:      make(map[string]map[string]interface{}),
	}
}

func (f *fakeQdrant) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("GET /collections", func(w http.ResponseWriter, r *http.Request) {
		f.listCalls.Add(1)
		type col struct {
			Name string `json:"name"`
		}
		cols := make([]col, 0, len(f.collections))
		for _, name := range f.collections {
			cols = append(cols, col{Name: name})
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"result": map[string]interface{}{"collections": cols},
		})
	})

	mux.HandleFunc("PUT /collections/{name}", func(w http.ResponseWriter, r *http.Request) {
		f.createCalls.Add(1)
		f.collections = append(f.collections, r.PathValue("name"))
		fmt.Fprint(w, `{"result": true}`)
	})

	mux.HandleFunc("PUT /collections/{name}/points", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []map[string]interface{} `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, p := range body.Points {
			f.points[p["id"].(string)] = p
		}
		fmt.Fprint(w, `{"result": {"status": "acknowledged"}}`)
	})

	mux.HandleFunc("POST /collections/{name}/points/search", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Limit int `json:"limit"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		f.searchLimits = append(f.searchLimits, body.Limit)

		results := f.searchResults
		if len(results) > body.Limit {
			results = results[:body.Limit]
		}
		json.NewEncoder(w).Encode(map[string]interface{}{"result": results})
	})

	mux.HandleFunc("POST /collections/{name}/points/delete", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Points []string `json:"points"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		for _, id := range body.Points {
			delete(f.points, id)
		}
		fmt.Fprint(w, `{"result": {"status": "acknowledged"}}`)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(srv *httptest.Server) *QdrantClient {
	return NewQdrantClient(Config{
		URL:        srv.URL,
		Collection: "ideas_test",
		VectorSize: 4,
	})
}

func match(id string, score float64) map[string]interface{} {
	return map[string]interface{}{
		"id":    id,
		"score": score,
		"payload": map[string]string{
			"title":     "title " + id,
			"content":   "content " + id,
			"createdAt": "2026-01-01T00:00:00Z",
		},
	}
}

func TestLazyCollectionCreation(t *testing.T) {
	fake := newFakeQdrant()
	srv := fake.server(t)
	q := newTestClient(srv)

	err := q.Upsert(context.Background(), port.VectorPoint{
		ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{1, 0, 0, 0},
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.createCalls.Load())

	// Second operation must not re-check or re-create.
	err = q.Delete(context.Background(), "11111111-1111-1111-1111-111111111111")
	require.NoError(t, err)
	assert.Equal(t, int32(1), fake.createCalls.Load())
	assert.Equal(t, int32(1), fake.listCalls.Load())
}

func TestExistingCollectionNotRecreated(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	srv := fake.server(t)
	q := newTestClient(srv)

	err := q.Upsert(context.Background(), port.VectorPoint{
		ID: "22222222-2222-2222-2222-222222222222", Vector: []float32{0, 1, 0, 0},
	})
	require.NoError(t, err)
	assert.Zero(t, fake.createCalls.Load())
}

func TestUpsertOverwritesByID(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	srv := fake.server(t)
	q := newTestClient(srv)

	id := "33333333-3333-3333-3333-333333333333"
	require.NoError(t, q.Upsert(context.Background(), port.VectorPoint{
		ID: id, Vector: []float32{1, 0, 0, 0}, Title: "old title",
	}))
	require.NoError(t, q.Upsert(context.Background(), port.VectorPoint{
		ID: id, Vector: []float32{0, 1, 0, 0}, Title: "new title",
	}))

	require.Len(t, fake.points, 1)
	payload := fake.points[id]["payload"].(map[string]interface{})
	assert.Equal(t, "new title", payload["title"])
}

func TestSearchExcludesSelf(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	self := "44444444-4444-4444-4444-444444444444"
	fake.searchResults = []map[string]interface{}{
		match(self, 0.99),
		match("aaaa", 0.91),
		match("bbbb", 0.85),
		match("cccc", 0.70),
	}
	srv := fake.server(t)
	q := newTestClient(srv)

	matches := q.Search(context.Background(), []float32{1, 0, 0, 0}, 3, self)

	// One extra candidate is requested so filtering the self-match still
	// fills the page.
	require.Equal(t, []int{4}, fake.searchLimits)
	require.Len(t, matches, 3)
	for _, m := range matches {
		assert.NotEqual(t, self, m.ID)
	}
	assert.Equal(t, "aaaa", matches[0].ID)
	assert.Equal(t, 0.91, matches[0].Score)
	assert.Equal(t, "title aaaa", matches[0].Title)
	assert.Equal(t, "2026-01-01T00:00:00Z", matches[0].CreatedAt)
}

func TestSearchWithoutExclusionUsesExactLimit(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	fake.searchResults = []map[string]interface{}{match("aaaa", 0.9)}
	srv := fake.server(t)
	q := newTestClient(srv)

	matches := q.Search(context.Background(), []float32{1, 0, 0, 0}, 5, "")
	assert.Equal(t, []int{5}, fake.searchLimits)
	assert.Len(t, matches, 1)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	fake.searchResults = []map[string]interface{}{
		match("aaaa", 0.9),
		match("bbbb", 0.8),
		match("cccc", 0.7),
	}
	srv := fake.server(t)
	q := newTestClient(srv)

	// excludeID set but absent from results: the extra fetched candidate
	// must not leak through.
	matches := q.Search(context.Background(), []float32{1, 0, 0, 0}, 2, "not-present")
	require.Len(t, matches, 2)
	assert.Equal(t, "aaaa", matches[0].ID)
	assert.Equal(t, "bbbb", matches[1].ID)
}

func TestBackendDownIsSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close() // connection refused from here on
	q := newTestClient(srv)

	assert.NoError(t, q.Upsert(context.Background(), port.VectorPoint{
		ID: "55555555-5555-5555-5555-555555555555", Vector: []float32{1, 0, 0, 0},
	}))
	assert.Empty(t, q.Search(context.Background(), []float32{1, 0, 0, 0}, 5, ""))
	assert.NoError(t, q.Delete(context.Background(), "55555555-5555-5555-5555-555555555555"))
}

func TestDeleteUnknownIDIsNoop(t *testing.T) {
	fake := newFakeQdrant("ideas_test")
	srv := fake.server(t)
	q := newTestClient(srv)

	assert.NoError(t, q.Delete(context.Background(), "never-indexed"))
	assert.Empty(t, fake.points)
}

func TestAPIErrorsAreSwallowed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(map[string]interface{}{
				"result": map[string]interface{}{
					"collections": []map[string]string{{"name": "ideas_test"}},
				},
			})
			return
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	q := newTestClient(srv)

	assert.NoError(t, q.Upsert(context.Background(), port.VectorPoint{
		ID: "66666666-6666-6666-6666-666666666666", Vector: []float32{1, 0, 0, 0},
	}))
	assert.Empty(t, q.Search(context.Background(), []float32{1, 0, 0, 0}, 5, ""))
	assert.NoError(t, q.Delete(context.Background(), "66666666-6666-6666-6666-666666666666"))
}
