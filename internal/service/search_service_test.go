package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

type fakeEmbedder struct {
	vector   []float32
	err      error
	lastText string
	calls    int
}

func (f *fakeEmbedder) Name() string { return "fake" }

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	f.lastText = text
	return f.vector, f.err
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

type fakeIndex struct {
	points map[string]port.VectorPoint

	searchResult  []domain.SimilarIdea
	lastVector    []float32
	lastLimit     int
	lastExcludeID string
	deleted       []string
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{points: make(map[string]port.VectorPoint)}
}

func (f *fakeIndex) Upsert(_ context.Context, point port.VectorPoint) error {
	f.points[point.ID] = point
	return nil
}

func (f *fakeIndex) Search(_ context.Context, vector []float32, limit int, excludeID string) []domain.SimilarIdea {
	f.lastVector = vector
	f.lastLimit = limit
	f.lastExcludeID = excludeID
	return f.searchResult
}

func (f *fakeIndex) Delete(_ context.Context, id string) error {
	f.deleted = append(f.deleted, id)
	delete(f.points, id)
	return nil
}

func TestIndexDocumentEmbedsTitleAndContent(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1, 0.2}}
	index := newFakeIndex()
	svc := NewSearchService(embedder, index)

	svc.IndexDocument(context.Background(), domain.Document{
		ID:        "idea-1",
		Title:     "Solar balconies",
		Content:   "Plug-in panels for apartment renters",
		CreatedAt: "2026-01-01T00:00:00Z",
	})

	assert.Equal(t, "Solar balconies\n\nPlug-in panels for apartment renters", embedder.lastText)

	require.Contains(t, index.points, "idea-1")
	point := index.points["idea-1"]
	assert.Equal(t, []float32{0.1, 0.2}, point.Vector)
	assert.Equal(t, "Solar balconies", point.Title)
	assert.Equal(t, "Plug-in panels for apartment renters", point.Content)
	assert.Equal(t, "2026-01-01T00:00:00Z", point.CreatedAt)
}

func TestIndexDocumentSkipsOnEmptyVector(t *testing.T) {
	embedder := &fakeEmbedder{vector: nil}
	index := newFakeIndex()
	svc := NewSearchService(embedder, index)

	svc.IndexDocument(context.Background(), domain.Document{ID: "idea-1", Title: "t", Content: "c"})

	assert.Empty(t, index.points, "documents without an embedding must stay out of the index")
}

func TestIndexDocumentSkipsOnEmbedError(t *testing.T) {
	embedder := &fakeEmbedder{err: errors.New("provider exploded")}
	index := newFakeIndex()
	svc := NewSearchService(embedder, index)

	svc.IndexDocument(context.Background(), domain.Document{ID: "idea-1", Title: "t", Content: "c"})

	assert.Empty(t, index.points)
}

func TestReindexOverwrites(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.3}}
	index := newFakeIndex()
	svc := NewSearchService(embedder, index)

	svc.IndexDocument(context.Background(), domain.Document{ID: "idea-1", Title: "old", Content: "old text"})
	svc.ReindexDocument(context.Background(), domain.Document{ID: "idea-1", Title: "new", Content: "new text"})

	require.Len(t, index.points, 1)
	assert.Equal(t, "new", index.points["idea-1"].Title)
}

func TestFindSimilarForwardsLimitAndExclusion(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.7, 0.7}}
	index := newFakeIndex()
	index.searchResult = []domain.SimilarIdea{{ID: "idea-2", Score: 0.88}}
	svc := NewSearchService(embedder, index)

	matches := svc.FindSimilar(context.Background(), "query text", 7, "idea-1")

	require.Len(t, matches, 1)
	assert.Equal(t, []float32{0.7, 0.7}, index.lastVector)
	assert.Equal(t, 7, index.lastLimit)
	assert.Equal(t, "idea-1", index.lastExcludeID)
}

func TestFindSimilarWithoutEmbeddingReturnsNothing(t *testing.T) {
	embedder := &fakeEmbedder{vector: nil}
	index := newFakeIndex()
	index.searchResult = []domain.SimilarIdea{{ID: "idea-2", Score: 0.88}}
	svc := NewSearchService(embedder, index)

	matches := svc.FindSimilar(context.Background(), "query", 5, "")
	assert.Empty(t, matches)
	assert.Nil(t, index.lastVector, "the index must not be queried without a vector")
}

func TestRemoveDocument(t *testing.T) {
	embedder := &fakeEmbedder{vector: []float32{0.1}}
	index := newFakeIndex()
	svc := NewSearchService(embedder, index)

	svc.IndexDocument(context.Background(), domain.Document{ID: "idea-1", Title: "t", Content: "c"})
	svc.RemoveDocument(context.Background(), "idea-1")

	assert.Empty(t, index.points)
	assert.Equal(t, []string{"idea-1"}, index.deleted)
}

func TestRankIdeasOrdersByScore(t *testing.T) {
	ideas := []domain.Idea{
		{ID: "low", Title: "low scorer"},
		{ID: "high", Title: "high scorer"},
		{ID: "mid", Title: "middle scorer"},
	}
	matches := []domain.SimilarIdea{
		{ID: "high", Score: 0.95},
		{ID: "mid", Score: 0.80},
		{ID: "low", Score: 0.40},
	}

	ranked := RankIdeas(ideas, matches)
	require.Len(t, ranked, 3)
	assert.Equal(t, "high", ranked[0].ID)
	assert.Equal(t, "mid", ranked[1].ID)
	assert.Equal(t, "low", ranked[2].ID)
	assert.Equal(t, 0.95, ranked[0].SimilarityScore)
}

func TestRankIdeasDropsUnmatchedIdeas(t *testing.T) {
	ideas := []domain.Idea{
		{ID: "matched"},
		{ID: "stale"}, // hydrated but missing from the vector matches
	}
	matches := []domain.SimilarIdea{{ID: "matched", Score: 0.5}}

	ranked := RankIdeas(ideas, matches)
	require.Len(t, ranked, 1)
	assert.Equal(t, "matched", ranked[0].ID)
}

func TestRankIdeasDropsInaccessibleMatches(t *testing.T) {
	// A match whose relational record was withheld (deleted, or not
	// visible to the caller) simply disappears from the ranking.
	ideas := []domain.Idea{{ID: "visible"}}
	matches := []domain.SimilarIdea{
		{ID: "visible", Score: 0.7},
		{ID: "withheld", Score: 0.9},
	}

	ranked := RankIdeas(ideas, matches)
	require.Len(t, ranked, 1)
	assert.Equal(t, "visible", ranked[0].ID)
}
