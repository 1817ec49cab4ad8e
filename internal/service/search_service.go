package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

// SearchService is the semantic similarity pipeline: it decides what text
// to embed and when to index or delete, and composes the embedding provider
// with the vector index. It is the only surface the rest of the application
// talks to for semantic search.
//
// The pipeline never fails a caller for operational reasons. A document
// whose embedding cannot be produced simply stays out of the index (it
// still lives in Postgres), and a search against an unreachable backend
// returns no matches.
type SearchService struct {
	embedder port.EmbeddingProvider
	index    port.VectorIndex
}

// NewSearchService creates the similarity pipeline.
func NewSearchService(embedder port.EmbeddingProvider, index port.VectorIndex) *SearchService {
	return &SearchService{embedder: embedder, index: index}
}

// embeddingText builds the canonical text embedded for a document.
func embeddingText(doc domain.Document) string {
	return fmt.Sprintf("%s\n\n%s", doc.Title, doc.Content)
}

// IndexDocument embeds the document's title and content and upserts it
// into the vector index. When no embedding can be produced the document is
// not indexed; it will show up in semantic search only after a later
// reindex succeeds.
func (s *SearchService) IndexDocument(ctx context.Context, doc domain.Document) {
	vector, err := s.embedder.Embed(ctx, embeddingText(doc))
	if err != nil {
		slog.Error("index document: embed", "id", doc.ID, "error", err)
		return
	}
	if len(vector) == 0 {
		slog.Warn("no embedding produced, document not indexed", "id", doc.ID)
		return
	}

	if err := s.index.Upsert(ctx, port.VectorPoint{
		ID:        doc.ID,
		Vector:    vector,
		Title:     doc.Title,
		Content:   doc.Content,
		CreatedAt: doc.CreatedAt,
	}); err != nil {
		slog.Error("index document: upsert", "id", doc.ID, "error", err)
		return
	}

	slog.Info("document indexed", "id", doc.ID)
}

// ReindexDocument refreshes a document's vector and payload after an edit.
// Upsert overwrites by id, so this is indexing again.
func (s *SearchService) ReindexDocument(ctx context.Context, doc domain.Document) {
	s.IndexDocument(ctx, doc)
}

// FindSimilar embeds the query and returns up to limit nearest neighbors,
// never including excludeID. An unavailable embedding provider or vector
// backend yields an empty list.
func (s *SearchService) FindSimilar(ctx context.Context, query string, limit int, excludeID string) []domain.SimilarIdea {
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		slog.Error("find similar: embed", "error", err)
		return nil
	}
	if len(vector) == 0 {
		slog.Warn("no embedding produced for query, returning no matches")
		return nil
	}

	return s.index.Search(ctx, vector, limit, excludeID)
}

// RemoveDocument deletes the document from the index. Removing a document
// that was never indexed is a no-op.
func (s *SearchService) RemoveDocument(ctx context.Context, id string) {
	if err := s.index.Delete(ctx, id); err != nil {
		slog.Error("remove document", "id", id, "error", err)
	}
}

// RankIdeas cross-references hydrated relational records with vector
// matches, attaching each idea's similarity score and ordering the result
// best-first. Ideas without a matching vector record are dropped, as are
// matches the hydration step refused to return.
func RankIdeas(ideas []domain.Idea, matches []domain.SimilarIdea) []domain.RankedIdea {
	scores := make(map[string]float64, len(matches))
	for _, m := range matches {
		scores[m.ID] = m.Score
	}

	ranked := make([]domain.RankedIdea, 0, len(ideas))
	for _, idea := range ideas {
		score, ok := scores[idea.ID]
		if !ok {
			continue
		}
		ranked = append(ranked, domain.RankedIdea{Idea: idea, SimilarityScore: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].SimilarityScore > ranked[j].SimilarityScore
	})
	return ranked
}
