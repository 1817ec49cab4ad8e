package port

import (
	"context"

	"github.com/mastidea/mastidea-server/internal/domain"
)

// VectorPoint is one record in the vector index. The payload is a
// denormalized copy of the idea so search results can be displayed without
// a second lookup.
type VectorPoint struct {
	ID        string    `json:"id"`
	Vector    []float32 `json:"vector"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt string    `json:"created_at"`
}

// VectorIndex is nearest-neighbor CRUD over a single vector collection.
//
// Implementations own the collection lifecycle (lazy create-if-not-exists
// with a fixed dimensionality and cosine metric) and swallow backend
// errors: operations log and return empty results / no-op rather than
// propagate, so the surrounding application keeps working when the vector
// backend is down.
type VectorIndex interface {
	// Upsert inserts or overwrites the record with point.ID.
	// Precondition: callers skip the call entirely for empty vectors;
	// degenerate records are never stored.
	Upsert(ctx context.Context, point VectorPoint) error

	// Search returns up to limit nearest neighbors. When excludeID is
	// non-empty it is guaranteed absent from the results, and the caller
	// still gets limit matches whenever enough other candidates exist.
	Search(ctx context.Context, vector []float32, limit int, excludeID string) []domain.SimilarIdea

	// Delete removes the record; deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}
