package domain

// Document is the embeddable view of an idea handed to the similarity
// pipeline. ID matches the owning idea's id and is stable across
// re-indexing: upserting the same id overwrites, never duplicates.
type Document struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// SimilarIdea is one ranked nearest-neighbor result. Title, content and
// createdAt are copied from the vector record's payload so results can be
// displayed without a relational lookup. Higher score means more similar
// under cosine distance.
type SimilarIdea struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Content   string  `json:"content"`
	Score     float64 `json:"score"`
	CreatedAt string  `json:"created_at"`
}

// RankedIdea is a fully hydrated idea paired with its similarity score.
type RankedIdea struct {
	Idea
	SimilarityScore float64 `json:"similarity_score"`
}
