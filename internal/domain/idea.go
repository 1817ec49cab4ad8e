package domain

import "time"

// Idea is a captured free-text idea owned by a user.
type Idea struct {
	ID               string     `json:"id"                db:"id"`
	UserID           string     `json:"user_id"           db:"user_id"`
	Title            string     `json:"title"             db:"title"`
	Content          string     `json:"content"           db:"content"`
	Status           string     `json:"status"            db:"status"` // ACTIVE, ARCHIVED, COMPLETED
	ProcessingStatus string     `json:"processing_status" db:"processing_status"`
	SuccessScore     *int       `json:"success_score,omitempty" db:"success_score"`
	ScoreRationale   string     `json:"score_rationale,omitempty" db:"score_rationale"`
	CreatedAt        time.Time  `json:"created_at"        db:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"        db:"updated_at"`
	DeletedAt        *time.Time `json:"-"                 db:"deleted_at"`

	Expansions    []Expansion    `json:"expansions,omitempty"`
	Tags          []IdeaTag      `json:"tags,omitempty"`
	Collaborators []Collaborator `json:"collaborators,omitempty"`
}

// Idea status constants.
const (
	IdeaStatusActive    = "ACTIVE"
	IdeaStatusArchived  = "ARCHIVED"
	IdeaStatusCompleted = "COMPLETED"
)

// AI processing status constants. An idea is usable as soon as it is
// created; these only describe the background enrichment pipeline.
const (
	ProcessingPending   = "PENDING"
	ProcessingCompleted = "COMPLETED"
	ProcessingFailed    = "FAILED"
)

// ValidIdeaStatus reports whether s is one of the idea status constants.
func ValidIdeaStatus(s string) bool {
	return s == IdeaStatusActive || s == IdeaStatusArchived || s == IdeaStatusCompleted
}
