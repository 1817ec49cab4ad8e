package domain

import "time"

// UpdateEvent is pushed to clients watching an idea while background AI
// processing and collaboration changes happen.
type UpdateEvent struct {
	IdeaID  string      `json:"idea_id"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload,omitempty"`
	At      time.Time   `json:"at"`
}

// Update event types.
const (
	EventConnected       = "connected"
	EventTitleUpdated    = "title_updated"
	EventTagsUpdated     = "tags_updated"
	EventExpansionAdded  = "expansion_added"
	EventScoreUpdated    = "score_updated"
	EventProcessingDone  = "processing_done"
	EventProcessingError = "processing_error"
	EventCollaboration   = "collaboration_changed"
)
