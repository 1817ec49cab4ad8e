package domain

import "time"

// Expansion is an AI-generated follow-on for an idea: the automatic first
// exploration, suggestions, questions, connections, use cases, challenges,
// an executive summary, or a chat exchange.
type Expansion struct {
	ID          string    `json:"id"           db:"id"`
	IdeaID      string    `json:"idea_id"      db:"idea_id"`
	Type        string    `json:"type"         db:"type"`
	Content     string    `json:"content"      db:"content"`
	UserMessage string    `json:"user_message,omitempty" db:"user_message"`
	AIModel     string    `json:"ai_model"     db:"ai_model"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
}

// Expansion type constants.
const (
	ExpansionAuto       = "AUTO_EXPANSION"
	ExpansionSuggestion = "SUGGESTION"
	ExpansionQuestion   = "QUESTION"
	ExpansionConnection = "CONNECTION"
	ExpansionUseCase    = "USE_CASE"
	ExpansionChallenge  = "CHALLENGE"
	ExpansionSummary    = "SUMMARY"
	ExpansionChat       = "CHAT"
)

// ExpandableTypes are the expansion types a user may request explicitly
// via the expand endpoint.
var ExpandableTypes = []string{
	ExpansionSuggestion,
	ExpansionQuestion,
	ExpansionConnection,
	ExpansionUseCase,
	ExpansionChallenge,
}

// ValidExpandableType reports whether t can be requested via expand.
func ValidExpandableType(t string) bool {
	for _, v := range ExpandableTypes {
		if v == t {
			return true
		}
	}
	return false
}
