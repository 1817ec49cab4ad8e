package domain

import "time"

// Collaborator is a user granted access to someone else's idea.
type Collaborator struct {
	ID        string    `json:"id"         db:"id"`
	IdeaID    string    `json:"idea_id"    db:"idea_id"`
	UserID    string    `json:"user_id"    db:"user_id"`
	Email     string    `json:"email"      db:"email"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Invitation is a pending offer to collaborate on an idea, addressed by
// email. Delivery of the actual email is external; the backend only keeps
// the record and notifies connected clients.
type Invitation struct {
	ID          string    `json:"id"           db:"id"`
	IdeaID      string    `json:"idea_id"      db:"idea_id"`
	IdeaTitle   string    `json:"idea_title,omitempty"`
	InviterID   string    `json:"inviter_id"   db:"inviter_id"`
	InviteeMail string    `json:"invitee_email" db:"invitee_email"`
	Status      string    `json:"status"       db:"status"`
	CreatedAt   time.Time `json:"created_at"   db:"created_at"`
	RespondedAt *time.Time `json:"responded_at,omitempty" db:"responded_at"`
}

// Invitation status constants.
const (
	InvitationPending  = "PENDING"
	InvitationAccepted = "ACCEPTED"
	InvitationDeclined = "DECLINED"
	InvitationRevoked  = "REVOKED"
)
