package domain

// UserContext is the authenticated user context injected into request
// handlers. Identity itself lives with the external provider; this backend
// only verifies the bearer token and carries the claims along.
type UserContext struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
}
