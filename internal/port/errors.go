package port

import "errors"

// Sentinel errors used across ports.
var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrTokenExpired       = errors.New("token expired")
	ErrTokenInvalid       = errors.New("token invalid")
	ErrIdeaNotFound       = errors.New("idea not found")
	ErrTagNotFound        = errors.New("tag not found")
	ErrInvitationNotFound = errors.New("invitation not found")
	ErrDuplicateInvite    = errors.New("invitation already pending")
	ErrRateLimited        = errors.New("provider rate limited")
	ErrNotConfigured      = errors.New("provider not configured")
)
