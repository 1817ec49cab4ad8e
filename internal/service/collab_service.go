package service

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/mastidea/mastidea-server/internal/adapter/store"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/port"
)

// CollabService manages invitations and collaborators on ideas. Only the
// owner invites and revokes; the invitee accepts or declines against
// their own email address.
type CollabService struct {
	store    *store.PostgresStore
	notifier port.UpdatePublisher
}

// NewCollabService creates the collaboration service.
func NewCollabService(st *store.PostgresStore, notifier port.UpdatePublisher) *CollabService {
	return &CollabService{store: st, notifier: notifier}
}

// Invite creates a pending invitation for the email address. Duplicate
// pending invitations to the same address are rejected.
func (s *CollabService) Invite(ctx context.Context, ideaID, inviterID, email string) (*domain.Invitation, error) {
	ok, err := s.store.IsIdeaOwner(ctx, ideaID, inviterID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, port.ErrForbidden
	}

	email = strings.ToLower(strings.TrimSpace(email))
	pending, err := s.store.HasPendingInvitation(ctx, ideaID, email)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, port.ErrDuplicateInvite
	}

	inv, err := s.store.CreateInvitation(ctx, &domain.Invitation{
		ID:          uuid.NewString(),
		IdeaID:      ideaID,
		InviterID:   inviterID,
		InviteeMail: email,
		Status:      domain.InvitationPending,
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Publish(domain.UpdateEvent{IdeaID: ideaID, Type: domain.EventCollaboration, Payload: inv})
	return inv, nil
}

// ListForIdea returns all invitations sent for the idea, owner only.
func (s *CollabService) ListForIdea(ctx context.Context, ideaID, userID string) ([]domain.Invitation, error) {
	ok, err := s.store.IsIdeaOwner(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, port.ErrForbidden
	}
	return s.store.ListInvitationsForIdea(ctx, ideaID)
}

// ListForUser returns pending invitations addressed to the user's email.
func (s *CollabService) ListForUser(ctx context.Context, email string) ([]domain.Invitation, error) {
	return s.store.ListInvitationsForEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
}

// Respond accepts or declines a pending invitation. Only the invitee may
// respond, and accepting grants collaborator access.
func (s *CollabService) Respond(ctx context.Context, invitationID string, user domain.UserContext, accept bool) (*domain.Invitation, error) {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(inv.InviteeMail, user.Email) {
		return nil, port.ErrForbidden
	}
	if inv.Status != domain.InvitationPending {
		return nil, port.ErrInvitationNotFound
	}

	status := domain.InvitationDeclined
	if accept {
		status = domain.InvitationAccepted
	}
	if err := s.store.UpdateInvitationStatus(ctx, invitationID, status); err != nil {
		return nil, err
	}
	inv.Status = status

	if accept {
		err := s.store.AddCollaborator(ctx, &domain.Collaborator{
			ID:     uuid.NewString(),
			IdeaID: inv.IdeaID,
			UserID: user.UserID,
			Email:  user.Email,
		})
		if err != nil {
			return nil, err
		}
	}

	s.notifier.Publish(domain.UpdateEvent{IdeaID: inv.IdeaID, Type: domain.EventCollaboration, Payload: inv})
	return inv, nil
}

// Revoke cancels a pending invitation, owner only.
func (s *CollabService) Revoke(ctx context.Context, invitationID, userID string) error {
	inv, err := s.store.GetInvitationByID(ctx, invitationID)
	if err != nil {
		return err
	}

	ok, err := s.store.IsIdeaOwner(ctx, inv.IdeaID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return port.ErrForbidden
	}
	if inv.Status != domain.InvitationPending {
		return port.ErrInvitationNotFound
	}

	if err := s.store.UpdateInvitationStatus(ctx, invitationID, domain.InvitationRevoked); err != nil {
		return err
	}
	s.notifier.Publish(domain.UpdateEvent{IdeaID: inv.IdeaID, Type: domain.EventCollaboration, Payload: inv})
	return nil
}

// Collaborators lists who has access to the idea besides the owner.
func (s *CollabService) Collaborators(ctx context.Context, ideaID, userID string) ([]domain.Collaborator, error) {
	ok, err := s.store.HasIdeaAccess(ctx, ideaID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, port.ErrForbidden
	}
	return s.store.ListCollaborators(ctx, ideaID)
}

// RemoveCollaborator revokes a collaborator's access, owner only.
func (s *CollabService) RemoveCollaborator(ctx context.Context, ideaID, ownerID, collaboratorUserID string) error {
	ok, err := s.store.IsIdeaOwner(ctx, ideaID, ownerID)
	if err != nil {
		return err
	}
	if !ok {
		return port.ErrForbidden
	}
	if err := s.store.RemoveCollaborator(ctx, ideaID, collaboratorUserID); err != nil {
		return err
	}
	s.notifier.Publish(domain.UpdateEvent{IdeaID: ideaID, Type: domain.EventCollaboration, Payload: collaboratorUserID})
	return nil
}
