package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/middleware"
	"github.com/mastidea/mastidea-server/internal/service"
)

// CollaborationHandler handles invitations and collaborator management.
type CollaborationHandler struct {
	collab *service.CollabService
}

// NewCollaborationHandler creates a new collaboration handler.
func NewCollaborationHandler(collab *service.CollabService) *CollaborationHandler {
	return &CollaborationHandler{collab: collab}
}

// Register sets up collaboration routes on a protected group.
func (h *CollaborationHandler) Register(api fiber.Router) {
	api.Get("/invitations", h.ListMine)
	api.Post("/invitations/:id/respond", h.Respond)
	api.Delete("/invitations/:id", h.Revoke)

	api.Post("/ideas/:id/invitations", h.Invite)
	api.Get("/ideas/:id/invitations", h.ListForIdea)
	api.Get("/ideas/:id/collaborators", h.Collaborators)
	api.Delete("/ideas/:id/collaborators/:userId", h.RemoveCollaborator)
}

// Invite sends a collaboration invitation by email; owner only.
func (h *CollaborationHandler) Invite(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Email string `json:"email"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if !strings.Contains(body.Email, "@") {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid email"})
	}

	inv, err := h.collab.Invite(c.Context(), c.Params("id"), uc.UserID, body.Email)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(inv)
}

// ListForIdea returns all invitations sent for the idea; owner only.
func (h *CollaborationHandler) ListForIdea(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	invs, err := h.collab.ListForIdea(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"invitations": invs, "count": len(invs)})
}

// ListMine returns pending invitations addressed to the current user.
func (h *CollaborationHandler) ListMine(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	invs, err := h.collab.ListForUser(c.Context(), uc.Email)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"invitations": invs, "count": len(invs)})
}

// Respond accepts or declines an invitation addressed to the current user.
func (h *CollaborationHandler) Respond(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Accept bool `json:"accept"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	inv, err := h.collab.Respond(c.Context(), c.Params("id"), *uc, body.Accept)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(inv)
}

// Revoke cancels a pending invitation; owner only.
func (h *CollaborationHandler) Revoke(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.collab.Revoke(c.Context(), c.Params("id"), uc.UserID); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "invitation revoked"})
}

// Collaborators lists who has access to the idea besides the owner.
func (h *CollaborationHandler) Collaborators(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	collabs, err := h.collab.Collaborators(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"collaborators": collabs, "count": len(collabs)})
}

// RemoveCollaborator revokes a collaborator's access; owner only.
func (h *CollaborationHandler) RemoveCollaborator(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.collab.RemoveCollaborator(c.Context(), c.Params("id"), uc.UserID, c.Params("userId")); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "collaborator removed"})
}
