package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	"github.com/mastidea/mastidea-server/internal/adapter/store"
	"github.com/mastidea/mastidea-server/internal/middleware"
)

// TagHandler handles the tag catalog and manual tagging of ideas. AI
// tagging happens in the background pipeline; these routes cover the
// manual path.
type TagHandler struct {
	store *store.PostgresStore
}

// NewTagHandler creates a new tag handler.
func NewTagHandler(st *store.PostgresStore) *TagHandler {
	return &TagHandler{store: st}
}

// Register sets up tag routes on a protected group.
func (h *TagHandler) Register(api fiber.Router) {
	api.Get("/tags", h.List)
	api.Post("/ideas/:id/tags", h.Attach)
	api.Delete("/ideas/:id/tags/:tagId", h.Detach)
}

// List returns the whole tag catalog.
func (h *TagHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	tags, err := h.store.ListTags(c.Context())
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"tags": tags, "count": len(tags)})
}

// Attach adds a tag to an idea, creating the tag if it doesn't exist yet.
func (h *TagHandler) Attach(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ideaID := c.Params("id")
	ok, err := h.store.HasIdeaAccess(c.Context(), ideaID, uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	var body struct {
		Name  string `json:"name"`
		Color string `json:"color"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	name := strings.ToLower(strings.TrimSpace(body.Name))
	if name == "" || len(name) >= 30 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "tag name must be 1-29 characters"})
	}
	if body.Color == "" {
		body.Color = "#7257ff"
	}

	tag, err := h.store.UpsertTag(c.Context(), uuid.NewString(), name, body.Color)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if err := h.store.AttachTag(c.Context(), ideaID, tag.ID); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.Status(fiber.StatusCreated).JSON(tag)
}

// Detach removes a tag from an idea; the tag itself stays in the catalog.
func (h *TagHandler) Detach(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ideaID := c.Params("id")
	ok, err := h.store.HasIdeaAccess(c.Context(), ideaID, uc.UserID)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	if !ok {
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	}

	if err := h.store.DetachTag(c.Context(), ideaID, c.Params("tagId")); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"message": "tag removed"})
}
