package handler

import (
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/middleware"
	"github.com/mastidea/mastidea-server/internal/service"
)

// SearchHandler exposes semantic search over the user's ideas.
type SearchHandler struct {
	ideas *service.IdeaService
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(ideas *service.IdeaService) *SearchHandler {
	return &SearchHandler{ideas: ideas}
}

// Register sets up search routes on a protected group.
func (h *SearchHandler) Register(api fiber.Router) {
	api.Get("/search/semantic", h.Semantic)
}

// Semantic finds the user's ideas closest in meaning to a free-text
// query. An empty result can mean no matches or search being unavailable;
// callers should treat both the same way.
func (h *SearchHandler) Semantic(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		return c.JSON(fiber.Map{"ideas": []domain.RankedIdea{}, "count": 0})
	}

	limit := queryInt(c, "limit", 10)
	ranked, err := h.ideas.SemanticSearch(c.Context(), uc.UserID, q, limit)
	if err != nil {
		return serviceError(c, err)
	}
	if ranked == nil {
		ranked = []domain.RankedIdea{}
	}

	return c.JSON(fiber.Map{"ideas": ranked, "count": len(ranked)})
}
