package handler

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/domain"
	"github.com/mastidea/mastidea-server/internal/middleware"
	"github.com/mastidea/mastidea-server/internal/port"
	"github.com/mastidea/mastidea-server/internal/service"
)

// IdeaHandler handles the idea lifecycle: CRUD, AI expansions, similarity
// lookups and the per-idea update stream.
type IdeaHandler struct {
	ideas *service.IdeaService
	hub   *UpdateHub
}

// NewIdeaHandler creates a new idea handler.
func NewIdeaHandler(ideas *service.IdeaService, hub *UpdateHub) *IdeaHandler {
	return &IdeaHandler{ideas: ideas, hub: hub}
}

// Register sets up idea routes on a protected group.
func (h *IdeaHandler) Register(api fiber.Router) {
	ideas := api.Group("/ideas")
	ideas.Get("/", h.List)
	ideas.Post("/", h.Create)
	ideas.Get("/:id", h.Get)
	ideas.Put("/:id", h.Edit)
	ideas.Delete("/:id", h.Delete)
	ideas.Post("/:id/fork", h.Fork)
	ideas.Patch("/:id/status", h.SetStatus)
	ideas.Post("/:id/expand", h.Expand)
	ideas.Post("/:id/summarize", h.Summarize)
	ideas.Post("/:id/evaluate", h.Evaluate)
	ideas.Post("/:id/chat", h.Chat)
	ideas.Get("/:id/similar", h.Similar)
	ideas.Get("/:id/updates", h.StreamUpdates)
}

// List returns the user's ideas (own plus shared), optionally filtered by
// status, paginated.
func (h *IdeaHandler) List(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	status := c.Query("status")
	if status != "" && !domain.ValidIdeaStatus(status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
	}

	limit := queryInt(c, "limit", 50)
	offset := queryInt(c, "offset", 0)

	ideas, total, err := h.ideas.List(c.Context(), uc.UserID, status, limit, offset)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"ideas": ideas, "total": total})
}

// Create captures a new idea. Title is optional; a missing title is
// generated by AI in the background.
func (h *IdeaHandler) Create(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}

	body.Content = strings.TrimSpace(body.Content)
	if body.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "content is required"})
	}

	idea, err := h.ideas.Create(c.Context(), uc.UserID, strings.TrimSpace(body.Title), body.Content)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(idea)
}

// Get returns one idea with expansions, tags and collaborators.
func (h *IdeaHandler) Get(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	idea, err := h.ideas.Get(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(idea)
}

// Edit replaces the idea's title and content.
func (h *IdeaHandler) Edit(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(body.Title) == "" || strings.TrimSpace(body.Content) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "title and content are required"})
	}

	idea, err := h.ideas.Edit(c.Context(), c.Params("id"), uc.UserID, body.Title, body.Content)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(idea)
}

// Delete soft-deletes the idea; owner only.
func (h *IdeaHandler) Delete(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	if err := h.ideas.Delete(c.Context(), c.Params("id"), uc.UserID); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"message": "idea deleted"})
}

// Fork copies the idea into a new one owned by the caller, optionally
// carrying over expansions and tags.
func (h *IdeaHandler) Fork(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		IncludeExpansions bool `json:"include_expansions"`
		IncludeTags       bool `json:"include_tags"`
	}
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&body); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
		}
	}

	fork, err := h.ideas.Fork(c.Context(), c.Params("id"), uc.UserID, body.IncludeExpansions, body.IncludeTags)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fork)
}

// SetStatus moves the idea between ACTIVE, ARCHIVED and COMPLETED.
func (h *IdeaHandler) SetStatus(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if !domain.ValidIdeaStatus(body.Status) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid status"})
	}

	if err := h.ideas.SetStatus(c.Context(), c.Params("id"), uc.UserID, body.Status); err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{"status": body.Status})
}

// Expand generates one expansion of the requested type.
func (h *IdeaHandler) Expand(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Type string `json:"type"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if !domain.ValidExpandableType(body.Type) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid expansion type"})
	}

	expansion, err := h.ideas.Expand(c.Context(), c.Params("id"), uc.UserID, body.Type)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(expansion)
}

// Summarize produces an executive summary of the idea and its expansions.
func (h *IdeaHandler) Summarize(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	expansion, err := h.ideas.Summarize(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(expansion)
}

// Evaluate scores the idea's likelihood of success.
func (h *IdeaHandler) Evaluate(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	idea, err := h.ideas.Evaluate(c.Context(), c.Params("id"), uc.UserID)
	if err != nil {
		return serviceError(c, err)
	}

	return c.JSON(fiber.Map{
		"success_score":   idea.SuccessScore,
		"score_rationale": idea.ScoreRationale,
	})
}

// Chat answers a free-form question about the idea.
func (h *IdeaHandler) Chat(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var body struct {
		Message string `json:"message"`
	}
	if err := c.Bind().JSON(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(body.Message) == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "message is required"})
	}

	expansion, err := h.ideas.Chat(c.Context(), c.Params("id"), uc.UserID, body.Message)
	if err != nil {
		return serviceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(expansion)
}

// Similar returns ideas semantically close to this one, ranked by score.
// An empty list can mean no matches or search being unavailable.
func (h *IdeaHandler) Similar(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit := queryInt(c, "limit", 5)
	ranked, err := h.ideas.SimilarIdeas(c.Context(), c.Params("id"), uc.UserID, limit)
	if err != nil {
		return serviceError(c, err)
	}
	if ranked == nil {
		ranked = []domain.RankedIdea{}
	}

	return c.JSON(fiber.Map{"ideas": ranked, "count": len(ranked)})
}

// StreamUpdates streams the idea's background processing and collaboration
// events via SSE.
func (h *IdeaHandler) StreamUpdates(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	ideaID := c.Params("id")
	if _, err := h.ideas.Get(c.Context(), ideaID, uc.UserID); err != nil {
		return serviceError(c, err)
	}

	return h.hub.StreamSSE(c, ideaID)
}

// serviceError maps service-layer errors onto HTTP status codes.
func serviceError(c fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, port.ErrIdeaNotFound),
		errors.Is(err, port.ErrTagNotFound),
		errors.Is(err, port.ErrInvitationNotFound):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrForbidden):
		return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": "forbidden"})
	case errors.Is(err, port.ErrUnauthorized):
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	case errors.Is(err, port.ErrDuplicateInvite):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, port.ErrRateLimited):
		return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{"error": "rate limited, try again later"})
	case errors.Is(err, port.ErrNotConfigured):
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "AI provider not configured"})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}

// queryInt reads an integer query param with a default value.
func queryInt(c fiber.Ctx, key string, defaultVal int) int {
	v := c.Query(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
