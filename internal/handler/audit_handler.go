package handler

import (
	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/adapter/store"
	"github.com/mastidea/mastidea-server/internal/middleware"
)

// AuditHandler exposes the audit trail.
type AuditHandler struct {
	store *store.PostgresStore
}

// NewAuditHandler creates a new audit handler.
func NewAuditHandler(st *store.PostgresStore) *AuditHandler {
	return &AuditHandler{store: st}
}

// Register sets up audit routes.
func (h *AuditHandler) Register(api fiber.Router) {
	audit := api.Group("/audit")
	audit.Get("/logs", h.ListLogs)
}

// ListLogs returns recent audit records, optionally filtered by action.
func (h *AuditHandler) ListLogs(c fiber.Ctx) error {
	uc := middleware.GetUserContext(c)
	if uc == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	limit := queryInt(c, "limit", 100)
	action := c.Query("action", "")

	logs, err := h.store.ListAuditLogs(c.Context(), limit, action)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"logs": logs, "count": len(logs)})
}
