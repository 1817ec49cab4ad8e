package middleware

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/mastidea/mastidea-server/internal/domain"
)

// AuditWriter defines how audit records are persisted.
type AuditWriter interface {
	WriteAudit(userID, action, resource, resourceID, details, ip, userAgent string) error
}

// AuditMiddleware records every API request asynchronously so a slow
// audit store never delays a response.
func AuditMiddleware(writer AuditWriter) fiber.Handler {
	return func(c fiber.Ctx) error {
		start := time.Now()

		// Capture request data before handler execution (Fiber reuses
		// context objects)
		method := c.Method()
		path := c.Path()
		ip := c.IP()
		userAgent := c.Get("User-Agent")

		err := c.Next()

		userID := "anonymous"
		if uc := GetUserContext(c); uc != nil {
			userID = uc.UserID
		}

		statusCode := c.Response().StatusCode()
		details := map[string]interface{}{
			"method":      method,
			"path":        path,
			"status":      statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
		}
		detailsJSON, _ := json.Marshal(details)

		action := actionFor(method, path)

		go func() {
			if writeErr := writer.WriteAudit(
				userID,
				action,
				"api",
				path,
				string(detailsJSON),
				ip,
				userAgent,
			); writeErr != nil {
				slog.Error("failed to write audit log", "error", writeErr)
			}
		}()

		return err
	}
}

// actionFor classifies a request into one of the domain audit actions,
// falling back to a generic label for anything else. Paths are the ones
// registered on the /api/v1 group.
func actionFor(method, path string) string {
	path = strings.TrimSuffix(path, "/")

	switch {
	case strings.Contains(path, "/expand") || strings.Contains(path, "/summarize") || strings.Contains(path, "/chat"):
		return domain.AuditActionExpansion
	case strings.Contains(path, "/invitations") || strings.Contains(path, "/collaborators"):
		return domain.AuditActionInvitation
	case strings.HasPrefix(path, "/api/v1/search"):
		return domain.AuditActionSemanticSearch
	case method == fiber.MethodPost && path == "/api/v1/ideas":
		return domain.AuditActionIdeaCreate
	}

	// The remaining idea actions only apply to /api/v1/ideas/:id itself,
	// not to nested resources like tags.
	if rest, ok := strings.CutPrefix(path, "/api/v1/ideas/"); ok && !strings.Contains(rest, "/") {
		switch method {
		case fiber.MethodPut:
			return domain.AuditActionIdeaEdit
		case fiber.MethodDelete:
			return domain.AuditActionIdeaDelete
		}
	}

	return "http_request"
}
