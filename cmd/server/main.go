package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/mastidea/mastidea-server/internal/adapter/ai"
	"github.com/mastidea/mastidea-server/internal/adapter/store"
	"github.com/mastidea/mastidea-server/internal/adapter/vectordb"
	"github.com/mastidea/mastidea-server/internal/handler"
	"github.com/mastidea/mastidea-server/internal/mcp"
	"github.com/mastidea/mastidea-server/internal/middleware"
	"github.com/mastidea/mastidea-server/internal/port"
	"github.com/mastidea/mastidea-server/internal/service"
	"github.com/mastidea/mastidea-server/pkg/config"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/limiter"
	fiberlogger "github.com/gofiber/fiber/v3/middleware/logger"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/joho/godotenv"

	_ "github.com/lib/pq"
)

func main() {
	// ── Load .env file ───────────────────────────────────────────────────
	_ = godotenv.Load() // silently ignore if .env doesn't exist

	// ── Configuration ────────────────────────────────────────────────────
	cfg := config.Load()

	slog.Info("🚀 Starting MastIdea",
		"port", cfg.Port,
		"qdrant", cfg.QdrantURL,
		"embed_model", cfg.EmbedModel,
		"chat_model", cfg.OpenRouterModel,
		"mcp_enabled", cfg.MCPEnabled,
	)

	// ── Database ─────────────────────────────────────────────────────────
	pgStore, err := store.NewPostgresStore(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pgStore.Close()

	// ── Vector index ─────────────────────────────────────────────────────
	qdrant := vectordb.NewQdrantClient(vectordb.Config{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.QdrantCollection,
		VectorSize: cfg.VectorSize,
	})

	// ── Embedding providers (primary + fallback, in order) ───────────────
	var embedProviders []port.EmbeddingProvider
	if cfg.OpenAIAPIKey != "" {
		embedProviders = append(embedProviders, ai.NewEmbeddingsClient(ai.EmbeddingsConfig{
			BaseURL: cfg.OpenAIBaseURL,
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.EmbedModel,
		}))
	}
	if cfg.EmbedFallbackAPIKey != "" {
		embedProviders = append(embedProviders, ai.NewEmbeddingsClient(ai.EmbeddingsConfig{
			BaseURL: cfg.EmbedFallbackBaseURL,
			APIKey:  cfg.EmbedFallbackAPIKey,
			Model:   cfg.EmbedFallbackModel,
		}))
	}
	if len(embedProviders) == 0 {
		slog.Warn("no embedding provider configured, similarity search disabled")
	}
	embedder := ai.NewFallbackEmbedder(embedProviders...)

	// ── Chat provider ────────────────────────────────────────────────────
	openRouter := ai.NewOpenRouterClient(ai.OpenRouterConfig{
		APIKey:  cfg.OpenRouterAPIKey,
		Model:   cfg.OpenRouterModel,
		BaseURL: cfg.OpenRouterBaseURL,
		Referer: cfg.FrontendURL,
		AppName: cfg.AppName,
	})
	engine := ai.NewExpansionEngine(openRouter)

	// ── Services ─────────────────────────────────────────────────────────
	hub := handler.NewUpdateHub()
	searchService := service.NewSearchService(embedder, qdrant)
	ideaService := service.NewIdeaService(pgStore, openRouter, engine, searchService, hub)
	collabService := service.NewCollabService(pgStore, hub)

	// ── Fiber App ────────────────────────────────────────────────────────
	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: []string{cfg.FrontendURL},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
	}))
	app.Use(limiter.New(limiter.Config{
		Max:        120,
		Expiration: time.Minute,
	}))

	// Audit middleware (logs all requests)
	app.Use(middleware.AuditMiddleware(pgStore))

	// Health check
	app.Get("/api/v1/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"app":     cfg.AppName,
			"version": "1.0.0",
		})
	})

	// ── Protected Routes ─────────────────────────────────────────────────
	jwtMiddleware := middleware.JWTMiddleware(middleware.JWTConfig{
		Secret:    cfg.JWTSecret,
		Issuer:    cfg.JWTIssuer,
		ExpiresIn: time.Duration(cfg.JWTExpiration) * time.Hour,
	})

	api := app.Group("/api/v1", jwtMiddleware)

	ideaHandler := handler.NewIdeaHandler(ideaService, hub)
	ideaHandler.Register(api)

	searchHandler := handler.NewSearchHandler(ideaService)
	searchHandler.Register(api)

	tagHandler := handler.NewTagHandler(pgStore)
	tagHandler.Register(api)

	collabHandler := handler.NewCollaborationHandler(collabService)
	collabHandler.Register(api)

	auditHandler := handler.NewAuditHandler(pgStore)
	auditHandler.Register(api)

	// ── MCP Server (separate port) ───────────────────────────────────────
	if cfg.MCPEnabled {
		mcpServer := mcp.NewServer(searchService, engine, openRouter, pgStore, cfg.MCPPort)
		go func() {
			if err := mcpServer.Start(); err != nil {
				slog.Error("MCP server failed", "error", err)
			}
		}()
	}

	// ── Start ────────────────────────────────────────────────────────────
	slog.Info("🌐 Fiber listening", "port", cfg.Port)
	if err := app.Listen(":" + cfg.Port); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}
