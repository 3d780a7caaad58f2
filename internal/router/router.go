package router

import (
	"crew-import/internal/config"

	"github.com/gofiber/fiber/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
)

// Setup wires every route. db and redis may be nil; the features backed by
// them then answer 503 while imports keep working.
func Setup(app *fiber.App, db *sqlx.DB, redis *redis.Client, cfg *config.Config) {
	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":   "ok",
			"app":      cfg.AppName,
			"database": db != nil,
			"redis":    redis != nil,
		})
	})

	deps := newDependencies(db, redis, cfg)

	// Web routes (HTML)
	web := app.Group("")
	setupWebRoutes(web, deps)

	// API routes (JSON)
	api := app.Group("/api")
	SetupAPIRoutes(api, deps)
}

func setupWebRoutes(router fiber.Router, deps *dependencies) {
	// Import catalog
	router.Get("/", func(c *fiber.Ctx) error {
		return c.Render("index", fiber.Map{
			"Title":    "Bulk Import",
			"Entities": deps.registry.Schemas(),
		})
	})
}
