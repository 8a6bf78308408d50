package http

import (
	"github.com/adboard/backend/internal/config"
	"github.com/adboard/backend/internal/http/handlers"
	"github.com/adboard/backend/internal/middleware"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func SetupRouter(
	app *fiber.App,
	cfg *config.Config,
	log *zap.Logger,
	rdb *redis.Client,
	authHandler *handlers.AuthHandler,
	userHandler *handlers.UserHandler,
	adHandler *handlers.AdvertisementHandler,
	wsHub *handlers.WSHub,
) {
	// Global middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	app.Use(middleware.RequestIDMiddleware())
	app.Use(middleware.LoggerMiddleware(log))

	// Health check
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	api := app.Group("/api/v1")
	api.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitRequests, cfg.RateLimitWindow))

	// Auth (public)
	api.Post("/auth/register", authHandler.Register)
	api.Post("/auth/login", authHandler.Login)

	// Advertisements: reads are public, writes require auth.
	api.Get("/advertisements", adHandler.List)
	api.Get("/advertisements/:id", adHandler.Get)

	protected := api.Group("", middleware.AuthMiddleware(cfg, log))

	protected.Get("/me", userHandler.GetMe)

	protected.Post("/advertisements", adHandler.Create)
	protected.Patch("/advertisements/:id", adHandler.Update)
	protected.Delete("/advertisements/:id", adHandler.Delete)

	// WebSocket
	app.Use("/ws", handlers.WSUpgradeMiddleware())
	app.Get("/ws", websocket.New(wsHub.HandleWS))
}
