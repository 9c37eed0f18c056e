package routes

import (
	"github.com/gofiber/fiber/v2"

	"github.com/NavalEP/carechat-engine/internal/handlers"
	"github.com/NavalEP/carechat-engine/internal/middleware"
)

// SetupRoutes configures all API routes.
func SetupRoutes(app *fiber.App, auth *handlers.AuthHandler, chat *handlers.ChatHandler, health *handlers.HealthHandler) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"message": "Welcome to CareChat Engine",
			"endpoints": fiber.Map{
				"health": "/health",
				"api":    "/api",
			},
		})
	})

	app.Get("/health", health.Check)

	api := app.Group("/api")

	// Auth routes; no token needed to obtain one.
	authGroup := api.Group("/auth")
	authGroup.Post("/otp/send", auth.SendOTP)
	authGroup.Post("/otp/verify", auth.VerifyOTP)
	authGroup.Post("/logout", auth.Logout)

	// Chat routes behind the bearer-token guard.
	chatGroup := api.Group("/chat", middleware.RequireAuth())
	chatGroup.Post("/start", chat.Start)
	chatGroup.Post("/message", chat.SendMessage)
	chatGroup.Post("/classify", chat.Classify)
	chatGroup.Get("/history", chat.History)
	chatGroup.Post("/select", chat.SelectOption)
	chatGroup.Post("/treatment/select", chat.SelectTreatment)
	chatGroup.Get("/treatments", chat.SearchTreatments)
	chatGroup.Post("/new-inquiry", chat.NewInquiry)
	chatGroup.Post("/upload", chat.UploadDocument)
}
