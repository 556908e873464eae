package main

import (
	"log"
	"os"
	"time"

	"lifelog/database"
	"lifelog/handlers"
	"lifelog/handlers/admin"
	"lifelog/middleware"
	"lifelog/services"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found, using system environment variables")
	}

	validateEnvironment()

	// Initialize database
	database.InitDB()
	defer database.CloseDB()

	// Seed the built-in achievement catalog (upsert-by-name, idempotent)
	catalog := services.NewCatalogService(database.GetDB())
	if err := catalog.SeedDefinitions(services.DefaultCatalog()); err != nil {
		log.Fatalf("❌ Failed to seed achievement catalog: %v", err)
	}

	// Background retry sweep for undelivered achievement notifications
	services.InitNotifySweep(database.GetDB(), services.LogNotifier{}, 5*time.Minute)
	sweep := services.GetNotifySweep()
	sweep.Start()
	defer sweep.Stop()

	// Create Fiber app
	app := fiber.New(fiber.Config{
		ErrorHandler: customErrorHandler,
		BodyLimit:    4 * 1024 * 1024, // 4MB
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	})

	// Global middleware
	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))

	// CORS configuration
	corsOrigins := os.Getenv("CORS_ORIGINS")
	if corsOrigins == "" {
		corsOrigins = "http://localhost:3000"
	}

	app.Use(cors.New(cors.Config{
		AllowOrigins:     corsOrigins,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowCredentials: true,
	}))

	app.Use(middleware.RateLimitMiddleware())

	// API Routes
	api := app.Group("/api")

	// Auth routes with stricter rate limiting
	authGroup := api.Group("/auth")
	authGroup.Use(middleware.AuthRateLimitMiddleware())
	authGroup.Post("/register", handlers.Register)
	authGroup.Post("/login", handlers.Login)

	// Profile routes
	profileGroup := api.Group("/profiles")
	profileGroup.Use(middleware.AuthMiddleware)
	profileGroup.Post("/", handlers.CreateProfile)
	profileGroup.Get("/", handlers.GetProfiles)
	profileGroup.Put("/:id", handlers.UpdateProfile)

	// Moment routes
	momentGroup := api.Group("/moments")
	momentGroup.Use(middleware.AuthMiddleware)
	momentGroup.Post("/", handlers.CreateMoment)
	momentGroup.Get("/", handlers.GetMoments)
	momentGroup.Post("/:id/interactions", handlers.CreateInteraction)

	// Achievement routes
	achievementGroup := api.Group("/achievements")
	achievementGroup.Use(middleware.AuthMiddleware)
	achievementGroup.Post("/check", handlers.CheckAchievements)
	achievementGroup.Get("/", handlers.GetUserAchievements)
	achievementGroup.Get("/stats", handlers.GetUserStats)
	achievementGroup.Get("/:id/estimate", handlers.GetCompletionEstimate)
	achievementGroup.Post("/:id/reset", handlers.ResetAchievement)

	// Leaderboard routes
	api.Get("/leaderboard", handlers.GetLeaderboard)

	// Admin routes
	adminGroup := api.Group("/admin")
	adminGroup.Use(middleware.AdminAuthMiddleware)
	adminGroup.Get("/achievements", admin.GetAchievements)
	adminGroup.Post("/achievements", admin.CreateAchievement)
	adminGroup.Put("/achievements/:id", admin.UpdateAchievement)
	adminGroup.Delete("/achievements/:id", admin.DeleteAchievement)
	adminGroup.Post("/achievements/:id/grant", admin.GrantAchievement)
	adminGroup.Post("/achievements/:id/backfill", admin.BackfillAchievement)

	// Health check endpoint
	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
			"version":   "1.0.0",
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}

	log.Printf("🚀 HTTP server starting on port %s", port)
	log.Printf("📊 Environment: %s", getEnv("APP_ENV", "development"))
	log.Printf("🔐 JWT Secret configured: %v", os.Getenv("JWT_SECRET") != "")

	if err := app.Listen(":" + port); err != nil {
		log.Fatal("Failed to start HTTP server:", err)
	}
}

// validateEnvironment checks for required environment variables
func validateEnvironment() {
	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		log.Fatal("FATAL: JWT_SECRET environment variable must be set. Generate one with: openssl rand -base64 64")
	}
	if len(jwtSecret) < 32 {
		log.Fatal("FATAL: JWT_SECRET must be at least 32 characters long")
	}
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	// Don't expose internal errors in production
	if os.Getenv("APP_ENV") == "production" && code == 500 {
		message = "An error occurred. Please try again later."
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
