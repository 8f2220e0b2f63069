package router

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/skillvault/api/config"
	"github.com/skillvault/api/database"
	"github.com/skillvault/api/handlers"
	admin_handlers "github.com/skillvault/api/handlers/admin"
	auth_handlers "github.com/skillvault/api/handlers/auth"
	course_handlers "github.com/skillvault/api/handlers/course"
	order_handlers "github.com/skillvault/api/handlers/order"
	purchase_handlers "github.com/skillvault/api/handlers/purchase"
	"github.com/skillvault/api/services"
	"github.com/skillvault/api/services/payment"
	"github.com/skillvault/api/services/storage"
	"github.com/skillvault/api/utils/auth"
	"github.com/skillvault/api/utils/cache"
	"github.com/skillvault/api/utils/middleware"
	"gorm.io/gorm"
)

func SetupRoutes(app *fiber.App, store database.Storage, env *config.EnviornmentVariable) {
	if env.JWT_SECRET == "" {
		log.Fatal("JWT_SECRET environment variable is not set")
	}

	jwtIssuer := env.JWT_ISSUER
	if jwtIssuer == "" {
		jwtIssuer = "skillvault-api"
	}

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret: env.JWT_SECRET,
		Expiry: 24 * time.Hour,
		Issuer: jwtIssuer,
	})

	// Get DB instance (type assert from interface)
	db, ok := store.GetDB().(*gorm.DB)
	if !ok {
		log.Fatal("Failed to get GORM DB instance")
	}

	// Redis backs brute force protection and the catalog cache. The API
	// works without it, just with those features disabled.
	redisURL := env.REDIS_URL
	if redisURL == "" {
		redisURL = "redis://localhost:6379/0"
	}
	redisCache, err := cache.NewRedisCache(redisURL)
	if err != nil {
		log.Printf("Warning: Failed to connect to Redis: %v. Brute force protection and catalog caching will be disabled.", err)
		redisCache = nil
	}

	var bruteForceProtection *middleware.BruteForceProtection
	if redisCache != nil {
		bruteForceProtection = middleware.NewBruteForceProtection(redisCache)
	}

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, db)

	var spacesClient *storage.SpacesClient
	if env.SPACES_BUCKET != "" {
		spacesClient, err = storage.NewSpacesClient(storage.SpacesConfig{
			AccessKey: env.SPACES_ACCESS_KEY,
			SecretKey: env.SPACES_SECRET_KEY,
			Bucket:    env.SPACES_BUCKET,
			Region:    env.SPACES_REGION,
			Endpoint:  env.SPACES_ENDPOINT,
			CDNURL:    env.SPACES_CDN_URL,
		})
		if err != nil {
			log.Printf("Warning: Failed to initialize object storage: %v. Course image upload will be disabled.", err)
			spacesClient = nil
		}
	}

	gateway := payment.NewStripeGateway(env.STRIPE_SECRET_KEY)
	purchaseService := services.NewPurchaseService(db, gateway)

	authHandler := auth_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	adminAuthHandler := admin_handlers.NewAuthHandler(db, jwtManager, bruteForceProtection)
	courseHandler := course_handlers.NewCourseHandler(db, spacesClient, redisCache)
	purchaseHandler := purchase_handlers.NewPurchaseHandler(purchaseService)
	orderHandler := order_handlers.NewOrderHandler(purchaseService)

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    env.ALLOWED_ORIGINS,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})

	// Health check endpoint (public)
	app.Get("/ping", handlers.HandleCheckHealth(store))

	// API v1 group
	api := app.Group("/api/v1")

	// User auth routes
	authGroup := api.Group("/auth")
	authGroup.Post("/register", authHandler.Register)
	if bruteForceProtection != nil {
		authGroup.Post("/login", bruteForceProtection.CheckLockout(), authHandler.Login)
	} else {
		authGroup.Post("/login", authHandler.Login)
	}
	authGroup.Post("/logout", authMiddleware.RequireUser(), authHandler.Logout)
	authGroup.Get("/profile", authMiddleware.RequireUser(), authHandler.Profile)

	// Admin auth routes (separate identity space)
	adminAuthGroup := api.Group("/admin/auth")
	adminAuthGroup.Post("/register", adminAuthHandler.Register)
	if bruteForceProtection != nil {
		adminAuthGroup.Post("/login", bruteForceProtection.CheckLockout(), adminAuthHandler.Login)
	} else {
		adminAuthGroup.Post("/login", adminAuthHandler.Login)
	}
	adminAuthGroup.Post("/logout", authMiddleware.RequireAdmin(), adminAuthHandler.Logout)
	adminAuthGroup.Get("/profile", authMiddleware.RequireAdmin(), adminAuthHandler.Profile)

	// Courses routes
	courses := api.Group("/courses")
	courses.Get("/", courseHandler.ListCourses)                                        // Public: List all courses
	courses.Get("/:id", courseHandler.GetCourse)                                       // Public: Get course by ID
	courses.Post("/", authMiddleware.RequireAdmin(), courseHandler.CreateCourse)       // Admin only: Create course
	courses.Put("/:id", authMiddleware.RequireAdmin(), courseHandler.UpdateCourse)     // Creator only: Update course
	courses.Delete("/:id", authMiddleware.RequireAdmin(), courseHandler.DeleteCourse)  // Creator only: Delete course
	courses.Post("/:id/buy", authMiddleware.RequireUser(), purchaseHandler.BuyCourse)  // User: Initiate purchase

	// Purchase routes (all require a user)
	purchases := api.Group("/purchases", authMiddleware.RequireUser())
	purchases.Get("/", purchaseHandler.ListPurchases)
	purchases.Post("/confirm", purchaseHandler.ConfirmPurchase)

	// Order ledger
	api.Post("/orders", authMiddleware.RequireUser(), orderHandler.RecordOrder)
}
