package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"budgetbuddy/internal/config"
	"budgetbuddy/internal/database"
	"budgetbuddy/internal/handlers"
	"budgetbuddy/internal/logger"
	"budgetbuddy/internal/middleware"
	"budgetbuddy/internal/notify"
	"budgetbuddy/internal/services"
	"budgetbuddy/internal/validator"

	_ "budgetbuddy/internal/docs" // Import swagger docs
)

// @title           BudgetBuddy API
// @version         1.0
// @description     BudgetBuddy tracks income and expenses and serves summaries, category breakdowns and monthly trends.

// @host      localhost:5000
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

func main() {
	// Initialize logger (use ENV var if available, default to development)
	logger.Init(os.Getenv("ENV"))
	defer logger.Sync()

	if err := run(); err != nil {
		logger.Get().Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	log := logger.Get()

	// Load configuration
	appConfig, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if appConfig.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize database configuration
	dbConfig, err := database.NewConfig()
	if err != nil {
		return fmt.Errorf("failed to load database configuration: %w", err)
	}

	// Create database manager
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	validator.Register()

	// Initialize services
	db := dbManager.DB()
	categoryService := services.NewCategoryService(db)
	userService := services.NewUserService(db, categoryService)
	transactionService := services.NewTransactionService(db, categoryService)
	analyticsService := services.NewAnalyticsService(db)
	auditService := services.NewAuditService(db)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	categoryHandler := handlers.NewCategoryHandler(categoryService, auditService)
	transactionHandler := handlers.NewTransactionHandler(transactionService, auditService)
	analyticsHandler := handlers.NewAnalyticsHandler(analyticsService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())
	router.Use(middleware.CORS(appConfig.CORSOrigins))

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	// /auth/sync trusts its body; provider tokens are verified upstream
	if !appConfig.IdentityGatewayTrusted {
		log.Warn("IDENTITY_GATEWAY_TRUSTED is not set: /api/v1/auth/sync accepts unverified identities and must not be exposed publicly")
	}
	auth := v1.Group("/auth")
	auth.POST("/sync", authHandler.Sync)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// User profile
	protected.GET("/profile", authHandler.GetProfile)
	protected.PUT("/profile", authHandler.UpdateProfile)
	protected.GET("/profile/activity", authHandler.GetActivity)

	// Transaction routes; static analytics paths are registered before /:id
	transactions := protected.Group("/transactions")
	transactions.GET("/summary", analyticsHandler.GetSummary)
	transactions.GET("/categories", analyticsHandler.GetCategoryBreakdown)
	transactions.GET("/trend", analyticsHandler.GetMonthlyTrend)
	transactions.GET("/series", analyticsHandler.GetMonthlySeries)
	transactions.GET("/analytics", analyticsHandler.GetOverview)
	transactions.POST("", transactionHandler.CreateTransaction)
	transactions.GET("", transactionHandler.GetUserTransactions)
	transactions.GET("/:id", transactionHandler.GetTransactionByID)
	transactions.PUT("/:id", transactionHandler.UpdateTransaction)
	transactions.DELETE("/:id", transactionHandler.DeleteTransaction)

	// Category routes
	categories := protected.Group("/categories")
	categories.POST("", categoryHandler.CreateCategory)
	categories.GET("", categoryHandler.GetUserCategories)
	categories.GET("/:id", categoryHandler.GetCategoryByID)
	categories.PUT("/:id", categoryHandler.UpdateCategory)
	categories.DELETE("/:id", categoryHandler.DeleteCategory)

	// Internal routes (service key, no user auth)
	if appConfig.InternalAPIKey != "" {
		notifier, closeNotifier, err := notify.FromConfig(appConfig)
		if err != nil {
			return fmt.Errorf("failed to create report notifier: %w", err)
		}
		defer func() {
			if err := closeNotifier(); err != nil {
				log.Warnf("notifier close error: %v", err)
			}
		}()

		reportService := services.NewReportService(userService, analyticsService, notifier, appConfig.ReportConcurrency)
		reportHandler := handlers.NewReportHandler(reportService)

		internal := v1.Group("/internal")
		internal.Use(middleware.ServiceKeyMiddleware(appConfig.InternalAPIKey))
		internal.POST("/reports/run", reportHandler.RunMonthlyReports)
	} else {
		log.Info("INTERNAL_API_KEY not set, internal report endpoint disabled")
	}

	log.Infof("Starting BudgetBuddy server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
