package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"time"

	"debtwise/internal/cache"
	"debtwise/internal/config"
	"debtwise/internal/database"
	"debtwise/internal/handlers"
	"debtwise/internal/logger"
	"debtwise/internal/middleware"
	"debtwise/internal/notify"
	"debtwise/internal/services"
	"debtwise/internal/validator"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "debtwise/internal/docs" // Import swagger docs
)

// @title           Debtwise API
// @version         1.0
// @description     Debtwise is a debt payoff planner that simulates snowball and avalanche schedules across multiple loans and reconciles them against real-world payments.
// @termsOfService  http://swagger.io/terms/

// @host      localhost:8080
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

	// Register custom request validators
	validator.Register()

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

	// Run migrations
	if err := dbManager.RunMigrations(); err != nil {
		return fmt.Errorf("failed to run database migrations: %w", err)
	}

	// Progress cache: redis when configured, in-process otherwise
	var progressCache cache.Cache
	if appConfig.RedisAddr != "" {
		redisCache := cache.NewRedisCache(appConfig.RedisAddr)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect to redis at %s: %w", appConfig.RedisAddr, err)
		}
		defer redisCache.Close()
		progressCache = redisCache
		log.Infof("Using redis progress cache at %s", appConfig.RedisAddr)
	} else {
		progressCache = cache.NewMemoryCache()
		log.Info("Using in-memory progress cache")
	}

	// Completion notifications: telegram when configured, log otherwise
	var notifier notify.CompletionNotifier
	if appConfig.TelegramToken != "" && appConfig.TelegramChatID != 0 {
		notifier, err = notify.NewTelegramNotifier(appConfig.TelegramToken, appConfig.TelegramChatID)
		if err != nil {
			return fmt.Errorf("failed to create telegram notifier: %w", err)
		}
		log.Info("Using telegram completion notifications")
	} else {
		notifier = notify.NewLogNotifier()
	}

	// Initialize services
	db := dbManager.DB()
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	planService := services.NewPlanService(db, progressCache)
	loanService := services.NewLoanService(db, progressCache)
	scheduleService := services.NewScheduleService(db, progressCache)
	paymentService := services.NewPaymentService(db, appConfig.RecalcThreshold, notifier, progressCache)
	progressService := services.NewProgressService(db, progressCache, appConfig.ProgressCacheTTL, notifier)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	planHandler := handlers.NewPlanHandler(planService, auditService)
	loanHandler := handlers.NewLoanHandler(loanService, auditService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService, auditService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService)
	progressHandler := handlers.NewProgressHandler(progressService)

	// Initialize Gin router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogging())
	router.Use(middleware.ErrorHandler())

	// CORS middleware
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	// Swagger documentation
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check endpoint
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// API v1 group
	v1 := router.Group("/api/v1")

	// Public routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	// Plan routes
	plans := protected.Group("/plans")
	plans.POST("", planHandler.CreatePlan)
	plans.GET("", planHandler.GetPlans)
	plans.GET("/:id", planHandler.GetPlan)
	plans.PUT("/:id", planHandler.UpdatePlan)
	plans.DELETE("/:id", planHandler.DeletePlan)

	// Schedule routes
	plans.POST("/:id/payoff-order", scheduleHandler.ResolvePayoffOrder)
	plans.POST("/:id/schedule", scheduleHandler.GenerateSchedule)
	plans.POST("/:id/schedule/regenerate", scheduleHandler.RegenerateSchedule)
	plans.GET("/:id/schedule", scheduleHandler.GetSchedule)
	plans.GET("/:id/schedule/current", scheduleHandler.GetCurrentScheduleMonth)
	plans.GET("/:id/schedule/:month", scheduleHandler.GetScheduleMonth)

	// Progress routes
	plans.GET("/:id/progress", progressHandler.GetProgress)
	plans.POST("/:id/completion", progressHandler.CheckCompletion)

	// Plan payment routes
	plans.GET("/:id/payments", paymentHandler.GetPlanPayments)
	plans.GET("/:id/payments/summary", paymentHandler.GetPlanPaymentSummary)
	plans.POST("/:id/loans/:loan_id/payments", paymentHandler.RecordPayment)

	// Loan routes
	loans := protected.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.POST("/estimate-minimum", loanHandler.EstimateMinimum)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.PUT("/:id", loanHandler.UpdateLoan)
	loans.DELETE("/:id", loanHandler.DeleteLoan)
	loans.POST("/:id/attach/:plan_id", loanHandler.AttachLoan)
	loans.GET("/:id/payments", paymentHandler.GetLoanPayments)

	// Payment routes
	payments := protected.Group("/payments")
	payments.GET("/:id", paymentHandler.GetPayment)

	log.Infof("Starting Debtwise backend server on port %s", appConfig.Port)
	log.Infof("Swagger documentation available at http://localhost:%s/swagger/index.html", appConfig.Port)
	return router.Run(":" + appConfig.Port)
}
