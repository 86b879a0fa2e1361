package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"debtwise/internal/cache"
	"debtwise/internal/handlers"
	"debtwise/internal/logger"
	"debtwise/internal/middleware"
	"debtwise/internal/models"
	"debtwise/internal/notify"
	"debtwise/internal/services"
	"debtwise/internal/validator"
)

// testApp holds the full application stack for integration tests.
type testApp struct {
	DB     *gorm.DB
	Router *gin.Engine
}

// dbCounter ensures each test gets a unique in-memory database.
var dbCounter atomic.Int64

func init() {
	gin.SetMode(gin.TestMode)
	logger.Init("test")
	validator.Register()
}

// setupIsolatedDB creates an isolated in-memory SQLite database for a single test.
func setupIsolatedDB(t *testing.T) *gorm.DB {
	t.Helper()

	n := dbCounter.Add(1)
	dsn := fmt.Sprintf("file:testdb%d?mode=memory&cache=shared", n)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	allModels := []interface{}{
		&models.User{},
		&models.Plan{},
		&models.Loan{},
		&models.ScheduleMonth{},
		&models.LoanMonthBreakdown{},
		&models.PaymentEvent{},
		&models.AuditLog{},
	}
	if err := db.AutoMigrate(allModels...); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

// setupApp creates a full application stack backed by an isolated in-memory SQLite.
func setupApp(t *testing.T) *testApp {
	t.Helper()

	db := setupIsolatedDB(t)

	notifier := notify.NewLogNotifier()
	recalcThreshold := decimal.RequireFromString("10.00")
	progressCache := cache.NewMemoryCache()

	// Services
	userService := services.NewUserService(db)
	auditService := services.NewAuditService(db)
	planService := services.NewPlanService(db, progressCache)
	loanService := services.NewLoanService(db, progressCache)
	scheduleService := services.NewScheduleService(db, progressCache)
	paymentService := services.NewPaymentService(db, recalcThreshold, notifier, progressCache)
	progressService := services.NewProgressService(db, progressCache, time.Minute, notifier)

	// Handlers
	authHandler := handlers.NewAuthHandler(userService, auditService)
	planHandler := handlers.NewPlanHandler(planService, auditService)
	loanHandler := handlers.NewLoanHandler(loanService, auditService)
	scheduleHandler := handlers.NewScheduleHandler(scheduleService, auditService)
	paymentHandler := handlers.NewPaymentHandler(paymentService, auditService)
	progressHandler := handlers.NewProgressHandler(progressService)

	// Router
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandler())

	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	auth.POST("/register", authHandler.Register)
	auth.POST("/login", authHandler.Login)

	// Protected routes
	protected := v1.Group("/")
	protected.Use(middleware.AuthMiddleware())

	plans := protected.Group("/plans")
	plans.POST("", planHandler.CreatePlan)
	plans.GET("", planHandler.GetPlans)
	plans.GET("/:id", planHandler.GetPlan)
	plans.PUT("/:id", planHandler.UpdatePlan)
	plans.DELETE("/:id", planHandler.DeletePlan)
	plans.POST("/:id/payoff-order", scheduleHandler.ResolvePayoffOrder)
	plans.POST("/:id/schedule", scheduleHandler.GenerateSchedule)
	plans.POST("/:id/schedule/regenerate", scheduleHandler.RegenerateSchedule)
	plans.GET("/:id/schedule", scheduleHandler.GetSchedule)
	plans.GET("/:id/schedule/current", scheduleHandler.GetCurrentScheduleMonth)
	plans.GET("/:id/schedule/:month", scheduleHandler.GetScheduleMonth)
	plans.GET("/:id/progress", progressHandler.GetProgress)
	plans.POST("/:id/completion", progressHandler.CheckCompletion)
	plans.GET("/:id/payments", paymentHandler.GetPlanPayments)
	plans.GET("/:id/payments/summary", paymentHandler.GetPlanPaymentSummary)
	plans.POST("/:id/loans/:loan_id/payments", paymentHandler.RecordPayment)

	loans := protected.Group("/loans")
	loans.POST("", loanHandler.CreateLoan)
	loans.GET("", loanHandler.GetLoans)
	loans.POST("/estimate-minimum", loanHandler.EstimateMinimum)
	loans.GET("/:id", loanHandler.GetLoan)
	loans.PUT("/:id", loanHandler.UpdateLoan)
	loans.DELETE("/:id", loanHandler.DeleteLoan)
	loans.POST("/:id/attach/:plan_id", loanHandler.AttachLoan)
	loans.GET("/:id/payments", paymentHandler.GetLoanPayments)

	payments := protected.Group("/payments")
	payments.GET("/:id", paymentHandler.GetPayment)

	return &testApp{DB: db, Router: router}
}

// request makes an HTTP request to the test router and returns the recorder.
func (app *testApp) request(method, path, body, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	app.Router.ServeHTTP(rec, req)
	return rec
}

// parseJSON parses the response body into a map.
func parseJSON(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var result map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, rec.Body.String())
	}
	return result
}

// registerUser registers a new user and returns the token and user ID.
func (app *testApp) registerUser(t *testing.T, email, password string) (token string, userID float64) {
	t.Helper()
	body := fmt.Sprintf(`{"email":%q,"password":%q,"first_name":"Test","last_name":"User"}`, email, password)
	rec := app.request("POST", "/api/v1/auth/register", body, "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register failed: %d %s", rec.Code, rec.Body.String())
	}
	result := parseJSON(t, rec)
	user := result["user"].(map[string]interface{})
	return result["token"].(string), user["id"].(float64)
}

// createPlan creates a plan and returns its ID.
func (app *testApp) createPlan(t *testing.T, token, strategy, budget string) float64 {
	t.Helper()
	body := fmt.Sprintf(`{"name":"Payoff Plan","strategy":%q,"monthly_payment_budget":%q}`, strategy, budget)
	rec := app.request("POST", "/api/v1/plans", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create plan failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["plan"].(map[string]interface{})["id"].(float64)
}

// createLoan creates a loan attached to a plan and returns its ID.
func (app *testApp) createLoan(t *testing.T, token string, planID float64, name, principal, rate, minimum string) float64 {
	t.Helper()
	body := fmt.Sprintf(`{"plan_id":%.0f,"name":%q,"principal_balance":%q,"interest_rate":%q,"minimum_payment":%q}`,
		planID, name, principal, rate, minimum)
	rec := app.request("POST", "/api/v1/loans", body, token)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create loan failed: %d %s", rec.Code, rec.Body.String())
	}
	return parseJSON(t, rec)["loan"].(map[string]interface{})["id"].(float64)
}
