package testutil

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"debtwise/internal/models"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// counter provides unique values across fixtures within a test run.
var counter atomic.Int64

func nextID() int64 {
	return counter.Add(1)
}

// Amount parses a decimal literal, failing the test on bad input.
func Amount(t *testing.T, s string) decimal.Decimal {
	t.Helper()

	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal literal %q: %v", s, err)
	}
	return d
}

// CreateTestUser creates a user with a hashed password and unique email.
func CreateTestUser(t *testing.T, db *gorm.DB) *models.User {
	t.Helper()
	email := fmt.Sprintf("user%d@test.com", nextID())
	return CreateTestUserWithEmail(t, db, email)
}

// CreateTestUserWithEmail creates a user with the given email.
func CreateTestUserWithEmail(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		IsActive: true,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("failed to create test user: %v", err)
	}
	return user
}

// CreateTestPlan creates an active snowball plan with the given monthly budget.
func CreateTestPlan(t *testing.T, db *gorm.DB, userID uint, budget string) *models.Plan {
	t.Helper()
	return CreateTestPlanWithStrategy(t, db, userID, models.StrategySnowball, budget)
}

// CreateTestPlanWithStrategy creates an active plan with the given strategy
// and monthly budget.
func CreateTestPlanWithStrategy(t *testing.T, db *gorm.DB, userID uint, strategy models.Strategy, budget string) *models.Plan {
	t.Helper()

	plan := &models.Plan{
		UserID:   userID,
		Name:     fmt.Sprintf("Test Plan %d", nextID()),
		Strategy: strategy,
		Budget:   Amount(t, budget),
		IsActive: true,
	}
	if err := db.Create(plan).Error; err != nil {
		t.Fatalf("failed to create test plan: %v", err)
	}
	return plan
}

// CreateTestLoan creates a loan attached to a plan. Remaining balance starts
// at the principal; rate is an annual percentage like "24.00".
func CreateTestLoan(t *testing.T, db *gorm.DB, userID, planID uint, principal, rate, minimum string) *models.Loan {
	t.Helper()

	p := Amount(t, principal)
	loan := &models.Loan{
		UserID:           userID,
		PlanID:           &planID,
		Name:             fmt.Sprintf("Test Loan %d", nextID()),
		PrincipalBalance: p,
		RemainingBalance: p,
		InterestRate:     Amount(t, rate),
		MinimumPayment:   Amount(t, minimum),
		DueDay:           1,
	}
	if err := db.Create(loan).Error; err != nil {
		t.Fatalf("failed to create test loan: %v", err)
	}
	return loan
}

// CreateTestPayment creates a payment event against a loan with a plain
// interest/principal split already filled in.
func CreateTestPayment(t *testing.T, db *gorm.DB, loan *models.Loan, amount string, monthNumber int) *models.PaymentEvent {
	t.Helper()

	if loan.PlanID == nil {
		t.Fatalf("test payment requires a loan attached to a plan")
	}
	amt := Amount(t, amount)
	event := &models.PaymentEvent{
		LoanID:        loan.ID,
		PlanID:        *loan.PlanID,
		Amount:        amt,
		Date:          time.Now(),
		Method:        models.MethodBankTransfer,
		InterestPaid:  decimal.Zero,
		PrincipalPaid: amt,
		BalanceBefore: loan.RemainingBalance,
		MonthNumber:   monthNumber,
	}
	if err := db.Create(event).Error; err != nil {
		t.Fatalf("failed to create test payment: %v", err)
	}
	return event
}
