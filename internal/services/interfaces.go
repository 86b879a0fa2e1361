package services

import (
	"time"

	"github.com/shopspring/decimal"

	"debtwise/internal/models"
	"debtwise/internal/pagination"
)

// UserServicer defines the contract for user-related business logic.
type UserServicer interface {
	CreateUser(email, password, firstName, lastName string) (*models.User, error)
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id uint) (*models.User, error)
	VerifyPassword(user *models.User, password string) bool
	AttemptLogin(email, password string) (*models.User, error)
}

// PlanServicer defines the contract for debt-plan business logic.
type PlanServicer interface {
	CreatePlan(userID uint, name string, strategy models.Strategy, budget decimal.Decimal) (*models.Plan, error)
	GetUserPlans(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Plan], error)
	GetPlanByID(userID, planID uint) (*models.Plan, error)
	UpdatePlan(userID, planID uint, name string, strategy *models.Strategy, budget *decimal.Decimal) (*models.Plan, error)
	DeletePlan(userID, planID uint) error
}

// CreateLoanInput holds the fields for creating a loan. MinimumPayment and
// TermMonths are alternatives: a supplied minimum wins, a term derives the
// minimum from the amortization formula, neither falls back to the default.
type CreateLoanInput struct {
	UserID           uint
	PlanID           *uint
	Name             string
	PrincipalBalance decimal.Decimal
	InterestRate     decimal.Decimal
	MinimumPayment   *decimal.Decimal
	DueDay           int
	TermMonths       *int
}

// UpdateLoanInput holds the optional fields for updating a loan.
type UpdateLoanInput struct {
	Name           string
	InterestRate   *decimal.Decimal
	MinimumPayment *decimal.Decimal
	DueDay         *int
}

// LoanServicer defines the contract for loan-related business logic.
type LoanServicer interface {
	CreateLoan(input CreateLoanInput) (*models.Loan, error)
	GetUserLoans(userID uint, page pagination.PageRequest, planID *uint) (*pagination.PageResponse[models.Loan], error)
	GetLoanByID(userID, loanID uint) (*models.Loan, error)
	UpdateLoan(userID, loanID uint, input UpdateLoanInput) (*models.Loan, error)
	AttachLoanToPlan(userID, loanID, planID uint) (*models.Loan, error)
	DeleteLoan(userID, loanID uint) error
	EstimateMinimumPayment(principal, rate decimal.Decimal, months *int) (decimal.Decimal, error)
}

// ScheduleServicer defines the contract for payoff ordering and schedule
// generation.
type ScheduleServicer interface {
	ResolvePayoffOrder(userID, planID uint) (int, error)
	GenerateSchedule(userID, planID uint) (int, error)
	RegenerateScheduleFrom(userID, planID uint, startMonth int) (int, error)
	GetSchedule(userID, planID uint, page pagination.PageRequest) (*pagination.PageResponse[models.ScheduleMonth], error)
	GetScheduleMonth(userID, planID uint, monthNumber int) (*models.ScheduleMonth, error)
	GetCurrentScheduleMonth(userID, planID uint) (*models.ScheduleMonth, error)
}

// RecordPaymentInput holds the fields for recording a real-world payment.
// MonthNumber overrides the month otherwise derived from Date.
type RecordPaymentInput struct {
	UserID             uint
	PlanID             uint
	LoanID             uint
	Amount             decimal.Decimal
	Date               time.Time
	Method             models.PaymentMethod
	Notes              string
	ConfirmationNumber string
	MonthNumber        *int
}

// PaymentResult pairs a recorded payment with whether it forced a schedule
// regeneration.
type PaymentResult struct {
	Payment      *models.PaymentEvent `json:"payment"`
	Recalculated bool                 `json:"recalculated"`
}

// PaymentFilter narrows a payment listing. Zero values mean no constraint;
// LoanID only applies to plan-wide listings.
type PaymentFilter struct {
	LoanID *uint
	Method models.PaymentMethod
	From   *time.Time
	To     *time.Time
}

// PaymentMethodSummary aggregates a plan's payments for one method.
type PaymentMethodSummary struct {
	Method models.PaymentMethod `json:"method"`
	Count  int                  `json:"count"`
	Total  decimal.Decimal      `json:"total"`
}

// PaymentServicer defines the contract for payment reconciliation.
type PaymentServicer interface {
	RecordPayment(input RecordPaymentInput) (*PaymentResult, error)
	GetLoanPayments(userID, loanID uint, filter PaymentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PaymentEvent], error)
	GetPlanPayments(userID, planID uint, filter PaymentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PaymentEvent], error)
	GetPlanPaymentSummary(userID, planID uint) ([]PaymentMethodSummary, error)
	GetPaymentByID(userID, paymentID uint) (*models.PaymentEvent, error)
}

// PlanProgress contains aggregated payoff progress for one plan.
type PlanProgress struct {
	PlanID                 uint            `json:"plan_id"`
	TotalPrincipal         decimal.Decimal `json:"total_principal"`
	TotalRemaining         decimal.Decimal `json:"total_remaining"`
	TotalPaid              decimal.Decimal `json:"total_paid"`
	PercentPaid            float64         `json:"percent_paid"`
	LoansPaidOff           int             `json:"loans_paid_off"`
	TotalLoans             int             `json:"total_loans"`
	MonthsCompleted        int             `json:"months_completed"`
	MonthsRemaining        int             `json:"months_remaining"`
	TotalMonths            int             `json:"total_months"`
	ProjectedPayoffDate    *time.Time      `json:"projected_payoff_date,omitempty"`
	TotalProjectedInterest decimal.Decimal `json:"total_projected_interest"`
}

// ProgressServicer defines the contract for progress aggregation and the
// plan completion check.
type ProgressServicer interface {
	ComputeProgress(userID, planID uint) (*PlanProgress, error)
	CheckCompletion(userID, planID uint) (bool, error)
}

// AuditServicer defines the contract for audit logging.
type AuditServicer interface {
	Log(userID uint, action, resourceType string, resourceID uint, ipAddress string, changes map[string]interface{})
}
