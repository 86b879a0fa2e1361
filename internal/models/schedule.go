package models

import "github.com/shopspring/decimal"

// ScheduleMonth is one projected month of a plan's payment schedule.
// Rows are created and replaced only by the schedule generator, never
// hand-edited. Month numbers are 1-based, contiguous, and unique per plan.
type ScheduleMonth struct {
	Base
	PlanID      uint `gorm:"not null;uniqueIndex:idx_schedule_plan_month" json:"plan_id"`
	MonthNumber int  `gorm:"not null;uniqueIndex:idx_schedule_plan_month" json:"month_number"`

	// The loan receiving the extra allocation this month; nil once every
	// loan is paid off.
	FocusLoanID *uint `json:"focus_loan_id,omitempty"`

	TotalPayment   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_payment"`
	TotalInterest  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_interest"`
	TotalPrincipal decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"total_principal"`

	// Relationships
	FocusLoan  *Loan                `gorm:"foreignKey:FocusLoanID" json:"focus_loan,omitempty"`
	Breakdowns []LoanMonthBreakdown `gorm:"foreignKey:ScheduleMonthID" json:"breakdowns,omitempty"`
}

// LoanMonthBreakdown is the per-loan slice of one schedule month. Across all
// breakdowns of a month, payments, interest, and principal each sum exactly
// to the month totals.
type LoanMonthBreakdown struct {
	Base
	ScheduleMonthID uint `gorm:"not null;index" json:"schedule_month_id"`
	LoanID          uint `gorm:"not null;index" json:"loan_id"`

	PaymentAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"payment_amount"`
	InterestAmount   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"interest_amount"`
	PrincipalAmount  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal_amount"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"remaining_balance"`
	IsFocusLoan      bool            `gorm:"default:false" json:"is_focus_loan"`

	// Relationships
	Loan Loan `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
}
