package models

import "github.com/shopspring/decimal"

// Loan represents a single debt being paid down within a plan.
//
// PrincipalBalance is immutable after creation; RemainingBalance is mutated
// only by the payment reconciler. PayoffOrder is the dense 1-based priority
// rank under the plan's strategy and is nil for paid-off or unattached loans.
type Loan struct {
	Base
	UserID uint  `gorm:"not null;index:idx_loans_user_plan" json:"user_id"`
	PlanID *uint `gorm:"index:idx_loans_user_plan" json:"plan_id,omitempty"`

	Name             string          `gorm:"not null" json:"name"`
	PrincipalBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal_balance"`
	RemainingBalance decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"remaining_balance"`
	InterestRate     decimal.Decimal `gorm:"type:decimal(5,2);not null" json:"interest_rate"`
	MinimumPayment   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"minimum_payment"`
	DueDay           int             `gorm:"not null;default:1" json:"due_day"`

	// True when the user supplied the minimum payment instead of letting the
	// amortization formula derive it.
	ManualMinimumPayment bool `gorm:"default:false" json:"manually_set_minimum_payment"`

	PayoffOrder *int `gorm:"index" json:"payoff_order,omitempty"`

	// Relationships
	Plan     *Plan          `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
	Payments []PaymentEvent `gorm:"foreignKey:LoanID" json:"payments,omitempty"`
}

// IsPaidOff reports whether the loan has reached zero balance.
func (l *Loan) IsPaidOff() bool {
	return l.RemainingBalance.IsZero()
}
