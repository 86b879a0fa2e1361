package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Strategy determines the payoff priority order for a plan's loans.
type Strategy string

const (
	StrategySnowball  Strategy = "snowball"  // smallest remaining balance first
	StrategyAvalanche Strategy = "avalanche" // highest interest rate first
)

// Plan represents a debt payoff plan: a set of loans paid down with a fixed
// monthly budget under one strategy. CreatedAt doubles as the plan epoch for
// month numbering (month 1 is the creation month).
//
// A plan starts inactive ("draft"), becomes active when its first loan is
// attached, and is deactivated exactly once when every loan reaches zero
// balance. A completed plan is never reactivated automatically.
type Plan struct {
	Base
	UserID   uint            `gorm:"not null;index:idx_plans_user_active" json:"user_id"`
	Name     string          `gorm:"not null;default:'My Debt Freedom Plan'" json:"name"`
	Strategy Strategy        `gorm:"not null" json:"strategy"`
	Budget   decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"monthly_payment_budget"`
	IsActive bool            `gorm:"default:false;index:idx_plans_user_active" json:"is_active"`

	// Projection fields, rewritten atomically with the schedule.
	ProjectedPayoffDate    *time.Time      `json:"projected_payoff_date,omitempty"`
	TotalProjectedInterest decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_projected_interest"`

	// Relationships
	Loans    []Loan          `gorm:"foreignKey:PlanID" json:"loans,omitempty"`
	Schedule []ScheduleMonth `gorm:"foreignKey:PlanID" json:"schedule,omitempty"`
}
