package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod identifies how a real-world payment was made.
type PaymentMethod string

const (
	MethodBankTransfer PaymentMethod = "bank_transfer"
	MethodCreditCard   PaymentMethod = "credit_card"
	MethodDebitCard    PaymentMethod = "debit_card"
	MethodCheck        PaymentMethod = "check"
	MethodCash         PaymentMethod = "cash"
	MethodAutoPay      PaymentMethod = "auto_pay"
	MethodOther        PaymentMethod = "other"
)

// ValidMethod reports whether m is one of the supported payment methods.
func ValidMethod(m PaymentMethod) bool {
	switch m {
	case MethodBankTransfer, MethodCreditCard, MethodDebitCard,
		MethodCheck, MethodCash, MethodAutoPay, MethodOther:
		return true
	}
	return false
}

// PaymentEvent is the permanent record of one real-world payment. The
// interest/principal split and the balance before the payment are computed
// at recording time and stored; they are never recomputed, even when the
// schedule is later regenerated. Only the ScheduleMonthID link may change
// afterward, when a regeneration relinks or orphans the event.
type PaymentEvent struct {
	Base
	LoanID uint `gorm:"not null;index:idx_payments_loan_date" json:"loan_id"`
	PlanID uint `gorm:"not null;index:idx_payments_plan_date" json:"plan_id"`

	// Weak reference to the schedule month this payment fulfills; nil when
	// no schedule existed or the payment no longer maps to any month.
	ScheduleMonthID *uint `gorm:"index" json:"schedule_month_id,omitempty"`

	Amount decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	Date   time.Time       `gorm:"not null;index:idx_payments_loan_date;index:idx_payments_plan_date" json:"payment_date"`
	Method PaymentMethod   `gorm:"not null;default:'bank_transfer'" json:"payment_method"`

	// Split and snapshot as computed at recording time.
	InterestPaid  decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"interest_paid"`
	PrincipalPaid decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"principal_paid"`
	BalanceBefore decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"balance_before"`

	// Mutually exclusive classification flags.
	IsExtraPayment bool `gorm:"default:false" json:"is_extra_payment"`
	IsBelowMinimum bool `gorm:"default:false" json:"is_below_minimum"`

	MonthNumber        int    `gorm:"not null" json:"month_number"`
	Notes              string `json:"notes,omitempty"`
	ConfirmationNumber string `json:"confirmation_number,omitempty"`

	// Relationships
	Loan          Loan           `gorm:"foreignKey:LoanID" json:"loan,omitempty"`
	ScheduleMonth *ScheduleMonth `gorm:"foreignKey:ScheduleMonthID" json:"schedule_month,omitempty"`
}
