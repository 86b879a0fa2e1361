package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"debtwise/internal/cache"
	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/money"
	"debtwise/internal/pagination"
)

// loanService handles loan-related business logic.
type loanService struct {
	db    *gorm.DB
	cache cache.Cache

	now func() time.Time
}

// NewLoanService creates a new LoanServicer.
func NewLoanService(db *gorm.DB, c cache.Cache) LoanServicer {
	return &loanService{db: db, cache: c, now: time.Now}
}

func validateLoanBasics(principal, rate decimal.Decimal, dueDay int) error {
	if !principal.IsPositive() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Principal balance must be positive")
	}
	if rate.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Interest rate cannot be negative")
	}
	if dueDay < 1 || dueDay > 28 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "Due day must be between 1 and 28")
	}
	return nil
}

// activatePlanTx moves an inactive plan to active, enforcing the one
// active plan per user rule.
func activatePlanTx(tx *gorm.DB, plan *models.Plan) error {
	if plan.IsActive {
		return nil
	}

	var activeCount int64
	if err := tx.Model(&models.Plan{}).
		Where("user_id = ? AND is_active = ? AND id <> ?", plan.UserID, true, plan.ID).
		Count(&activeCount).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if activeCount > 0 {
		return apperrors.ErrDuplicateActive
	}

	if err := tx.Model(plan).Update("is_active", true).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	plan.IsActive = true
	return nil
}

// CreateLoan creates a loan, deriving the minimum payment when the caller
// does not supply one: from the amortization formula when a term is given,
// otherwise from the 2%-with-floor default. Attaching the loan to a plan
// activates a draft plan and rebuilds the plan's schedule in the same
// transaction.
func (s *loanService) CreateLoan(input CreateLoanInput) (*models.Loan, error) {
	if input.DueDay == 0 {
		input.DueDay = 1
	}
	if err := validateLoanBasics(input.PrincipalBalance, input.InterestRate, input.DueDay); err != nil {
		return nil, err
	}

	manual := input.MinimumPayment != nil
	var minimum decimal.Decimal
	switch {
	case manual:
		minimum = *input.MinimumPayment
		if !minimum.IsPositive() {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Minimum payment must be positive")
		}
	case input.TermMonths != nil:
		if *input.TermMonths < 1 {
			return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Loan term must be at least one month")
		}
		minimum = money.AmortizedPayment(input.PrincipalBalance, input.InterestRate, *input.TermMonths)
	default:
		minimum = money.DefaultMinimumPayment(input.PrincipalBalance)
	}

	loan := &models.Loan{
		UserID:               input.UserID,
		Name:                 input.Name,
		PrincipalBalance:     input.PrincipalBalance,
		RemainingBalance:     input.PrincipalBalance,
		InterestRate:         input.InterestRate,
		MinimumPayment:       minimum,
		DueDay:               input.DueDay,
		ManualMinimumPayment: manual,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if input.PlanID != nil {
			plan, err := getPlanForUser(tx, input.UserID, *input.PlanID)
			if err != nil {
				return err
			}
			loan.PlanID = &plan.ID
			if err := tx.Create(loan).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			if err := activatePlanTx(tx, plan); err != nil {
				return err
			}
			return refreshScheduleTx(tx, plan, s.now())
		}
		if err := tx.Create(loan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loan.PlanID != nil {
		invalidateProgress(s.cache, *loan.PlanID)
	}
	return loan, nil
}

// GetUserLoans returns a paginated list of the user's loans, optionally
// filtered by plan.
func (s *loanService) GetUserLoans(userID uint, page pagination.PageRequest, planID *uint) (*pagination.PageResponse[models.Loan], error) {
	page.Defaults()

	base := s.db.Model(&models.Loan{}).Where("user_id = ?", userID)
	if planID != nil {
		base = base.Where("plan_id = ?", *planID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var loans []models.Loan
	if err := base.Order("payoff_order ASC NULLS LAST, id ASC").
		Scopes(pagination.Paginate(page)).Find(&loans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(loans, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// getLoanForUser loads a loan owned by the user.
func getLoanForUser(tx *gorm.DB, userID, loanID uint) (*models.Loan, error) {
	var loan models.Loan
	if err := tx.Where("id = ? AND user_id = ?", loanID, userID).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &loan, nil
}

// GetLoanByID returns a loan by ID if it belongs to the user.
func (s *loanService) GetLoanByID(userID, loanID uint) (*models.Loan, error) {
	return getLoanForUser(s.db, userID, loanID)
}

// UpdateLoan updates a loan's fields. Rate or minimum-payment changes
// rebuild the attached plan's future schedule in the same transaction.
func (s *loanService) UpdateLoan(userID, loanID uint, input UpdateLoanInput) (*models.Loan, error) {
	var loan *models.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = getLoanForUser(tx, userID, loanID)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		reschedule := false
		if input.Name != "" {
			updates["name"] = input.Name
			loan.Name = input.Name
		}
		if input.InterestRate != nil && !input.InterestRate.Equal(loan.InterestRate) {
			if input.InterestRate.IsNegative() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Interest rate cannot be negative")
			}
			updates["interest_rate"] = *input.InterestRate
			loan.InterestRate = *input.InterestRate
			reschedule = true
		}
		if input.MinimumPayment != nil && !input.MinimumPayment.Equal(loan.MinimumPayment) {
			if !input.MinimumPayment.IsPositive() {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Minimum payment must be positive")
			}
			updates["minimum_payment"] = *input.MinimumPayment
			updates["manual_minimum_payment"] = true
			loan.MinimumPayment = *input.MinimumPayment
			loan.ManualMinimumPayment = true
			reschedule = true
		}
		if input.DueDay != nil {
			if *input.DueDay < 1 || *input.DueDay > 28 {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Due day must be between 1 and 28")
			}
			updates["due_day"] = *input.DueDay
			loan.DueDay = *input.DueDay
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&models.Loan{}).Where("id = ?", loan.ID).
			Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if reschedule && loan.PlanID != nil {
			plan, err := getPlanForUser(tx, userID, *loan.PlanID)
			if err != nil {
				return err
			}
			if plan.IsActive {
				return refreshScheduleTx(tx, plan, s.now())
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if loan.PlanID != nil {
		invalidateProgress(s.cache, *loan.PlanID)
	}
	return loan, nil
}

// AttachLoanToPlan attaches an unattached loan to one of the user's plans,
// activating a draft plan and rebuilding its schedule.
func (s *loanService) AttachLoanToPlan(userID, loanID, planID uint) (*models.Loan, error) {
	var loan *models.Loan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		loan, err = getLoanForUser(tx, userID, loanID)
		if err != nil {
			return err
		}
		plan, err := getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}
		if loan.PlanID != nil && *loan.PlanID == plan.ID {
			return nil
		}

		if err := tx.Model(&models.Loan{}).Where("id = ?", loan.ID).
			Update("plan_id", plan.ID).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		loan.PlanID = &plan.ID

		if err := activatePlanTx(tx, plan); err != nil {
			return err
		}
		return refreshScheduleTx(tx, plan, s.now())
	})
	if err != nil {
		return nil, err
	}
	invalidateProgress(s.cache, planID)
	return loan, nil
}

// DeleteLoan removes a loan together with its payments and schedule rows,
// then rebuilds the plan's schedule for the remaining loans.
func (s *loanService) DeleteLoan(userID, loanID uint) error {
	var planID *uint
	err := s.db.Transaction(func(tx *gorm.DB) error {
		loan, err := getLoanForUser(tx, userID, loanID)
		if err != nil {
			return err
		}
		planID = loan.PlanID

		if err := tx.Where("loan_id = ?", loan.ID).
			Delete(&models.LoanMonthBreakdown{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("loan_id = ?", loan.ID).
			Delete(&models.PaymentEvent{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(loan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if loan.PlanID != nil {
			plan, err := getPlanForUser(tx, userID, *loan.PlanID)
			if err != nil {
				return err
			}
			if plan.IsActive {
				return refreshScheduleTx(tx, plan, s.now())
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if planID != nil {
		invalidateProgress(s.cache, *planID)
	}
	return nil
}

// EstimateMinimumPayment previews the minimum payment for a prospective
// loan without persisting anything.
func (s *loanService) EstimateMinimumPayment(principal, rate decimal.Decimal, months *int) (decimal.Decimal, error) {
	if !principal.IsPositive() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Principal balance must be positive")
	}
	if rate.IsNegative() {
		return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Interest rate cannot be negative")
	}
	if months != nil {
		if *months < 1 {
			return decimal.Zero, apperrors.WithMessage(apperrors.ErrInvalidInput, "Loan term must be at least one month")
		}
		return money.AmortizedPayment(principal, rate, *months), nil
	}
	return money.DefaultMinimumPayment(principal), nil
}
