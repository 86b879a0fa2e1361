package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"debtwise/internal/cache"
	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/money"
	"debtwise/internal/notify"
	"debtwise/internal/pagination"
)

// paymentService reconciles real-world payments against the schedule.
type paymentService struct {
	db              *gorm.DB
	recalcThreshold decimal.Decimal
	notifier        notify.CompletionNotifier
	cache           cache.Cache

	// now is a hook for tests that need a fixed current month.
	now func() time.Time
}

// NewPaymentService creates a new PaymentServicer. recalcThreshold is the
// deviation from the scheduled amount beyond which a payment forces a
// schedule regeneration.
func NewPaymentService(db *gorm.DB, recalcThreshold decimal.Decimal, notifier notify.CompletionNotifier, c cache.Cache) PaymentServicer {
	return &paymentService{
		db:              db,
		recalcThreshold: recalcThreshold,
		notifier:        notifier,
		cache:           c,
		now:             time.Now,
	}
}

// lockForUpdate adds a row-level write lock where the dialect supports it.
// SQLite serializes writers on its own and rejects FOR UPDATE syntax.
func lockForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "sqlite" {
		return tx
	}
	return tx.Clauses(clause.Locking{Strength: "UPDATE"})
}

// breakdownForMonth finds the loan's breakdown row in the given plan month,
// if the month and the row exist.
func breakdownForMonth(tx *gorm.DB, planID, loanID uint, monthNumber int) (*models.ScheduleMonth, *models.LoanMonthBreakdown, error) {
	var month models.ScheduleMonth
	err := tx.Where("plan_id = ? AND month_number = ?", planID, monthNumber).First(&month).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var breakdown models.LoanMonthBreakdown
	err = tx.Where("schedule_month_id = ? AND loan_id = ?", month.ID, loanID).First(&breakdown).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &month, nil, nil
	}
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &month, &breakdown, nil
}

// RecordPayment applies one real-world payment: computes the interest and
// principal split off the loan's current balance, updates the balance,
// classifies the payment, and regenerates the future schedule when the
// payment deviates enough to invalidate it. The whole sequence runs inside
// one transaction with the loan and plan rows exclusively locked, so two
// concurrent payments against the same loan can never split off a stale
// balance.
func (s *paymentService) RecordPayment(input RecordPaymentInput) (*PaymentResult, error) {
	if !input.Amount.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Payment amount must be positive")
	}
	if !models.ValidMethod(input.Method) {
		return nil, apperrors.ErrInvalidMethod
	}

	var (
		result       PaymentResult
		completedNow bool
		plan         models.Plan
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := lockForUpdate(tx).
			Where("id = ? AND user_id = ?", input.PlanID, input.UserID).
			First(&plan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrPlanNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		var loan models.Loan
		if err := lockForUpdate(tx).
			Where("id = ? AND user_id = ?", input.LoanID, input.UserID).
			First(&loan).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.ErrLoanNotFound
			}
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if loan.PlanID == nil || *loan.PlanID != plan.ID {
			return apperrors.ErrLoanNotInPlan
		}

		// Month the payment lands on: explicit when supplied, otherwise
		// derived from the payment date against the plan epoch.
		monthNumber := 0
		if input.MonthNumber != nil {
			monthNumber = *input.MonthNumber
			if monthNumber < 1 {
				return apperrors.WithMessage(apperrors.ErrInvalidInput, "Month number must be at least 1")
			}
		} else {
			monthNumber = money.MonthNumber(plan.CreatedAt, input.Date)
			if monthNumber < 1 {
				return apperrors.ErrPaymentBeforeStart
			}
		}

		var maxMonth int
		if err := tx.Model(&models.ScheduleMonth{}).
			Where("plan_id = ?", plan.ID).
			Select("COALESCE(MAX(month_number), 0)").Scan(&maxMonth).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if maxMonth > 0 && monthNumber > maxMonth {
			return apperrors.ErrMonthOutOfRange
		}

		// Expected amount comes from the schedule when a breakdown exists,
		// otherwise the loan's minimum.
		_, breakdown, err := breakdownForMonth(tx, plan.ID, loan.ID, monthNumber)
		if err != nil {
			return err
		}
		expected := loan.MinimumPayment
		var scheduleMonthID *uint
		if breakdown != nil {
			expected = breakdown.PaymentAmount
			scheduleMonthID = &breakdown.ScheduleMonthID
		}

		// The loan's stored balance is the source of truth, never the
		// schedule's projection.
		balanceBefore := loan.RemainingBalance
		interest := money.MonthlyInterest(balanceBefore, loan.InterestRate)
		if input.Amount.LessThan(interest) {
			return apperrors.ErrPaymentTooSmall
		}
		if input.Amount.GreaterThan(balanceBefore.Add(interest)) {
			return apperrors.ErrPaymentTooLarge
		}

		principal := input.Amount.Sub(interest)
		newBalance := balanceBefore.Sub(principal)
		if newBalance.IsNegative() {
			newBalance = decimal.Zero
		}

		// Below-minimum takes precedence: a payment under the minimum is
		// never also counted as extra, whatever the schedule expected.
		isBelowMinimum := input.Amount.LessThan(loan.MinimumPayment)
		isExtra := !isBelowMinimum && input.Amount.GreaterThan(expected)

		if err := tx.Model(&loan).Update("remaining_balance", newBalance).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		loan.RemainingBalance = newBalance

		event := &models.PaymentEvent{
			LoanID:             loan.ID,
			PlanID:             plan.ID,
			ScheduleMonthID:    scheduleMonthID,
			Amount:             input.Amount,
			Date:               input.Date,
			Method:             input.Method,
			InterestPaid:       interest,
			PrincipalPaid:      principal,
			BalanceBefore:      balanceBefore,
			IsExtraPayment:     isExtra,
			IsBelowMinimum:     isBelowMinimum,
			MonthNumber:        monthNumber,
			Notes:              input.Notes,
			ConfirmationNumber: input.ConfirmationNumber,
		}
		if err := tx.Create(event).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		deviation := input.Amount.Sub(expected).Abs()
		recalculate := isBelowMinimum || isExtra || newBalance.IsZero() ||
			deviation.GreaterThan(s.recalcThreshold)

		if recalculate {
			if _, err := resolvePayoffOrderTx(tx, &plan); err != nil {
				return err
			}
			currentMonth := money.MonthNumber(plan.CreatedAt, s.now())
			startMonth := monthNumber + 1
			if currentMonth > startMonth {
				startMonth = currentMonth
			}
			if _, err := regenerateScheduleFromTx(tx, &plan, startMonth); err != nil {
				return err
			}
			completedNow, err = checkCompletionTx(tx, &plan)
			if err != nil {
				return err
			}
			if err := relinkPaymentTx(tx, event); err != nil {
				return err
			}
		}

		result = PaymentResult{Payment: event, Recalculated: recalculate}
		return nil
	})
	if err != nil {
		return nil, err
	}

	invalidateProgress(s.cache, plan.ID)
	if completedNow {
		dispatchCompletionNotice(s.db, s.notifier, &plan)
	}
	return &result, nil
}

// relinkPaymentTx points the payment event at whatever schedule month now
// covers its month number, or clears the link when the loan no longer
// appears there.
func relinkPaymentTx(tx *gorm.DB, event *models.PaymentEvent) error {
	_, breakdown, err := breakdownForMonth(tx, event.PlanID, event.LoanID, event.MonthNumber)
	if err != nil {
		return err
	}
	var scheduleMonthID *uint
	if breakdown != nil {
		scheduleMonthID = &breakdown.ScheduleMonthID
	}
	if err := tx.Model(event).Update("schedule_month_id", scheduleMonthID).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	event.ScheduleMonthID = scheduleMonthID
	return nil
}

// applyPaymentFilter narrows a payment query by method and date range.
// Dates compare against the payment date, inclusive on both ends.
func applyPaymentFilter(query *gorm.DB, filter PaymentFilter) (*gorm.DB, error) {
	if filter.Method != "" {
		if !models.ValidMethod(filter.Method) {
			return nil, apperrors.ErrInvalidMethod
		}
		query = query.Where("method = ?", filter.Method)
	}
	if filter.From != nil {
		query = query.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("date <= ?", *filter.To)
	}
	return query, nil
}

// GetLoanPayments returns a paginated list of payments recorded against a loan.
func (s *paymentService) GetLoanPayments(userID, loanID uint, filter PaymentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PaymentEvent], error) {
	var loan models.Loan
	if err := s.db.Where("id = ? AND user_id = ?", loanID, userID).First(&loan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrLoanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	page.Defaults()

	base, err := applyPaymentFilter(s.db.Model(&models.PaymentEvent{}).Where("loan_id = ?", loanID), filter)
	if err != nil {
		return nil, err
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var payments []models.PaymentEvent
	if err := base.Order("date DESC, id DESC").
		Scopes(pagination.Paginate(page)).Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(payments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPlanPayments returns a paginated list of payments recorded against any
// loan in the plan, optionally narrowed to one loan.
func (s *paymentService) GetPlanPayments(userID, planID uint, filter PaymentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.PaymentEvent], error) {
	if _, err := getPlanForUser(s.db, userID, planID); err != nil {
		return nil, err
	}
	page.Defaults()

	base, err := applyPaymentFilter(s.db.Model(&models.PaymentEvent{}).Where("plan_id = ?", planID), filter)
	if err != nil {
		return nil, err
	}
	if filter.LoanID != nil {
		base = base.Where("loan_id = ?", *filter.LoanID)
	}

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var payments []models.PaymentEvent
	if err := base.Order("date DESC, id DESC").
		Scopes(pagination.Paginate(page)).Find(&payments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(payments, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPlanPaymentSummary aggregates the plan's payments by method, ordered by
// method name for a stable response.
func (s *paymentService) GetPlanPaymentSummary(userID, planID uint) ([]PaymentMethodSummary, error) {
	if _, err := getPlanForUser(s.db, userID, planID); err != nil {
		return nil, err
	}

	summaries := []PaymentMethodSummary{}
	err := s.db.Model(&models.PaymentEvent{}).
		Select("method, COUNT(*) as count, COALESCE(SUM(amount), 0) as total").
		Where("plan_id = ?", planID).
		Group("method").
		Order("method ASC").
		Scan(&summaries).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return summaries, nil
}

// GetPaymentByID returns one payment event if it belongs to the user.
func (s *paymentService) GetPaymentByID(userID, paymentID uint) (*models.PaymentEvent, error) {
	var payment models.PaymentEvent
	err := s.db.Joins("JOIN loans ON loans.id = payment_events.loan_id").
		Where("payment_events.id = ? AND loans.user_id = ?", paymentID, userID).
		First(&payment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPaymentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &payment, nil
}
