package services

import (
	"errors"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"debtwise/internal/cache"
	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/money"
	"debtwise/internal/pagination"
)

// scheduleService handles payoff ordering and schedule generation.
type scheduleService struct {
	db    *gorm.DB
	cache cache.Cache

	now func() time.Time
}

// NewScheduleService creates a new ScheduleServicer.
func NewScheduleService(db *gorm.DB, c cache.Cache) ScheduleServicer {
	return &scheduleService{db: db, cache: c, now: time.Now}
}

// resolvePayoffOrderTx sorts the plan's owing loans by strategy and persists
// dense 1-based ranks. Loans with zero balance get their rank cleared. Ties
// are broken by creation order, which keeps the ordering deterministic when
// two loans share a balance or rate.
func resolvePayoffOrderTx(tx *gorm.DB, plan *models.Plan) (int, error) {
	var loans []models.Loan
	if err := tx.Where("plan_id = ? AND remaining_balance > 0", plan.ID).
		Order("id ASC").Find(&loans).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	switch plan.Strategy {
	case models.StrategyAvalanche:
		sort.SliceStable(loans, func(i, j int) bool {
			return loans[i].InterestRate.GreaterThan(loans[j].InterestRate)
		})
	default: // snowball
		sort.SliceStable(loans, func(i, j int) bool {
			return loans[i].RemainingBalance.LessThan(loans[j].RemainingBalance)
		})
	}

	for i := range loans {
		rank := i + 1
		if err := tx.Model(&loans[i]).Update("payoff_order", rank).Error; err != nil {
			return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	if err := tx.Model(&models.Loan{}).
		Where("plan_id = ? AND remaining_balance <= 0", plan.ID).
		Update("payoff_order", nil).Error; err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	return len(loans), nil
}

// rankedSnapshots loads the plan's owing loans in rank order as immutable
// simulator inputs. When fromPrincipals is true the snapshots start from the
// original principal balances instead of the current ones.
func rankedSnapshots(tx *gorm.DB, plan *models.Plan, fromPrincipals bool) ([]LoanSnapshot, error) {
	var loans []models.Loan
	query := tx.Where("plan_id = ?", plan.ID)
	if fromPrincipals {
		query = query.Where("principal_balance > 0")
	} else {
		query = query.Where("remaining_balance > 0")
	}
	if err := query.Order("payoff_order ASC, id ASC").Find(&loans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	snapshots := make([]LoanSnapshot, 0, len(loans))
	for _, loan := range loans {
		balance := loan.RemainingBalance
		if fromPrincipals {
			balance = loan.PrincipalBalance
		}
		snapshots = append(snapshots, LoanSnapshot{
			LoanID:         loan.ID,
			Balance:        balance,
			InterestRate:   loan.InterestRate,
			MinimumPayment: loan.MinimumPayment,
		})
	}
	return snapshots, nil
}

// writeScheduleTx replaces all schedule rows at or after startMonth with the
// simulator's output and updates the plan's projection fields, all inside the
// caller's transaction so a failure leaves no partial schedule visible.
// preservedInterest is the interest total carried by the untouched earlier
// months.
func writeScheduleTx(tx *gorm.DB, plan *models.Plan, startMonth int, result *SimulationResult, preservedInterest decimal.Decimal) error {
	replaced := tx.Model(&models.ScheduleMonth{}).Select("id").
		Where("plan_id = ? AND month_number >= ?", plan.ID, startMonth)

	// Payment events pointing at replaced months lose their link; the
	// reconciler relinks its own event afterward if a new month matches.
	if err := tx.Model(&models.PaymentEvent{}).
		Where("plan_id = ? AND schedule_month_id IN (?)", plan.ID, replaced).
		Update("schedule_month_id", nil).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Where("schedule_month_id IN (?)", replaced).
		Delete(&models.LoanMonthBreakdown{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Where("plan_id = ? AND month_number >= ?", plan.ID, startMonth).
		Delete(&models.ScheduleMonth{}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	lastMonth := 0
	for _, month := range result.Months {
		row := models.ScheduleMonth{
			PlanID:         plan.ID,
			MonthNumber:    month.MonthNumber,
			FocusLoanID:    month.FocusLoanID,
			TotalPayment:   month.TotalPayment,
			TotalInterest:  month.TotalInterest,
			TotalPrincipal: month.TotalPrincipal,
		}
		for _, alloc := range month.Allocations {
			row.Breakdowns = append(row.Breakdowns, models.LoanMonthBreakdown{
				LoanID:           alloc.LoanID,
				PaymentAmount:    alloc.Payment,
				InterestAmount:   alloc.Interest,
				PrincipalAmount:  alloc.Principal,
				RemainingBalance: alloc.RemainingBalance,
				IsFocusLoan:      alloc.IsFocus,
			})
		}
		if err := tx.Create(&row).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		lastMonth = month.MonthNumber
	}

	if lastMonth == 0 {
		// Nothing simulated; the schedule ends at the last preserved month.
		var preserved models.ScheduleMonth
		err := tx.Where("plan_id = ?", plan.ID).
			Order("month_number DESC").First(&preserved).Error
		if err == nil {
			lastMonth = preserved.MonthNumber
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
	}

	updates := map[string]interface{}{
		"total_projected_interest": preservedInterest.Add(result.TotalInterest),
	}
	if lastMonth > 0 {
		updates["projected_payoff_date"] = money.MonthDate(plan.CreatedAt, lastMonth)
	} else {
		updates["projected_payoff_date"] = nil
	}
	if err := tx.Model(plan).Updates(updates).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// generateScheduleTx runs a full from-scratch generation: every loan starts
// back at its original principal and every existing schedule row is replaced.
func generateScheduleTx(tx *gorm.DB, plan *models.Plan) (int, error) {
	if _, err := resolvePayoffOrderTx(tx, plan); err != nil {
		return 0, err
	}
	snapshots, err := rankedSnapshots(tx, plan, true)
	if err != nil {
		return 0, err
	}
	result, err := Simulate(snapshots, plan.Budget, 1)
	if err != nil {
		return 0, err
	}
	if err := writeScheduleTx(tx, plan, 1, result, decimal.Zero); err != nil {
		return 0, err
	}
	return len(result.Months), nil
}

// regenerateScheduleFromTx re-simulates from startMonth using the loans'
// current balances. Months before startMonth survive untouched and their
// interest pre-seeds the plan's running total so it stays correct across the
// boundary.
func regenerateScheduleFromTx(tx *gorm.DB, plan *models.Plan, startMonth int) (int, error) {
	if startMonth < 1 {
		startMonth = 1
	}

	var preservedInterest decimal.Decimal
	err := tx.Model(&models.ScheduleMonth{}).
		Where("plan_id = ? AND month_number < ?", plan.ID, startMonth).
		Select("COALESCE(SUM(total_interest), 0)").Scan(&preservedInterest).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	snapshots, err := rankedSnapshots(tx, plan, false)
	if err != nil {
		return 0, err
	}
	result, err := Simulate(snapshots, plan.Budget, startMonth)
	if err != nil {
		return 0, err
	}
	if err := writeScheduleTx(tx, plan, startMonth, result, preservedInterest); err != nil {
		return 0, err
	}
	return len(result.Months), nil
}

// refreshScheduleTx re-ranks the plan's loans and brings the schedule in
// line with the current loan set: a first-time plan gets a full generation
// from original principals, an already-scheduled plan is regenerated from
// the current calendar month using current balances.
func refreshScheduleTx(tx *gorm.DB, plan *models.Plan, now time.Time) error {
	var existing int64
	if err := tx.Model(&models.ScheduleMonth{}).
		Where("plan_id = ?", plan.ID).Count(&existing).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if existing == 0 {
		_, err := generateScheduleTx(tx, plan)
		return err
	}

	if _, err := resolvePayoffOrderTx(tx, plan); err != nil {
		return err
	}
	startMonth := money.MonthNumber(plan.CreatedAt, now)
	if startMonth < 1 {
		startMonth = 1
	}
	_, err := regenerateScheduleFromTx(tx, plan, startMonth)
	return err
}

// getPlanForUser loads a plan owned by the user.
func getPlanForUser(tx *gorm.DB, userID, planID uint) (*models.Plan, error) {
	var plan models.Plan
	if err := tx.Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &plan, nil
}

// ResolvePayoffOrder recomputes payoff ranks for the plan's owing loans and
// returns how many loans were ranked.
func (s *scheduleService) ResolvePayoffOrder(userID, planID uint) (int, error) {
	var count int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}
		count, err = resolvePayoffOrderTx(tx, plan)
		return err
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// GenerateSchedule builds the plan's full schedule from scratch, starting
// every loan at its original principal. Returns the number of months
// generated.
func (s *scheduleService) GenerateSchedule(userID, planID uint) (int, error) {
	var months int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}
		months, err = generateScheduleTx(tx, plan)
		return err
	})
	if err != nil {
		return 0, err
	}
	invalidateProgress(s.cache, planID)
	return months, nil
}

// RegenerateScheduleFrom re-simulates the schedule from startMonth using
// current balances, preserving earlier months. Returns the number of months
// generated.
func (s *scheduleService) RegenerateScheduleFrom(userID, planID uint, startMonth int) (int, error) {
	var months int
	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}
		if _, err := resolvePayoffOrderTx(tx, plan); err != nil {
			return err
		}
		months, err = regenerateScheduleFromTx(tx, plan, startMonth)
		return err
	})
	if err != nil {
		return 0, err
	}
	invalidateProgress(s.cache, planID)
	return months, nil
}

// GetSchedule returns a paginated list of the plan's schedule months in
// order, with per-loan breakdowns preloaded.
func (s *scheduleService) GetSchedule(userID, planID uint, page pagination.PageRequest) (*pagination.PageResponse[models.ScheduleMonth], error) {
	if _, err := getPlanForUser(s.db, userID, planID); err != nil {
		return nil, err
	}
	page.Defaults()

	base := s.db.Model(&models.ScheduleMonth{}).Where("plan_id = ?", planID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var schedule []models.ScheduleMonth
	if err := base.Preload("Breakdowns").Order("month_number ASC").
		Scopes(pagination.Paginate(page)).Find(&schedule).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(schedule, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetScheduleMonth returns one schedule month by number with its breakdowns.
func (s *scheduleService) GetScheduleMonth(userID, planID uint, monthNumber int) (*models.ScheduleMonth, error) {
	if _, err := getPlanForUser(s.db, userID, planID); err != nil {
		return nil, err
	}
	return scheduleMonth(s.db, planID, monthNumber)
}

// GetCurrentScheduleMonth returns the schedule month the calendar currently
// falls in, counted from the plan's creation date.
func (s *scheduleService) GetCurrentScheduleMonth(userID, planID uint) (*models.ScheduleMonth, error) {
	plan, err := getPlanForUser(s.db, userID, planID)
	if err != nil {
		return nil, err
	}
	monthNumber := money.MonthNumber(plan.CreatedAt, s.now())
	if monthNumber < 1 {
		monthNumber = 1
	}
	return scheduleMonth(s.db, planID, monthNumber)
}

func scheduleMonth(db *gorm.DB, planID uint, monthNumber int) (*models.ScheduleMonth, error) {
	var month models.ScheduleMonth
	err := db.Preload("Breakdowns").
		Where("plan_id = ? AND month_number = ?", planID, monthNumber).
		First(&month).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrScheduleNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &month, nil
}
