package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"debtwise/internal/cache"
	apperrors "debtwise/internal/errors"
	"debtwise/internal/logger"
	"debtwise/internal/models"
	"debtwise/internal/notify"
)

// progressService derives read-only plan summaries and owns the one-time
// completion transition.
type progressService struct {
	db       *gorm.DB
	cache    cache.Cache
	cacheTTL time.Duration
	notifier notify.CompletionNotifier
}

// NewProgressService creates a new ProgressServicer. Progress snapshots are
// cached per plan for cacheTTL; mutating services drop the key eagerly via
// invalidateProgress, the TTL only bounds staleness from out-of-band writes.
func NewProgressService(db *gorm.DB, c cache.Cache, cacheTTL time.Duration, notifier notify.CompletionNotifier) ProgressServicer {
	return &progressService{
		db:       db,
		cache:    c,
		cacheTTL: cacheTTL,
		notifier: notifier,
	}
}

func progressCacheKey(planID uint) string {
	return fmt.Sprintf("progress:plan:%d", planID)
}

// invalidateProgress drops the plan's cached progress snapshot. Every
// mutation of a plan's financial state (payments, loan or plan changes,
// schedule regeneration) must call this after committing, so the next
// ComputeProgress reads live balances instead of a stale snapshot.
func invalidateProgress(c cache.Cache, planID uint) {
	if err := c.Delete(context.Background(), progressCacheKey(planID)); err != nil {
		logger.Get().Warnw("failed to invalidate plan progress cache",
			"plan_id", planID, "error", err)
	}
}

// ComputeProgress aggregates the plan's current state into summary metrics.
// Loan balances are the source of truth; recorded payment events are not
// summed, since rounding and timing can make them diverge.
func (s *progressService) ComputeProgress(userID, planID uint) (*PlanProgress, error) {
	key := progressCacheKey(planID)
	if cached, err := s.cache.Get(context.Background(), key); err == nil {
		var progress PlanProgress
		if err := json.Unmarshal([]byte(cached), &progress); err == nil {
			return &progress, nil
		}
	}

	plan, err := getPlanForUser(s.db, userID, planID)
	if err != nil {
		return nil, err
	}

	var loans []models.Loan
	if err := s.db.Where("plan_id = ?", planID).Find(&loans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	progress := &PlanProgress{
		PlanID:                 planID,
		TotalLoans:             len(loans),
		TotalPrincipal:         decimal.Zero,
		TotalRemaining:         decimal.Zero,
		ProjectedPayoffDate:    plan.ProjectedPayoffDate,
		TotalProjectedInterest: plan.TotalProjectedInterest,
	}
	for _, loan := range loans {
		progress.TotalPrincipal = progress.TotalPrincipal.Add(loan.PrincipalBalance)
		progress.TotalRemaining = progress.TotalRemaining.Add(loan.RemainingBalance)
		if loan.IsPaidOff() {
			progress.LoansPaidOff++
		}
	}
	progress.TotalPaid = progress.TotalPrincipal.Sub(progress.TotalRemaining)
	if progress.TotalPrincipal.IsPositive() {
		pct, _ := progress.TotalPaid.Div(progress.TotalPrincipal).Mul(decimal.NewFromInt(100)).Round(2).Float64()
		progress.PercentPaid = pct
	}

	var totalMonths int
	if err := s.db.Model(&models.ScheduleMonth{}).
		Where("plan_id = ?", planID).
		Select("COALESCE(MAX(month_number), 0)").Scan(&totalMonths).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	progress.TotalMonths = totalMonths

	// A month counts as completed once every loan in its breakdown has a
	// recorded payment tagged with that month number.
	var monthsCompleted int
	err = s.db.Raw(`
		SELECT COUNT(*) FROM schedule_months sm
		WHERE sm.plan_id = ?
		AND NOT EXISTS (
			SELECT 1 FROM loan_month_breakdowns b
			WHERE b.schedule_month_id = sm.id
			AND NOT EXISTS (
				SELECT 1 FROM payment_events p
				WHERE p.loan_id = b.loan_id
				AND p.plan_id = sm.plan_id
				AND p.month_number = sm.month_number
			)
		)`, planID).Scan(&monthsCompleted).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	progress.MonthsCompleted = monthsCompleted
	if totalMonths > monthsCompleted {
		progress.MonthsRemaining = totalMonths - monthsCompleted
	}

	if encoded, err := json.Marshal(progress); err == nil {
		if err := s.cache.Set(context.Background(), key, string(encoded), s.cacheTTL); err != nil {
			logger.Get().Warnw("failed to cache plan progress", "plan_id", planID, "error", err)
		}
	}
	return progress, nil
}

// checkCompletionTx flips an active plan inactive once every attached loan
// has reached zero balance. Returns true only on the transition itself, so
// repeated calls after completion stay false and a completed plan is never
// reactivated.
func checkCompletionTx(tx *gorm.DB, plan *models.Plan) (bool, error) {
	if !plan.IsActive {
		return false, nil
	}

	var totalLoans, owingLoans int64
	if err := tx.Model(&models.Loan{}).Where("plan_id = ?", plan.ID).
		Count(&totalLoans).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if err := tx.Model(&models.Loan{}).
		Where("plan_id = ? AND remaining_balance > 0", plan.ID).
		Count(&owingLoans).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if totalLoans == 0 || owingLoans > 0 {
		return false, nil
	}

	if err := tx.Model(plan).Update("is_active", false).Error; err != nil {
		return false, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	plan.IsActive = false
	return true, nil
}

// dispatchCompletionNotice fires the completion notification outside any
// transaction, in the background. Delivery failure is logged and swallowed;
// the plan's state change has already committed and must stand either way.
func dispatchCompletionNotice(db *gorm.DB, notifier notify.CompletionNotifier, plan *models.Plan) {
	var user models.User
	if err := db.First(&user, plan.UserID).Error; err != nil {
		logger.Get().Errorw("completion notice: failed to load user",
			"plan_id", plan.ID, "user_id", plan.UserID, "error", err)
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := notifier.NotifyPlanCompleted(ctx, user.Email, plan.Name); err != nil {
			logger.Get().Errorw("completion notice failed",
				"plan_id", plan.ID, "error", err)
		}
	}()
}

// CheckCompletion reports whether the plan just completed, flipping it
// inactive and sending the completion notification exactly once.
func (s *progressService) CheckCompletion(userID, planID uint) (bool, error) {
	var (
		plan         *models.Plan
		completedNow bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}
		completedNow, err = checkCompletionTx(tx, plan)
		return err
	})
	if err != nil {
		return false, err
	}

	if completedNow {
		dispatchCompletionNotice(s.db, s.notifier, plan)
	}
	return completedNow, nil
}
