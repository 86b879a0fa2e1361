package services

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"debtwise/internal/cache"
	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/pagination"
)

// planService handles debt-plan business logic.
type planService struct {
	db    *gorm.DB
	cache cache.Cache

	now func() time.Time
}

// NewPlanService creates a new PlanServicer.
func NewPlanService(db *gorm.DB, c cache.Cache) PlanServicer {
	return &planService{db: db, cache: c, now: time.Now}
}

// CreatePlan creates a new debt plan in draft state. The plan activates when
// its first loan is attached.
func (s *planService) CreatePlan(userID uint, name string, strategy models.Strategy, budget decimal.Decimal) (*models.Plan, error) {
	if strategy != models.StrategySnowball && strategy != models.StrategyAvalanche {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Strategy must be snowball or avalanche")
	}
	if !budget.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Monthly budget must be positive")
	}

	plan := &models.Plan{
		UserID:   userID,
		Name:     name,
		Strategy: strategy,
		Budget:   budget,
		IsActive: false,
	}
	if plan.Name == "" {
		plan.Name = "My Debt Freedom Plan"
	}

	if err := s.db.Create(plan).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return plan, nil
}

// GetUserPlans returns a paginated list of the user's plans.
func (s *planService) GetUserPlans(userID uint, page pagination.PageRequest) (*pagination.PageResponse[models.Plan], error) {
	page.Defaults()

	base := s.db.Model(&models.Plan{}).Where("user_id = ?", userID)

	var totalItems int64
	if err := base.Count(&totalItems).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var plans []models.Plan
	if err := base.Order("created_at DESC").
		Scopes(pagination.Paginate(page)).Find(&plans).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	result := pagination.NewPageResponse(plans, page.Page, page.PageSize, totalItems)
	return &result, nil
}

// GetPlanByID returns a plan with its loans if it belongs to the user.
func (s *planService) GetPlanByID(userID, planID uint) (*models.Plan, error) {
	var plan models.Plan
	err := s.db.Preload("Loans").
		Where("id = ? AND user_id = ?", planID, userID).First(&plan).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPlanNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &plan, nil
}

// UpdatePlan updates a plan's name, strategy, or budget. A strategy or
// budget change re-ranks the loans and regenerates the future schedule in
// the same transaction; an infeasible new budget rolls the whole update
// back.
func (s *planService) UpdatePlan(userID, planID uint, name string, strategy *models.Strategy, budget *decimal.Decimal) (*models.Plan, error) {
	if strategy != nil && *strategy != models.StrategySnowball && *strategy != models.StrategyAvalanche {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Strategy must be snowball or avalanche")
	}
	if budget != nil && !budget.IsPositive() {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "Monthly budget must be positive")
	}

	var plan *models.Plan
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var err error
		plan, err = getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}

		updates := make(map[string]interface{})
		if name != "" {
			updates["name"] = name
		}
		reschedule := false
		if strategy != nil && *strategy != plan.Strategy {
			updates["strategy"] = *strategy
			plan.Strategy = *strategy
			reschedule = true
		}
		if budget != nil && !budget.Equal(plan.Budget) {
			updates["budget"] = *budget
			plan.Budget = *budget
			reschedule = true
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(plan).Updates(updates).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}

		if reschedule && plan.IsActive {
			if err := refreshScheduleTx(tx, plan, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	invalidateProgress(s.cache, planID)
	return plan, nil
}

// DeletePlan removes a plan along with its schedule, payments, and loans.
func (s *planService) DeletePlan(userID, planID uint) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		plan, err := getPlanForUser(tx, userID, planID)
		if err != nil {
			return err
		}

		months := tx.Model(&models.ScheduleMonth{}).Select("id").
			Where("plan_id = ?", plan.ID)
		if err := tx.Where("schedule_month_id IN (?)", months).
			Delete(&models.LoanMonthBreakdown{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("plan_id = ?", plan.ID).
			Delete(&models.PaymentEvent{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("plan_id = ?", plan.ID).
			Delete(&models.ScheduleMonth{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("plan_id = ?", plan.ID).
			Delete(&models.Loan{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Delete(plan).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	invalidateProgress(s.cache, planID)
	return nil
}
