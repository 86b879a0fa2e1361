package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/pagination"
	"debtwise/internal/services"
)

// PlanHandler handles debt-plan requests.
type PlanHandler struct {
	planService  services.PlanServicer
	auditService services.AuditServicer
}

// NewPlanHandler creates a new PlanHandler.
func NewPlanHandler(planService services.PlanServicer, auditService services.AuditServicer) *PlanHandler {
	return &PlanHandler{planService: planService, auditService: auditService}
}

// CreatePlanRequest represents the request payload for creating a plan.
type CreatePlanRequest struct {
	Name     string `json:"name" binding:"omitempty,max=100"`
	Strategy string `json:"strategy" binding:"required,strategy"`
	Budget   string `json:"monthly_payment_budget" binding:"required,currency_amount"`
}

// UpdatePlanRequest represents the request payload for updating a plan.
type UpdatePlanRequest struct {
	Name     string  `json:"name" binding:"omitempty,max=100"`
	Strategy *string `json:"strategy" binding:"omitempty,strategy"`
	Budget   *string `json:"monthly_payment_budget" binding:"omitempty,currency_amount"`
}

// CreatePlan handles the creation of a new debt plan.
// @Summary     Create a debt plan
// @Description Create a new debt payoff plan in draft state
// @Tags        plans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreatePlanRequest true "Plan details"
// @Success     201 {object} models.Plan "Plan created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans [post]
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	budget, err := parseAmount(req.Budget)
	if err != nil {
		respondWithError(c, err)
		return
	}

	plan, err := h.planService.CreatePlan(userID, req.Name, models.Strategy(req.Strategy), budget)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_PLAN", "plan", plan.ID, c.ClientIP(),
		map[string]interface{}{"strategy": req.Strategy, "budget": req.Budget})

	c.JSON(http.StatusCreated, gin.H{"plan": plan})
}

// GetPlans handles listing plans for the authenticated user.
// @Summary     Get plans
// @Description Get a paginated list of debt plans for the authenticated user
// @Tags        plans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Plan] "Paginated plans"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans [get]
func (h *PlanHandler) GetPlans(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.planService.GetUserPlans(userID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPlan handles retrieving a single plan with its loans.
// @Summary     Get a plan
// @Description Get a single debt plan with its loans
// @Tags        plans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} models.Plan "Plan"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id} [get]
func (h *PlanHandler) GetPlan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	plan, err := h.planService.GetPlanByID(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// UpdatePlan handles updating a plan's name, strategy, or budget.
// @Summary     Update a plan
// @Description Update a plan; strategy or budget changes regenerate the future schedule
// @Tags        plans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int               true "Plan ID"
// @Param       request body UpdatePlanRequest true "Fields to update"
// @Success     200 {object} models.Plan "Updated plan"
// @Failure     400 {object} ErrorResponse "Invalid input or infeasible budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id} [put]
func (h *PlanHandler) UpdatePlan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	var strategy *models.Strategy
	if req.Strategy != nil {
		s := models.Strategy(*req.Strategy)
		strategy = &s
	}
	var budget *decimal.Decimal
	if req.Budget != nil {
		b, err := parseAmount(*req.Budget)
		if err != nil {
			respondWithError(c, err)
			return
		}
		budget = &b
	}

	plan, err := h.planService.UpdatePlan(userID, planID, req.Name, strategy, budget)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_PLAN", "plan", plan.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "strategy": req.Strategy, "budget": req.Budget})

	c.JSON(http.StatusOK, gin.H{"plan": plan})
}

// DeletePlan handles deleting a plan and everything attached to it.
// @Summary     Delete a plan
// @Description Delete a plan along with its loans, schedule, and payment history
// @Tags        plans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     204 "Plan deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id} [delete]
func (h *PlanHandler) DeletePlan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	planID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.planService.DeletePlan(userID, planID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_PLAN", "plan", planID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}
