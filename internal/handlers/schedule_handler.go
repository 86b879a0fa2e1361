package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	apperrors "debtwise/internal/errors"
	"debtwise/internal/pagination"
	"debtwise/internal/services"
)

// ScheduleHandler handles payoff ordering and schedule requests.
type ScheduleHandler struct {
	scheduleService services.ScheduleServicer
	auditService    services.AuditServicer
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduleService services.ScheduleServicer, auditService services.AuditServicer) *ScheduleHandler {
	return &ScheduleHandler{scheduleService: scheduleService, auditService: auditService}
}

// RegenerateScheduleRequest represents the request payload for a partial
// schedule regeneration.
type RegenerateScheduleRequest struct {
	StartMonth int `json:"start_month" binding:"required,min=1"`
}

// ResolvePayoffOrder handles re-ranking a plan's loans by its strategy.
// @Summary     Resolve payoff order
// @Description Rank the plan's loans by the configured strategy and persist the ordering
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} map[string]int "Number of loans ranked"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/payoff-order [post]
func (h *ScheduleHandler) ResolvePayoffOrder(c *gin.Context) {
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

	ranked, err := h.scheduleService.ResolvePayoffOrder(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RESOLVE_PAYOFF_ORDER", "plan", planID, c.ClientIP(),
		map[string]interface{}{"loans_ranked": ranked})

	c.JSON(http.StatusOK, gin.H{"loans_ranked": ranked})
}

// GenerateSchedule handles generating a plan's full projected schedule.
// @Summary     Generate a schedule
// @Description Simulate the plan from the original principals and persist the full month-by-month schedule
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     201 {object} map[string]int "Number of months generated"
// @Failure     400 {object} ErrorResponse "Invalid input or infeasible budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/schedule [post]
func (h *ScheduleHandler) GenerateSchedule(c *gin.Context) {
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

	months, err := h.scheduleService.GenerateSchedule(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "GENERATE_SCHEDULE", "plan", planID, c.ClientIP(),
		map[string]interface{}{"months": months})

	c.JSON(http.StatusCreated, gin.H{"months": months})
}

// RegenerateSchedule handles rebuilding a schedule from a given month onward.
// @Summary     Regenerate a schedule
// @Description Rebuild the schedule from the given month using current balances, preserving earlier months
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                       true "Plan ID"
// @Param       request body RegenerateScheduleRequest true "Regeneration start month"
// @Success     200 {object} map[string]int "Number of months generated"
// @Failure     400 {object} ErrorResponse "Invalid input or infeasible budget"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/schedule/regenerate [post]
func (h *ScheduleHandler) RegenerateSchedule(c *gin.Context) {
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

	var req RegenerateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	months, err := h.scheduleService.RegenerateScheduleFrom(userID, planID, req.StartMonth)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "REGENERATE_SCHEDULE", "plan", planID, c.ClientIP(),
		map[string]interface{}{"start_month": req.StartMonth, "months": months})

	c.JSON(http.StatusOK, gin.H{"months": months})
}

// GetSchedule handles listing a plan's schedule months.
// @Summary     Get a schedule
// @Description Get a paginated month-by-month schedule with per-loan breakdowns
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  int true  "Plan ID"
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.ScheduleMonth] "Paginated schedule"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/schedule [get]
func (h *ScheduleHandler) GetSchedule(c *gin.Context) {
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

	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.scheduleService.GetSchedule(userID, planID, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetCurrentScheduleMonth handles retrieving the schedule month that today
// falls in.
// @Summary     Get the current schedule month
// @Description Get the schedule month covering the current calendar month, with its per-loan breakdowns
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} models.ScheduleMonth "Schedule month"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan or month not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/schedule/current [get]
func (h *ScheduleHandler) GetCurrentScheduleMonth(c *gin.Context) {
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

	month, err := h.scheduleService.GetCurrentScheduleMonth(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"month": month})
}

// GetScheduleMonth handles retrieving a single schedule month.
// @Summary     Get a schedule month
// @Description Get one schedule month with its per-loan breakdowns
// @Tags        schedule
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id    path int true "Plan ID"
// @Param       month path int true "Month number"
// @Success     200 {object} models.ScheduleMonth "Schedule month"
// @Failure     400 {object} ErrorResponse "Invalid input or month out of range"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan or month not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/schedule/{month} [get]
func (h *ScheduleHandler) GetScheduleMonth(c *gin.Context) {
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

	monthNumber, err := strconv.Atoi(c.Param("month"))
	if err != nil || monthNumber < 1 {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid month number"))
		return
	}

	month, err := h.scheduleService.GetScheduleMonth(userID, planID, monthNumber)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"month": month})
}
