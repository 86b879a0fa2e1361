package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"debtwise/internal/services"
)

// ProgressHandler handles payoff progress requests.
type ProgressHandler struct {
	progressService services.ProgressServicer
}

// NewProgressHandler creates a new ProgressHandler.
func NewProgressHandler(progressService services.ProgressServicer) *ProgressHandler {
	return &ProgressHandler{progressService: progressService}
}

// GetProgress handles retrieving aggregated progress for a plan.
// @Summary     Get plan progress
// @Description Get aggregated payoff progress across every loan in a plan
// @Tags        progress
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} services.PlanProgress "Plan progress"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/progress [get]
func (h *ProgressHandler) GetProgress(c *gin.Context) {
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

	progress, err := h.progressService.ComputeProgress(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"progress": progress})
}

// CheckCompletion handles an explicit completion check for a plan.
// @Summary     Check plan completion
// @Description Check whether every loan in the plan is paid off, marking the plan completed if so
// @Tags        progress
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} map[string]bool "Completion state"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/completion [post]
func (h *ProgressHandler) CheckCompletion(c *gin.Context) {
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

	completed, err := h.progressService.CheckCompletion(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"completed": completed})
}
