package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	apperrors "debtwise/internal/errors"
	"debtwise/internal/pagination"
	"debtwise/internal/services"
)

// LoanHandler handles loan-related requests.
type LoanHandler struct {
	loanService  services.LoanServicer
	auditService services.AuditServicer
}

// NewLoanHandler creates a new LoanHandler.
func NewLoanHandler(loanService services.LoanServicer, auditService services.AuditServicer) *LoanHandler {
	return &LoanHandler{loanService: loanService, auditService: auditService}
}

// CreateLoanRequest represents the request payload for creating a loan.
type CreateLoanRequest struct {
	PlanID           *uint   `json:"plan_id"`
	Name             string  `json:"name" binding:"required,min=1,max=100"`
	PrincipalBalance string  `json:"principal_balance" binding:"required,currency_amount"`
	InterestRate     string  `json:"interest_rate" binding:"required"`
	MinimumPayment   *string `json:"minimum_payment" binding:"omitempty,currency_amount"`
	DueDay           int     `json:"due_day" binding:"omitempty,due_day"`
	TermMonths       *int    `json:"term_months" binding:"omitempty,min=1,max=600"`
}

// UpdateLoanRequest represents the request payload for updating a loan.
type UpdateLoanRequest struct {
	Name           string  `json:"name" binding:"omitempty,min=1,max=100"`
	InterestRate   *string `json:"interest_rate"`
	MinimumPayment *string `json:"minimum_payment" binding:"omitempty,currency_amount"`
	DueDay         *int    `json:"due_day" binding:"omitempty,due_day"`
}

// EstimateMinimumRequest represents the payload for previewing a minimum payment.
type EstimateMinimumRequest struct {
	PrincipalBalance string `json:"principal_balance" binding:"required,currency_amount"`
	InterestRate     string `json:"interest_rate" binding:"required"`
	TermMonths       *int   `json:"term_months" binding:"omitempty,min=1,max=600"`
}

// CreateLoan handles the creation of a new loan.
// @Summary     Create a loan
// @Description Create a loan, optionally attached to a plan; attaching rebuilds the plan's schedule
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body CreateLoanRequest true "Loan details"
// @Success     201 {object} models.Loan "Loan created"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     409 {object} ErrorResponse "Another plan is already active"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [post]
func (h *LoanHandler) CreateLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req CreateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	principal, err := parseAmount(req.PrincipalBalance)
	if err != nil {
		respondWithError(c, err)
		return
	}
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid interest rate"))
		return
	}
	var minimum *decimal.Decimal
	if req.MinimumPayment != nil {
		m, err := parseAmount(*req.MinimumPayment)
		if err != nil {
			respondWithError(c, err)
			return
		}
		minimum = &m
	}

	loan, err := h.loanService.CreateLoan(services.CreateLoanInput{
		UserID:           userID,
		PlanID:           req.PlanID,
		Name:             req.Name,
		PrincipalBalance: principal,
		InterestRate:     rate,
		MinimumPayment:   minimum,
		DueDay:           req.DueDay,
		TermMonths:       req.TermMonths,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "CREATE_LOAN", "loan", loan.ID, c.ClientIP(),
		map[string]interface{}{"name": req.Name, "principal": req.PrincipalBalance})

	c.JSON(http.StatusCreated, gin.H{"loan": loan})
}

// GetLoans handles listing loans for the authenticated user.
// @Summary     Get loans
// @Description Get a paginated list of loans, optionally filtered by plan
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       plan_id   query int false "Filter by plan"
// @Param       page      query int false "Page number (default 1)"
// @Param       page_size query int false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.Loan] "Paginated loans"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans [get]
func (h *LoanHandler) GetLoans(c *gin.Context) {
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

	var planID *uint
	if v := c.Query("plan_id"); v != "" {
		id, err := parseQueryID(v)
		if err != nil {
			respondWithError(c, err)
			return
		}
		planID = &id
	}

	result, err := h.loanService.GetUserLoans(userID, page, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetLoan handles retrieving a single loan.
// @Summary     Get a loan
// @Description Get a single loan by ID
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan ID"
// @Success     200 {object} models.Loan "Loan"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [get]
func (h *LoanHandler) GetLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.GetLoanByID(userID, loanID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// UpdateLoan handles updating a loan's fields.
// @Summary     Update a loan
// @Description Update a loan; rate or minimum changes rebuild the plan's future schedule
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int               true "Loan ID"
// @Param       request body UpdateLoanRequest true "Fields to update"
// @Success     200 {object} models.Loan "Updated loan"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [put]
func (h *LoanHandler) UpdateLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req UpdateLoanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	input := services.UpdateLoanInput{Name: req.Name, DueDay: req.DueDay}
	if req.InterestRate != nil {
		rate, err := decimal.NewFromString(*req.InterestRate)
		if err != nil {
			respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid interest rate"))
			return
		}
		input.InterestRate = &rate
	}
	if req.MinimumPayment != nil {
		minimum, err := parseAmount(*req.MinimumPayment)
		if err != nil {
			respondWithError(c, err)
			return
		}
		input.MinimumPayment = &minimum
	}

	loan, err := h.loanService.UpdateLoan(userID, loanID, input)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "UPDATE_LOAN", "loan", loan.ID, c.ClientIP(), nil)

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// AttachLoan handles attaching an existing loan to a plan.
// @Summary     Attach a loan to a plan
// @Description Attach an unattached loan to a plan, activating a draft plan
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int true "Loan ID"
// @Param       plan_id path int true "Plan ID"
// @Success     200 {object} models.Loan "Attached loan"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan or plan not found"
// @Failure     409 {object} ErrorResponse "Another plan is already active"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/attach/{plan_id} [post]
func (h *LoanHandler) AttachLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}
	planID, err := parsePathID(c, "plan_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	loan, err := h.loanService.AttachLoanToPlan(userID, loanID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "ATTACH_LOAN", "loan", loan.ID, c.ClientIP(),
		map[string]interface{}{"plan_id": planID})

	c.JSON(http.StatusOK, gin.H{"loan": loan})
}

// DeleteLoan handles deleting a loan.
// @Summary     Delete a loan
// @Description Delete a loan and rebuild the plan's schedule for the remaining loans
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Loan ID"
// @Success     204 "Loan deleted"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id} [delete]
func (h *LoanHandler) DeleteLoan(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	loanID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	if err := h.loanService.DeleteLoan(userID, loanID); err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "DELETE_LOAN", "loan", loanID, c.ClientIP(), nil)

	c.Status(http.StatusNoContent)
}

// EstimateMinimum handles previewing a minimum payment for a prospective loan.
// @Summary     Estimate a minimum payment
// @Description Preview the minimum payment for a principal, rate, and optional term
// @Tags        loans
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       request body EstimateMinimumRequest true "Loan parameters"
// @Success     200 {object} map[string]string "Estimated minimum payment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/estimate-minimum [post]
func (h *LoanHandler) EstimateMinimum(c *gin.Context) {
	if _, err := getUserID(c); err != nil {
		respondWithError(c, err)
		return
	}

	var req EstimateMinimumRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	principal, err := parseAmount(req.PrincipalBalance)
	if err != nil {
		respondWithError(c, err)
		return
	}
	rate, err := decimal.NewFromString(req.InterestRate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid interest rate"))
		return
	}

	minimum, err := h.loanService.EstimateMinimumPayment(principal, rate, req.TermMonths)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"minimum_payment": minimum.StringFixed(2)})
}
