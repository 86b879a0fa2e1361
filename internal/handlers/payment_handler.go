package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	apperrors "debtwise/internal/errors"
	"debtwise/internal/models"
	"debtwise/internal/pagination"
	"debtwise/internal/services"
)

// PaymentHandler handles payment reconciliation requests.
type PaymentHandler struct {
	paymentService services.PaymentServicer
	auditService   services.AuditServicer
}

// NewPaymentHandler creates a new PaymentHandler.
func NewPaymentHandler(paymentService services.PaymentServicer, auditService services.AuditServicer) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService, auditService: auditService}
}

// RecordPaymentRequest represents the request payload for recording a payment.
type RecordPaymentRequest struct {
	Amount             string `json:"amount" binding:"required,currency_amount"`
	PaymentDate        string `json:"payment_date" binding:"required"`
	Method             string `json:"method" binding:"required,payment_method"`
	Notes              string `json:"notes" binding:"max=500"`
	ConfirmationNumber string `json:"confirmation_number" binding:"max=100"`
	MonthNumber        *int   `json:"month_number" binding:"omitempty,min=1"`
}

// RecordPayment handles recording a real-world payment against a loan.
// @Summary     Record a payment
// @Description Record a payment against a loan, splitting it into interest and principal and regenerating the schedule when it deviates from the plan
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id      path int                  true "Plan ID"
// @Param       loan_id path int                  true "Loan ID"
// @Param       request body RecordPaymentRequest true "Payment details"
// @Success     201 {object} services.PaymentResult "Payment recorded"
// @Failure     400 {object} ErrorResponse "Invalid input or amount out of bounds"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan or loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/loans/{loan_id}/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
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
	loanID, err := parsePathID(c, "loan_id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	var req RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	amount, err := parseAmount(req.Amount)
	if err != nil {
		respondWithError(c, err)
		return
	}
	date, err := time.Parse("2006-01-02", req.PaymentDate)
	if err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid payment date, expected YYYY-MM-DD"))
		return
	}

	result, err := h.paymentService.RecordPayment(services.RecordPaymentInput{
		UserID:             userID,
		PlanID:             planID,
		LoanID:             loanID,
		Amount:             amount,
		Date:               date,
		Method:             models.PaymentMethod(req.Method),
		Notes:              req.Notes,
		ConfirmationNumber: req.ConfirmationNumber,
		MonthNumber:        req.MonthNumber,
	})
	if err != nil {
		respondWithError(c, err)
		return
	}

	h.auditService.Log(userID, "RECORD_PAYMENT", "payment", result.Payment.ID, c.ClientIP(),
		map[string]interface{}{"loan_id": loanID, "amount": req.Amount, "recalculated": result.Recalculated})

	c.JSON(http.StatusCreated, result)
}

// parsePaymentFilter reads the optional filter query parameters shared by the
// payment listing endpoints.
func parsePaymentFilter(c *gin.Context) (services.PaymentFilter, error) {
	var filter services.PaymentFilter

	if method := c.Query("method"); method != "" {
		filter.Method = models.PaymentMethod(method)
	}
	if from := c.Query("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid from date, expected YYYY-MM-DD")
		}
		filter.From = &t
	}
	if to := c.Query("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return filter, apperrors.WithMessage(apperrors.ErrInvalidInput, "Invalid to date, expected YYYY-MM-DD")
		}
		filter.To = &t
	}
	if raw := c.Query("loan_id"); raw != "" {
		loanID, err := parseQueryID(raw)
		if err != nil {
			return filter, err
		}
		filter.LoanID = &loanID
	}
	return filter, nil
}

// GetLoanPayments handles listing payments recorded against a loan.
// @Summary     Get loan payments
// @Description Get a paginated payment history for a loan, newest first, optionally filtered by method and date range
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  int    true  "Loan ID"
// @Param       method    query string false "Payment method filter"
// @Param       from      query string false "Earliest payment date (YYYY-MM-DD)"
// @Param       to        query string false "Latest payment date (YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PaymentEvent] "Paginated payments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Loan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /loans/{id}/payments [get]
func (h *PaymentHandler) GetLoanPayments(c *gin.Context) {
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

	filter, err := parsePaymentFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.paymentService.GetLoanPayments(userID, loanID, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPlanPayments handles listing payments recorded across a plan.
// @Summary     Get plan payments
// @Description Get a paginated payment history across every loan in a plan, newest first, optionally filtered by loan, method, and date range
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id        path  int    true  "Plan ID"
// @Param       loan_id   query int    false "Restrict to one loan"
// @Param       method    query string false "Payment method filter"
// @Param       from      query string false "Earliest payment date (YYYY-MM-DD)"
// @Param       to        query string false "Latest payment date (YYYY-MM-DD)"
// @Param       page      query int    false "Page number (default 1)"
// @Param       page_size query int    false "Items per page (default 20, max 100)"
// @Success     200 {object} pagination.PageResponse[models.PaymentEvent] "Paginated payments"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/payments [get]
func (h *PaymentHandler) GetPlanPayments(c *gin.Context) {
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

	filter, err := parsePaymentFilter(c)
	if err != nil {
		respondWithError(c, err)
		return
	}
	var page pagination.PageRequest
	if err := c.ShouldBindQuery(&page); err != nil {
		respondWithError(c, apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error()))
		return
	}

	result, err := h.paymentService.GetPlanPayments(userID, planID, filter, page)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetPlanPaymentSummary handles aggregating a plan's payments by method.
// @Summary     Get a plan payment summary
// @Description Get the count and total amount of the plan's payments grouped by payment method
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Plan ID"
// @Success     200 {object} map[string][]services.PaymentMethodSummary "Per-method totals"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Plan not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /plans/{id}/payments/summary [get]
func (h *PaymentHandler) GetPlanPaymentSummary(c *gin.Context) {
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

	summary, err := h.paymentService.GetPlanPaymentSummary(userID, planID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary})
}

// GetPayment handles retrieving a single payment.
// @Summary     Get a payment
// @Description Get a single recorded payment by ID
// @Tags        payments
// @Accept      json
// @Produce     json
// @Security    BearerAuth
// @Param       id path int true "Payment ID"
// @Success     200 {object} models.PaymentEvent "Payment"
// @Failure     400 {object} ErrorResponse "Invalid input"
// @Failure     401 {object} ErrorResponse "Unauthorized"
// @Failure     404 {object} ErrorResponse "Payment not found"
// @Failure     500 {object} ErrorResponse "Server error"
// @Router      /payments/{id} [get]
func (h *PaymentHandler) GetPayment(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		respondWithError(c, err)
		return
	}

	paymentID, err := parsePathID(c, "id")
	if err != nil {
		respondWithError(c, err)
		return
	}

	payment, err := h.paymentService.GetPaymentByID(userID, paymentID)
	if err != nil {
		respondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"payment": payment})
}
