package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"debtwise/internal/cache"
	"debtwise/internal/models"
	"debtwise/internal/pagination"
	"debtwise/internal/testutil"
)

// stubNotifier records completion notifications for assertions.
type stubNotifier struct {
	mu       sync.Mutex
	calls    int
	notified chan struct{}
}

func newStubNotifier() *stubNotifier {
	return &stubNotifier{notified: make(chan struct{}, 8)}
}

func (n *stubNotifier) NotifyPlanCompleted(_ context.Context, _, _ string) error {
	n.mu.Lock()
	n.calls++
	n.mu.Unlock()
	n.notified <- struct{}{}
	return nil
}

func (n *stubNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

func (n *stubNotifier) waitForCall(t *testing.T) {
	t.Helper()
	select {
	case <-n.notified:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for completion notification")
	}
}

func newTestPaymentService(t *testing.T, db *gorm.DB) (PaymentServicer, *stubNotifier) {
	t.Helper()
	notifier := newStubNotifier()
	return NewPaymentService(db, testutil.Amount(t, "10.00"), notifier, cache.NewMemoryCache()), notifier
}

// setupScheduledPlan creates the reference two-loan plan with a generated
// schedule: 500/mo snowball, A 1000 @ 24% min 50, B 3000 @ 12% min 100.
func setupScheduledPlan(t *testing.T, db *gorm.DB) (*models.User, *models.Plan, *models.Loan, *models.Loan) {
	t.Helper()
	user := testutil.CreateTestUser(t, db)
	plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
	loanA := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
	loanB := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

	if _, err := NewScheduleService(db, cache.NewMemoryCache()).GenerateSchedule(user.ID, plan.ID); err != nil {
		t.Fatalf("failed to generate schedule: %v", err)
	}
	return user, plan, loanA, loanB
}

func recordInput(t *testing.T, user *models.User, plan *models.Plan, loan *models.Loan, amount string) RecordPaymentInput {
	t.Helper()
	return RecordPaymentInput{
		UserID: user.ID,
		PlanID: plan.ID,
		LoanID: loan.ID,
		Amount: testutil.Amount(t, amount),
		Date:   time.Now(),
		Method: models.MethodBankTransfer,
	}
}

func TestRecordPayment(t *testing.T) {
	t.Run("on_schedule_payment_splits_and_links", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		result, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "400.00"))
		testutil.AssertNoError(t, err)

		if result.Recalculated {
			t.Error("an exactly-on-schedule payment should not force recalculation")
		}
		payment := result.Payment
		testutil.AssertAmount(t, payment.InterestPaid, "20.00")
		testutil.AssertAmount(t, payment.PrincipalPaid, "380.00")
		testutil.AssertAmount(t, payment.BalanceBefore, "1000.00")
		if payment.MonthNumber != 1 {
			t.Errorf("expected month 1, got %d", payment.MonthNumber)
		}
		if payment.ScheduleMonthID == nil {
			t.Error("expected payment linked to its schedule month")
		}
		if payment.IsExtraPayment || payment.IsBelowMinimum {
			t.Error("expected an on-schedule payment to carry no classification flags")
		}

		var loanAfter models.Loan
		db.First(&loanAfter, loanA.ID)
		testutil.AssertAmount(t, loanAfter.RemainingBalance, "620.00")
	})

	t.Run("extra_payment_triggers_recalculation", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		result, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "450.00"))
		testutil.AssertNoError(t, err)

		if !result.Payment.IsExtraPayment {
			t.Error("expected payment flagged as extra")
		}
		if result.Payment.IsBelowMinimum {
			t.Error("extra payment must not also be below minimum")
		}
		if !result.Recalculated {
			t.Error("expected extra payment to force recalculation")
		}
		if result.Payment.ScheduleMonthID == nil {
			t.Error("expected payment to stay linked after regeneration")
		}

		// Month 2 onward must now start from the updated balance of 570.
		var month2 models.ScheduleMonth
		testutil.AssertNoError(t, db.Preload("Breakdowns").
			Where("plan_id = ? AND month_number = 2", plan.ID).First(&month2).Error)
		for _, b := range month2.Breakdowns {
			if b.LoanID == loanA.ID {
				// 570 x 2% = 11.40 interest, 400 payment.
				testutil.AssertAmount(t, b.InterestAmount, "11.40")
			}
		}
	})

	t.Run("below_minimum_payment_recalculates", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "100.00")
		loan := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "0.00", "50.00")
		_, err := NewScheduleService(db, cache.NewMemoryCache()).GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		result, err := svc.RecordPayment(recordInput(t, user, plan, loan, "10.00"))
		testutil.AssertNoError(t, err)

		if !result.Payment.IsBelowMinimum {
			t.Error("expected payment flagged below minimum")
		}
		if result.Payment.IsExtraPayment {
			t.Error("below-minimum payment must never also be extra")
		}
		if !result.Recalculated {
			t.Error("expected below-minimum payment to force recalculation")
		}

		var loanAfter models.Loan
		db.First(&loanAfter, loan.ID)
		testutil.AssertAmount(t, loanAfter.RemainingBalance, "990.00")
	})

	t.Run("rejects_payment_below_interest", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		_, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "19.99"))
		testutil.AssertAppError(t, err, "PAYMENT_BELOW_INTEREST")

		// Rejection leaves no trace.
		var loanAfter models.Loan
		db.First(&loanAfter, loanA.ID)
		testutil.AssertAmount(t, loanAfter.RemainingBalance, "1000.00")
		var count int64
		db.Model(&models.PaymentEvent{}).Where("loan_id = ?", loanA.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected no payment rows after rejection, got %d", count)
		}
	})

	t.Run("rejects_overpayment", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		// Payoff amount is 1000 + 20 interest.
		_, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "1020.01"))
		testutil.AssertAppError(t, err, "PAYMENT_EXCEEDS_PAYOFF")
	})

	t.Run("rejects_date_before_plan_start", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		input := recordInput(t, user, plan, loanA, "400.00")
		input.Date = time.Now().AddDate(0, -2, 0)
		_, err := svc.RecordPayment(input)
		testutil.AssertAppError(t, err, "PAYMENT_BEFORE_PLAN_START")
	})

	t.Run("rejects_month_beyond_schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		month := 999
		input := recordInput(t, user, plan, loanA, "400.00")
		input.MonthNumber = &month
		_, err := svc.RecordPayment(input)
		testutil.AssertAppError(t, err, "MONTH_OUT_OF_RANGE")
	})

	t.Run("rejects_loan_outside_plan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, _, _ := setupScheduledPlan(t, db)
		otherPlan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		otherLoan := testutil.CreateTestLoan(t, db, user.ID, otherPlan.ID, "1000.00", "10.00", "50.00")

		_, err := svc.RecordPayment(recordInput(t, user, plan, otherLoan, "100.00"))
		testutil.AssertAppError(t, err, "LOAN_NOT_IN_PLAN")
	})

	t.Run("rejects_unknown_method", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		input := recordInput(t, user, plan, loanA, "400.00")
		input.Method = "carrier_pigeon"
		_, err := svc.RecordPayment(input)
		testutil.AssertAppError(t, err, "INVALID_PAYMENT_METHOD")
	})

	t.Run("payoff_completes_plan_and_notifies_once", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, notifier := newTestPaymentService(t, db)
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "100.00")
		loan := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "80.00", "0.00", "50.00")
		_, err := NewScheduleService(db, cache.NewMemoryCache()).GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		result, err := svc.RecordPayment(recordInput(t, user, plan, loan, "80.00"))
		testutil.AssertNoError(t, err)
		if !result.Recalculated {
			t.Error("expected payoff to force recalculation")
		}

		var loanAfter models.Loan
		db.First(&loanAfter, loan.ID)
		testutil.AssertAmount(t, loanAfter.RemainingBalance, "0.00")
		if loanAfter.PayoffOrder != nil {
			t.Error("expected payoff rank cleared on a paid-off loan")
		}

		var planAfter models.Plan
		db.First(&planAfter, plan.ID)
		if planAfter.IsActive {
			t.Error("expected plan deactivated after all loans paid off")
		}

		notifier.waitForCall(t)
		if notifier.count() != 1 {
			t.Errorf("expected exactly one completion notification, got %d", notifier.count())
		}
	})

	t.Run("listing_filters_by_method_and_date_range", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, loanB := setupScheduledPlan(t, db)

		cashInput := recordInput(t, user, plan, loanA, "400.00")
		cashInput.Method = models.MethodCash
		_, err := svc.RecordPayment(cashInput)
		testutil.AssertNoError(t, err)
		_, err = svc.RecordPayment(recordInput(t, user, plan, loanB, "100.00"))
		testutil.AssertNoError(t, err)

		byMethod, err := svc.GetPlanPayments(user.ID, plan.ID,
			PaymentFilter{Method: models.MethodCash}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if byMethod.TotalItems != 1 || byMethod.Data[0].LoanID != loanA.ID {
			t.Errorf("expected only the cash payment, got %d items", byMethod.TotalItems)
		}

		yesterday := time.Now().AddDate(0, 0, -1)
		tomorrow := time.Now().AddDate(0, 0, 1)
		inRange, err := svc.GetLoanPayments(user.ID, loanA.ID,
			PaymentFilter{From: &yesterday, To: &tomorrow}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if inRange.TotalItems != 1 {
			t.Errorf("expected 1 payment inside the range, got %d", inRange.TotalItems)
		}

		outOfRange, err := svc.GetLoanPayments(user.ID, loanA.ID,
			PaymentFilter{From: &tomorrow}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if outOfRange.TotalItems != 0 {
			t.Errorf("expected no payments after tomorrow, got %d", outOfRange.TotalItems)
		}

		_, err = svc.GetPlanPayments(user.ID, plan.ID,
			PaymentFilter{Method: "carrier_pigeon"}, pagination.PageRequest{})
		testutil.AssertAppError(t, err, "INVALID_PAYMENT_METHOD")
	})

	t.Run("plan_listing_narrows_to_one_loan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, loanB := setupScheduledPlan(t, db)

		_, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "400.00"))
		testutil.AssertNoError(t, err)
		_, err = svc.RecordPayment(recordInput(t, user, plan, loanB, "100.00"))
		testutil.AssertNoError(t, err)

		result, err := svc.GetPlanPayments(user.ID, plan.ID,
			PaymentFilter{LoanID: &loanB.ID}, pagination.PageRequest{})
		testutil.AssertNoError(t, err)
		if result.TotalItems != 1 || result.Data[0].LoanID != loanB.ID {
			t.Errorf("expected only the second loan's payment, got %d items", result.TotalItems)
		}
	})

	t.Run("sequential_payments_split_off_updated_balance", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, _ := setupScheduledPlan(t, db)

		first, err := svc.RecordPayment(recordInput(t, user, plan, loanA, "400.00"))
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, first.Payment.BalanceBefore, "1000.00")

		month := 2
		input := recordInput(t, user, plan, loanA, "400.00")
		input.MonthNumber = &month
		second, err := svc.RecordPayment(input)
		testutil.AssertNoError(t, err)

		// 620 x 2% = 12.40 interest off the post-payment balance.
		testutil.AssertAmount(t, second.Payment.BalanceBefore, "620.00")
		testutil.AssertAmount(t, second.Payment.InterestPaid, "12.40")
	})
}

func TestGetPlanPaymentSummary(t *testing.T) {
	t.Run("groups_totals_by_method", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, loanA, loanB := setupScheduledPlan(t, db)

		cashInput := recordInput(t, user, plan, loanA, "400.00")
		cashInput.Method = models.MethodCash
		_, err := svc.RecordPayment(cashInput)
		testutil.AssertNoError(t, err)
		_, err = svc.RecordPayment(recordInput(t, user, plan, loanB, "100.00"))
		testutil.AssertNoError(t, err)
		month := 2
		secondTransfer := recordInput(t, user, plan, loanB, "100.00")
		secondTransfer.MonthNumber = &month
		_, err = svc.RecordPayment(secondTransfer)
		testutil.AssertNoError(t, err)

		summary, err := svc.GetPlanPaymentSummary(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		if len(summary) != 2 {
			t.Fatalf("expected 2 method groups, got %d", len(summary))
		}
		if summary[0].Method != models.MethodBankTransfer || summary[0].Count != 2 {
			t.Errorf("expected 2 bank transfers first, got %d %s", summary[0].Count, summary[0].Method)
		}
		testutil.AssertAmount(t, summary[0].Total, "200.00")
		if summary[1].Method != models.MethodCash || summary[1].Count != 1 {
			t.Errorf("expected 1 cash payment, got %d %s", summary[1].Count, summary[1].Method)
		}
		testutil.AssertAmount(t, summary[1].Total, "400.00")
	})

	t.Run("empty_plan_yields_empty_summary", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user, plan, _, _ := setupScheduledPlan(t, db)

		summary, err := svc.GetPlanPaymentSummary(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		if len(summary) != 0 {
			t.Errorf("expected no groups, got %d", len(summary))
		}
	})

	t.Run("plan_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc, _ := newTestPaymentService(t, db)
		user := testutil.CreateTestUser(t, db)

		_, err := svc.GetPlanPaymentSummary(user.ID, 9999)
		testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	})
}
