package services

import (
	"testing"

	"debtwise/internal/cache"
	"debtwise/internal/models"
	"debtwise/internal/testutil"
)

func TestCreateLoan(t *testing.T) {
	t.Run("manual_minimum", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)

		minimum := testutil.Amount(t, "75.00")
		loan, err := svc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			Name:             "Car Loan",
			PrincipalBalance: testutil.Amount(t, "12000.00"),
			InterestRate:     testutil.Amount(t, "6.50"),
			MinimumPayment:   &minimum,
		})
		testutil.AssertNoError(t, err)

		testutil.AssertAmount(t, loan.MinimumPayment, "75.00")
		if !loan.ManualMinimumPayment {
			t.Error("expected manual minimum flag set")
		}
		testutil.AssertAmount(t, loan.RemainingBalance, "12000.00")
		if loan.PlanID != nil {
			t.Error("expected unattached loan")
		}
	})

	t.Run("term_derives_amortized_minimum", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)

		term := 60
		loan, err := svc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			Name:             "Car Loan",
			PrincipalBalance: testutil.Amount(t, "12000.00"),
			InterestRate:     testutil.Amount(t, "6.00"),
			TermMonths:       &term,
		})
		testutil.AssertNoError(t, err)

		// 12000 @ 0.5%/mo over 60 months.
		testutil.AssertAmount(t, loan.MinimumPayment, "231.99")
		if loan.ManualMinimumPayment {
			t.Error("expected derived minimum not to set the manual flag")
		}
	})

	t.Run("default_minimum_is_two_percent_with_floor", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)

		big, err := svc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			Name:             "Big",
			PrincipalBalance: testutil.Amount(t, "10000.00"),
			InterestRate:     testutil.Amount(t, "18.00"),
		})
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, big.MinimumPayment, "200.00")

		small, err := svc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			Name:             "Small",
			PrincipalBalance: testutil.Amount(t, "400.00"),
			InterestRate:     testutil.Amount(t, "18.00"),
		})
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, small.MinimumPayment, "25.00")
	})

	t.Run("attaching_first_loan_activates_draft_plan", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		loanSvc := NewLoanService(db, cache.NewMemoryCache())
		planSvc := NewPlanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)

		plan, err := planSvc.CreatePlan(user.ID, "", models.StrategySnowball, testutil.Amount(t, "500.00"))
		testutil.AssertNoError(t, err)

		_, err = loanSvc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			PlanID:           &plan.ID,
			Name:             "Card",
			PrincipalBalance: testutil.Amount(t, "1000.00"),
			InterestRate:     testutil.Amount(t, "24.00"),
		})
		testutil.AssertNoError(t, err)

		var planAfter models.Plan
		db.First(&planAfter, plan.ID)
		if !planAfter.IsActive {
			t.Error("expected plan activated by its first loan")
		}
		var months int64
		db.Model(&models.ScheduleMonth{}).Where("plan_id = ?", plan.ID).Count(&months)
		if months == 0 {
			t.Error("expected a schedule generated on activation")
		}
	})

	t.Run("second_active_plan_rejected", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		loanSvc := NewLoanService(db, cache.NewMemoryCache())
		planSvc := NewPlanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		testutil.CreateTestPlan(t, db, user.ID, "500.00") // already active

		draft, err := planSvc.CreatePlan(user.ID, "", models.StrategySnowball, testutil.Amount(t, "300.00"))
		testutil.AssertNoError(t, err)

		_, err = loanSvc.CreateLoan(CreateLoanInput{
			UserID:           user.ID,
			PlanID:           &draft.ID,
			Name:             "Card",
			PrincipalBalance: testutil.Amount(t, "1000.00"),
			InterestRate:     testutil.Amount(t, "24.00"),
		})
		testutil.AssertAppError(t, err, "DUPLICATE_ACTIVE_PLAN")
	})
}

func TestUpdateLoan(t *testing.T) {
	t.Run("rate_change_rebuilds_schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		loan := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		_, err := NewScheduleService(db, cache.NewMemoryCache()).GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		var before models.Plan
		db.First(&before, plan.ID)

		rate := testutil.Amount(t, "36.00")
		_, err = svc.UpdateLoan(user.ID, loan.ID, UpdateLoanInput{InterestRate: &rate})
		testutil.AssertNoError(t, err)

		var after models.Plan
		db.First(&after, plan.ID)
		if !after.TotalProjectedInterest.GreaterThan(before.TotalProjectedInterest) {
			t.Errorf("expected a higher rate to raise projected interest, got %s -> %s",
				before.TotalProjectedInterest, after.TotalProjectedInterest)
		}
	})

	t.Run("minimum_change_sets_manual_flag", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		loan := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")

		minimum := testutil.Amount(t, "60.00")
		updated, err := svc.UpdateLoan(user.ID, loan.ID, UpdateLoanInput{MinimumPayment: &minimum})
		testutil.AssertNoError(t, err)
		if !updated.ManualMinimumPayment {
			t.Error("expected manual minimum flag set")
		}
		testutil.AssertAmount(t, updated.MinimumPayment, "60.00")
	})
}

func TestDeleteLoan(t *testing.T) {
	t.Run("removes_loan_and_rebuilds_schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewLoanService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		keep := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		drop := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")
		_, err := NewScheduleService(db, cache.NewMemoryCache()).GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		testutil.AssertNoError(t, svc.DeleteLoan(user.ID, drop.ID))

		var count int64
		db.Model(&models.Loan{}).Where("plan_id = ?", plan.ID).Count(&count)
		if count != 1 {
			t.Fatalf("expected 1 remaining loan, got %d", count)
		}

		// The rebuilt schedule only carries the surviving loan.
		var breakdowns int64
		db.Model(&models.LoanMonthBreakdown{}).Where("loan_id = ?", drop.ID).Count(&breakdowns)
		if breakdowns != 0 {
			t.Errorf("expected no breakdowns for the deleted loan, got %d", breakdowns)
		}
		var keepAfter models.Loan
		db.First(&keepAfter, keep.ID)
		if keepAfter.PayoffOrder == nil || *keepAfter.PayoffOrder != 1 {
			t.Errorf("expected surviving loan ranked 1, got %v", keepAfter.PayoffOrder)
		}
	})
}

func TestEstimateMinimumPayment(t *testing.T) {
	svc := NewLoanService(nil, cache.NewMemoryCache())

	t.Run("with_term", func(t *testing.T) {
		term := 60
		got, err := svc.EstimateMinimumPayment(testutil.Amount(t, "12000.00"), testutil.Amount(t, "6.00"), &term)
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, got, "231.99")
	})

	t.Run("without_term", func(t *testing.T) {
		got, err := svc.EstimateMinimumPayment(testutil.Amount(t, "10000.00"), testutil.Amount(t, "18.00"), nil)
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, got, "200.00")
	})

	t.Run("floor", func(t *testing.T) {
		got, err := svc.EstimateMinimumPayment(testutil.Amount(t, "100.00"), testutil.Amount(t, "18.00"), nil)
		testutil.AssertNoError(t, err)
		testutil.AssertAmount(t, got, "25.00")
	})

	t.Run("rejects_zero_principal", func(t *testing.T) {
		_, err := svc.EstimateMinimumPayment(testutil.Amount(t, "0.00"), testutil.Amount(t, "18.00"), nil)
		testutil.AssertAppError(t, err, "INVALID_INPUT")
	})
}
