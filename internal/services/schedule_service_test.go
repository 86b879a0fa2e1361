package services

import (
	"testing"
	"time"

	"debtwise/internal/cache"
	"debtwise/internal/models"
	"debtwise/internal/testutil"
)

func TestResolvePayoffOrder(t *testing.T) {
	t.Run("snowball_orders_by_balance_ascending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		big := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")
		small := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")

		count, err := svc.ResolvePayoffOrder(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		if count != 2 {
			t.Fatalf("expected 2 ranked loans, got %d", count)
		}

		var smallAfter, bigAfter models.Loan
		db.First(&smallAfter, small.ID)
		db.First(&bigAfter, big.ID)
		if smallAfter.PayoffOrder == nil || *smallAfter.PayoffOrder != 1 {
			t.Errorf("expected smaller loan ranked 1, got %v", smallAfter.PayoffOrder)
		}
		if bigAfter.PayoffOrder == nil || *bigAfter.PayoffOrder != 2 {
			t.Errorf("expected bigger loan ranked 2, got %v", bigAfter.PayoffOrder)
		}
	})

	t.Run("avalanche_orders_by_rate_descending", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlanWithStrategy(t, db, user.ID, models.StrategyAvalanche, "500.00")
		low := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "12.00", "50.00")
		high := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "24.00", "100.00")

		_, err := svc.ResolvePayoffOrder(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		var lowAfter, highAfter models.Loan
		db.First(&lowAfter, low.ID)
		db.First(&highAfter, high.ID)
		if highAfter.PayoffOrder == nil || *highAfter.PayoffOrder != 1 {
			t.Errorf("expected high-rate loan ranked 1, got %v", highAfter.PayoffOrder)
		}
		if lowAfter.PayoffOrder == nil || *lowAfter.PayoffOrder != 2 {
			t.Errorf("expected low-rate loan ranked 2, got %v", lowAfter.PayoffOrder)
		}
	})

	t.Run("ties_break_by_creation_order", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		first := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "10.00", "50.00")
		second := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "20.00", "50.00")

		_, err := svc.ResolvePayoffOrder(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		var firstAfter, secondAfter models.Loan
		db.First(&firstAfter, first.ID)
		db.First(&secondAfter, second.ID)
		if *firstAfter.PayoffOrder != 1 || *secondAfter.PayoffOrder != 2 {
			t.Errorf("expected creation order to break the tie, got %v and %v",
				*firstAfter.PayoffOrder, *secondAfter.PayoffOrder)
		}
	})

	t.Run("paid_off_loan_rank_cleared", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		owing := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "10.00", "50.00")
		paid := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "2000.00", "10.00", "50.00")
		db.Model(&models.Loan{}).Where("id = ?", paid.ID).
			Update("remaining_balance", testutil.Amount(t, "0.00"))

		count, err := svc.ResolvePayoffOrder(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		if count != 1 {
			t.Fatalf("expected 1 ranked loan, got %d", count)
		}

		var owingAfter, paidAfter models.Loan
		db.First(&owingAfter, owing.ID)
		db.First(&paidAfter, paid.ID)
		if owingAfter.PayoffOrder == nil || *owingAfter.PayoffOrder != 1 {
			t.Errorf("expected owing loan ranked 1, got %v", owingAfter.PayoffOrder)
		}
		if paidAfter.PayoffOrder != nil {
			t.Errorf("expected paid-off loan rank cleared, got %v", *paidAfter.PayoffOrder)
		}
	})

	t.Run("plan_not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)

		_, err := svc.ResolvePayoffOrder(user.ID, 9999)
		testutil.AssertAppError(t, err, "PLAN_NOT_FOUND")
	})
}

func TestGenerateSchedule(t *testing.T) {
	t.Run("writes_contiguous_months_and_projections", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		months, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		if months == 0 {
			t.Fatal("expected at least one generated month")
		}

		var rows []models.ScheduleMonth
		db.Where("plan_id = ?", plan.ID).Order("month_number ASC").Find(&rows)
		if len(rows) != months {
			t.Fatalf("expected %d schedule rows, got %d", months, len(rows))
		}
		for i, row := range rows {
			if row.MonthNumber != i+1 {
				t.Fatalf("expected contiguous month numbers, got %d at index %d", row.MonthNumber, i)
			}
		}

		var planAfter models.Plan
		db.First(&planAfter, plan.ID)
		if planAfter.ProjectedPayoffDate == nil {
			t.Error("expected projected payoff date to be set")
		}
		if !planAfter.TotalProjectedInterest.IsPositive() {
			t.Errorf("expected positive projected interest, got %s", planAfter.TotalProjectedInterest)
		}
	})

	t.Run("breakdowns_sum_to_month_totals", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		var rows []models.ScheduleMonth
		db.Preload("Breakdowns").Where("plan_id = ?", plan.ID).Find(&rows)
		for _, row := range rows {
			sum := testutil.Amount(t, "0.00")
			for _, b := range row.Breakdowns {
				sum = sum.Add(b.PaymentAmount)
			}
			if !sum.Equal(row.TotalPayment) {
				t.Errorf("month %d: breakdown payments %s != total %s",
					row.MonthNumber, sum, row.TotalPayment)
			}
		}
	})

	t.Run("regeneration_is_idempotent", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		first, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		var firstRows []models.ScheduleMonth
		db.Where("plan_id = ?", plan.ID).Order("month_number ASC").Find(&firstRows)

		second, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		var secondRows []models.ScheduleMonth
		db.Where("plan_id = ?", plan.ID).Order("month_number ASC").Find(&secondRows)

		if first != second {
			t.Fatalf("month counts differ: %d vs %d", first, second)
		}
		for i := range firstRows {
			a, b := firstRows[i], secondRows[i]
			if !a.TotalPayment.Equal(b.TotalPayment) || !a.TotalInterest.Equal(b.TotalInterest) || !a.TotalPrincipal.Equal(b.TotalPrincipal) {
				t.Errorf("month %d differs between runs", a.MonthNumber)
			}
		}
	})

	t.Run("infeasible_budget_leaves_no_schedule", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "100.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertAppError(t, err, "PLAN_INFEASIBLE")

		var count int64
		db.Model(&models.ScheduleMonth{}).Where("plan_id = ?", plan.ID).Count(&count)
		if count != 0 {
			t.Errorf("expected no schedule rows after failed generation, got %d", count)
		}
	})
}

func TestRegenerateScheduleFrom(t *testing.T) {
	t.Run("preserves_earlier_months_and_interest_total", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		loanA := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		loanB := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		var planFull models.Plan
		db.First(&planFull, plan.ID)
		fullInterest := planFull.TotalProjectedInterest

		var preserved []models.ScheduleMonth
		db.Where("plan_id = ? AND month_number < 3", plan.ID).
			Order("month_number ASC").Find(&preserved)

		// Walk the loans to their scheduled end-of-month-2 balances, as if
		// the first two months were paid exactly on plan.
		db.Model(&models.Loan{}).Where("id = ?", loanA.ID).
			Update("remaining_balance", testutil.Amount(t, "232.40"))
		db.Model(&models.Loan{}).Where("id = ?", loanB.ID).
			Update("remaining_balance", testutil.Amount(t, "2859.30"))

		_, err = svc.RegenerateScheduleFrom(user.ID, plan.ID, 3)
		testutil.AssertNoError(t, err)

		var preservedAfter []models.ScheduleMonth
		db.Where("plan_id = ? AND month_number < 3", plan.ID).
			Order("month_number ASC").Find(&preservedAfter)
		if len(preservedAfter) != len(preserved) {
			t.Fatalf("expected %d preserved months, got %d", len(preserved), len(preservedAfter))
		}
		for i := range preserved {
			if preserved[i].ID != preservedAfter[i].ID {
				t.Errorf("month %d was replaced instead of preserved", preserved[i].MonthNumber)
			}
		}

		// On-plan balances regenerate the same tail, so the running total
		// must match the full from-scratch figure.
		var planAfter models.Plan
		db.First(&planAfter, plan.ID)
		if !planAfter.TotalProjectedInterest.Equal(fullInterest) {
			t.Errorf("expected projected interest %s after regeneration, got %s",
				fullInterest, planAfter.TotalProjectedInterest)
		}
	})

	t.Run("no_owing_loans_truncates_future_months", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		loan := testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		db.Model(&models.Loan{}).Where("id = ?", loan.ID).
			Update("remaining_balance", testutil.Amount(t, "0.00"))

		months, err := svc.RegenerateScheduleFrom(user.ID, plan.ID, 2)
		testutil.AssertNoError(t, err)
		if months != 0 {
			t.Errorf("expected 0 regenerated months, got %d", months)
		}

		var maxMonth int
		db.Model(&models.ScheduleMonth{}).Where("plan_id = ?", plan.ID).
			Select("COALESCE(MAX(month_number), 0)").Scan(&maxMonth)
		if maxMonth != 1 {
			t.Errorf("expected schedule to end at month 1, got %d", maxMonth)
		}
	})
}

func TestGetScheduleMonth(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")

		_, err := svc.GetScheduleMonth(user.ID, plan.ID, 42)
		testutil.AssertAppError(t, err, "SCHEDULE_NOT_FOUND")
	})

	t.Run("returns_month_with_breakdowns", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "3000.00", "12.00", "100.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		month, err := svc.GetScheduleMonth(user.ID, plan.ID, 1)
		testutil.AssertNoError(t, err)
		if month.MonthNumber != 1 {
			t.Errorf("expected month 1, got %d", month.MonthNumber)
		}
		if len(month.Breakdowns) != 2 {
			t.Errorf("expected 2 breakdowns, got %d", len(month.Breakdowns))
		}
		testutil.AssertAmount(t, month.TotalPayment, "500.00")
	})
}

func TestGetCurrentScheduleMonth(t *testing.T) {
	t.Run("follows_the_calendar", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "100.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "0.00", "50.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		svc.(*scheduleService).now = func() time.Time {
			return plan.CreatedAt.AddDate(0, 2, 0)
		}
		month, err := svc.GetCurrentScheduleMonth(user.ID, plan.ID)
		testutil.AssertNoError(t, err)
		if month.MonthNumber != 3 {
			t.Errorf("expected month 3 two calendar months in, got %d", month.MonthNumber)
		}
	})

	t.Run("past_the_schedule_end", func(t *testing.T) {
		db := testutil.SetupTestDB(t)
		defer testutil.TeardownTestDB(t, db)
		svc := NewScheduleService(db, cache.NewMemoryCache())
		user := testutil.CreateTestUser(t, db)
		plan := testutil.CreateTestPlan(t, db, user.ID, "500.00")
		testutil.CreateTestLoan(t, db, user.ID, plan.ID, "1000.00", "24.00", "50.00")

		_, err := svc.GenerateSchedule(user.ID, plan.ID)
		testutil.AssertNoError(t, err)

		svc.(*scheduleService).now = func() time.Time {
			return plan.CreatedAt.AddDate(10, 0, 0)
		}
		_, err = svc.GetCurrentScheduleMonth(user.ID, plan.ID)
		testutil.AssertAppError(t, err, "SCHEDULE_NOT_FOUND")
	})
}
