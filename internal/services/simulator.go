package services

import (
	"fmt"

	"github.com/shopspring/decimal"

	apperrors "debtwise/internal/errors"
	"debtwise/internal/money"
)

// maxScheduleMonths is the hard ceiling on schedule length. A simulation
// that runs past 50 years signals misconfigured loan data, not a schedule
// worth persisting.
const maxScheduleMonths = 600

// LoanSnapshot is an immutable view of one loan fed into the simulator,
// already sorted by payoff rank. The simulator never touches live records.
type LoanSnapshot struct {
	LoanID         uint
	Balance        decimal.Decimal
	InterestRate   decimal.Decimal
	MinimumPayment decimal.Decimal
}

// LoanAllocation is one loan's slice of a simulated month.
type LoanAllocation struct {
	LoanID           uint
	Payment          decimal.Decimal
	Interest         decimal.Decimal
	Principal        decimal.Decimal
	RemainingBalance decimal.Decimal
	IsFocus          bool
}

// MonthResult is one simulated month across all loans still owing.
type MonthResult struct {
	MonthNumber    int
	FocusLoanID    *uint
	TotalPayment   decimal.Decimal
	TotalInterest  decimal.Decimal
	TotalPrincipal decimal.Decimal
	Allocations    []LoanAllocation
}

// SimulationResult is the simulator's full output: every month until all
// balances reach zero, plus the interest accrued across those months.
// TotalInterest covers only the simulated months; callers regenerating from
// a later month pre-seed the preserved interest themselves.
type SimulationResult struct {
	Months        []MonthResult
	TotalInterest decimal.Decimal
}

// FinalMonthNumber returns the month number of the last simulated month,
// or startMonth-1 semantics via 0 when nothing was simulated.
func (r *SimulationResult) FinalMonthNumber() int {
	if len(r.Months) == 0 {
		return 0
	}
	return r.Months[len(r.Months)-1].MonthNumber
}

// validateSimulationInput fails fast on inputs that can never produce a
// valid schedule, before any month is simulated.
func validateSimulationInput(loans []LoanSnapshot, budget decimal.Decimal) error {
	minimumSum := decimal.Zero
	for _, loan := range loans {
		if !loan.MinimumPayment.IsPositive() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("loan %d has a non-positive minimum payment", loan.LoanID))
		}
		if loan.InterestRate.IsNegative() {
			return apperrors.WithMessage(apperrors.ErrInvalidInput,
				fmt.Sprintf("loan %d has a negative interest rate", loan.LoanID))
		}
		minimumSum = minimumSum.Add(loan.MinimumPayment)
	}
	if budget.LessThan(minimumSum) {
		return apperrors.WithMessage(apperrors.ErrPlanInfeasible,
			fmt.Sprintf("monthly budget %s does not cover the %s required for minimum payments",
				budget.StringFixed(2), minimumSum.StringFixed(2)))
	}
	return nil
}

// Simulate projects month-by-month payments for the given loans until every
// balance reaches zero. Loans must arrive sorted by payoff rank; balances are
// the starting balances (original principals for a full run, current balances
// for a partial one). Month numbering starts at startMonth.
//
// Each month the first owing loan in rank order is the focus loan: it gets
// its minimum plus all discretionary extra, every other owing loan gets its
// minimum. Payments are capped at balance plus that month's interest. Extra
// the focus loan cannot absorb is redistributed down the rank order so money
// is never silently lost when the focus loan finishes mid-month.
func Simulate(loans []LoanSnapshot, budget decimal.Decimal, startMonth int) (*SimulationResult, error) {
	if err := validateSimulationInput(loans, budget); err != nil {
		return nil, err
	}
	if startMonth < 1 {
		startMonth = 1
	}

	balances := make([]decimal.Decimal, len(loans))
	for i, loan := range loans {
		balances[i] = loan.Balance
	}

	result := &SimulationResult{TotalInterest: decimal.Zero}

	for monthNumber := startMonth; ; monthNumber++ {
		owing := make([]int, 0, len(loans))
		for i := range loans {
			if balances[i].IsPositive() {
				owing = append(owing, i)
			}
		}
		if len(owing) == 0 {
			return result, nil
		}
		if monthNumber > maxScheduleMonths {
			return nil, apperrors.Wrap(apperrors.ErrSimulationRunaway,
				fmt.Errorf("simulation still owing after month %d", maxScheduleMonths))
		}

		interests := make([]decimal.Decimal, len(loans))
		minimumSum := decimal.Zero
		for _, i := range owing {
			interests[i] = money.MonthlyInterest(balances[i], loans[i].InterestRate)
			minimumSum = minimumSum.Add(loans[i].MinimumPayment)
		}

		extra := budget.Sub(minimumSum)
		focus := owing[0]

		// Tentative allocation: minimum everywhere, minimum+extra on focus.
		payments := make([]decimal.Decimal, len(loans))
		for _, i := range owing {
			payments[i] = loans[i].MinimumPayment
		}
		payments[focus] = payments[focus].Add(extra)

		// Cap at payoff amount. Only the focus loan's unused extra carries
		// into the redistribution pass.
		leftover := decimal.Zero
		for _, i := range owing {
			payoffCap := balances[i].Add(interests[i])
			if payments[i].GreaterThan(payoffCap) {
				if i == focus {
					leftover = payments[i].Sub(payoffCap)
				}
				payments[i] = payoffCap
			}
		}

		// Redistribution: walk the remaining owing loans in rank order and
		// let each absorb leftover up to its own payoff amount. Leftover
		// with nowhere to go stays unspent this month.
		for _, i := range owing {
			if i == focus || !leftover.IsPositive() {
				continue
			}
			room := balances[i].Add(interests[i]).Sub(payments[i])
			if !room.IsPositive() {
				continue
			}
			applied := decimal.Min(room, leftover)
			payments[i] = payments[i].Add(applied)
			leftover = leftover.Sub(applied)
		}

		focusLoanID := loans[focus].LoanID
		month := MonthResult{
			MonthNumber:    monthNumber,
			FocusLoanID:    &focusLoanID,
			TotalPayment:   decimal.Zero,
			TotalInterest:  decimal.Zero,
			TotalPrincipal: decimal.Zero,
			Allocations:    make([]LoanAllocation, 0, len(owing)),
		}

		for _, i := range owing {
			principal := payments[i].Sub(interests[i])
			newBalance := balances[i].Sub(principal)
			if newBalance.IsNegative() {
				newBalance = decimal.Zero
			}
			balances[i] = newBalance

			month.Allocations = append(month.Allocations, LoanAllocation{
				LoanID:           loans[i].LoanID,
				Payment:          payments[i],
				Interest:         interests[i],
				Principal:        principal,
				RemainingBalance: newBalance,
				IsFocus:          i == focus,
			})
			month.TotalPayment = month.TotalPayment.Add(payments[i])
			month.TotalInterest = month.TotalInterest.Add(interests[i])
			month.TotalPrincipal = month.TotalPrincipal.Add(principal)
		}

		result.TotalInterest = result.TotalInterest.Add(month.TotalInterest)
		result.Months = append(result.Months, month)
	}
}
