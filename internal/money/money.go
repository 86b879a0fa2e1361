// Package money holds the fixed-point currency helpers shared by the
// scheduling engine. All amounts are 2-decimal-place decimals and every
// rounding happens at the point of computation, never re-derived from totals.
package money

import "github.com/shopspring/decimal"

var (
	// Hundred and twelve months convert an annual percentage rate to a
	// monthly decimal rate.
	hundred      = decimal.NewFromInt(100)
	twelveMonths = decimal.NewFromInt(12)

	// Defaults for the estimated minimum payment when no term is given.
	defaultMinimumRate  = decimal.NewFromFloat(0.02)
	minimumPaymentFloor = decimal.RequireFromString("25.00")
)

// Round2 rounds to currency precision, half away from zero. Amounts in this
// domain are non-negative, so this is round-half-up.
func Round2(d decimal.Decimal) decimal.Decimal {
	return d.Round(2)
}

// MonthlyRate converts an annual percentage rate (e.g. 24.00) into a monthly
// decimal rate (0.02). The result is intentionally unrounded; rounding only
// happens on the interest charge itself.
func MonthlyRate(annualRate decimal.Decimal) decimal.Decimal {
	return annualRate.Div(hundred).Div(twelveMonths)
}

// MonthlyInterest computes one month's interest charge on a balance, rounded
// to currency precision.
func MonthlyInterest(balance, annualRate decimal.Decimal) decimal.Decimal {
	return Round2(balance.Mul(MonthlyRate(annualRate)))
}

// AmortizedPayment computes the fixed monthly payment that retires principal
// over the given number of months:
//
//	P * r * (1+r)^n / ((1+r)^n - 1)
//
// A zero rate degenerates to an even split.
func AmortizedPayment(principal, annualRate decimal.Decimal, months int) decimal.Decimal {
	rate := MonthlyRate(annualRate)
	if rate.IsZero() {
		return Round2(principal.Div(decimal.NewFromInt(int64(months))))
	}

	factor := decimal.NewFromInt(1).Add(rate).Pow(decimal.NewFromInt(int64(months)))
	payment := principal.Mul(rate.Mul(factor)).Div(factor.Sub(decimal.NewFromInt(1)))
	return Round2(payment)
}

// DefaultMinimumPayment is the baseline minimum when no loan term is known:
// 2% of principal with a floor of 25.00.
func DefaultMinimumPayment(principal decimal.Decimal) decimal.Decimal {
	pct := Round2(principal.Mul(defaultMinimumRate))
	if pct.LessThan(minimumPaymentFloor) {
		return minimumPaymentFloor
	}
	return pct
}

// Sum adds a slice of amounts without rounding.
func Sum(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
