package money

import "time"

// MonthNumber maps a calendar date onto a plan's 1-based month index, where
// month 1 is the month the plan was created. A date before the plan start
// yields a result <= 0; callers decide how to report that.
//
// The difference counts whole months: a payment on February 3rd against a
// plan created January 15th has not completed a full month and is still
// month 1.
func MonthNumber(planStart, d time.Time) int {
	months := (d.Year()-planStart.Year())*12 + int(d.Month()) - int(planStart.Month())
	if d.Day() < planStart.Day() {
		months--
	}
	return months + 1
}

// MonthDate is the inverse mapping: the calendar date on which a given plan
// month begins. Month 1 begins on the plan start date itself.
func MonthDate(planStart time.Time, monthNumber int) time.Time {
	return planStart.AddDate(0, monthNumber-1, 0)
}
