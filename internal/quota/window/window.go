// Package window computes the local-day and local-month ranges that usage
// is counted against. Local time is a fixed UTC+3 offset; calendar-aware
// timezone rules (DST) are deliberately not applied.
package window

import "time"

// Local is the fixed offset used for all window boundary calculations.
var Local = time.FixedZone("UTC+3", 3*60*60)

// Windows holds the day and month boundaries for one instant.
// The *UTC fields drive store queries; the *Local fields are reported to
// clients as reset instants.
type Windows struct {
	DayStartUTC   time.Time
	DayResetUTC   time.Time
	MonthStartUTC time.Time
	MonthResetUTC time.Time

	DayResetLocal   time.Time
	MonthResetLocal time.Time
}

// Compute derives the windows containing now. AddDate carries month and
// year rollovers, so Dec 31 -> Jan 1 and leap February behave correctly.
func Compute(now time.Time) Windows {
	local := now.In(Local)

	dayStart := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, Local)
	dayReset := dayStart.AddDate(0, 0, 1)

	monthStart := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, Local)
	monthReset := monthStart.AddDate(0, 1, 0)

	return Windows{
		DayStartUTC:   dayStart.UTC(),
		DayResetUTC:   dayReset.UTC(),
		MonthStartUTC: monthStart.UTC(),
		MonthResetUTC: monthReset.UTC(),

		DayResetLocal:   dayReset,
		MonthResetLocal: monthReset,
	}
}
