// Package pipeline provides the shared stages every aggregation job is
// built from: watermark resolution, day windowing, billing enrichment
// and the idempotent report writer.
package pipeline

import "time"

// DayWindow is the UTC query range covering one tenant civil day.
// The range is half-open: [StartUTC, EndUTC).
type DayWindow struct {
	CivilDate time.Time // civil day at midnight UTC
	StartUTC  time.Time
	EndUTC    time.Time
}

// ComputeWindow maps a tenant civil date onto its UTC query range.
// A tenant at UTC-6 stores its civil day shifted forward by 6 hours,
// so offsetHours is positive for western timezones.
func ComputeWindow(civilDate time.Time, offsetHours int) DayWindow {
	day := CivilDate(civilDate)
	start := day.Add(time.Duration(offsetHours) * time.Hour)
	return DayWindow{
		CivilDate: day,
		StartUTC:  start,
		EndUTC:    start.Add(24 * time.Hour),
	}
}

// CivilDate truncates t to midnight UTC.
func CivilDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DateString formats the window's civil date as yyyy-MM-dd, the format
// report collections use for string date keys.
func (w DayWindow) DateString() string {
	return w.CivilDate.Format("2006-01-02")
}

// MonthName returns the English month name of the civil date. Report
// rows carry it for the dashboard month filter.
func (w DayWindow) MonthName() string {
	return w.CivilDate.Month().String()
}
