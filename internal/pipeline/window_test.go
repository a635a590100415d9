package pipeline

import (
	"testing"
	"time"
)

func TestComputeWindow(t *testing.T) {
	civil := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	w := ComputeWindow(civil, 6)

	wantStart := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	if !w.StartUTC.Equal(wantStart) {
		t.Errorf("StartUTC = %v, want %v", w.StartUTC, wantStart)
	}
	if got := w.EndUTC.Sub(w.StartUTC); got != 24*time.Hour {
		t.Errorf("window length = %v, want 24h", got)
	}
	if w.DateString() != "2025-03-10" {
		t.Errorf("DateString = %q", w.DateString())
	}
	if w.MonthName() != "March" {
		t.Errorf("MonthName = %q", w.MonthName())
	}
}

func TestComputeWindowBoundaries(t *testing.T) {
	// An event at 05:59 UTC belongs to the previous civil day at
	// UTC-6; 06:00 UTC opens the new day.
	w := ComputeWindow(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC), 6)

	before := time.Date(2025, 3, 10, 5, 59, 59, 0, time.UTC)
	atStart := time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC)
	atEnd := time.Date(2025, 3, 11, 6, 0, 0, 0, time.UTC)

	if !before.Before(w.StartUTC) {
		t.Error("05:59:59 must fall before the window")
	}
	if atStart.Before(w.StartUTC) || !atStart.Before(w.EndUTC) {
		t.Error("06:00:00 must open the window")
	}
	if atEnd.Before(w.EndUTC) {
		t.Error("next day 06:00:00 must fall outside the half-open window")
	}
}

func TestComputeWindowTruncatesInput(t *testing.T) {
	// A watermark date carrying a time component still yields the
	// midnight-based window.
	noisy := time.Date(2025, 3, 10, 13, 45, 12, 0, time.UTC)
	w := ComputeWindow(noisy, 6)
	if !w.CivilDate.Equal(time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("CivilDate = %v, want midnight", w.CivilDate)
	}
}
