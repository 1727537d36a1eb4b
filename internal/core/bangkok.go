package core

import (
	"fmt"
	"time"
)

// bangkok is the fixed UTC+7 offset used for every calendar-day boundary in
// the engine. Thailand observes no daylight saving, so a fixed zone is exact
// and avoids a tzdata dependency.
var bangkok = time.FixedZone("Asia/Bangkok", 7*60*60)

// BangkokDayWindow returns the half-open [start, end) instant window covering
// the given Bangkok calendar date (YYYY-MM-DD).
func BangkokDayWindow(date string) (start, end time.Time, err error) {
	d, err := time.ParseInLocation("2006-01-02", date, bangkok)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	return d, d.AddDate(0, 0, 1), nil
}

// BangkokDate formats an instant as its Bangkok calendar date.
func BangkokDate(t time.Time) string {
	return t.In(bangkok).Format("2006-01-02")
}
