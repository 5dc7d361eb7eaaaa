package util

import "time"

// WindowStart returns the UTC midnight that opens a window of days ending on now's day.
// A one-day window starts at today's midnight.
func WindowStart(now time.Time, days int) time.Time {
	if days < 1 {
		days = 1
	}
	y, m, d := now.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -(days - 1))
}
