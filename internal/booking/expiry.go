package booking

import (
	"time"

	"seat-booking-companion/internal/parse"
)

const dateLayout = "2006-01-02"

// IsExpired reports whether a slot starting at start (HH:mm) on date (YYYY-MM-DD) is
// over for booking purposes: the date lies in the past, or it is today in loc and the
// start time has been reached. Missing values count as expired.
func IsExpired(date, start string, now time.Time, loc *time.Location) bool {
	if date == "" || start == "" {
		return true
	}
	if loc != nil {
		now = now.In(loc)
	}
	today := now.Format(dateLayout)
	if date < today {
		return true
	}
	if date != today {
		return false
	}
	startMin, err := parse.ParseClock(start)
	if err != nil {
		return false
	}
	return now.Hour()*60+now.Minute() >= startMin
}
