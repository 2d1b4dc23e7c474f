package services

import (
	"time"

	"github.com/diewo77/go-duedates/internal/models"
	"github.com/jinzhu/now"
)

var recurrenceMonths = map[string]int{
	models.RecurrenceMonthly:   1,
	models.RecurrenceQuarterly: 3,
	models.RecurrenceYearly:    12,
}

// NextOccurrence returns the date after from for a recurrence rule, or false
// when the rule does not repeat. Days past the end of the target month clamp
// to its last day: Jan 31 monthly is Feb 28, Feb 29 yearly is Feb 28.
func NextOccurrence(from time.Time, recurrence string) (time.Time, bool) {
	months, ok := recurrenceMonths[recurrence]
	if !ok {
		return time.Time{}, false
	}
	return addMonthsClamped(from, months), true
}

func addMonthsClamped(t time.Time, months int) time.Time {
	firstOfTarget := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location()).AddDate(0, months, 0)
	lastDay := now.With(firstOfTarget).EndOfMonth().Day()
	day := min(t.Day(), lastDay)
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day,
		t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
