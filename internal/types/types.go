// README: Shared identifiers, coordinates and calendar-date helpers.
package types

import (
	"math"
	"time"
)

type ID string

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// DateLayout is the wire format of calendar dates.
const DateLayout = "2006-01-02"

const Day = 24 * time.Hour

// ParseDate parses a YYYY-MM-DD string into UTC midnight.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, time.UTC)
}

// DateOf truncates t to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysCeil returns ceil((to - from) / 24h).
func DaysCeil(from, to time.Time) int {
	return int(math.Ceil(float64(to.Sub(from)) / float64(Day)))
}

func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}
