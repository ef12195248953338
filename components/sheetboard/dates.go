package sheetboard

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/goodsign/monday"
)

// BoardTimeZone is the fixed zone used to decide what "today" means,
// independent of the server or viewer clock.
const BoardTimeZone = "America/Bogota"

const day = 24 * time.Hour

var (
	isoDatePattern   = regexp.MustCompile(`^(\d{4})[/\-.](\d{1,2})[/\-.](\d{1,2})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)
	latinDatePattern = regexp.MustCompile(`^(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{4})(?:[ T](\d{1,2}):(\d{2})(?::(\d{2}))?)?$`)

	boardLocation = loadLocation(BoardTimeZone, -5*60*60)
)

var fallbackLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.ANSIC,
	time.UnixDate,
	"Mon Jan 2 2006",
	"Mon Jan 02 2006 15:04:05",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
	"02 Jan 2006 15:04",
}

var spanishLayouts = []string{
	"2 de January de 2006",
	"2 de January del 2006",
	"2 January 2006",
	"2 Jan 2006",
	"January 2, 2006",
	"Monday, 2 de January de 2006",
}

// BoardLocation returns the zone used for deadline bucketing.
func BoardLocation() *time.Location {
	return boardLocation
}

func loadLocation(name string, offsetSeconds int) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.FixedZone(name, offsetSeconds)
	}
	return loc
}

// ParseDate reads a cell value as a date. ISO (year first) and Latin
// (day-month-year) numeric forms become UTC instants built from their
// components; anything else goes through a list of generic layouts and
// Spanish month names. Unparseable input returns false.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	if m := isoDatePattern.FindStringSubmatch(s); m != nil {
		return utcFromParts(m[1], m[2], m[3], m[4], m[5], m[6])
	}
	if m := latinDatePattern.FindStringSubmatch(s); m != nil {
		return utcFromParts(m[3], m[2], m[1], m[4], m[5], m[6])
	}
	for _, layout := range fallbackLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	lower := strings.ToLower(s)
	for _, layout := range spanishLayouts {
		if t, err := monday.ParseInLocation(layout, lower, time.UTC, monday.LocaleEsES); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func utcFromParts(year, month, dayOfMonth, hour, minute, second string) (time.Time, bool) {
	values := make([]int, 6)
	for i, part := range []string{year, month, dayOfMonth, hour, minute, second} {
		if part == "" {
			continue
		}
		n, err := strconv.Atoi(part)
		if err != nil {
			return time.Time{}, false
		}
		values[i] = n
	}
	// time.Date normalizes overflowing components the same way Date.UTC does.
	return time.Date(values[0], time.Month(values[1]), values[2], values[3], values[4], values[5], 0, time.UTC), true
}

// TodayBoundary resolves the calendar date of now in the board time zone and
// returns the UTC instant for that date at the given time of day.
func TodayBoundary(now time.Time, hour, minute, second int) time.Time {
	y, m, d := now.In(boardLocation).Date()
	return time.Date(y, m, d, hour, minute, second, 0, time.UTC)
}

// DayOffset classifies date against today's window in the board zone:
// negative when before the start of today, positive when after its end,
// zero when inside it.
func DayOffset(date, now time.Time) int {
	start := TodayBoundary(now, 0, 0, 0)
	end := TodayBoundary(now, 23, 59, 59)
	switch {
	case date.Before(start):
		return int(math.Floor(float64(date.Sub(end)) / float64(day)))
	case date.After(end):
		return int(math.Ceil(float64(date.Sub(start)) / float64(day)))
	default:
		return 0
	}
}
