package sheetboard

import "time"

// SoonWindowDays is the last day offset still highlighted as "soon".
const SoonWindowDays = 3

// DeadlineClass is the highlight applied to a row from its deadline cell.
type DeadlineClass string

const (
	DeadlineNone    DeadlineClass = ""
	DeadlineOverdue DeadlineClass = "overdue"
	DeadlineToday   DeadlineClass = "today"
	DeadlineSoon    DeadlineClass = "soon"
)

// CSSClass returns the row class used by the board template.
func (d DeadlineClass) CSSClass() string {
	if d == DeadlineNone {
		return ""
	}
	return "is-" + string(d)
}

// ClassifyOffset maps a day offset to its highlight.
func ClassifyOffset(offset int) DeadlineClass {
	switch {
	case offset < 0:
		return DeadlineOverdue
	case offset == 0:
		return DeadlineToday
	case offset <= SoonWindowDays:
		return DeadlineSoon
	default:
		return DeadlineNone
	}
}

// ClassifyDeadline parses a deadline cell and classifies it relative to now.
// Unparseable cells get no highlight.
func ClassifyDeadline(cell Cell, now time.Time) DeadlineClass {
	date, ok := cell.Date()
	if !ok {
		return DeadlineNone
	}
	return ClassifyOffset(DayOffset(date, now))
}
