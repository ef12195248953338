package sheetboard

import "strings"

// StatusBucket groups free-form status text into the three badge counters.
type StatusBucket int

const (
	StatusPending StatusBucket = iota
	StatusInProgress
	StatusCompleted
)

func (b StatusBucket) String() string {
	switch b {
	case StatusInProgress:
		return "in_progress"
	case StatusCompleted:
		return "completed"
	default:
		return "pending"
	}
}

// MarshalText keeps the bucket readable in JSON payloads.
func (b StatusBucket) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (b *StatusBucket) UnmarshalText(text []byte) error {
	switch string(text) {
	case "in_progress":
		*b = StatusInProgress
	case "completed":
		*b = StatusCompleted
	default:
		*b = StatusPending
	}
	return nil
}

// ClassifyStatus buckets a status value. First match wins and Pending is the
// catch-all.
func ClassifyStatus(text string) StatusBucket {
	s := Normalize(text)
	switch {
	case s == "":
		return StatusPending
	case strings.Contains(s, "pend"), strings.Contains(s, "por hacer"):
		return StatusPending
	case strings.Contains(s, "curso"), strings.Contains(s, "progreso"):
		return StatusInProgress
	case strings.HasPrefix(s, "cumpl"), strings.Contains(s, "hecha"), strings.Contains(s, "termin"):
		return StatusCompleted
	default:
		return StatusPending
	}
}

// StatusCounts are the badge totals for a visible row set.
type StatusCounts struct {
	Pending    int `json:"pending"`
	InProgress int `json:"in_progress"`
	Completed  int `json:"completed"`
}

// Total sums every bucket.
func (c StatusCounts) Total() int {
	return c.Pending + c.InProgress + c.Completed
}

func (c *StatusCounts) add(b StatusBucket) {
	switch b {
	case StatusInProgress:
		c.InProgress++
	case StatusCompleted:
		c.Completed++
	default:
		c.Pending++
	}
}

// CountStatuses classifies every row. Without a status column every row is
// pending.
func CountStatuses(rows []Row, statusColumn int) StatusCounts {
	var counts StatusCounts
	for _, row := range rows {
		if statusColumn == NoColumn {
			counts.add(StatusPending)
			continue
		}
		counts.add(ClassifyStatus(row.Cell(statusColumn).String()))
	}
	return counts
}

// Status chip identifiers used by the quick filters.
const (
	ChipPending    = "pend"
	ChipInProgress = "curso"
	ChipCompleted  = "comp"
)

// StatusChipValue picks the first status option matching a quick-filter
// chip. An unknown chip or no match returns "" (no status filter).
func StatusChipValue(chip string, options []string) string {
	var want string
	switch chip {
	case ChipPending:
		want = "pend"
	case ChipInProgress:
		want = "curso"
	case ChipCompleted:
		want = "cumpl"
	default:
		return ""
	}
	for _, opt := range options {
		if strings.Contains(Normalize(opt), want) {
			return opt
		}
	}
	return ""
}
