package sheetboard

import "slices"

const (
	Ascending  = 1
	Descending = -1
)

// SortSpec selects the column and direction of the visible rows. A nil
// *SortSpec means dataset order.
type SortSpec struct {
	Column    int `json:"col"`
	Direction int `json:"dir"`
}

// ToggleSort returns the spec after a header selection: the same column
// flips direction, a different column starts ascending.
func ToggleSort(current *SortSpec, column int) *SortSpec {
	if current == nil || current.Column != column {
		return &SortSpec{Column: column, Direction: Ascending}
	}
	next := *current
	if next.direction() == Ascending {
		next.Direction = Descending
	} else {
		next.Direction = Ascending
	}
	return &next
}

func (s SortSpec) direction() int {
	if s.Direction == Descending {
		return Descending
	}
	return Ascending
}

// Valid reports whether the spec points inside a header list of width n.
func (s *SortSpec) Valid(width int) bool {
	return s != nil && s.Column >= 0 && s.Column < width
}

// SortRows returns a stably sorted copy of rows using the default collation.
// A nil spec returns the rows unchanged.
func SortRows(rows []Row, spec *SortSpec) []Row {
	return Collation{}.SortRows(rows, spec)
}

// SortRows returns a stably sorted copy of rows.
func (c Collation) SortRows(rows []Row, spec *SortSpec) []Row {
	out := slices.Clone(rows)
	if spec == nil {
		return out
	}
	dir := spec.direction()
	col := spec.Column
	slices.SortStableFunc(out, func(a, b Row) int {
		return c.CompareCells(a.Cell(col), b.Cell(col)) * dir
	})
	return out
}

// SortStrings sorts values in place.
func (c Collation) SortStrings(values []string) {
	slices.SortStableFunc(values, c.CompareText)
}

func sortStrings(values []string) {
	Collation{}.SortStrings(values)
}
