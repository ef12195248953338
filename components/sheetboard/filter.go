package sheetboard

import "strings"

// FilterSpec is the exact-match and search input of the filter engine.
type FilterSpec struct {
	Person  string `json:"person,omitempty"`
	Status  string `json:"status,omitempty"`
	Urgency string `json:"urgency,omitempty"`
	Search  string `json:"search,omitempty"`
}

// IsZero reports whether no filter is active.
func (f FilterSpec) IsZero() bool {
	return f.Person == "" && f.Status == "" && f.Urgency == "" && strings.TrimSpace(f.Search) == ""
}

// ApplyFilters keeps the rows matching spec in their original order.
// Person, status and urgency compare exactly against the raw cell text and
// are skipped when their column is absent; search matches a normalized
// substring of any cell.
func ApplyFilters(rows []Row, cols Columns, spec FilterSpec) []Row {
	query := Normalize(strings.TrimSpace(spec.Search))
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if !matchesExact(row, cols.Person, spec.Person) ||
			!matchesExact(row, cols.Status, spec.Status) ||
			!matchesExact(row, cols.Urgency, spec.Urgency) {
			continue
		}
		if query != "" && !matchesSearch(row, query) {
			continue
		}
		out = append(out, row)
	}
	return out
}

func matchesExact(row Row, column int, want string) bool {
	if want == "" || column == NoColumn {
		return true
	}
	return row.Cell(column).String() == want
}

func matchesSearch(row Row, query string) bool {
	for _, c := range row {
		if strings.Contains(c.Normalized(), query) {
			return true
		}
	}
	return false
}
