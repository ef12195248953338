package sheetboard

import (
	"fmt"
	"time"

	"github.com/ettle/strcase"
)

// HeaderView describes a sortable column header.
type HeaderView struct {
	Index     int    `json:"index"`
	Label     string `json:"label"`
	Key       string `json:"key"`
	Sorted    string `json:"sorted,omitempty"`
	Indicator string `json:"indicator,omitempty"`
}

// CellView is a display-ready cell. HTML is already escaped/decorated.
type CellView struct {
	Header string `json:"header"`
	Key    string `json:"key"`
	Text   string `json:"text"`
	HTML   string `json:"html"`
}

// RowView is a display-ready row.
type RowView struct {
	ID       string        `json:"id"`
	Cells    []CellView    `json:"cells"`
	Status   StatusBucket  `json:"status"`
	Deadline DeadlineClass `json:"deadline,omitempty"`
	Class    string        `json:"class,omitempty"`
}

// FilterOptions lists the distinct values offered by each filter select.
// An empty list means the select is hidden.
type FilterOptions struct {
	Persons   []string `json:"persons"`
	Statuses  []string `json:"statuses"`
	Urgencies []string `json:"urgencies"`
}

// StatusLine is the short human-readable message shown on a panel.
type StatusLine struct {
	Message string `json:"message"`
	Error   bool   `json:"error"`
}

// BoardView is the projection of a dataset through the current filter and
// sort specs.
type BoardView struct {
	Headers   []HeaderView   `json:"headers"`
	Rows      []RowView      `json:"rows"`
	Counts    StatusCounts   `json:"counts"`
	Filters   FilterSpec     `json:"filters"`
	Sort      *SortSpec      `json:"sort,omitempty"`
	Options   FilterOptions  `json:"options"`
	Status    StatusLine     `json:"status"`
	Branding  BrandingConfig `json:"branding"`
	Chip      string         `json:"chip,omitempty"`
	Total     int            `json:"total"`
	HasStatus bool           `json:"has_status_column"`
	Workload  []PersonLoad   `json:"workload,omitempty"`
	ChartHTML string         `json:"chart_html,omitempty"`
	LoadHTML  string         `json:"workload_html,omitempty"`
	Locale    string         `json:"locale,omitempty"`
}

// Empty reports whether no row survived the filters.
func (v BoardView) Empty() bool {
	return len(v.Rows) == 0
}

// VisibleRows applies filters then sort; the result is always a fresh slice.
func VisibleRows(ds *Dataset, cols Columns, filters FilterSpec, sort *SortSpec, coll Collation) []Row {
	if ds == nil {
		return nil
	}
	rows := ApplyFilters(ds.Rows, cols, filters)
	if sort.Valid(len(ds.Headers)) {
		rows = coll.SortRows(rows, sort)
	}
	return rows
}

// Project renders the dataset into a BoardView. now anchors the deadline
// highlights; coll orders the sorted column and the filter options.
func Project(ds *Dataset, cols Columns, filters FilterSpec, sort *SortSpec, now time.Time, coll Collation) BoardView {
	view := BoardView{
		Filters: filters,
		Sort:    sort,
	}
	if ds == nil {
		return view
	}
	keys := headerKeys(ds.Headers)
	view.Headers = make([]HeaderView, len(ds.Headers))
	for i, h := range ds.Headers {
		hv := HeaderView{Index: i, Label: h, Key: keys[i]}
		if sort.Valid(len(ds.Headers)) && sort.Column == i {
			if sort.direction() == Ascending {
				hv.Sorted, hv.Indicator = "asc", "▲"
			} else {
				hv.Sorted, hv.Indicator = "desc", "▼"
			}
		}
		view.Headers[i] = hv
	}

	visible := VisibleRows(ds, cols, filters, sort, coll)
	view.Rows = make([]RowView, len(visible))
	for i, row := range visible {
		view.Rows[i] = projectRow(ds.Headers, keys, cols, row, now)
	}
	view.Counts = CountStatuses(visible, cols.Status)
	view.Workload = WorkloadByPerson(visible, cols)
	view.Options = FilterOptions{
		Persons:   ds.DistinctValues(cols.Person),
		Statuses:  ds.DistinctValues(cols.Status),
		Urgencies: ds.DistinctValues(cols.Urgency),
	}
	if coll.Locale() != (Collation{}).Locale() {
		coll.SortStrings(view.Options.Persons)
		coll.SortStrings(view.Options.Statuses)
		coll.SortStrings(view.Options.Urgencies)
	}
	view.Locale = coll.Locale()
	view.Total = ds.Len()
	view.HasStatus = cols.Status != NoColumn
	view.Status = StatusLine{Message: fmt.Sprintf("Mostrando %d %s.", len(visible), plural(len(visible), "fila", "filas"))}
	return view
}

func projectRow(headers, keys []string, cols Columns, row Row, now time.Time) RowView {
	rv := RowView{
		Cells: make([]CellView, len(headers)),
	}
	if cols.ID != NoColumn {
		rv.ID = row.Cell(cols.ID).String()
	}
	for i, h := range headers {
		c := row.Cell(i)
		rv.Cells[i] = CellView{
			Header: h,
			Key:    keys[i],
			Text:   c.String(),
			HTML:   DecorateCell(cols, i, c),
		}
	}
	if cols.Status != NoColumn {
		rv.Status = ClassifyStatus(row.Cell(cols.Status).String())
	}
	if cols.Deadline != NoColumn {
		rv.Deadline = ClassifyDeadline(row.Cell(cols.Deadline), now)
		rv.Class = rv.Deadline.CSSClass()
	}
	return rv
}

// headerKeys derives stable snake_case keys, suffixing repeats.
func headerKeys(headers []string) []string {
	keys := make([]string, len(headers))
	seen := make(map[string]int, len(headers))
	for i, h := range headers {
		key := strcase.ToSnake(Normalize(h))
		if key == "" {
			key = fmt.Sprintf("col_%d", i)
		}
		if n := seen[key]; n > 0 {
			seen[key] = n + 1
			key = fmt.Sprintf("%s_%d", key, n+1)
		} else {
			seen[key] = 1
		}
		keys[i] = key
	}
	return keys
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
