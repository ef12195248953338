package sheetboard

import (
	"fmt"
	"strings"
)

// Dataset is the headers+rows pair retrieved for the configured sheet.
// It is replaced wholesale on reload and never mutated afterwards.
type Dataset struct {
	Headers []string
	Rows    []Row
	index   ColumnIndex
}

// NewDataset validates the row shape and builds the column index. Rows
// shorter than the header list are padded with empty cells (the Sheets API
// drops trailing blanks); longer rows are rejected.
func NewDataset(headers []string, rows []Row) (*Dataset, error) {
	hdrs := make([]string, len(headers))
	copy(hdrs, headers)
	normalized := make([]Row, len(rows))
	for i, row := range rows {
		if len(row) > len(hdrs) {
			return nil, fmt.Errorf("sheetboard: row %d has %d cells, expected %d", i, len(row), len(hdrs))
		}
		out := make(Row, len(hdrs))
		copy(out, row)
		normalized[i] = out
	}
	return &Dataset{
		Headers: hdrs,
		Rows:    normalized,
		index:   NewColumnIndex(hdrs),
	}, nil
}

// Index returns the normalized header index.
func (d *Dataset) Index() ColumnIndex {
	if d == nil {
		return ColumnIndex{}
	}
	if d.index == nil {
		d.index = NewColumnIndex(d.Headers)
	}
	return d.index
}

// Columns resolves every semantic concept once for this dataset.
func (d *Dataset) Columns(candidates ColumnCandidates) Columns {
	if d == nil {
		return NoColumns()
	}
	return d.Index().ResolveColumns(candidates)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// FindByID returns the first row whose id column renders as id.
func (d *Dataset) FindByID(idColumn int, id string) (Row, bool) {
	if d == nil || idColumn == NoColumn {
		return nil, false
	}
	for _, row := range d.Rows {
		if row.Cell(idColumn).String() == id {
			return row, true
		}
	}
	return nil, false
}

// DistinctValues lists the trimmed, non-empty values of a column, sorted
// with the board collation.
func (d *Dataset) DistinctValues(column int) []string {
	if d == nil || column == NoColumn {
		return nil
	}
	seen := make(map[string]struct{})
	var out []string
	for _, row := range d.Rows {
		v := strings.TrimSpace(row.Cell(column).String())
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sortStrings(out)
	return out
}
