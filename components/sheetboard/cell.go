package sheetboard

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CellKind enumerates the value shapes a spreadsheet cell can carry.
type CellKind uint8

const (
	CellEmpty CellKind = iota
	CellText
	CellNumber
)

func (k CellKind) String() string {
	switch k {
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	default:
		return "empty"
	}
}

// Cell is a single untyped value received from the backing API.
// The zero value is an empty cell.
type Cell struct {
	kind CellKind
	text string
	num  float64
}

// Row is one dataset record; positions follow Dataset.Headers.
type Row []Cell

// TextCell wraps a string value.
func TextCell(s string) Cell {
	return Cell{kind: CellText, text: s}
}

// NumberCell wraps a numeric value.
func NumberCell(f float64) Cell {
	return Cell{kind: CellNumber, num: f, text: formatNumber(f)}
}

// EmptyCell returns a null cell.
func EmptyCell() Cell {
	return Cell{}
}

// CellOf converts loosely typed values (JSON-decoded interfaces, Sheets API
// matrices) into a Cell.
func CellOf(v any) Cell {
	switch value := v.(type) {
	case nil:
		return EmptyCell()
	case Cell:
		return value
	case string:
		return TextCell(value)
	case float64:
		return NumberCell(value)
	case float32:
		return NumberCell(float64(value))
	case int:
		return NumberCell(float64(value))
	case int64:
		return NumberCell(float64(value))
	case json.Number:
		if f, err := value.Float64(); err == nil {
			return NumberCell(f)
		}
		return TextCell(value.String())
	case bool:
		return TextCell(strconv.FormatBool(value))
	case time.Time:
		return TextCell(value.UTC().Format(time.RFC3339))
	default:
		return TextCell(fmt.Sprint(value))
	}
}

// RowOf converts a loosely typed slice into a Row.
func RowOf(values []any) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = CellOf(v)
	}
	return row
}

// TextRow builds a Row of text cells, mostly useful for fixtures.
func TextRow(values ...string) Row {
	row := make(Row, len(values))
	for i, v := range values {
		row[i] = TextCell(v)
	}
	return row
}

// Kind reports the cell shape.
func (c Cell) Kind() CellKind {
	return c.kind
}

// IsEmpty is true for null cells.
func (c Cell) IsEmpty() bool {
	return c.kind == CellEmpty
}

// String renders the cell as displayed text; empty cells render as "".
func (c Cell) String() string {
	return c.text
}

// Float returns the numeric value of number cells and numeric-looking text.
func (c Cell) Float() (float64, bool) {
	if c.kind == CellNumber {
		return c.num, true
	}
	if !LooksNumeric(c.text) {
		return 0, false
	}
	return parseLooseFloat(c.text)
}

// Date parses the displayed text as a date.
func (c Cell) Date() (time.Time, bool) {
	if c.kind == CellEmpty {
		return time.Time{}, false
	}
	return ParseDate(c.text)
}

// Normalized returns the cell text folded through Normalize.
func (c Cell) Normalized() string {
	return Normalize(c.text)
}

// UnmarshalJSON decodes null, strings, numbers and booleans. Other JSON
// values keep their raw text.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0, bytes.Equal(data, []byte("null")):
		*c = EmptyCell()
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("sheetboard: decode text cell: %w", err)
		}
		*c = TextCell(s)
	case bytes.Equal(data, []byte("true")), bytes.Equal(data, []byte("false")):
		*c = TextCell(string(data))
	case data[0] == '-' || (data[0] >= '0' && data[0] <= '9'):
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("sheetboard: decode number cell %s: %w", data, err)
		}
		*c = NumberCell(f)
	default:
		*c = TextCell(string(data))
	}
	return nil
}

// MarshalJSON encodes the cell back to its JSON primitive.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case CellNumber:
		return []byte(c.text), nil
	case CellText:
		return json.Marshal(c.text)
	default:
		return []byte("null"), nil
	}
}

// Cell returns the value at position i, or an empty cell when out of range.
func (r Row) Cell(i int) Cell {
	if i < 0 || i >= len(r) {
		return EmptyCell()
	}
	return r[i]
}

// Strings renders every cell as text.
func (r Row) Strings() []string {
	out := make([]string, len(r))
	for i, c := range r {
		out[i] = c.String()
	}
	return out
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

func parseLooseFloat(s string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.Replace(strings.TrimSpace(s), ",", ".", 1), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
