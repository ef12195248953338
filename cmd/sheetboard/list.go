package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-runewidth"

	"github.com/goliatone/go-sheetboard/components/sheetboard"
)

const maxCellWidth = 32

var (
	colorOverdue = color.New(color.FgRed)
	colorToday   = color.New(color.FgYellow)
	colorSoon    = color.New(color.FgCyan)
	colorDone    = color.New(color.FgGreen)
	colorBold    = color.New(color.Bold)
	colorDim     = color.New(color.Faint)
)

type listCmd struct {
	Person  string   `help:"Exact person filter."`
	Status  string   `help:"Exact status filter."`
	Urgency string   `help:"Exact urgency filter."`
	Search  string   `short:"s" help:"Accent-insensitive search over every cell."`
	Chip    string   `help:"Quick status chip (pend, curso, comp)."`
	Sort    []int    `help:"Column index to sort by; repeat to toggle direction."`
	Columns []string `help:"Only print these headers."`
	JSON    bool     `help:"Print the board view as JSON."`
	NoColor bool     `name:"no-color" help:"Disable colors."`
}

func (cmd *listCmd) Run(ctx context.Context, g *Globals) error {
	service := g.buildService(serviceOptions{})
	viewer := g.viewer()
	view, err := service.View(ctx, viewer)
	if err != nil {
		return err
	}
	if view.Status.Error {
		return fmt.Errorf("%s", view.Status.Message)
	}
	spec := sheetboard.FilterSpec{Person: cmd.Person, Status: cmd.Status, Urgency: cmd.Urgency, Search: cmd.Search}
	if !spec.IsZero() {
		if view, err = service.ApplyFilters(ctx, viewer, spec); err != nil {
			return err
		}
	}
	if cmd.Chip != "" {
		if view, err = service.SelectStatusChip(ctx, viewer, cmd.Chip); err != nil {
			return err
		}
	}
	for _, col := range cmd.Sort {
		if view, err = service.ToggleSort(ctx, viewer, col); err != nil {
			return err
		}
	}
	if cmd.JSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(view)
	}
	if cmd.NoColor {
		disableColor()
	}
	renderBoard(os.Stdout, view, cmd.Columns)
	return nil
}

// renderBoard prints the counts line and an aligned table of visible rows.
// Rows are colored by deadline class; completed rows are green.
func renderBoard(w io.Writer, view sheetboard.BoardView, only []string) {
	if view.Branding.Title != "" {
		colorBold.Fprintln(w, view.Branding.Title)
	}
	if view.HasStatus {
		fmt.Fprintf(w, "Pendientes: %d  En curso: %d  Cumplidas: %d\n",
			view.Counts.Pending, view.Counts.InProgress, view.Counts.Completed)
	}
	cols := selectColumns(view.Headers, only)
	headers := make([]string, len(cols))
	for i, col := range cols {
		headers[i] = view.Headers[col].Label
		if ind := view.Headers[col].Indicator; ind != "" {
			headers[i] += " " + ind
		}
	}
	cells := make([][]string, len(view.Rows))
	for i, row := range view.Rows {
		cells[i] = make([]string, len(cols))
		for j, col := range cols {
			if col < len(row.Cells) {
				cells[i][j] = row.Cells[col].Text
			}
		}
	}
	widths := columnWidths(headers, cells)

	colorBold.Fprintln(w, formatLine(headers, widths))
	if len(view.Rows) == 0 {
		colorDim.Fprintln(w, "Sin resultados.")
	}
	for i, row := range view.Rows {
		line := formatLine(cells[i], widths)
		if c := rowColor(row); c != nil {
			c.Fprintln(w, line)
			continue
		}
		fmt.Fprintln(w, line)
	}
	if view.Status.Message != "" {
		colorDim.Fprintln(w, view.Status.Message)
	}
}

func disableColor() {
	color.NoColor = true
}

func selectColumns(headers []sheetboard.HeaderView, only []string) []int {
	var cols []int
	for i, h := range headers {
		if len(only) == 0 || containsHeader(only, h.Label) {
			cols = append(cols, i)
		}
	}
	return cols
}

func containsHeader(list []string, label string) bool {
	for _, candidate := range list {
		if sheetboard.Normalize(candidate) == sheetboard.Normalize(label) {
			return true
		}
	}
	return false
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = runewidth.StringWidth(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i >= len(widths) {
				break
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cleanCell(cell)))
		}
	}
	for i := range widths {
		widths[i] = min(widths[i], maxCellWidth)
	}
	return widths
}

func formatLine(values []string, widths []int) string {
	values = values[:min(len(values), len(widths))]
	parts := make([]string, len(values))
	for i, v := range values {
		v = runewidth.Truncate(cleanCell(v), widths[i], "…")
		parts[i] = runewidth.FillRight(v, widths[i])
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}

func cleanCell(v string) string {
	return strings.Join(strings.Fields(v), " ")
}

func rowColor(row sheetboard.RowView) *color.Color {
	switch row.Deadline {
	case sheetboard.DeadlineOverdue:
		return colorOverdue
	case sheetboard.DeadlineToday:
		return colorToday
	case sheetboard.DeadlineSoon:
		return colorSoon
	}
	if row.Status == sheetboard.StatusCompleted {
		return colorDone
	}
	return nil
}
