package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

// ApplyFiltersInput replaces the exact-match filters and the search text.
type ApplyFiltersInput struct {
	Viewer  sheetboard.ViewerContext `json:"-"`
	Person  string                   `json:"person"`
	Status  string                   `json:"status"`
	Urgency string                   `json:"urgency"`
	Search  string                   `json:"search"`
}

// Spec converts the input into a filter spec.
func (in ApplyFiltersInput) Spec() sheetboard.FilterSpec {
	return sheetboard.FilterSpec{
		Person:  in.Person,
		Status:  in.Status,
		Urgency: in.Urgency,
		Search:  in.Search,
	}
}

// ToggleSortInput selects a column header.
type ToggleSortInput struct {
	Viewer sheetboard.ViewerContext `json:"-"`
	Column int                      `json:"col"`
}

// ClearFiltersInput resets filters, search and sort.
type ClearFiltersInput struct {
	Viewer sheetboard.ViewerContext `json:"-"`
}

// SelectChipInput applies a status quick-filter.
type SelectChipInput struct {
	Viewer sheetboard.ViewerContext `json:"-"`
	Chip   string                   `json:"chip"`
}

type filterService interface {
	ApplyFilters(ctx context.Context, viewer sheetboard.ViewerContext, spec sheetboard.FilterSpec) (sheetboard.BoardView, error)
	ToggleSort(ctx context.Context, viewer sheetboard.ViewerContext, column int) (sheetboard.BoardView, error)
	ClearFilters(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error)
	SelectStatusChip(ctx context.Context, viewer sheetboard.ViewerContext, chip string) (sheetboard.BoardView, error)
}

// ApplyFiltersCommand updates the viewer's filters.
type ApplyFiltersCommand struct {
	service   filterService
	telemetry Telemetry
}

// NewApplyFiltersCommand creates the command.
func NewApplyFiltersCommand(service filterService, telemetry Telemetry) *ApplyFiltersCommand {
	return &ApplyFiltersCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ApplyFiltersInput] = (*ApplyFiltersCommand)(nil)

// Execute applies the filters.
func (c *ApplyFiltersCommand) Execute(ctx context.Context, msg ApplyFiltersInput) error {
	if c.service == nil {
		return errors.New("filters command requires service")
	}
	view, err := c.service.ApplyFilters(ctx, msg.Viewer, msg.Spec())
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.board.filters", map[string]any{
		"session_id": msg.Viewer.SessionID,
		"visible":    len(view.Rows),
	})
	return nil
}

// ToggleSortCommand applies a header selection.
type ToggleSortCommand struct {
	service   filterService
	telemetry Telemetry
}

// NewToggleSortCommand creates the command.
func NewToggleSortCommand(service filterService, telemetry Telemetry) *ToggleSortCommand {
	return &ToggleSortCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ToggleSortInput] = (*ToggleSortCommand)(nil)

// Execute toggles the sort.
func (c *ToggleSortCommand) Execute(ctx context.Context, msg ToggleSortInput) error {
	if c.service == nil {
		return errors.New("sort command requires service")
	}
	view, err := c.service.ToggleSort(ctx, msg.Viewer, msg.Column)
	if err != nil {
		return err
	}
	payload := map[string]any{
		"session_id": msg.Viewer.SessionID,
		"col":        msg.Column,
	}
	if view.Sort != nil {
		payload["dir"] = view.Sort.Direction
	}
	c.telemetry.Record(ctx, "sheetboard.board.sort", payload)
	return nil
}

// ClearFiltersCommand resets the viewer's filters.
type ClearFiltersCommand struct {
	service   filterService
	telemetry Telemetry
}

// NewClearFiltersCommand creates the command.
func NewClearFiltersCommand(service filterService, telemetry Telemetry) *ClearFiltersCommand {
	return &ClearFiltersCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ClearFiltersInput] = (*ClearFiltersCommand)(nil)

// Execute clears filters, search and sort.
func (c *ClearFiltersCommand) Execute(ctx context.Context, msg ClearFiltersInput) error {
	if c.service == nil {
		return errors.New("clear command requires service")
	}
	if _, err := c.service.ClearFilters(ctx, msg.Viewer); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.board.clear", map[string]any{
		"session_id": msg.Viewer.SessionID,
	})
	return nil
}

// SelectChipCommand applies a status quick-filter.
type SelectChipCommand struct {
	service   filterService
	telemetry Telemetry
}

// NewSelectChipCommand creates the command.
func NewSelectChipCommand(service filterService, telemetry Telemetry) *SelectChipCommand {
	return &SelectChipCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SelectChipInput] = (*SelectChipCommand)(nil)

// Execute selects the chip.
func (c *SelectChipCommand) Execute(ctx context.Context, msg SelectChipInput) error {
	if c.service == nil {
		return errors.New("chip command requires service")
	}
	view, err := c.service.SelectStatusChip(ctx, msg.Viewer, msg.Chip)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.board.chip", map[string]any{
		"session_id": msg.Viewer.SessionID,
		"chip":       msg.Chip,
		"status":     view.Filters.Status,
	})
	return nil
}
