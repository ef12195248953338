package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

// SearchInput carries search box input. Immediate bypasses the debounce.
type SearchInput struct {
	Viewer    sheetboard.ViewerContext `json:"-"`
	Query     string                   `json:"search"`
	Immediate bool                     `json:"immediate,omitempty"`
}

type searchService interface {
	QueueSearch(ctx context.Context, viewer sheetboard.ViewerContext, query string) error
	SetSearch(ctx context.Context, viewer sheetboard.ViewerContext, query string) (sheetboard.BoardView, error)
}

// SearchCommand queues or applies search input.
type SearchCommand struct {
	service   searchService
	telemetry Telemetry
}

// NewSearchCommand creates the command.
func NewSearchCommand(service searchService, telemetry Telemetry) *SearchCommand {
	return &SearchCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SearchInput] = (*SearchCommand)(nil)

// Execute schedules the search pass, or runs it now when Immediate is set.
func (c *SearchCommand) Execute(ctx context.Context, msg SearchInput) error {
	if c.service == nil {
		return errors.New("search command requires service")
	}
	if msg.Immediate {
		if _, err := c.service.SetSearch(ctx, msg.Viewer, msg.Query); err != nil {
			return err
		}
	} else if err := c.service.QueueSearch(ctx, msg.Viewer, msg.Query); err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.board.search", map[string]any{
		"session_id": msg.Viewer.SessionID,
		"immediate":  msg.Immediate,
		"length":     len(msg.Query),
	})
	return nil
}
