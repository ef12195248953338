package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

// ReloadBoardInput refetches the dataset of a viewer's session.
type ReloadBoardInput struct {
	Viewer sheetboard.ViewerContext `json:"-"`
}

type reloadService interface {
	Reload(ctx context.Context, viewer sheetboard.ViewerContext) (sheetboard.BoardView, error)
}

// ReloadBoardCommand refetches the dataset. The view keeps showing the
// previous rows when the load fails.
type ReloadBoardCommand struct {
	service   reloadService
	telemetry Telemetry
}

// NewReloadBoardCommand creates the command.
func NewReloadBoardCommand(service reloadService, telemetry Telemetry) *ReloadBoardCommand {
	return &ReloadBoardCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[ReloadBoardInput] = (*ReloadBoardCommand)(nil)

// Execute reloads the board.
func (c *ReloadBoardCommand) Execute(ctx context.Context, msg ReloadBoardInput) error {
	if c.service == nil {
		return errors.New("reload command requires service")
	}
	view, err := c.service.Reload(ctx, msg.Viewer)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.board.reload", map[string]any{
		"session_id": msg.Viewer.SessionID,
		"rows":       view.Total,
	})
	return nil
}
