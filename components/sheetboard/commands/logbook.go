package commands

import (
	"context"
	"errors"

	gocommand "github.com/goliatone/go-command"
	sheetboard "github.com/goliatone/go-sheetboard/components/sheetboard"
)

// SubmitLogInput appends a record to a task logbook.
type SubmitLogInput struct {
	Viewer sheetboard.ViewerContext `json:"-"`
	Record sheetboard.LogRecord     `json:"record"`
}

type logbookService interface {
	SubmitLog(ctx context.Context, viewer sheetboard.ViewerContext, record sheetboard.LogRecord) (sheetboard.LogbookView, error)
}

// SubmitLogCommand posts the record and reloads the task's logbook.
type SubmitLogCommand struct {
	service   logbookService
	telemetry Telemetry
}

// NewSubmitLogCommand creates the command.
func NewSubmitLogCommand(service logbookService, telemetry Telemetry) *SubmitLogCommand {
	return &SubmitLogCommand{service: service, telemetry: normalizeTelemetry(telemetry)}
}

var _ gocommand.Commander[SubmitLogInput] = (*SubmitLogCommand)(nil)

// Execute submits the record.
func (c *SubmitLogCommand) Execute(ctx context.Context, msg SubmitLogInput) error {
	if c.service == nil {
		return errors.New("submit log command requires service")
	}
	if err := msg.Record.Validate(); err != nil {
		return err
	}
	view, err := c.service.SubmitLog(ctx, msg.Viewer, msg.Record)
	if err != nil {
		return err
	}
	c.telemetry.Record(ctx, "sheetboard.logbook.append", map[string]any{
		"session_id": msg.Viewer.SessionID,
		"task_id":    msg.Record.ID,
		"entries":    len(view.Rows),
	})
	return nil
}
